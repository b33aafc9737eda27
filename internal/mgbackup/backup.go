// Package mgbackup dispatches backup triggers after durable writes. Request
// handlers fire and forget; retries happen out of band and a delivery that
// fails for good only ever makes it to the log.
package mgbackup

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Trigger kicks off an external backup of the site's data.
type Trigger interface {
	// Fire sends one backup request. Implementations retry internally; a
	// returned error means the attempt was abandoned for good.
	Fire(ctx context.Context) error
}

// NopTrigger is the Trigger used when no backup webhook is configured.
type NopTrigger struct{}

// Fire does nothing.
func (NopTrigger) Fire(ctx context.Context) error { return nil }

// WebhookTrigger fires backups by POSTing to a webhook. The request shape
// matches what a GitHub repository_dispatch endpoint expects, which is the
// usual way to kick a backup workflow, but any endpoint that accepts a JSON
// POST works.
type WebhookTrigger struct {
	logger *logrus.Logger
	client *http.Client
	url    string
	token  string

	// Swappable for testing.
	newBackOff func() backoff.BackOff
}

// NewWebhookTrigger builds a trigger that POSTs to url, authorized by token
// when one is given.
func NewWebhookTrigger(logger *logrus.Logger, url, token string) *WebhookTrigger {
	return &WebhookTrigger{
		logger: logger,
		client: &http.Client{Timeout: 30 * time.Second},
		url:    url,
		token:  token,

		newBackOff: func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.InitialInterval = 500 * time.Millisecond
			policy.MaxInterval = 10 * time.Second
			policy.MaxElapsedTime = 2 * time.Minute
			return policy
		},
	}
}

// Fire sends the backup request, retrying transient failures with
// exponential backoff until ctx is done or the retry budget runs out.
func (t *WebhookTrigger) Fire(ctx context.Context) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url,
			strings.NewReader(`{"event_type":"backup"}`))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github+json")
		if t.token != "" {
			req.Header.Set("Authorization", "Bearer "+t.token)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			err := xerrors.Errorf("backup webhook returned status %d", resp.StatusCode)
			if resp.StatusCode < 500 {
				// A client error won't heal on retry.
				return backoff.Permanent(err)
			}
			return err
		}

		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(t.newBackOff(), ctx)); err != nil {
		return xerrors.Errorf("error triggering backup: %w", err)
	}

	t.logger.Info("Backup triggered")
	return nil
}
