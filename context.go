package main

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/monograph/monograph/internal/mgauth"
	"github.com/monograph/monograph/internal/mgbackup"
	"github.com/monograph/monograph/internal/mgcache"
	"github.com/monograph/monograph/internal/mgstore"
	"github.com/monograph/monograph/internal/util/syncutil"
)

// ServerContext bundles every shared resource in the process: the single
// guarded database connection, the guarded feed cache, the immutable
// configuration, the session-signing secret and the backup trigger. One
// instance is created at startup and shared by pointer between every request
// handler and background job, so all of them observe the same resources.
//
// The two guards are independent and are never nested: request handlers only
// ever take the store guard, the refresh job only ever takes the cache guard.
// That rule is what makes a lock-order deadlock impossible here.
type ServerContext struct {
	Backup mgbackup.Trigger
	Cache  *syncutil.Guarded[*mgcache.FeedCache]
	Config Config
	Logger *logrus.Logger
	Salt   mgauth.Secret
	Store  *syncutil.Guarded[*mgstore.Store]
}

// BaseURL returns the canonical HTTPS origin of the site, like
// "https://example.com", derived from the configured domain with surrounding
// whitespace and trailing slashes trimmed off. It's empty when no domain is
// configured, which callers use as the signal to omit absolute-URL metadata
// like canonical links and Open Graph tags.
func (c *ServerContext) BaseURL() string {
	domain := strings.TrimSpace(c.Config.Domain)
	domain = strings.TrimRight(domain, "/")
	if domain == "" {
		return ""
	}

	return "https://" + domain
}

// obtainSalt returns the secret that signs session cookies. In production
// it's read from the kv store, generated and persisted on first boot, so that
// sessions survive server restarts. Outside production a fixed development
// secret serves the same restart-survival purpose without touching storage.
func obtainSalt(ctx context.Context, config Config, store *mgstore.Store) (mgauth.Secret, error) {
	if !config.Production {
		return mgauth.DevelopmentSecret, nil
	}

	value, err := store.KVGet(ctx, mgstore.KeySalt)
	if err == nil {
		return mgauth.Secret(value), nil
	}
	if !errors.Is(err, mgstore.ErrKeyNotFound) {
		return nil, err
	}

	salt := mgauth.GenerateSecret()
	if err := store.KVSet(ctx, mgstore.KeySalt, []byte(salt)); err != nil {
		return nil, err
	}

	return salt, nil
}

// blogrollSources reads the configured feed URLs from the kv store, one per
// line. A missing key just means an empty blogroll; that's logged as a
// warning rather than treated as an error because a missing optional setting
// must never stop the server from starting.
func blogrollSources(ctx context.Context, logger *logrus.Logger, store *mgstore.Store) ([]string, error) {
	value, err := store.KVGet(ctx, mgstore.KeyBlogroll)
	if errors.Is(err, mgstore.ErrKeyNotFound) {
		logger.Warnf("No %q setting found; blogroll will be empty", mgstore.KeyBlogroll)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sources []string
	for _, line := range strings.Split(string(value), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sources = append(sources, line)
	}

	return sources, nil
}
