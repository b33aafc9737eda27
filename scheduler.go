package main

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/monograph/monograph/internal/mgcache"
	"github.com/monograph/monograph/internal/util/syncutil"
)

// feedRefreshSchedule fires the blogroll refresh at minute 8 of every hour.
// A fixed off-the-hour minute spreads load away from everyone else's
// top-of-the-hour cron jobs.
const feedRefreshSchedule = "0 8 * * * *"

// newFeedRefreshJob builds the refresh routine shared by the startup warm-up
// and the recurring job. Both run literally the same func value so the two
// can never drift apart. The cache guard serializes refreshes and is the only
// lock the job ever takes; the database guard is never held across the
// network-bound fetches.
func newFeedRefreshJob(logger *logrus.Logger, cache *syncutil.Guarded[*mgcache.FeedCache]) func() {
	return func() {
		ctx := context.Background()

		feedCache, release, err := cache.Acquire(ctx)
		if err != nil {
			logger.WithError(err).Error("Failed to acquire feed cache for refresh")
			return
		}
		defer release()

		feedCache.Refresh(ctx)
	}
}

// scheduleFeedRefresh enqueues an immediate refresh to warm the cache without
// blocking startup, and a recurring one for freshness. Scheduling failures
// are logged and swallowed: a broken refresh schedule must never prevent the
// server from serving existing, possibly stale, content.
func scheduleFeedRefresh(logger *logrus.Logger, cache *syncutil.Guarded[*mgcache.FeedCache]) *cron.Cron {
	refresh := newFeedRefreshJob(logger, cache)

	go refresh()

	scheduler := cron.New(cron.WithSeconds())
	if _, err := scheduler.AddFunc(feedRefreshSchedule, refresh); err != nil {
		logger.WithError(err).Error("Failed to schedule feed refresh; blogroll will go stale")
		return scheduler
	}
	scheduler.Start()

	return scheduler
}
