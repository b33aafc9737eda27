// Package mgcache keeps the blogroll cache: the last-fetched state of every
// feed the site follows.
//
// A FeedCache is not safe for concurrent use on its own. The server holds it
// behind a guard, which both protects reads and serializes refreshes.
package mgcache

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/xerrors"
)

// MaxItemsPerFeed caps how many entries of any one feed the blogroll shows.
const MaxItemsPerFeed = 5

// Item is a single entry of a followed feed.
type Item struct {
	Title     string
	Link      string
	Published time.Time
}

// Feed is the last successfully fetched state of one followed feed.
type Feed struct {
	SourceURL string
	Title     string
	SiteLink  string
	Items     []Item
	FetchedAt time.Time
}

// FeedCache maps feed URLs to their last good fetch. A source that has never
// fetched successfully has no entry.
type FeedCache struct {
	logger  *logrus.Logger
	parser  *gofeed.Parser
	sources []string
	feeds   map[string]*Feed

	// Swappable for testing.
	timeNow func() time.Time
}

// NewFeedCache builds an empty cache for the given source URLs. Nothing is
// fetched until the first Refresh.
func NewFeedCache(logger *logrus.Logger, sources []string) *FeedCache {
	return &FeedCache{
		logger:  logger,
		parser:  gofeed.NewParser(),
		sources: sources,
		feeds:   make(map[string]*Feed),
		timeNow: time.Now,
	}
}

// Sources returns the configured feed URLs in their configured order.
func (c *FeedCache) Sources() []string {
	return c.sources
}

// Feeds returns a copy of the feed map keyed by source URL so that callers
// can keep using it after releasing the cache's guard. Entries are replaced
// whole on refresh, never mutated, so the shared pointers stay consistent.
func (c *FeedCache) Feeds() map[string]*Feed {
	return maps.Clone(c.feeds)
}

// Refresh fetches every source and replaces its cache entry. A source that
// fails keeps its previous entry, so one broken feed can't blank out the
// whole blogroll; it'll be retried on the next scheduled run.
func (c *FeedCache) Refresh(ctx context.Context) {
	for _, source := range c.sources {
		feed, err := c.fetch(ctx, source)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"source": source,
			}).WithError(err).Warn("Feed refresh failed; keeping previous entry")
			continue
		}

		c.feeds[source] = feed
	}
}

func (c *FeedCache) fetch(ctx context.Context, source string) (*Feed, error) {
	parsed, err := c.parser.ParseURLWithContext(source, ctx)
	if err != nil {
		return nil, xerrors.Errorf("error fetching feed %q: %w", source, err)
	}

	feed := &Feed{
		SourceURL: source,
		Title:     parsed.Title,
		SiteLink:  parsed.Link,
		FetchedAt: c.timeNow(),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		entry := Item{Title: item.Title, Link: item.Link}
		if item.PublishedParsed != nil {
			entry.Published = item.PublishedParsed.UTC()
		}

		feed.Items = append(feed.Items, entry)
		if len(feed.Items) >= MaxItemsPerFeed {
			break
		}
	}

	return feed, nil
}
