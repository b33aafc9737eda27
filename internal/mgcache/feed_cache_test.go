package mgcache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var stableTime = time.Date(2022, 11, 9, 10, 11, 12, 0, time.UTC)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>https://feed.example.com</link>
    <item>
      <title>First post</title>
      <link>https://feed.example.com/1</link>
      <pubDate>Wed, 09 Nov 2022 10:11:12 GMT</pubDate>
    </item>
    <item>
      <title>Second post</title>
      <link>https://feed.example.com/2</link>
    </item>
  </channel>
</rss>`

func TestFeedCacheRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("FetchesConfiguredSources", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, feedXML)
		}))
		defer server.Close()

		cache := newTestCache(server.URL)
		cache.Refresh(ctx)

		feeds := cache.Feeds()
		require.Len(t, feeds, 1)

		feed := feeds[server.URL]
		require.NotNil(t, feed)
		require.Equal(t, "Example Feed", feed.Title)
		require.Equal(t, "https://feed.example.com", feed.SiteLink)
		require.Equal(t, stableTime, feed.FetchedAt)
		require.Equal(t, []Item{
			{Title: "First post", Link: "https://feed.example.com/1", Published: stableTime},
			{Title: "Second post", Link: "https://feed.example.com/2"},
		}, feed.Items)
	})

	t.Run("FailureKeepsPreviousEntry", func(t *testing.T) {
		var failing atomic.Bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if failing.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, feedXML)
		}))
		defer server.Close()

		cache := newTestCache(server.URL)
		cache.Refresh(ctx)
		require.Len(t, cache.Feeds(), 1)

		failing.Store(true)
		cache.Refresh(ctx)

		feeds := cache.Feeds()
		require.Len(t, feeds, 1)
		require.Equal(t, "Example Feed", feeds[server.URL].Title)
	})

	t.Run("UnreachableSourceNeverAppears", func(t *testing.T) {
		cache := newTestCache("http://127.0.0.1:1/feed.xml")
		cache.Refresh(ctx)
		require.Empty(t, cache.Feeds())
	})

	t.Run("ItemCountCapped", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Busy Feed</title>`)
			for i := 0; i < MaxItemsPerFeed+3; i++ {
				fmt.Fprintf(w, `<item><title>Post %d</title></item>`, i)
			}
			fmt.Fprint(w, `</channel></rss>`)
		}))
		defer server.Close()

		cache := newTestCache(server.URL)
		cache.Refresh(ctx)

		require.Len(t, cache.Feeds()[server.URL].Items, MaxItemsPerFeed)
	})
}

func TestFeedCacheFeedsIsACopy(t *testing.T) {
	cache := newTestCache("https://never-fetched.example.com/feed.xml")
	cache.feeds["x"] = &Feed{Title: "X"}

	feeds := cache.Feeds()
	delete(feeds, "x")

	require.Len(t, cache.Feeds(), 1)
}

func TestFeedCacheSources(t *testing.T) {
	cache := newTestCache("https://a.example.com/feed", "https://b.example.com/feed")
	require.Equal(t, []string{"https://a.example.com/feed", "https://b.example.com/feed"}, cache.Sources())
}

func newTestCache(sources ...string) *FeedCache {
	logger := logrus.New()

	cache := NewFeedCache(logger, sources)
	cache.timeNow = func() time.Time { return stableTime }
	return cache
}
