package mghtml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/monograph/monograph/internal/mgcache"
	"github.com/monograph/monograph/internal/mgstore"
)

var stableTime = time.Date(2022, 11, 9, 10, 11, 12, 0, time.UTC)

func testPost() *mgstore.Post {
	return &mgstore.Post{
		ID:      42,
		Created: stableTime,
		Updated: stableTime,
		Content: "# Hi\n",
	}
}

func TestPage(t *testing.T) {
	t.Run("TitleComposition", func(t *testing.T) {
		page := Page(PageParams{
			Settings: PageSettings{Title: "Some post"},
			SiteName: "example.com",
		})
		require.Contains(t, page, "<title>Some post · example.com</title>")
	})

	t.Run("EmptyTitleUsesSiteName", func(t *testing.T) {
		page := Page(PageParams{SiteName: "example.com"})
		require.Contains(t, page, "<title>example.com</title>")
	})

	t.Run("ExtraHeadUnescaped", func(t *testing.T) {
		page := Page(PageParams{
			Settings: PageSettings{ExtraHead: `<meta property='og:type' content='website'/>`},
			SiteName: "example.com",
		})
		require.Contains(t, page, "<meta property='og:type' content='website'/>")
	})

	t.Run("BodyUnescaped", func(t *testing.T) {
		page := Page(PageParams{
			Settings: PageSettings{},
			SiteName: "example.com",
			Body:     "<article>hello</article>",
		})
		require.Contains(t, page, "<article>hello</article>")
	})

	t.Run("HomepageTopShowsAbout", func(t *testing.T) {
		page := Page(PageParams{
			Settings:  PageSettings{Top: TopHomepage, ShowAbout: true},
			SiteName:  "example.com",
			AboutHTML: "<p>All about it.</p>",
		})
		require.Contains(t, page, "class='site-name'")
		require.Contains(t, page, "<p>All about it.</p>")
	})

	t.Run("HomepageTopWithoutAbout", func(t *testing.T) {
		page := Page(PageParams{
			Settings:  PageSettings{Top: TopHomepage, ShowAbout: false},
			SiteName:  "example.com",
			AboutHTML: "<p>All about it.</p>",
		})
		require.NotContains(t, page, "All about it.")
	})

	t.Run("GoHomeTop", func(t *testing.T) {
		page := Page(PageParams{Settings: PageSettings{Top: TopGoHome}, SiteName: "x"})
		require.Contains(t, page, "href='/'>← home</a>")
	})

	t.Run("GoBackTop", func(t *testing.T) {
		page := Page(PageParams{Settings: PageSettings{Top: TopGoBack}, SiteName: "x"})
		require.Contains(t, page, "history.back()")
	})

	t.Run("LoginChrome", func(t *testing.T) {
		page := Page(PageParams{
			Settings: PageSettings{ShowLogin: true, LoggedIn: false},
			SiteName: "x",
		})
		require.Contains(t, page, "href='/login'>login</a>")
		require.NotContains(t, page, "/logout")
	})

	t.Run("LogoutChrome", func(t *testing.T) {
		page := Page(PageParams{
			Settings: PageSettings{ShowLogin: true, LoggedIn: true},
			SiteName: "x",
		})
		require.Contains(t, page, "href='/logout'>logout</a>")
	})

	t.Run("NoAuthChrome", func(t *testing.T) {
		page := Page(PageParams{Settings: PageSettings{ShowLogin: false}, SiteName: "x"})
		require.NotContains(t, page, "/login")
		require.NotContains(t, page, "/logout")
	})
}

func TestWrapPost(t *testing.T) {
	t.Run("FullPost", func(t *testing.T) {
		html := string(WrapPost(testPost(), "<h1>Hi</h1>\n", false))
		require.Contains(t, html, "id='post-42'")
		require.Contains(t, html, "<h1>Hi</h1>")
		require.Contains(t, html, "href='/posts/42'>2022-11-09</a>")
		require.NotContains(t, html, "read more")
	})

	t.Run("FrontPagePreview", func(t *testing.T) {
		html := string(WrapPost(testPost(), "<h1>Hi</h1>\n", true))
		require.Contains(t, html, "read more")
	})
}

func TestPagination(t *testing.T) {
	t.Run("BothSides", func(t *testing.T) {
		html := string(Pagination("/", "/?page=3"))
		require.Contains(t, html, "href='/'>◀ prev</a>")
		require.Contains(t, html, "href='/?page=3'>▶ next</a>")
	})

	t.Run("FirstPage", func(t *testing.T) {
		html := string(Pagination("", "/?page=2"))
		require.NotContains(t, html, "prev")
		require.Contains(t, html, "▶ next")
	})

	t.Run("LastPage", func(t *testing.T) {
		html := string(Pagination("/?page=4", ""))
		require.Contains(t, html, "◀ prev")
		require.NotContains(t, html, "next")
	})
}

func TestAddPostForm(t *testing.T) {
	html := string(AddPostForm())
	require.Contains(t, html, "action='/posts/add'")
	require.Contains(t, html, "name='publish' value='Publish'")
	require.Contains(t, html, "name='preview' value='Preview'")
}

func TestEditPostForm(t *testing.T) {
	post := testPost()
	post.Content = "evil </textarea><script>alert(1)</script>"

	html := string(EditPostForm(post))
	require.Contains(t, html, "action='/posts/edit/42'")
	require.Contains(t, html, "name='publish' value='Publish'")
	require.NotContains(t, html, "<script>alert(1)</script>")
	require.Contains(t, html, "&lt;/textarea&gt;")
}

func TestEditPostButtons(t *testing.T) {
	html := string(EditPostButtons(testPost()))
	require.Contains(t, html, "href='/posts/edit/42'>edit</a>")
	require.Contains(t, html, "href='/posts/delete/42'>delete</a>")
}

func TestDeleteConfirmation(t *testing.T) {
	html := string(DeleteConfirmation(42))
	require.Contains(t, html, "Are you sure you want to delete this post? This action cannot be undone.")
	require.Contains(t, html, "action='/posts/delete/42' method='post'")
}

func TestLoginForm(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		html := string(LoginForm(""))
		require.Contains(t, html, "action='/login' method='post'")
		require.NotContains(t, html, "class='error'")
	})

	t.Run("WithError", func(t *testing.T) {
		html := string(LoginForm("Invalid username or password"))
		require.Contains(t, html, "Invalid username or password")
		require.Contains(t, html, "class='error'")
	})
}

func TestErrorBlock(t *testing.T) {
	html := string(ErrorBlock("Internal Server Error", "Database error"))
	require.Contains(t, html, "<h1>Internal Server Error</h1>")
	require.Contains(t, html, "<p>Database error</p>")
}

func TestNotFoundBlock(t *testing.T) {
	html := string(NotFoundBlock())
	require.Contains(t, html, "<h1>Not found</h1>")
	require.Contains(t, html, "The page you are looking for does not exist.")
}

func TestBlogroll(t *testing.T) {
	t.Run("RendersFeeds", func(t *testing.T) {
		feeds := []*mgcache.Feed{
			{
				SourceURL: "https://a.example.com/feed.xml",
				Title:     "A Blog",
				SiteLink:  "https://a.example.com",
				FetchedAt: stableTime.Add(-5 * time.Minute),
				Items: []mgcache.Item{
					{Title: "Entry", Link: "https://a.example.com/entry", Published: stableTime.Add(-24 * time.Hour)},
				},
			},
		}

		html := string(Blogroll(feeds, stableTime))
		require.Contains(t, html, ">A Blog</a>")
		require.Contains(t, html, "href='https://a.example.com/entry'>Entry</a>")
		require.Contains(t, html, "2022-11-08")
		require.Contains(t, html, "5 minutes ago")
	})

	t.Run("UntitledFeedFallsBackToURL", func(t *testing.T) {
		feeds := []*mgcache.Feed{{SourceURL: "https://b.example.com/feed.xml", FetchedAt: stableTime}}

		html := string(Blogroll(feeds, stableTime))
		require.Contains(t, html, "https://b.example.com/feed.xml")
	})

	t.Run("Empty", func(t *testing.T) {
		html := string(Blogroll(nil, stableTime))
		require.Contains(t, html, "Nothing here yet.")
	})
}
