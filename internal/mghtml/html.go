// Package mghtml assembles the site's HTML pages. Dynamic values are
// interpolated through html/template so anything user-shaped gets escaped;
// already-rendered markdown flows through as template.HTML.
package mghtml

import (
	"bytes"
	"html/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/monograph/monograph/internal/mgcache"
	"github.com/monograph/monograph/internal/mgstore"
)

// Top selects what renders at the top of a page.
type Top int

const (
	// TopHomepage shows the site name, and the about block when enabled.
	TopHomepage Top = iota

	// TopGoHome shows a link back to the homepage.
	TopGoHome

	// TopGoBack shows a browser-history back link, for pages like previews
	// that have no stable parent.
	TopGoBack
)

// PageSettings carries the per-page knobs for Page.
type PageSettings struct {
	// Title is the page-specific part of the <title>. Empty means the site
	// name stands alone, which is what the homepage wants.
	Title string

	// ShowLogin controls whether login/logout chrome renders at all, with
	// LoggedIn picking which. Error pages leave the chrome off.
	ShowLogin bool
	LoggedIn  bool

	// ShowAbout renders the about block under the site name. Only the
	// homepage's first page sets it.
	ShowAbout bool

	Top Top

	// ExtraHead is appended verbatim into <head>.
	ExtraHead template.HTML
}

// PageParams is everything Page needs besides the settings.
type PageParams struct {
	Settings  PageSettings
	SiteName  string
	AboutHTML template.HTML
	Body      template.HTML
}

var layoutTemplate = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html lang='en'>
<head>
<meta charset='utf-8'/>
<meta name='viewport' content='width=device-width, initial-scale=1'/>
<title>{{.Title}}</title>
<link rel='stylesheet' href='/static/style.css'/>
<script defer src='/static/script.js'></script>
<script defer src='/static/katex.js'></script>
{{.ExtraHead}}
</head>
<body>
<div class='container'>
<header class='top'>
<div class='top-left'>
{{.Top}}
</div>
<div class='top-right medium-text'>
{{.Auth}}
</div>
</header>
<main>
{{.Body}}
</main>
<footer class='footer medium-text'>
<a class='unstyled-link' href='/feed.xml'>feed</a> · <a class='unstyled-link' href='/blogroll'>blogroll</a>
</footer>
</div>
</body>
</html>
`))

var homeTopTemplate = template.Must(template.New("homeTop").Parse(`<h1 class='site-name'><a class='unstyled-link' href='/'>{{.SiteName}}</a></h1>
{{if .ShowAbout}}<div class='about'>
{{.AboutHTML}}
</div>
{{end}}`))

// Page renders a complete HTML page around body.
func Page(params PageParams) string {
	settings := params.Settings

	title := params.SiteName
	if settings.Title != "" {
		title = settings.Title + " · " + params.SiteName
	}

	var top template.HTML
	switch settings.Top {
	case TopHomepage:
		top = execute(homeTopTemplate, struct {
			SiteName  string
			ShowAbout bool
			AboutHTML template.HTML
		}{params.SiteName, settings.ShowAbout, params.AboutHTML})
	case TopGoHome:
		top = `<a class='unstyled-link' href='/'>← home</a>`
	case TopGoBack:
		top = `<a class='unstyled-link' href='javascript:history.back()'>← back</a>`
	}

	var auth template.HTML
	if settings.ShowLogin {
		if settings.LoggedIn {
			auth = `<a class='unstyled-link auth-link' href='/logout'>logout</a>`
		} else {
			auth = `<a class='unstyled-link auth-link' href='/login'>login</a>`
		}
	}

	return string(execute(layoutTemplate, struct {
		Title     string
		ExtraHead template.HTML
		Top       template.HTML
		Auth      template.HTML
		Body      template.HTML
	}{title, settings.ExtraHead, top, auth, params.Body}))
}

var postTemplate = template.Must(template.New("post").Parse(`<article class='post' id='post-{{.ID}}'>
<div class='post-content'>
{{.Content}}</div>
<div class='post-meta medium-text'>
<a class='unstyled-link' href='/posts/{{.ID}}'>{{.Date}}</a>{{if .ReadMore}} · <a class='unstyled-link' href='/posts/{{.ID}}'>read more ▶</a>{{end}}
</div>
</article>
`))

// WrapPost wraps a post's rendered markdown in its article chrome. Front page
// previews additionally link through to the full post.
func WrapPost(post *mgstore.Post, rendered string, frontPagePreview bool) template.HTML {
	return execute(postTemplate, struct {
		ID       int64
		Content  template.HTML
		Date     string
		ReadMore bool
	}{post.ID, template.HTML(rendered), post.Created.UTC().Format("2006-01-02"), frontPagePreview})
}

var paginationTemplate = template.Must(template.New("pagination").Parse(`<div style='display: flex; justify-content: space-between;'>
<p>
{{if .PrevHref}}<a class='unstyled-link' href='{{.PrevHref}}'>◀ prev</a>{{end}}
</p>
<p>
{{if .NextHref}}<a class='unstyled-link' href='{{.NextHref}}'>▶ next</a>{{end}}
</p>
</div>
`))

// Pagination renders the prev/next navigation under a listing. An empty href
// leaves that side blank.
func Pagination(prevHref, nextHref string) template.HTML {
	return execute(paginationTemplate, struct {
		PrevHref, NextHref string
	}{prevHref, nextHref})
}

var addPostTemplate = template.Must(template.New("addPost").Parse(`<form class='post-form' action='/posts/add' method='post'>
<textarea name='content' rows='12' placeholder='Write something…'></textarea>
<div class='post-form-buttons'>
<button type='submit' name='preview' value='Preview'>preview</button>
<button type='submit' name='publish' value='Publish'>publish</button>
</div>
</form>
`))

// AddPostForm renders the composer that sits on the homepage for the
// logged-in author.
func AddPostForm() template.HTML {
	return execute(addPostTemplate, nil)
}

var editPostTemplate = template.Must(template.New("editPost").Parse(`<form class='post-form' action='/posts/edit/{{.ID}}' method='post'>
<textarea name='content' rows='20'>{{.Content}}</textarea>
<div class='post-form-buttons'>
<button type='submit' name='preview' value='Preview'>preview</button>
<button type='submit' name='publish' value='Publish'>publish</button>
</div>
</form>
`))

// EditPostForm renders the editing form for an existing post.
func EditPostForm(post *mgstore.Post) template.HTML {
	return execute(editPostTemplate, struct {
		ID      int64
		Content string
	}{post.ID, post.Content})
}

var editPostButtonsTemplate = template.Must(template.New("editPostButtons").Parse(`<div class='edit-post-buttons medium-text'>
<a class='unstyled-link' href='/posts/edit/{{.ID}}'>edit</a> · <a class='unstyled-link' href='/posts/delete/{{.ID}}'>delete</a>
</div>
`))

// EditPostButtons renders the edit/delete links shown above a post to its
// logged-in author.
func EditPostButtons(post *mgstore.Post) template.HTML {
	return execute(editPostButtonsTemplate, struct{ ID int64 }{post.ID})
}

var deleteConfirmationTemplate = template.Must(template.New("deleteConfirmation").Parse(`<div class='medium-text' style='text-align: center; font-weight: bold;'>
<p>Are you sure you want to delete this post? This action cannot be undone.</p>
<form action='/posts/delete/{{.ID}}' method='post'>
<button type='submit'>delete</button>
</form>
<br>
</div>
`))

// DeleteConfirmation renders the are-you-sure form that POSTs the actual
// delete.
func DeleteConfirmation(id int64) template.HTML {
	return execute(deleteConfirmationTemplate, struct{ ID int64 }{id})
}

var loginTemplate = template.Must(template.New("login").Parse(`<div class='login'>
{{if .Error}}<p class='error'>{{.Error}}</p>
{{end}}<form class='login-form' action='/login' method='post'>
<label>username<br/><input type='text' name='username' autocapitalize='none' autocorrect='off'/></label><br/>
<label>password<br/><input type='password' name='password'/></label><br/>
<button type='submit'>login</button>
</form>
</div>
`))

// LoginForm renders the login form, with an error line when msg is set.
func LoginForm(msg string) template.HTML {
	return execute(loginTemplate, struct{ Error string }{msg})
}

var errorTemplate = template.Must(template.New("error").Parse(`<div style='text-align: center;'>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</div>
`))

// ErrorBlock renders the body of an error page.
func ErrorBlock(title, msg string) template.HTML {
	return execute(errorTemplate, struct{ Title, Message string }{title, msg})
}

var notFoundTemplate = template.Must(template.New("notFound").Parse(`<div style='text-align: center; margin-top: 100px;'>
<h1>Not found</h1>
<p>The page you are looking for does not exist.</p>
</div>
`))

// NotFoundBlock renders the body of the not-found page.
func NotFoundBlock() template.HTML {
	return execute(notFoundTemplate, nil)
}

var blogrollTemplate = template.Must(template.New("blogroll").Parse(`<div class='blogroll'>
{{range .Feeds}}<section class='blogroll-feed'>
<h2><a class='unstyled-link' href='{{.SiteLink}}'>{{.Title}}</a></h2>
<p class='medium-text'>fetched {{.FetchedAgo}}</p>
<ul>
{{range .Items}}<li><a href='{{.Link}}'>{{.Title}}</a>{{if .Date}} <span class='medium-text'>{{.Date}}</span>{{end}}</li>
{{end}}</ul>
</section>
{{end}}{{if not .Feeds}}<p>Nothing here yet.</p>
{{end}}</div>
`))

// Blogroll renders the cached state of every followed feed, in the order
// given. now anchors the relative fetch ages.
func Blogroll(feeds []*mgcache.Feed, now time.Time) template.HTML {
	type itemView struct {
		Link  string
		Title string
		Date  string
	}
	type feedView struct {
		Title      string
		SiteLink   string
		FetchedAgo string
		Items      []itemView
	}

	views := make([]feedView, 0, len(feeds))
	for _, feed := range feeds {
		title := feed.Title
		if title == "" {
			title = feed.SourceURL
		}

		view := feedView{
			Title:      title,
			SiteLink:   feed.SiteLink,
			FetchedAgo: humanize.RelTime(feed.FetchedAt, now, "ago", "from now"),
		}
		for _, item := range feed.Items {
			itemV := itemView{Link: item.Link, Title: item.Title}
			if !item.Published.IsZero() {
				itemV.Date = item.Published.UTC().Format("2006-01-02")
			}
			view.Items = append(view.Items, itemV)
		}

		views = append(views, view)
	}

	return execute(blogrollTemplate, struct{ Feeds []feedView }{views})
}

// execute runs a static template against typed data. These templates can only
// fail on programmer error, so failure panics rather than plumbing an error
// through every render call.
func execute(t *template.Template, data any) template.HTML {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		panic(err)
	}
	return template.HTML(buf.String())
}
