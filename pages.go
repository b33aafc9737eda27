package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gorilla/feeds"
	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/monograph/monograph/internal/mgauth"
	"github.com/monograph/monograph/internal/mgcache"
	"github.com/monograph/monograph/internal/mghtml"
	"github.com/monograph/monograph/internal/mgmd"
	"github.com/monograph/monograph/internal/mgstore"
)

// FeedMaxItems caps how many posts the site's own Atom feed carries.
const FeedMaxItems = 20

func (s *Server) handleLoginForm(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	return s.loginPageResponse(http.StatusOK, "")
}

func (s *Server) handleLogin(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	if s.ctx.Config.Password == "" {
		s.logger.Warn("Admin password not set; login is impossible")
		return nil, NewServerError(http.StatusInternalServerError, "Internal Server Error", "Admin password not set")
	}

	submitted := mgauth.Login{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}

	cookie, err := mgauth.HandleLogin(s.ctx.Salt, s.expectedLogin(), submitted)
	if errors.Is(err, mgauth.ErrBadCredentials) {
		return s.loginPageResponse(http.StatusUnauthorized, "Invalid username or password")
	}
	if err != nil {
		return nil, err
	}

	resp := NewSeeOtherResponse("/")
	resp.Header.Add("Set-Cookie", cookie.String())
	return resp, nil
}

func (s *Server) handleLogout(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	resp := NewSeeOtherResponse("/")
	resp.Header.Add("Set-Cookie", mgauth.HandleLogout().String())
	return resp, nil
}

func (s *Server) loginPageResponse(statusCode int, errorMsg string) (*ServerResponse, error) {
	return s.pageResponse(statusCode, mghtml.PageParams{
		Settings: mghtml.PageSettings{
			Title:     "login",
			Top:       mghtml.TopGoHome,
			ExtraHead: template.HTML(s.ctx.Config.ExtraHead),
		},
		Body: mghtml.LoginForm(errorMsg),
	}), nil
}

func (s *Server) handleBlogroll(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	loggedIn := s.isLoggedIn(r)

	cache, release, err := s.ctx.Cache.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	sources := cache.Sources()
	feedsByURL := cache.Feeds()
	release()

	// Entries render in configured order, skipping sources that have never
	// fetched successfully.
	ordered := make([]*mgcache.Feed, 0, len(feedsByURL))
	for _, source := range sources {
		if feed, ok := feedsByURL[source]; ok {
			ordered = append(ordered, feed)
		}
	}

	return s.pageResponse(http.StatusOK, mghtml.PageParams{
		Settings: mghtml.PageSettings{
			Title:     "blogroll",
			ShowLogin: true,
			LoggedIn:  loggedIn,
			Top:       mghtml.TopGoHome,
			ExtraHead: template.HTML(s.ctx.Config.ExtraHead),
		},
		Body: mghtml.Blogroll(ordered, s.timeNow()),
	}), nil
}

func (s *Server) handleFeed(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	store, release, err := s.ctx.Store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	posts, err := store.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	release()

	if len(posts) > FeedMaxItems {
		posts = posts[:FeedMaxItems]
	}

	base := s.ctx.BaseURL()
	feed := &feeds.Feed{
		Title:   s.ctx.Config.SiteName,
		Link:    &feeds.Link{Href: base + "/"},
		Updated: s.timeNow().UTC(),
	}
	if len(posts) > 0 {
		feed.Updated = posts[0].Updated
	}

	feed.Items = lo.Map(posts, func(post *mgstore.Post, _ int) *feeds.Item {
		href := fmt.Sprintf("%s/posts/%d", base, post.ID)
		rendered, renderErr := mgmd.Render(post.Content)
		if renderErr != nil {
			// A post that fails to render still gets a feed entry; the
			// link leads to the real page.
			rendered = ""
		}
		return &feeds.Item{
			Id:      href,
			Title:   mgmd.Title(post.Content),
			Link:    &feeds.Link{Href: href},
			Content: rendered,
			Created: post.Created,
			Updated: post.Updated,
		}
	})

	atom, err := feed.ToAtom()
	if err != nil {
		return nil, xerrors.Errorf("error rendering atom feed: %w", err)
	}

	return NewServerResponse(http.StatusOK, []byte(atom), http.Header{
		"Content-Type": []string{"application/atom+xml; charset=utf-8"},
	}), nil
}

// webfingerResponse is the JSON Resource Descriptor served for federated
// discovery of the site's single author.
type webfingerResponse struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases,omitempty"`
	Links   []webfingerLink `json:"links"`
}

type webfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

// handleWebfinger answers ActivityPub-style discovery for the site author.
// The `resource` query parameter is ignored: a single-author site has exactly
// one subject to describe, so every query gets the same answer.
func (s *Server) handleWebfinger(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	base := s.ctx.BaseURL()
	if base == "" {
		return nil, NewNotFoundError()
	}

	domain := strings.TrimPrefix(base, "https://")
	body, err := json.Marshal(webfingerResponse{
		Subject: fmt.Sprintf("acct:%s@%s", s.ctx.Config.Username, domain),
		Aliases: []string{base},
		Links: []webfingerLink{
			{Rel: "http://webfinger.net/rel/profile-page", Type: "text/html", Href: base},
		},
	})
	if err != nil {
		return nil, xerrors.Errorf("error encoding webfinger response: %w", err)
	}

	return NewServerResponse(http.StatusOK, body, http.Header{
		"Content-Type": []string{"application/jrd+json; charset=utf-8"},
	}), nil
}
