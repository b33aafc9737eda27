package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/xerrors"

	"github.com/monograph/monograph/internal/mghtml"
	"github.com/monograph/monograph/internal/mgmd"
	"github.com/monograph/monograph/internal/mgstore"
)

// PostsPerPage is how many posts a listing page shows.
const PostsPerPage = 10

// PublishMarker is the literal form fragment that distinguishes a publish
// submission from a preview. The composer's publish button submits
// `publish=Publish`; checking the raw body for it means the preview button
// (or any other submission) never writes anything.
const PublishMarker = "publish=Publish"

func (s *Server) handleHome(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	loggedIn := s.isLoggedIn(r)

	// Page 1 is canonically addressed by the bare root path, so the about
	// block shows only when no page parameter is present at all.
	pageParam := r.URL.Query().Get("page")
	showAbout := pageParam == ""
	currentPage := parsePageNumber(pageParam)

	store, release, err := s.ctx.Store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	posts, err := store.ListPosts(ctx)
	if err != nil {
		return nil, err
	}

	about, err := store.KVGet(ctx, mgstore.KeyAbout)
	if err != nil && !errors.Is(err, mgstore.ErrKeyNotFound) {
		return nil, err
	}
	release()

	// Check the page against the post count before multiplying so an
	// absurdly large page number can't overflow the offset arithmetic.
	// Anything past the last page is an empty window.
	start, end, hasNext := len(posts), len(posts), false
	if currentPage <= len(posts)/PostsPerPage+1 {
		start = (currentPage - 1) * PostsPerPage
		end = start + PostsPerPage
		hasNext = end < len(posts)
		if start > len(posts) {
			start = len(posts)
		}
		if end > len(posts) {
			end = len(posts)
		}
	}

	var body strings.Builder
	if loggedIn {
		body.WriteString(string(mghtml.AddPostForm()))
	}
	for _, post := range posts[start:end] {
		rendered, err := mgmd.RenderPreview(post.Content)
		if err != nil {
			return nil, err
		}
		body.WriteString(string(mghtml.WrapPost(post, rendered, true)))
	}

	var prevHref string
	if currentPage > 1 {
		if currentPage-1 == 1 {
			prevHref = "/"
		} else {
			prevHref = fmt.Sprintf("/?page=%d", currentPage-1)
		}
	}
	var nextHref string
	if hasNext {
		nextHref = fmt.Sprintf("/?page=%d", currentPage+1)
	}
	body.WriteString(string(mghtml.Pagination(prevHref, nextHref)))

	aboutHTML, err := mgmd.Render(string(about))
	if err != nil {
		return nil, err
	}

	extraHead := fmt.Sprintf(
		"<meta property='og:description' content='%s'/>\n<meta property='og:type' content='website'/>\n%s",
		html.EscapeString(strings.TrimSpace(string(about))), s.ctx.Config.ExtraHead)

	top := mghtml.TopGoHome
	if showAbout {
		top = mghtml.TopHomepage
	}

	return s.pageResponse(http.StatusOK, mghtml.PageParams{
		Settings: mghtml.PageSettings{
			ShowLogin: true,
			LoggedIn:  loggedIn,
			ShowAbout: showAbout,
			Top:       top,
			ExtraHead: template.HTML(extraHead),
		},
		AboutHTML: template.HTML(aboutHTML),
		Body:      template.HTML(body.String()),
	}), nil
}

func (s *Server) handleShowPost(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	loggedIn := s.isLoggedIn(r)

	id, err := postID(r)
	if err != nil {
		return nil, NewNotFoundError()
	}

	store, release, err := s.ctx.Store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	post, err := store.GetPost(ctx, id)
	if err != nil {
		// Deliberately covers storage failures too: a reader gets the
		// not-found page, never internal failure detail.
		return nil, NewNotFoundError()
	}

	author, err := store.KVGet(ctx, mgstore.KeyAuthorName)
	if err != nil && !errors.Is(err, mgstore.ErrKeyNotFound) {
		return nil, err
	}
	release()

	extraHead := s.articleHead(post, string(author))

	rendered, err := mgmd.Render(post.Content)
	if err != nil {
		return nil, err
	}

	var body strings.Builder
	if loggedIn {
		body.WriteString(string(mghtml.EditPostButtons(post)))
	}
	body.WriteString(string(mghtml.WrapPost(post, rendered, false)))

	return s.pageResponse(http.StatusOK, mghtml.PageParams{
		Settings: mghtml.PageSettings{
			Title:     mgmd.Title(post.Content),
			ShowLogin: true,
			LoggedIn:  loggedIn,
			Top:       mghtml.TopGoHome,
			ExtraHead: template.HTML(extraHead),
		},
		Body: template.HTML(body.String()),
	}), nil
}

// articleHead builds the extra <head> markup for a single post: article and
// Open Graph metadata plus the canonical link. Absolute-URL metadata is
// emitted only when a domain is configured; without one there's no canonical
// URL to point at.
func (s *Server) articleHead(post *mgstore.Post, author string) string {
	var head strings.Builder

	if base := s.ctx.BaseURL(); base != "" {
		if author != "" {
			fmt.Fprintf(&head, "<meta property='article:author' content='%s'/>\n", html.EscapeString(author))
		}
		// Open Graph uses ISO 8601 according to <https://ogp.me/>.
		fmt.Fprintf(&head, "<meta property='article:published_time' content='%s'/>\n", iso8601(post.Created))
		fmt.Fprintf(&head, "<meta property='article:modified_time' content='%s'/>\n", iso8601(post.Updated))
		canonical := fmt.Sprintf("%s/posts/%d", base, post.ID)
		fmt.Fprintf(&head, "<meta property='og:url' content='%s'/>\n", canonical)
		head.WriteString("<meta property='og:type' content='article'/>\n")
		fmt.Fprintf(&head, "<link rel='canonical' href='%s'/>\n", canonical)
	}

	head.WriteString(s.ctx.Config.ExtraHead)
	return head.String()
}

// handlePostSlug permanently redirects a slugged post URL to its canonical
// ID-only form. Same behavior as Reddit: any slug text is accepted and never
// consulted for lookup, it's decoration for humans and link previews.
func (s *Server) handlePostSlug(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	return NewServerResponse(http.StatusPermanentRedirect, nil, http.Header{
		"Location": []string{"/posts/" + mux.Vars(r)["id"]},
	}), nil
}

func (s *Server) handleAddPost(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	if !s.isLoggedIn(r) {
		return nil, NewNotFoundError()
	}

	input, form, err := readSubmittedForm(r)
	if err != nil {
		return nil, err
	}
	content := form.Get("content")
	now := s.timeNow().UTC()

	if strings.Contains(input, PublishMarker) {
		store, release, err := s.ctx.Store.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()

		if _, err := store.InsertPost(ctx, now, now, trimNewlineSuffix(content)); err != nil {
			s.logger.WithError(err).Error("Failed to insert post")
			return nil, NewServerError(http.StatusInternalServerError, "Internal Server Error", "Failed to insert post")
		}
		release()

		s.fireBackup()
		return NewSeeOtherResponse("/?reset_forms=true"), nil
	}

	// Preview: render the submitted content as an unsaved post, exactly as
	// it would look published. Nothing is written and no backup fires.
	post := &mgstore.Post{ID: 0, Created: now, Updated: now, Content: content}
	return s.previewResponse(post)
}

func (s *Server) handleEditForm(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	loggedIn := s.isLoggedIn(r)

	id, err := postID(r)
	if err != nil {
		return nil, NewNotFoundError()
	}

	store, release, err := s.ctx.Store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	post, err := store.GetPost(ctx, id)
	if err != nil {
		return nil, NewNotFoundError()
	}
	release()

	return s.pageResponse(http.StatusOK, mghtml.PageParams{
		Settings: mghtml.PageSettings{
			Title:     fmt.Sprintf("Edit '%s'", mgmd.Title(post.Content)),
			ShowLogin: true,
			LoggedIn:  loggedIn,
			Top:       mghtml.TopGoBack,
			ExtraHead: template.HTML(s.ctx.Config.ExtraHead),
		},
		Body: mghtml.EditPostForm(post),
	}), nil
}

func (s *Server) handleEditPost(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	if !s.isLoggedIn(r) {
		return nil, NewNotFoundError()
	}

	id, err := postID(r)
	if err != nil {
		return nil, NewNotFoundError()
	}

	input, form, err := readSubmittedForm(r)
	if err != nil {
		return nil, err
	}

	store, release, err := s.ctx.Store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	// Created survives the edit; only Updated moves. If the row vanished
	// out from under the edit, fall back to now.
	created := s.timeNow().UTC()
	if existing, err := store.GetPost(ctx, id); err == nil {
		created = existing.Created
	}

	post := &mgstore.Post{
		ID:      id,
		Created: created,
		Updated: s.timeNow().UTC(),
		Content: trimNewlineSuffix(form.Get("content")),
	}

	if strings.Contains(input, PublishMarker) {
		if err := store.UpdatePost(ctx, post); err != nil {
			s.logger.WithError(err).Error("Failed to update post")
			return nil, NewServerError(http.StatusInternalServerError, "Internal Server Error", "Failed to update post")
		}
		release()

		s.fireBackup()
		return NewSeeOtherResponse(fmt.Sprintf("/posts/%d", id)), nil
	}
	release()

	return s.previewResponse(post)
}

func (s *Server) handleDeleteConfirmation(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	// Responding not-found rather than unauthorized keeps the privileged
	// route invisible to anonymous probing.
	if !s.isLoggedIn(r) {
		return nil, NewNotFoundError()
	}

	id, err := postID(r)
	if err != nil {
		return nil, NewNotFoundError()
	}

	store, release, err := s.ctx.Store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	post, err := store.GetPost(ctx, id)
	if err != nil {
		return nil, NewNotFoundError()
	}
	release()

	rendered, err := mgmd.Render(post.Content)
	if err != nil {
		return nil, err
	}

	body := string(mghtml.DeleteConfirmation(id)) + "\n" + string(mghtml.WrapPost(post, rendered, false))

	return s.pageResponse(http.StatusOK, mghtml.PageParams{
		Settings: mghtml.PageSettings{
			Title:     mgmd.Title(post.Content),
			ShowLogin: true,
			LoggedIn:  true,
			Top:       mghtml.TopGoHome,
			ExtraHead: template.HTML(s.ctx.Config.ExtraHead),
		},
		Body: template.HTML(body),
	}), nil
}

func (s *Server) handleDeletePost(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	// The POST variant rejects explicitly: the form that targets it is
	// itself behind a login, so there's no route left to hide.
	if !s.isLoggedIn(r) {
		return nil, NewUnauthorizedError()
	}

	id, err := postID(r)
	if err != nil {
		return nil, NewNotFoundError()
	}

	store, release, err := s.ctx.Store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	// Deleting an ID that doesn't exist isn't distinguished; the redirect
	// target renders the same either way.
	if err := store.DeletePost(ctx, id); err != nil {
		return nil, err
	}
	release()

	s.fireBackup()
	return NewSeeOtherResponse("/"), nil
}

// previewResponse renders an in-memory post the way its published form would
// look, under a back link since a preview has no stable parent page.
func (s *Server) previewResponse(post *mgstore.Post) (*ServerResponse, error) {
	rendered, err := mgmd.Render(post.Content)
	if err != nil {
		return nil, err
	}

	return s.pageResponse(http.StatusOK, mghtml.PageParams{
		Settings: mghtml.PageSettings{
			ShowLogin: true,
			LoggedIn:  true,
			Top:       mghtml.TopGoBack,
			ExtraHead: template.HTML(s.ctx.Config.ExtraHead),
		},
		Body: mghtml.WrapPost(post, rendered, false),
	}), nil
}

// readSubmittedForm reads a post-composer submission, returning both the raw
// urlencoded body (checked for the publish marker) and its decoded form.
// Bodies over the size limit are rejected outright; truncating one could
// silently drop the publish marker or part of the content.
func readSubmittedForm(r *http.Request) (string, url.Values, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, MaxRequestBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return "", nil, NewServerError(http.StatusRequestEntityTooLarge, "Payload Too Large", "Request body too large")
		}
		return "", nil, xerrors.Errorf("error reading request body: %w", err)
	}

	input := string(raw)
	form, err := url.ParseQuery(input)
	if err != nil {
		return "", nil, NewServerError(http.StatusBadRequest, "Bad Request", "Malformed form submission")
	}

	return input, form, nil
}

func postID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// parsePageNumber interprets the optional one-based `page` query parameter.
// One-based since the index is visible to readers, who are probably more
// familiar with one-based numbering. Absent or unusable values mean page 1.
func parsePageNumber(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// trimNewlineSuffix trims the given string and ensures it ends with exactly
// one newline, so published posts are stored in a normalized form.
func trimNewlineSuffix(s string) string {
	return strings.TrimSpace(s) + "\n"
}

// Open Graph uses ISO 8601 timestamps according to <https://ogp.me/>.
func iso8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
