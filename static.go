package main

import (
	"context"
	"embed"
	"net/http"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
)

//go:embed static
var staticFS embed.FS

// StaticCacheControl is the caching header on static assets. `must-revalidate`
// avoids stale responses when disconnected.
const StaticCacheControl = "public, max-age=600, must-revalidate"

// Static assets are minified once at startup; they're embedded, so a failure
// here is a build problem, not a runtime one.
var (
	minifiedStyle  = mustMinify("text/css", "static/style.css")
	minifiedScript = mustMinify("text/javascript", "static/script.js")
	minifiedKatex  = mustMinify("text/javascript", "static/katex.js")
)

var staticMinifier = func() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/javascript", js.Minify)
	return m
}()

func mustMinify(mediaType, path string) []byte {
	src, err := staticFS.ReadFile(path)
	if err != nil {
		panic(err)
	}

	out, err := staticMinifier.Bytes(mediaType, src)
	if err != nil {
		panic(err)
	}

	return out
}

func (s *Server) handleStyle(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	return staticResponse("text/css; charset=utf-8", minifiedStyle), nil
}

func (s *Server) handleScript(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	return staticResponse("text/javascript; charset=utf-8", minifiedScript), nil
}

func (s *Server) handleKatex(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	return staticResponse("text/javascript; charset=utf-8", minifiedKatex), nil
}

func staticResponse(contentType string, body []byte) *ServerResponse {
	return NewServerResponse(http.StatusOK, body, http.Header{
		"Cache-Control": []string{StaticCacheControl},
		"Content-Type":  []string{contentType},
	})
}
