package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/monograph/monograph/internal/mgauth"
	"github.com/monograph/monograph/internal/mghtml"
)

// MaxRequestBodySize caps how large a request body handlers will read.
const MaxRequestBodySize = 15 * 1024 * 1024

type Server struct {
	ctx        *ServerContext
	httpServer *http.Server
	logger     *logrus.Logger
	router     *mux.Router
	timeNow    func() time.Time

	// Tracks in-flight backup trigger goroutines so tests can wait for
	// them; production code never needs to.
	backupWaitGroup sync.WaitGroup
}

func NewServer(logger *logrus.Logger, ctx *ServerContext) *Server {
	server := &Server{
		ctx:     ctx,
		logger:  logger,
		timeNow: func() time.Time { return time.Now() },
	}

	router := mux.NewRouter()
	router.Use((&ContextContainerMiddleware{}).Wrapper)
	router.Use((&CanonicalLogLineMiddleware{logger: logger}).Wrapper)
	router.Use((&SecurityHeadersMiddleware{production: ctx.Config.Production}).Wrapper)

	router.Handle("/", server.wrapEndpoint(server.handleHome)).Methods(http.MethodGet)
	router.Handle("/posts/add", server.wrapEndpoint(server.handleAddPost)).Methods(http.MethodPost)
	router.Handle("/posts/delete/{id}", server.wrapEndpoint(server.handleDeleteConfirmation)).Methods(http.MethodGet)
	router.Handle("/posts/delete/{id}", server.wrapEndpoint(server.handleDeletePost)).Methods(http.MethodPost)
	router.Handle("/posts/edit/{id}", server.wrapEndpoint(server.handleEditForm)).Methods(http.MethodGet)
	router.Handle("/posts/edit/{id}", server.wrapEndpoint(server.handleEditPost)).Methods(http.MethodPost)
	router.Handle("/posts/{id}", server.wrapEndpoint(server.handleShowPost)).Methods(http.MethodGet)
	router.Handle("/posts/{id}/{slug}", server.wrapEndpoint(server.handlePostSlug)).Methods(http.MethodGet)

	router.Handle("/login", server.wrapEndpoint(server.handleLoginForm)).Methods(http.MethodGet)
	router.Handle("/login", server.wrapEndpoint(server.handleLogin)).Methods(http.MethodPost)
	router.Handle("/logout", server.wrapEndpoint(server.handleLogout)).Methods(http.MethodGet)

	router.Handle("/blogroll", server.wrapEndpoint(server.handleBlogroll)).Methods(http.MethodGet)
	router.Handle("/feed.xml", server.wrapEndpoint(server.handleFeed)).Methods(http.MethodGet)
	router.Handle("/.well-known/webfinger", server.wrapEndpoint(server.handleWebfinger)).Methods(http.MethodGet)

	router.Handle("/static/style.css", server.wrapEndpoint(server.handleStyle)).Methods(http.MethodGet)
	router.Handle("/static/script.js", server.wrapEndpoint(server.handleScript)).Methods(http.MethodGet)
	router.Handle("/static/katex.js", server.wrapEndpoint(server.handleKatex)).Methods(http.MethodGet)

	// Registered as a catch-all route rather than mux's NotFoundHandler so
	// that unmatched requests still pass through the middleware stack.
	router.PathPrefix("/").Handler(server.wrapEndpoint(server.handleNotFound))

	server.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", ctx.Config.Port),
		Handler: router,

		// Specified to prevent the "Slowloris" DOS attack, in which an attacker
		// sends many partial requests to exhaust a target server's connections.
		//
		// https://en.wikipedia.org/wiki/Slowloris_(computer_security)
		ReadHeaderTimeout: 5 * time.Second,
	}
	server.router = router

	return server
}

func (s *Server) Start() error {
	s.logger.Infof("Listening on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return xerrors.Errorf("error listening on %s: %w", s.httpServer.Addr, err)
	}

	return nil
}

// isLoggedIn reports whether the request carries a valid admin session. With
// no admin password configured it's always false, and a warning is logged so
// the misconfiguration is visible.
func (s *Server) isLoggedIn(r *http.Request) bool {
	if s.ctx.Config.Password == "" {
		s.logger.Warn("Admin password not set; treating request as unauthenticated")
		return false
	}

	return mgauth.IsLoggedIn(s.ctx.Salt, s.expectedLogin(), r)
}

func (s *Server) expectedLogin() mgauth.Login {
	return mgauth.Login{Username: s.ctx.Config.Username, Password: s.ctx.Config.Password}
}

// fireBackup spawns the post-write backup trigger. It's detached from the
// request's own context on purpose: the response must never wait on the
// backup, and a client disconnect must not cancel it.
func (s *Server) fireBackup() {
	s.backupWaitGroup.Add(1)
	go func() {
		defer s.backupWaitGroup.Done()

		if err := s.ctx.Backup.Fire(context.Background()); err != nil {
			s.logger.WithError(err).Error("Backup trigger failed")
		}
	}()
}

//
// ServerResponse
//

type ServerResponse struct {
	Body       []byte
	Header     http.Header
	StatusCode int
}

func NewServerResponse(statusCode int, body []byte, header http.Header) *ServerResponse {
	return &ServerResponse{Body: body, Header: header, StatusCode: statusCode}
}

// NewSeeOtherResponse responds with a 303 redirect to url. Every successful
// mutation responds this way so that a browser refresh on the resulting page
// re-fetches with GET instead of resubmitting the form.
func NewSeeOtherResponse(url string) *ServerResponse {
	return NewServerResponse(http.StatusSeeOther, nil, http.Header{
		"Location": []string{url},
	})
}

// pageResponse renders the full page chrome around params and wraps it in a
// response. The site name is filled in so handlers don't have to.
func (s *Server) pageResponse(statusCode int, params mghtml.PageParams) *ServerResponse {
	params.SiteName = s.ctx.Config.SiteName
	page := mghtml.Page(params)
	return NewServerResponse(statusCode, []byte(page), nil)
}

func (s *Server) wrapEndpoint(h func(ctx context.Context, r *http.Request) (*ServerResponse, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := h(r.Context(), r)
		if err != nil {
			var serverErr *ServerError
			if !errors.As(err, &serverErr) {
				s.logger.WithError(err).Errorf("Internal error serving %s %s", r.Method, r.URL.Path)
				serverErr = NewServerError(http.StatusInternalServerError, "Internal Server Error", ErrMessageInternalError)
			}

			resp = s.errorResponse(serverErr)
		}

		header := w.Header()
		for k, vs := range resp.Header {
			for _, v := range vs {
				header.Add(k, v)
			}
		}
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "text/html; charset=utf-8")
		}

		statusCode := resp.StatusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		ContextContainerFrom(r.Context()).StatusCode = statusCode
		w.WriteHeader(statusCode)

		_, _ = w.Write(resp.Body)
	})
}

// errorResponse renders a ServerError as a full error page. Every 404 renders
// the same not-found page regardless of which check produced it.
func (s *Server) errorResponse(serverErr *ServerError) *ServerResponse {
	var body template.HTML
	settings := mghtml.PageSettings{
		Title:     serverErr.Title,
		Top:       mghtml.TopGoHome,
		ExtraHead: template.HTML(s.ctx.Config.ExtraHead),
	}

	if serverErr.StatusCode == http.StatusNotFound {
		settings.Title = "not found"
		settings.ShowLogin = true
		body = mghtml.NotFoundBlock()
	} else {
		body = mghtml.ErrorBlock(serverErr.Title, serverErr.Message)
	}

	return s.pageResponse(serverErr.StatusCode, mghtml.PageParams{Settings: settings, Body: body})
}

func (s *Server) handleNotFound(ctx context.Context, r *http.Request) (*ServerResponse, error) {
	return nil, NewNotFoundError()
}
