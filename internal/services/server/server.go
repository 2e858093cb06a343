// Package server exposes viewer sessions over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repoview/internal/metrics"
	"github.com/temirov/repoview/internal/navigator"
	"github.com/temirov/repoview/internal/remote"
	"github.com/temirov/repoview/internal/render"
	"github.com/temirov/repoview/internal/tree"
	"github.com/temirov/repoview/internal/viewer"
)

const (
	defaultListenAddress    = "127.0.0.1:0"
	defaultShutdownDuration = 5 * time.Second
	headerContentType       = "Content-Type"
	mimeTypeJSON            = "application/json"
	mimeTypeHTML            = "text/html; charset=utf-8"
	mimeTypeCSS             = "text/css; charset=utf-8"
	errorFieldName          = "error"

	statePath      = "/api/state"
	treePath       = "/api/tree"
	expandPath     = "/api/expand"
	filePath       = "/api/file"
	renderPath     = "/api/render"
	tabPath        = "/api/tab"
	stylesheetPath = "/api/stylesheet"
	metricsPath    = "/metrics"

	queryPath = "path"
	queryName = "name"
)

// SessionFactory builds an uninitialized session for the given parameters.
type SessionFactory func(viewer.Parameters) *viewer.Session

// Config defines runtime options for the server.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
	// Defaults apply to requests that carry no repository parameter.
	Defaults   *viewer.Parameters
	NewSession SessionFactory
	Logger     *zap.Logger
}

type sessionEntry struct {
	ready   chan struct{}
	session *viewer.Session
	err     error
}

// Server serves viewer sessions, one per repository, over HTTP.
type Server struct {
	config Config

	mutex    sync.Mutex
	sessions map[string]*sessionEntry
}

// NewServer creates a new Server with defaults applied.
func NewServer(config Config) *Server {
	normalized := config
	if normalized.Address == "" {
		normalized.Address = defaultListenAddress
	}
	if normalized.ShutdownTimeout <= 0 {
		normalized.ShutdownTimeout = defaultShutdownDuration
	}
	if normalized.Logger == nil {
		normalized.Logger = zap.NewNop()
	}
	return &Server{config: normalized, sessions: map[string]*sessionEntry{}}
}

// Run starts the server and blocks until the provided context is canceled.
// The notify callback receives the bound address once the listener is active.
func (server *Server) Run(ctx context.Context, notify func(string)) error {
	listener, listenErr := net.Listen("tcp", server.config.Address)
	if listenErr != nil {
		return fmt.Errorf("listen on %s: %w", server.config.Address, listenErr)
	}
	actualAddress := listener.Addr().String()

	httpServer := &http.Server{Handler: server.Handler(), ReadHeaderTimeout: 10 * time.Second}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve viewer: %w", serveErr)
		}
		return nil
	})

	if notify != nil {
		notify(actualAddress)
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.config.ShutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) && !errors.Is(shutdownErr, http.ErrServerClosed) {
			return fmt.Errorf("shutdown viewer: %w", shutdownErr)
		}
		return nil
	})

	return group.Wait()
}

// Handler returns the routed HTTP handler.
func (server *Server) Handler() http.Handler {
	router := http.NewServeMux()
	routes := []struct {
		path    string
		method  string
		handler func(http.ResponseWriter, *http.Request, *viewer.Session)
	}{
		{path: statePath, method: http.MethodGet, handler: server.handleState},
		{path: treePath, method: http.MethodGet, handler: server.handleTree},
		{path: expandPath, method: http.MethodPost, handler: server.handleExpand},
		{path: filePath, method: http.MethodGet, handler: server.handleFile},
		{path: renderPath, method: http.MethodGet, handler: server.handleRender},
		{path: tabPath, method: http.MethodPost, handler: server.handleTab},
	}
	for _, route := range routes {
		router.Handle(route.path, metrics.Middleware(route.path, server.withSession(route.method, route.handler)))
	}
	router.Handle(stylesheetPath, metrics.Middleware(stylesheetPath, http.HandlerFunc(server.handleStylesheet)))
	router.Handle(metricsPath, metrics.Handler())
	return router
}

func (server *Server) withSession(method string, handler func(http.ResponseWriter, *http.Request, *viewer.Session)) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != method {
			writer.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		session, err := server.session(request)
		if err != nil {
			server.writeError(writer, err)
			return
		}
		if _, err := session.ApplyPresentation(request.URL.Query()); err != nil {
			server.writeError(writer, err)
			return
		}
		handler(writer, request, session)
	})
}

// session returns the initialized session for the repository named in the
// request, creating it on first use. A failed initialization is not kept.
// Sessions are keyed by repository; pane parameters of later requests are
// applied by withSession.
func (server *Server) session(request *http.Request) (*viewer.Session, error) {
	parameters, err := server.parameters(request)
	if err != nil {
		return nil, err
	}
	key := parameters.Owner + "/" + parameters.Repo

	server.mutex.Lock()
	entry, found := server.sessions[key]
	if !found {
		entry = &sessionEntry{ready: make(chan struct{})}
		server.sessions[key] = entry
	}
	server.mutex.Unlock()

	if !found {
		entry.session = server.config.NewSession(parameters)
		entry.err = entry.session.Initialize(request.Context())
		if entry.err != nil {
			server.config.Logger.Warn("session initialization failed", zap.String("repository", key), zap.Error(entry.err))
			server.mutex.Lock()
			delete(server.sessions, key)
			server.mutex.Unlock()
		} else {
			server.config.Logger.Info("session ready", zap.String("repository", key))
		}
		close(entry.ready)
	}

	select {
	case <-entry.ready:
	case <-request.Context().Done():
		return nil, request.Context().Err()
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.session, nil
}

func (server *Server) parameters(request *http.Request) (viewer.Parameters, error) {
	query := request.URL.Query()
	if query.Get(viewer.ParameterRepository) == "" && server.config.Defaults != nil {
		return *server.config.Defaults, nil
	}
	return viewer.ParseParameters(query)
}

func (server *Server) handleState(writer http.ResponseWriter, request *http.Request, session *viewer.Session) {
	server.writeJSON(writer, http.StatusOK, session.State())
}

func (server *Server) handleTree(writer http.ResponseWriter, request *http.Request, session *viewer.Session) {
	server.writeJSON(writer, http.StatusOK, session.Snapshot())
}

func (server *Server) handleExpand(writer http.ResponseWriter, request *http.Request, session *viewer.Session) {
	path := request.URL.Query().Get(queryPath)
	state, err := session.Expand(request.Context(), path)
	if err != nil {
		server.writeError(writer, err)
		return
	}
	server.writeJSON(writer, http.StatusOK, map[string]string{queryPath: path, "state": string(state)})
}

func (server *Server) handleFile(writer http.ResponseWriter, request *http.Request, session *viewer.Session) {
	view, err := session.Open(request.Context(), request.URL.Query().Get(queryPath))
	if err != nil {
		server.writeError(writer, err)
		return
	}
	server.writeJSON(writer, http.StatusOK, view)
}

func (server *Server) handleRender(writer http.ResponseWriter, request *http.Request, session *viewer.Session) {
	markup, err := session.Render(request.Context(), request.URL.Query().Get(queryPath))
	if err != nil {
		server.writeError(writer, err)
		return
	}
	writer.Header().Set(headerContentType, mimeTypeHTML)
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte(markup))
}

func (server *Server) handleTab(writer http.ResponseWriter, request *http.Request, session *viewer.Session) {
	tab, err := viewer.ParseTab(request.URL.Query().Get(queryName))
	if err != nil {
		server.writeError(writer, err)
		return
	}
	state := session.ShowPreview()
	if tab == viewer.TabCode {
		state = session.ShowCode()
	}
	server.writeJSON(writer, http.StatusOK, state)
}

func (server *Server) handleStylesheet(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stylesheet, err := render.Stylesheet()
	if err != nil {
		server.writeError(writer, err)
		return
	}
	writer.Header().Set(headerContentType, mimeTypeCSS)
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte(stylesheet))
}

func (server *Server) writeError(writer http.ResponseWriter, err error) {
	statusCode := statusCodeFromError(err)
	if statusCode >= http.StatusInternalServerError {
		server.config.Logger.Error("request failed", zap.Error(err))
	}
	server.writeJSON(writer, statusCode, map[string]string{errorFieldName: err.Error()})
}

func (server *Server) writeJSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	var buffer bytes.Buffer
	if encodeErr := json.NewEncoder(&buffer).Encode(payload); encodeErr != nil {
		fallback := map[string]string{errorFieldName: fmt.Sprintf("encode response: %v", encodeErr)}
		writer.Header().Set(headerContentType, mimeTypeJSON)
		writer.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(writer).Encode(fallback)
		return
	}
	writer.Header().Set(headerContentType, mimeTypeJSON)
	writer.WriteHeader(statusCode)
	_, _ = writer.Write(buffer.Bytes())
}

func statusCodeFromError(err error) int {
	var networkError *remote.NetworkError
	var notFoundError *navigator.NotFoundError
	var missingConfiguration *viewer.MissingConfigurationError
	switch {
	case errors.As(err, &networkError):
		return http.StatusBadGateway
	case errors.As(err, &notFoundError), errors.Is(err, viewer.ErrUnknownPath):
		return http.StatusNotFound
	case errors.As(err, &missingConfiguration),
		errors.Is(err, viewer.ErrInvalidParameter),
		errors.Is(err, tree.ErrNotDirectory),
		errors.Is(err, tree.ErrNotFile):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
