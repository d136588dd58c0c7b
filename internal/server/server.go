// Package server exposes tables over HTTP as text copy streams.
//
//	GET  /healthz
//	GET  /tables                         table names
//	GET  /tables/{table}/columns         column metadata
//	GET  /tables/{table}/rows            copy-out as TSV
//	POST /tables/{table}/rows            copy-in from a TSV body
//	POST /tables/{table}/export          copy-out into the archive store
//	POST /tables/{table}/import          copy-in from the archive store
//	GET  /archives                       archived objects
//
// Row endpoints accept ?columns=a,b to restrict and order the columns.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/tabula/internal/config"
	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/filestore"
	"github.com/koustreak/tabula/internal/logger"
)

const defaultShutdownTimeout = 15 * time.Second

// Options wires a Server to its backends.
type Options struct {
	DB      database.Connector
	Dialect database.Dialect

	// Store is optional; archive routes answer 503 without it.
	Store  filestore.Store
	Bucket string // default archive bucket

	// Schema is the default schema for table metadata; empty means the
	// connection's current schema.
	Schema string

	// QueryTimeout bounds metadata statements. Row streams, exports and
	// imports run as long as the request does. Zero means no limit.
	QueryTimeout time.Duration

	Logger *logger.Logger
}

// Server is the HTTP gateway.
type Server struct {
	opts   Options
	log    *logger.Logger
	router chi.Router
}

// New builds the router.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{opts: opts, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/tables", func(r chi.Router) {
		r.Get("/", s.handleListTables)
		r.Route("/{table}", func(r chi.Router) {
			r.Get("/columns", s.handleColumns)
			r.Get("/rows", s.handleReadRows)
			r.Post("/rows", s.handleWriteRows)
			r.Post("/export", s.handleExport)
			r.Post("/import", s.handleImport)
		})
	})
	r.Get("/archives", s.handleListArchives)

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on cfg.Addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return s.log.WithContext(context.Background()) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoWith("http server listening", map[string]any{"addr": cfg.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

// requestLogger puts a request-scoped logger into the context and logs
// one event per request once the handler returns.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		log := s.log.With().Str("request_id", reqID).Logger()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(log.WithContext(r.Context())))

		log.HTTPEvent().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
