package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/tabula/internal/archive"
	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/filestore"
	"github.com/koustreak/tabula/internal/logger"
	"github.com/koustreak/tabula/internal/schema"
)

const defaultLinkTTL = 15 * time.Minute

// withSession runs fn on a session holding a dedicated connection. The
// session is closed afterwards, which rolls back anything left open.
func (s *Server) withSession(ctx context.Context, fn func(*database.Session) error) error {
	conn, err := s.opts.DB.Acquire(ctx)
	if err != nil {
		return err
	}
	sess := database.NewSession(conn)
	defer func() {
		if cerr := sess.Close(ctx); cerr != nil {
			logger.FromContext(ctx).ErrorWith("failed to close session", cerr, nil)
		}
	}()
	return fn(sess)
}

// inTransaction runs fn in a transaction and commits when it succeeds.
func (s *Server) inTransaction(ctx context.Context, fn func(*database.Tx) error) error {
	return s.withSession(ctx, func(sess *database.Session) error {
		tx, err := sess.Begin(ctx)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// direct runs fn in an autocommit scope.
func (s *Server) direct(ctx context.Context, fn func(*database.Tx) error) error {
	return s.withSession(ctx, func(sess *database.Session) error {
		tx, err := sess.Direct()
		if err != nil {
			return err
		}
		return fn(tx)
	})
}

func (s *Server) copyBuilder(r *http.Request) *database.CopyBuilder {
	b := database.CopyTable(chi.URLParam(r, "table"), s.opts.Dialect)
	if cols := r.URL.Query().Get("columns"); cols != "" {
		b.Columns(strings.Split(cols, ",")...)
	}
	return b
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"database": "ok"}
	code := http.StatusOK
	if err := s.opts.DB.Ping(r.Context()); err != nil {
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if s.opts.Store != nil {
		status["filestore"] = "ok"
		if err := s.opts.Store.Ping(r.Context()); err != nil {
			status["filestore"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

// inspect runs fn against a schema inspector under the query timeout.
func (s *Server) inspect(ctx context.Context, fn func(context.Context, *schema.Inspector) error) error {
	return s.direct(ctx, func(tx *database.Tx) error {
		qctx, cancel := database.WithQueryTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
		return fn(qctx, schema.NewInspector(tx, s.opts.Dialect))
	})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	var tables []string
	err := s.inspect(r.Context(), func(ctx context.Context, in *schema.Inspector) error {
		var err error
		tables, err = in.ListTables(ctx, s.schemaParam(r))
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	var info *schema.TableInfo
	err := s.inspect(r.Context(), func(ctx context.Context, in *schema.Inspector) error {
		var err error
		info, err = in.InspectTable(ctx, s.schemaParam(r), chi.URLParam(r, "table"))
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleReadRows streams the table as copy lines. Once the first line is
// written the status is committed, so later failures end the body early
// and are only logged.
func (s *Server) handleReadRows(w http.ResponseWriter, r *http.Request) {
	stmt, err := s.copyBuilder(r).ToStdout()
	if err != nil {
		writeError(w, r, err)
		return
	}

	sw := &streamWriter{w: w}
	err = s.direct(r.Context(), func(tx *database.Tx) error {
		n, err := archive.CopyTo(r.Context(), tx, stmt, sw)
		logger.FromContext(r.Context()).DebugWith("rows streamed", map[string]any{"rows": n})
		return err
	})
	switch {
	case err == nil:
		sw.start() // empty table
	case !sw.started:
		writeError(w, r, err)
	default:
		logger.FromContext(r.Context()).ErrorWith("row stream interrupted", err, nil)
	}
}

func (s *Server) handleWriteRows(w http.ResponseWriter, r *http.Request) {
	stmt, err := s.copyBuilder(r).FromStdin()
	if err != nil {
		writeError(w, r, err)
		return
	}

	var rows int64
	err = s.inTransaction(r.Context(), func(tx *database.Tx) error {
		var err error
		rows, err = archive.CopyFrom(r.Context(), tx, stmt, r.Body)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"rows": rows})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	bucket, key, ok := s.archiveTarget(w, r)
	if !ok {
		return
	}
	stmt, err := s.copyBuilder(r).ToStdout()
	if err != nil {
		writeError(w, r, err)
		return
	}

	var sum *archive.Summary
	err = s.direct(r.Context(), func(tx *database.Tx) error {
		var err error
		sum, err = archive.Export(r.Context(), tx, stmt, s.opts.Store, bucket, key)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := map[string]any{"summary": sum}
	if r.URL.Query().Has("link") {
		url, err := archive.Link(r.Context(), s.opts.Store, bucket, key, defaultLinkTTL)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp["url"] = url
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	bucket, key, ok := s.archiveTarget(w, r)
	if !ok {
		return
	}
	stmt, err := s.copyBuilder(r).FromStdin()
	if err != nil {
		writeError(w, r, err)
		return
	}

	var sum *archive.Summary
	err = s.inTransaction(r.Context(), func(tx *database.Tx) error {
		var err error
		sum, err = archive.Import(r.Context(), s.opts.Store, bucket, key, tx, stmt)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": sum})
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, r, errNoStore)
		return
	}
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = s.opts.Bucket
	}
	objs, err := archive.List(r.Context(), s.opts.Store, bucket, r.URL.Query().Get("prefix"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if objs == nil {
		objs = []filestore.ObjectInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bucket": bucket, "objects": objs})
}

var errNoStore = errs.New(errs.ErrKindConnectionFailed, "archive store is not configured")

// archiveTarget resolves bucket and key, defaulting the key to
// "<table>.tsv".
func (s *Server) archiveTarget(w http.ResponseWriter, r *http.Request) (bucket, key string, ok bool) {
	if s.opts.Store == nil {
		writeError(w, r, errNoStore)
		return "", "", false
	}
	q := r.URL.Query()
	bucket = q.Get("bucket")
	if bucket == "" {
		bucket = s.opts.Bucket
	}
	key = q.Get("key")
	if key == "" {
		key = chi.URLParam(r, "table") + ".tsv"
	}
	return bucket, key, true
}

func (s *Server) schemaParam(r *http.Request) string {
	if v := r.URL.Query().Get("schema"); v != "" {
		return v
	}
	return s.opts.Schema
}

// streamWriter writes the TSV response headers before the first line.
type streamWriter struct {
	w       http.ResponseWriter
	started bool
}

func (sw *streamWriter) start() {
	if sw.started {
		return
	}
	sw.started = true
	sw.w.Header().Set("Content-Type", filestore.ContentTypeTSV)
	sw.w.WriteHeader(http.StatusOK)
}

func (sw *streamWriter) Write(p []byte) (int, error) {
	sw.start()
	return sw.w.Write(p)
}

// --- responses ---

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusOf maps an error kind to an HTTP status.
func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput, errs.ErrKindConversion, errs.ErrKindOutOfRange:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindProtocolMisuse:
		return http.StatusConflict
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]any{"status": code})
	}
	writeJSON(w, code, errorResponse{Error: err.Error(), Kind: errs.KindOf(err).String()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
