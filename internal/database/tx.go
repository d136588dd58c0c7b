package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/koustreak/tabula/internal/logger"
)

type scopeKind int

const (
	scopeDirect      scopeKind = iota // autocommit, no SQL issued
	scopeTransaction                  // BEGIN ... COMMIT
	scopeSavepoint                    // SAVEPOINT ... RELEASE
	scopeGuard                        // exclusive use by a copy stream
)

func (k scopeKind) String() string {
	switch k {
	case scopeTransaction:
		return "transaction"
	case scopeSavepoint:
		return "savepoint"
	case scopeGuard:
		return "copy"
	default:
		return "direct"
	}
}

// Session owns one connection and the stack of transaction scopes opened
// on it. Only the innermost scope may run statements.
//
// A Session is not safe for concurrent use.
type Session struct {
	conn          Conn
	stack         []*Tx
	nextSavepoint int
}

// NewSession wraps a dedicated connection.
func NewSession(conn Conn) *Session {
	return &Session{conn: conn}
}

// Active returns the innermost open scope, or nil.
func (s *Session) Active() *Tx {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// Direct opens an autocommit scope: each statement commits on its own.
func (s *Session) Direct() (*Tx, error) {
	if len(s.stack) > 0 {
		return nil, errMisuse("session already has an open %s scope", s.Active().kind)
	}
	return s.push(scopeDirect, ""), nil
}

// Begin starts a top-level transaction.
func (s *Session) Begin(ctx context.Context) (*Tx, error) {
	if len(s.stack) > 0 {
		return nil, errMisuse("session already has an open %s scope", s.Active().kind)
	}
	if _, err := s.conn.Exec(ctx, "BEGIN"); err != nil {
		return nil, err
	}
	return s.push(scopeTransaction, ""), nil
}

// Close rolls back every open scope, innermost first, and releases the
// connection.
func (s *Session) Close(ctx context.Context) error {
	var errList []error
	for len(s.stack) > 0 {
		if err := s.Active().Rollback(ctx); err != nil {
			errList = append(errList, err)
		}
	}
	if err := s.conn.Close(ctx); err != nil {
		errList = append(errList, err)
	}
	return errors.Join(errList...)
}

func (s *Session) push(kind scopeKind, savepoint string) *Tx {
	tx := &Tx{session: s, kind: kind, savepoint: savepoint}
	s.stack = append(s.stack, tx)
	return tx
}

// Tx is one scope on a Session: the autocommit scope, a transaction, a
// savepoint, or the exclusive guard held by a TableReader or TableWriter.
type Tx struct {
	session   *Session
	kind      scopeKind
	savepoint string
	done      bool
}

// Execute runs a statement in this scope.
func (t *Tx) Execute(ctx context.Context, sql string, args ...any) (*Result, error) {
	if err := t.ensureActive(); err != nil {
		return nil, err
	}
	return t.session.conn.Exec(ctx, sql, args...)
}

// Subtransaction opens a nested scope. Inside the autocommit scope this is
// a real transaction; inside a transaction it is a savepoint.
func (t *Tx) Subtransaction(ctx context.Context) (*Tx, error) {
	if err := t.ensureActive(); err != nil {
		return nil, err
	}
	if t.kind == scopeDirect {
		if _, err := t.session.conn.Exec(ctx, "BEGIN"); err != nil {
			return nil, err
		}
		return t.session.push(scopeTransaction, ""), nil
	}
	t.session.nextSavepoint++
	name := fmt.Sprintf("tabula_sp_%d", t.session.nextSavepoint)
	if _, err := t.session.conn.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return nil, err
	}
	return t.session.push(scopeSavepoint, name), nil
}

// Commit ends the scope, keeping its changes. The scope is closed even
// when the statement fails.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.pop(); err != nil {
		return err
	}
	switch t.kind {
	case scopeTransaction:
		return t.exec(ctx, "COMMIT")
	case scopeSavepoint:
		return t.exec(ctx, "RELEASE SAVEPOINT "+t.savepoint)
	}
	return nil
}

// Rollback ends the scope, discarding its changes. The scope is closed
// even when the statement fails.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.pop(); err != nil {
		return err
	}
	switch t.kind {
	case scopeTransaction:
		return t.exec(ctx, "ROLLBACK")
	case scopeSavepoint:
		if err := t.exec(ctx, "ROLLBACK TO SAVEPOINT "+t.savepoint); err != nil {
			return err
		}
		return t.exec(ctx, "RELEASE SAVEPOINT "+t.savepoint)
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, sql string) error {
	logger.FromContext(ctx).Debugf("%s scope: %s", t.kind, sql)
	_, err := t.session.conn.Exec(ctx, sql)
	return err
}

func (t *Tx) ensureActive() error {
	if t.done {
		return errMisuse("%s scope is already finished", t.kind)
	}
	if t.session.Active() != t {
		return errMisuse("%s scope is not the active scope", t.kind)
	}
	return nil
}

func (t *Tx) pop() error {
	if t.done {
		return errMisuse("%s scope is already finished", t.kind)
	}
	if t.session.Active() != t {
		return errMisuse("%s scope still has a nested scope open", t.kind)
	}
	t.session.stack = t.session.stack[:len(t.session.stack)-1]
	t.done = true
	return nil
}

// guard takes exclusive use of the connection for a copy stream. Until
// the guard is released, t and every enclosing scope reject statements.
func (t *Tx) guard() (*Tx, error) {
	if err := t.ensureActive(); err != nil {
		return nil, err
	}
	return t.session.push(scopeGuard, ""), nil
}

// release closes a guard. It is safe to call more than once.
func (t *Tx) release() {
	if t.done {
		return
	}
	s := t.session
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == t {
			s.stack = s.stack[:i]
			break
		}
	}
	t.done = true
}

func (t *Tx) conn() Conn { return t.session.conn }
