package main

import (
	"context"

	"github.com/koustreak/tabula/internal/config"
	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/database/mysql"
	"github.com/koustreak/tabula/internal/database/postgres"
	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/filestore"
	"github.com/koustreak/tabula/internal/filestore/minio"
)

// pool is a database.Connector that owns its connections.
type pool interface {
	database.Connector
	Close()
}

func openDatabase(ctx context.Context, cfg *database.Config) (pool, error) {
	switch cfg.Driver {
	case database.DriverPostgres:
		return postgres.New(ctx, cfg)
	case database.DriverMySQL:
		return mysql.New(ctx, cfg)
	}
	return nil, errs.Newf(errs.ErrKindConfiguration, "unsupported database driver %q", cfg.Driver)
}

// openStore connects to the archive store, or returns nil when no
// endpoint is configured.
func openStore(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	if !cfg.Filestore.Enabled() {
		return nil, nil
	}
	return minio.New(ctx, &cfg.Filestore)
}

// withSession runs fn on a dedicated connection and closes the session
// afterwards, rolling back anything fn left open.
func withSession(ctx context.Context, db database.Connector, fn func(*database.Session) error) error {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	sess := database.NewSession(conn)
	err = fn(sess)
	if cerr := sess.Close(ctx); err == nil {
		err = cerr
	}
	return err
}
