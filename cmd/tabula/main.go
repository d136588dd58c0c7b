// Command tabula moves table data between a database, HTTP clients and
// object storage as text copy streams.
//
// Usage:
//
//	tabula serve   [-config tabula.yaml]
//	tabula export  [-config tabula.yaml] -table users [-columns id,name] [-bucket b] [-key users.tsv] [-link 1h]
//	tabula import  [-config tabula.yaml] -table users [-columns id,name] [-bucket b] [-key users.tsv]
//	tabula inspect [-config tabula.yaml] [-schema public] [-table users]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/koustreak/tabula/internal/archive"
	"github.com/koustreak/tabula/internal/config"
	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/logger"
	"github.com/koustreak/tabula/internal/schema"
	"github.com/koustreak/tabula/internal/server"
)

const usage = `usage: tabula <command> [flags]

commands:
  serve    run the HTTP gateway
  export   copy a table into the archive store
  import   copy an archived object into a table
  inspect  print table metadata as JSON`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "serve":
		err = runServe(ctx, args)
	case "export":
		err = runExport(ctx, args)
	case "import":
		err = runImport(ctx, args)
	case "inspect":
		err = runInspect(ctx, args)
	case "-h", "--help", "help":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.FromContext(ctx).ErrorWith("command failed", err, map[string]any{"command": os.Args[1]})
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// common are the flags every command shares.
type common struct {
	configPath string
	envFile    string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to the YAML config file")
	fs.StringVar(&c.envFile, "env", "", "path to a .env file (default ./.env if present)")
}

// load reads the configuration and installs the logger it describes.
func (c *common) load(ctx context.Context) (context.Context, *config.Config, error) {
	var envFiles []string
	if c.envFile != "" {
		envFiles = append(envFiles, c.envFile)
	}
	cfg, err := config.Load(c.configPath, envFiles...)
	if err != nil {
		return ctx, nil, err
	}
	// stdout carries command output
	cfg.Log.Output = os.Stderr
	log := logger.New(&cfg.Log)
	logger.SetGlobal(log)
	return log.WithContext(ctx), cfg, nil
}

// table are the flags of the commands that copy one table.
type table struct {
	name    string
	columns string
	bucket  string
	key     string
}

func (t *table) register(fs *flag.FlagSet) {
	fs.StringVar(&t.name, "table", "", "table name, optionally schema-qualified (required)")
	fs.StringVar(&t.columns, "columns", "", "comma-separated column list (default all)")
	fs.StringVar(&t.bucket, "bucket", "", "archive bucket (default from config)")
	fs.StringVar(&t.key, "key", "", "object key (default <table>.tsv)")
}

func (t *table) resolve(cfg *config.Config) (*database.CopyBuilder, error) {
	if t.name == "" {
		return nil, fmt.Errorf("-table is required")
	}
	if t.bucket == "" {
		t.bucket = cfg.Filestore.Bucket
	}
	if t.key == "" {
		t.key = t.name + ".tsv"
	}
	b := database.CopyTable(t.name, cfg.Database.Driver.Dialect())
	if t.columns != "" {
		b.Columns(strings.Split(t.columns, ",")...)
	}
	return b, nil
}

func runServe(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	c.register(fs)
	_ = fs.Parse(args)

	ctx, cfg, err := c.load(ctx)
	if err != nil {
		return err
	}
	db, err := openDatabase(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		DB:      db,
		Dialect: cfg.Database.Driver.Dialect(),
		Store:   store,
		Bucket:  cfg.Filestore.Bucket,
		Schema:  cfg.Server.DefaultSchema,

		QueryTimeout: cfg.Database.QueryTimeout,
		Logger:       logger.FromContext(ctx),
	})
	return srv.Run(ctx, cfg.Server)
}

func runExport(ctx context.Context, args []string) error {
	var (
		c    common
		t    table
		link time.Duration
	)
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	c.register(fs)
	t.register(fs)
	fs.DurationVar(&link, "link", 0, "also print a presigned download URL valid this long")
	_ = fs.Parse(args)

	ctx, cfg, err := c.load(ctx)
	if err != nil {
		return err
	}
	b, err := t.resolve(cfg)
	if err != nil {
		return err
	}
	stmt, err := b.ToStdout()
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("filestore.endpoint is not configured")
	}

	var sum *archive.Summary
	err = withSession(ctx, db, func(sess *database.Session) error {
		// one transaction gives the copy a consistent snapshot
		tx, err := sess.Begin(ctx)
		if err != nil {
			return err
		}
		if sum, err = archive.Export(ctx, tx, stmt, store, t.bucket, t.key); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return err
	}

	out := map[string]any{"summary": sum}
	if link > 0 {
		url, err := archive.Link(ctx, store, t.bucket, t.key, link)
		if err != nil {
			return err
		}
		out["url"] = url
	}
	return printJSON(out)
}

func runImport(ctx context.Context, args []string) error {
	var (
		c common
		t table
	)
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	c.register(fs)
	t.register(fs)
	_ = fs.Parse(args)

	ctx, cfg, err := c.load(ctx)
	if err != nil {
		return err
	}
	b, err := t.resolve(cfg)
	if err != nil {
		return err
	}
	stmt, err := b.FromStdin()
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("filestore.endpoint is not configured")
	}

	var sum *archive.Summary
	err = withSession(ctx, db, func(sess *database.Session) error {
		tx, err := sess.Begin(ctx)
		if err != nil {
			return err
		}
		if sum, err = archive.Import(ctx, store, t.bucket, t.key, tx, stmt); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"summary": sum})
}

func runInspect(ctx context.Context, args []string) error {
	var (
		c          common
		schemaName string
		tableName  string
	)
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	c.register(fs)
	fs.StringVar(&schemaName, "schema", "", "schema (database for MySQL); default current")
	fs.StringVar(&tableName, "table", "", "inspect one table instead of the whole schema")
	_ = fs.Parse(args)

	ctx, cfg, err := c.load(ctx)
	if err != nil {
		return err
	}
	if schemaName == "" {
		schemaName = cfg.Server.DefaultSchema
	}
	db, err := openDatabase(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	var out any
	err = withSession(ctx, db, func(sess *database.Session) error {
		tx, err := sess.Direct()
		if err != nil {
			return err
		}
		qctx, cancel := database.WithQueryTimeout(ctx, cfg.Database.QueryTimeout)
		defer cancel()

		in := schema.NewInspector(tx, cfg.Database.Driver.Dialect())
		if tableName != "" {
			out, err = in.InspectTable(qctx, schemaName, tableName)
		} else {
			out, err = in.InspectSchema(qctx, schemaName)
		}
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
