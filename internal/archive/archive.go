// Package archive moves table copy streams to and from object storage.
// Objects hold text copy lines exactly as the server produced or will
// consume them, one line per row.
package archive

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/filestore"
	"github.com/koustreak/tabula/internal/logger"
)

// batchSize is the number of buffered bytes CopyFrom sends per InsertRaw.
const batchSize = 32 << 10

// Summary describes one completed transfer.
type Summary struct {
	Bucket   string                `json:"bucket"`
	Key      string                `json:"key"`
	Rows     int64                 `json:"rows"`
	Object   *filestore.ObjectInfo `json:"object,omitempty"`
	Duration time.Duration         `json:"duration"`
}

// CopyTo runs a copy-out statement on tx and writes every line to w,
// returning the number of lines written. Write failures are reported as
// ConnectionFailed wrapping the writer's error.
func CopyTo(ctx context.Context, tx *database.Tx, statement string, w io.Writer) (int64, error) {
	r, err := database.NewTableReader(ctx, tx, statement)
	if err != nil {
		return 0, err
	}
	defer r.Close(ctx)

	var rows int64
	for {
		line, err := r.FetchRaw(ctx)
		if err != nil {
			return rows, err
		}
		if line == nil {
			return rows, nil
		}
		if _, err := w.Write(line); err != nil {
			return rows, errs.Wrap(errs.ErrKindConnectionFailed, "failed to write copy data", err)
		}
		rows++
	}
}

// CopyFrom feeds the lines read from r to a copy-in statement on tx and
// returns the row count the server reports. A final line without a
// newline is terminated. The copy is aborted on any error.
func CopyFrom(ctx context.Context, tx *database.Tx, statement string, r io.Reader) (int64, error) {
	w, err := database.NewTableWriter(ctx, tx, statement)
	if err != nil {
		return 0, err
	}
	defer w.Close(ctx)

	br := bufio.NewReaderSize(r, batchSize)
	batch := make([]byte, 0, 2*batchSize)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			batch = append(batch, line...)
			if line[len(line)-1] != '\n' {
				batch = append(batch, '\n')
			}
		}
		if len(batch) >= batchSize || (err != nil && len(batch) > 0) {
			if ierr := w.InsertRaw(ctx, batch); ierr != nil {
				return 0, ierr
			}
			batch = batch[:0]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, errs.Wrap(errs.ErrKindConnectionFailed, "failed to read copy data", err)
		}
	}
	return w.Finish(ctx)
}

// Export runs a copy-out statement on tx and uploads its lines to
// bucket/key. The upload streams; nothing is buffered beyond one line.
func Export(ctx context.Context, tx *database.Tx, statement string, store filestore.Store, bucket, key string) (*Summary, error) {
	if bucket == "" || key == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "export requires a bucket and a key")
	}
	start := time.Now()
	log := logger.FromContext(ctx)

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	var info *filestore.ObjectInfo
	g.Go(func() error {
		var err error
		info, err = store.PutObject(gctx, bucket, key, pr, filestore.PutOptions{
			Size:        -1,
			ContentType: filestore.ContentTypeTSV,
		})
		// unblock CopyTo when the upload stops early
		pr.CloseWithError(err)
		return err
	})

	rows, copyErr := CopyTo(ctx, tx, statement, pw)
	pw.CloseWithError(copyErr)
	uploadErr := g.Wait()

	err := copyErr
	if err == nil || (uploadErr != nil && errors.Is(copyErr, uploadErr)) {
		err = uploadErr
	}
	if err != nil {
		log.ErrorWith("export failed", err, map[string]any{"bucket": bucket, "key": key, "rows": rows})
		return nil, err
	}

	log.InfoWith("export finished", map[string]any{"bucket": bucket, "key": key, "rows": rows})
	return &Summary{Bucket: bucket, Key: key, Rows: rows, Object: info, Duration: time.Since(start)}, nil
}

// Import downloads bucket/key and feeds it to a copy-in statement on tx.
func Import(ctx context.Context, store filestore.Store, bucket, key string, tx *database.Tx, statement string) (*Summary, error) {
	if bucket == "" || key == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "import requires a bucket and a key")
	}
	start := time.Now()
	log := logger.FromContext(ctx)

	obj, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	n, err := CopyFrom(ctx, tx, statement, obj)
	if err != nil {
		log.ErrorWith("import failed", err, map[string]any{"bucket": bucket, "key": key})
		return nil, err
	}

	log.InfoWith("import finished", map[string]any{"bucket": bucket, "key": key, "rows": n})
	return &Summary{Bucket: bucket, Key: key, Rows: n, Object: obj.Info(), Duration: time.Since(start)}, nil
}

// List returns the archived objects under prefix.
func List(ctx context.Context, store filestore.Store, bucket, prefix string) ([]filestore.ObjectInfo, error) {
	if bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "list requires a bucket")
	}
	return store.ListObjects(ctx, bucket, filestore.ListOptions{Prefix: prefix, Recursive: true})
}

// Link returns a presigned download URL for an archive after checking
// that it exists.
func Link(ctx context.Context, store filestore.Store, bucket, key string, ttl time.Duration) (string, error) {
	if _, err := store.StatObject(ctx, bucket, key); err != nil {
		return "", err
	}
	return store.PresignGetURL(ctx, bucket, key, ttl)
}
