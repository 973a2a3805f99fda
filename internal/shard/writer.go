package shard

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jmoiron/sqlx"
)

// FastRecord is the phase-one row written for every enumerated entry
type FastRecord struct {
	Path      string
	Size      int64
	ModTime   time.Time
	MediaJSON string // empty for A/V files awaiting enrichment
	OK        bool
}

// EnrichRecord is the phase-two update for an audio/video file
type EnrichRecord struct {
	Path      string
	Size      int64
	ModTime   time.Time
	MediaJSON string
	Hash      string // empty keeps the stored hash
	OK        bool
}

type opKind int

const (
	opFast opKind = iota
	opEnrich
	opPrune
)

type op struct {
	kind   opKind
	fast   FastRecord
	enrich EnrichRecord
}

// WriterOptions configures a Writer
type WriterOptions struct {
	Label      string
	RunID      string
	BatchSize  int
	QueueSize  int
	FlushEvery time.Duration
	Vacuum     bool
	Logger     hclog.Logger
}

// Writer is the only goroutine that touches a shard connection during a scan.
// Producers send records through a bounded queue; Close flushes the last
// batch, checkpoints the WAL, optionally vacuums and closes the connection.
// After Close returns the shard files may be unlinked.
type Writer struct {
	store *Store
	opts  WriterOptions
	log   hclog.Logger

	queue     chan op
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error

	committed atomic.Int64
	pruned    atomic.Int64
}

// NewWriter takes ownership of store and starts the writer goroutine
func NewWriter(store *Store, opts WriterOptions) *Writer {
	if opts.BatchSize < 1 {
		opts.BatchSize = 500
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = opts.BatchSize * 2
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	w := &Writer{
		store: store,
		opts:  opts,
		log:   opts.Logger.Named("writer").With("label", opts.Label),
		queue: make(chan op, opts.QueueSize),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// UpsertFast queues a phase-one row
func (w *Writer) UpsertFast(ctx context.Context, rec FastRecord) error {
	return w.send(ctx, op{kind: opFast, fast: rec})
}

// Enrich queues a phase-two update
func (w *Writer) Enrich(ctx context.Context, rec EnrichRecord) error {
	return w.send(ctx, op{kind: opEnrich, enrich: rec})
}

// Prune queues removal of rows not touched by this run. Only call it after a
// complete enumeration.
func (w *Writer) Prune(ctx context.Context) error {
	return w.send(ctx, op{kind: opPrune})
}

func (w *Writer) send(ctx context.Context, o op) error {
	if err := w.Err(); err != nil {
		return err
	}
	select {
	case w.queue <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the first write failure, if any
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Writer) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
		w.log.Error("shard write failed", "error", err)
	}
}

// Committed returns the number of records committed so far
func (w *Writer) Committed() int64 {
	return w.committed.Load()
}

// Pruned returns the number of stale rows removed
func (w *Writer) Pruned() int64 {
	return w.pruned.Load()
}

// Close signals the end of input and waits for the writer to release the shard.
// No method other than Err, Committed and Pruned may be called afterwards.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		close(w.queue)
	})
	<-w.done
	return w.Err()
}

func (w *Writer) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.opts.FlushEvery)
	defer ticker.Stop()

	batch := make([]op, 0, w.opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if w.Err() == nil {
			if err := w.commit(batch); err != nil {
				w.setErr(err)
			} else {
				w.committed.Add(int64(len(batch)))
			}
		}
		batch = batch[:0]
	}

loop:
	for {
		select {
		case o, ok := <-w.queue:
			if !ok {
				break loop
			}
			// After a failure keep draining so producers never block
			if w.Err() != nil {
				continue
			}
			if o.kind == opPrune {
				flush()
				w.prune()
				continue
			}
			batch = append(batch, o)
			if len(batch) >= w.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}

	flush()
	w.finish()
}

const upsertFastSQL = `
	INSERT INTO files (drive_label, path, size_bytes, mtime_utc, hash_blake3, media_json, integrity_ok, scan_run)
	VALUES (?, ?, ?, ?, NULL, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		drive_label = excluded.drive_label,
		hash_blake3 = CASE
			WHEN files.size_bytes = excluded.size_bytes AND files.mtime_utc IS excluded.mtime_utc
			THEN files.hash_blake3 ELSE NULL END,
		media_json = CASE
			WHEN excluded.media_json IS NULL AND files.size_bytes = excluded.size_bytes
				AND files.mtime_utc IS excluded.mtime_utc
			THEN files.media_json ELSE excluded.media_json END,
		integrity_ok = CASE
			WHEN excluded.media_json IS NULL AND files.size_bytes = excluded.size_bytes
				AND files.mtime_utc IS excluded.mtime_utc
			THEN files.integrity_ok ELSE excluded.integrity_ok END,
		size_bytes = excluded.size_bytes,
		mtime_utc = excluded.mtime_utc,
		scan_run = excluded.scan_run
`

const upsertEnrichSQL = `
	INSERT INTO files (drive_label, path, size_bytes, mtime_utc, hash_blake3, media_json, integrity_ok, scan_run)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		hash_blake3 = COALESCE(excluded.hash_blake3, files.hash_blake3),
		media_json = excluded.media_json,
		integrity_ok = excluded.integrity_ok,
		scan_run = excluded.scan_run
`

func (w *Writer) commit(batch []op) error {
	tx, err := w.store.conn.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin shard transaction: %w", err)
	}
	defer tx.Rollback()

	var fastStmt, enrichStmt *sqlx.Stmt
	for _, o := range batch {
		switch o.kind {
		case opFast:
			if fastStmt == nil {
				if fastStmt, err = tx.Preparex(upsertFastSQL); err != nil {
					return fmt.Errorf("failed to prepare fast upsert: %w", err)
				}
				defer fastStmt.Close()
			}
			r := o.fast
			if _, err := fastStmt.Exec(w.opts.Label, r.Path, r.Size, formatTime(r.ModTime),
				nullString(r.MediaJSON), boolInt(r.OK), w.opts.RunID); err != nil {
				return fmt.Errorf("failed to upsert %s: %w", r.Path, err)
			}

		case opEnrich:
			if enrichStmt == nil {
				if enrichStmt, err = tx.Preparex(upsertEnrichSQL); err != nil {
					return fmt.Errorf("failed to prepare enrich upsert: %w", err)
				}
				defer enrichStmt.Close()
			}
			r := o.enrich
			if _, err := enrichStmt.Exec(w.opts.Label, r.Path, r.Size, formatTime(r.ModTime),
				nullString(r.Hash), nullString(r.MediaJSON), boolInt(r.OK), w.opts.RunID); err != nil {
				return fmt.Errorf("failed to enrich %s: %w", r.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit shard batch: %w", err)
	}
	return nil
}

func (w *Writer) prune() {
	res, err := w.store.conn.Exec(`DELETE FROM files WHERE scan_run <> ?`, w.opts.RunID)
	if err != nil {
		w.setErr(fmt.Errorf("failed to prune stale rows: %w", err))
		return
	}
	n, _ := res.RowsAffected()
	w.pruned.Add(n)
	if n > 0 {
		w.log.Info("pruned rows for files no longer present", "count", n)
	}
}

func (w *Writer) finish() {
	ctx := context.Background()

	if err := w.store.Checkpoint(ctx); err != nil {
		w.setErr(err)
	}
	if w.opts.Vacuum && w.Err() == nil {
		if err := w.store.Vacuum(ctx); err != nil {
			w.setErr(err)
		}
	}
	if err := w.store.Close(); err != nil {
		w.setErr(fmt.Errorf("failed to close shard: %w", err))
	}
	w.log.Debug("writer closed", "committed", w.committed.Load())
}

// TimeFormat is the layout of files.mtime_utc. Fixed-width nanoseconds keep
// same-second rewrites distinguishable and the column sortable as text.
const TimeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(TimeFormat)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
