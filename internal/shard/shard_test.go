package shard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mmenanno/drive-catalog/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mtime = time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)

func newWriter(t *testing.T, path, runID string, batch int) *Writer {
	t.Helper()
	store, err := Open(path)
	require.NoError(t, err)
	return NewWriter(store, WriterOptions{
		Label:     "ARCHIVE01",
		RunID:     runID,
		BatchSize: batch,
		Logger:    hclog.NewNullLogger(),
	})
}

func openForRead(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "ARCHIVE01.db", FileName("ARCHIVE01"))
	assert.Equal(t, "ARCHIVE01.db", FileName("  ARCHIVE01 "))

	spaced := FileName("My Drive")
	underscored := FileName("My_Drive")
	assert.NotEqual(t, spaced, underscored)
	assert.Regexp(t, `^My_Drive_[0-9a-f]{8}\.db$`, spaced)
	assert.Equal(t, spaced, FileName("My Drive"))

	assert.Regexp(t, `^drive_[0-9a-f]{8}\.db$`, FileName(".."))
	assert.NotContains(t, FileName(`..\..\evil`), `\`)
	assert.NotContains(t, FileName("a/b"), "/")
}

func TestEnsureSchemaAddsScanRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.conn.Exec(`DROP TABLE files; CREATE TABLE files (
		id INTEGER PRIMARY KEY AUTOINCREMENT, drive_label TEXT NOT NULL, path TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0, mtime_utc TEXT, hash_blake3 TEXT, media_json TEXT,
		integrity_ok INTEGER NOT NULL DEFAULT 1)`)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.EnsureSchema(context.Background()))

	var n int
	require.NoError(t, s.conn.Get(&n, `SELECT COUNT(*) FROM pragma_table_info('files') WHERE name = 'scan_run'`))
	assert.Equal(t, 1, n)
	require.NoError(t, s.Close())
}

func TestWriterFastAndEnrich(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ARCHIVE01.db")
	ctx := context.Background()

	w := newWriter(t, path, "run-1", 3)
	for i := 0; i < 10; i++ {
		require.NoError(t, w.UpsertFast(ctx, FastRecord{
			Path: fmt.Sprintf("/d/doc%02d.txt", i), Size: int64(i), ModTime: mtime,
			MediaJSON: constants.SkippedNonAV, OK: true,
		}))
	}
	require.NoError(t, w.UpsertFast(ctx, FastRecord{Path: "/d/film.mkv", Size: 100, ModTime: mtime, OK: true}))
	require.NoError(t, w.UpsertFast(ctx, FastRecord{Path: "/d/broken.mp4", Size: 50, ModTime: mtime, OK: true}))
	require.NoError(t, w.UpsertFast(ctx, FastRecord{Path: "/d/locked", MediaJSON: `{"error":"permission denied"}`, OK: false}))

	require.NoError(t, w.Enrich(ctx, EnrichRecord{Path: "/d/film.mkv", Size: 100, ModTime: mtime,
		MediaJSON: `{"media":{}}`, Hash: "abc", OK: true}))
	require.NoError(t, w.Enrich(ctx, EnrichRecord{Path: "/d/broken.mp4", Size: 50, ModTime: mtime,
		MediaJSON: `{"error":"timeout"}`, OK: false}))
	require.NoError(t, w.Close())
	assert.Equal(t, int64(15), w.Committed())

	s := openForRead(t, path)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)

	film, err := s.Get(ctx, "/d/film.mkv")
	require.NoError(t, err)
	assert.True(t, film.IntegrityOK)
	assert.Equal(t, "abc", film.HashBlake3.String)
	assert.Equal(t, "2023-05-01T12:00:00.000000000Z", film.MtimeUTC.String)
	assert.Equal(t, "run-1", film.ScanRun)
	assert.Equal(t, "ARCHIVE01", film.DriveLabel)

	broken, err := s.Get(ctx, "/d/broken.mp4")
	require.NoError(t, err)
	assert.False(t, broken.IntegrityOK)
	assert.False(t, broken.HashBlake3.Valid)

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(13), sum.Rows)
	assert.Equal(t, int64(10), sum.Skipped)
	assert.Equal(t, int64(3), sum.Enriched) // film, broken, locked error payload
	assert.Equal(t, int64(2), sum.Failed)
	assert.Equal(t, int64(1), sum.Hashed)
	assert.Equal(t, int64(0), sum.Pending)

	failed, err := s.Failed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "/d/broken.mp4", failed[0].Path)

	_, err = s.Get(ctx, "/d/nope")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestRescanKeepsHashOnlyWhenUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ARCHIVE01.db")
	ctx := context.Background()

	w := newWriter(t, path, "run-1", 10)
	for _, p := range []string{"/d/same.mkv", "/d/changed.mkv"} {
		require.NoError(t, w.UpsertFast(ctx, FastRecord{Path: p, Size: 10, ModTime: mtime, OK: true}))
		require.NoError(t, w.Enrich(ctx, EnrichRecord{Path: p, Size: 10, ModTime: mtime, MediaJSON: `{"v":1}`, Hash: "h-" + p, OK: true}))
	}
	require.NoError(t, w.Close())

	// Second run: only phase one
	w = newWriter(t, path, "run-2", 10)
	require.NoError(t, w.UpsertFast(ctx, FastRecord{Path: "/d/same.mkv", Size: 10, ModTime: mtime, OK: true}))
	require.NoError(t, w.UpsertFast(ctx, FastRecord{Path: "/d/changed.mkv", Size: 11, ModTime: mtime.Add(time.Hour), OK: true}))
	require.NoError(t, w.Close())

	s := openForRead(t, path)

	same, err := s.Get(ctx, "/d/same.mkv")
	require.NoError(t, err)
	assert.Equal(t, "h-/d/same.mkv", same.HashBlake3.String)
	assert.Equal(t, `{"v":1}`, same.MediaJSON.String)
	assert.Equal(t, "run-2", same.ScanRun)

	changed, err := s.Get(ctx, "/d/changed.mkv")
	require.NoError(t, err)
	assert.False(t, changed.HashBlake3.Valid)
	assert.False(t, changed.MediaJSON.Valid)
	assert.Equal(t, int64(11), changed.SizeBytes)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSameSecondRewriteClearsHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ARCHIVE01.db")
	ctx := context.Background()

	w := newWriter(t, path, "run-1", 10)
	require.NoError(t, w.UpsertFast(ctx, FastRecord{Path: "/d/clip.mp4", Size: 10, ModTime: mtime, OK: true}))
	require.NoError(t, w.Enrich(ctx, EnrichRecord{Path: "/d/clip.mp4", Size: 10, ModTime: mtime, MediaJSON: `{"v":1}`, Hash: "old", OK: true}))
	require.NoError(t, w.Close())

	// Rewritten with the same size inside the same second, re-enriched without hashing
	rewritten := mtime.Add(400 * time.Millisecond)
	w = newWriter(t, path, "run-2", 10)
	require.NoError(t, w.UpsertFast(ctx, FastRecord{Path: "/d/clip.mp4", Size: 10, ModTime: rewritten, OK: true}))
	require.NoError(t, w.Enrich(ctx, EnrichRecord{Path: "/d/clip.mp4", Size: 10, ModTime: rewritten, MediaJSON: `{"v":2}`, OK: true}))
	require.NoError(t, w.Close())

	row, err := openForRead(t, path).Get(ctx, "/d/clip.mp4")
	require.NoError(t, err)
	assert.False(t, row.HashBlake3.Valid)
	assert.Equal(t, `{"v":2}`, row.MediaJSON.String)
	assert.Equal(t, "2023-05-01T12:00:00.400000000Z", row.MtimeUTC.String)
}

func TestEnrichWithoutHashKeepsStoredHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ARCHIVE01.db")
	ctx := context.Background()

	w := newWriter(t, path, "run-1", 10)
	require.NoError(t, w.Enrich(ctx, EnrichRecord{Path: "/d/a.flac", Size: 1, ModTime: mtime, MediaJSON: `{}`, Hash: "keep", OK: true}))
	require.NoError(t, w.Enrich(ctx, EnrichRecord{Path: "/d/a.flac", Size: 1, ModTime: mtime, MediaJSON: `{"v":2}`, OK: true}))
	require.NoError(t, w.Close())

	row, err := openForRead(t, path).Get(ctx, "/d/a.flac")
	require.NoError(t, err)
	assert.Equal(t, "keep", row.HashBlake3.String)
	assert.Equal(t, `{"v":2}`, row.MediaJSON.String)
}

func TestPruneRemovesVanishedFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ARCHIVE01.db")
	ctx := context.Background()

	w := newWriter(t, path, "run-1", 2)
	for _, p := range []string{"/d/a", "/d/b", "/d/c"} {
		require.NoError(t, w.UpsertFast(ctx, FastRecord{Path: p, ModTime: mtime, MediaJSON: constants.SkippedNonAV, OK: true}))
	}
	require.NoError(t, w.Close())

	w = newWriter(t, path, "run-2", 2)
	for _, p := range []string{"/d/a", "/d/c"} {
		require.NoError(t, w.UpsertFast(ctx, FastRecord{Path: p, ModTime: mtime, MediaJSON: constants.SkippedNonAV, OK: true}))
	}
	require.NoError(t, w.Prune(ctx))
	require.NoError(t, w.Close())
	assert.Equal(t, int64(1), w.Pruned())

	n, err := openForRead(t, path).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestWriterFlushesOnTimer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ARCHIVE01.db")
	store, err := Open(path)
	require.NoError(t, err)

	w := NewWriter(store, WriterOptions{Label: "L", RunID: "r", BatchSize: 1000, FlushEvery: 20 * time.Millisecond})
	require.NoError(t, w.UpsertFast(context.Background(), FastRecord{Path: "/x", OK: true}))

	assert.Eventually(t, func() bool { return w.Committed() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, w.Close())
}

func TestWriterSendHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ARCHIVE01.db")
	w := newWriter(t, path, "r", 10)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A full queue would block; a cancelled context must not
	for i := 0; i < 10000; i++ {
		if err := w.UpsertFast(ctx, FastRecord{Path: fmt.Sprintf("/p/%d", i), OK: true}); err != nil {
			assert.ErrorIs(t, err, context.Canceled)
			return
		}
	}
}

func TestDuplicateGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ARCHIVE01.db")
	ctx := context.Background()

	w := newWriter(t, path, "r", 10)
	entries := map[string]string{
		"/a/one.mkv":   "h1",
		"/b/one.mkv":   "h1",
		"/c/one.mkv":   "h1",
		"/a/two.flac":  "h2",
		"/b/two.flac":  "h2",
		"/a/alone.mp4": "h3",
	}
	for p, h := range entries {
		size := int64(10)
		if h == "h1" {
			size = 1000
		}
		require.NoError(t, w.Enrich(ctx, EnrichRecord{Path: p, Size: size, ModTime: mtime, MediaJSON: `{}`, Hash: h, OK: true}))
	}
	require.NoError(t, w.Close())

	s := openForRead(t, path)
	groups, err := s.DuplicateGroups(ctx, 2)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "h1", groups[0].Hash)
	assert.Len(t, groups[0].Paths, 3)
	assert.Equal(t, int64(1000), groups[0].SizeBytes)
	assert.ElementsMatch(t, []string{"/a/two.flac", "/b/two.flac"}, groups[1].Paths)

	groups, err = s.DuplicateGroups(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	hashes, err := s.HashEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, hashes, 6)
}

func TestManagerDelete(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, 3, 10*time.Millisecond, nil)
	ctx := context.Background()

	w := newWriter(t, m.Path("ARCHIVE01"), "r", 10)
	require.NoError(t, w.UpsertFast(ctx, FastRecord{Path: "/x", OK: true}))
	require.NoError(t, w.Close())
	require.True(t, m.Exists("ARCHIVE01"))

	require.NoError(t, m.Delete(ctx, "ARCHIVE01"))
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_, err := os.Stat(m.Path("ARCHIVE01") + suffix)
		assert.True(t, os.IsNotExist(err), suffix)
	}

	assert.ErrorIs(t, m.Delete(ctx, "ARCHIVE01"), ErrShardNotFound)
	_, err := m.OpenExisting("ARCHIVE01")
	assert.ErrorIs(t, err, ErrShardNotFound)
}

func TestManagerDeleteRefusesActiveShard(t *testing.T) {
	m := NewManager(t.TempDir(), 1, 0, nil)
	s, err := m.Open("BUSY")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	release := m.Acquire("BUSY")
	assert.True(t, m.InUse("BUSY"))
	assert.ErrorIs(t, m.Delete(context.Background(), "BUSY"), ErrShardBusy)

	release()
	release()
	assert.False(t, m.InUse("BUSY"))
	assert.NoError(t, m.Delete(context.Background(), "BUSY"))
}
