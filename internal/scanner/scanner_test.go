package scanner

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/mmenanno/drive-catalog/internal/catalog"
	"github.com/mmenanno/drive-catalog/internal/config"
	"github.com/mmenanno/drive-catalog/internal/constants"
	"github.com/mmenanno/drive-catalog/internal/disk"
	"github.com/mmenanno/drive-catalog/internal/probe"
	"github.com/mmenanno/drive-catalog/internal/shard"
)

// fakeMedia stands in for MediaInfo
type fakeMedia struct {
	available bool
	probe     func(ctx context.Context, path string) (json.RawMessage, error)
	calls     atomic.Int64
}

func (f *fakeMedia) Available() bool { return f.available }

func (f *fakeMedia) Probe(ctx context.Context, path string) (json.RawMessage, error) {
	f.calls.Add(1)
	if f.probe != nil {
		return f.probe(ctx, path)
	}
	return json.RawMessage(`{"media":{"track":[{"@type":"General"}]}}`), nil
}

type fakeTags struct{}

func (fakeTags) Probe(ctx context.Context, path string) (json.RawMessage, error) {
	return json.RawMessage(`{"source":"tags","has_tags":false}`), nil
}

type testEnv struct {
	cfg     *config.Config
	catalog *catalog.DB
	shards  *shard.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.CatalogPath = filepath.Join(dir, "catalog.db")
	cfg.ShardDir = filepath.Join(dir, "shards")
	cfg.Workers = 2
	cfg.BatchSize = 3
	cfg.ProgressEvery = 1
	cfg.HeartbeatInterval = 10 * time.Millisecond

	cat, err := catalog.Open(cfg.CatalogPath, hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	return &testEnv{
		cfg:     cfg,
		catalog: cat,
		shards:  shard.NewManager(cfg.ShardDir, 3, 10*time.Millisecond, nil),
	}
}

func (e *testEnv) scanner(opts Options) *Scanner {
	return NewScanner(e.cfg, e.catalog, e.shards, opts)
}

func (e *testEnv) shard(t *testing.T, label string) *shard.Store {
	t.Helper()
	s, err := e.shards.OpenExisting(label)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// makeDrive builds a small tree: two documents, three A/V files and a
// recycle bin that must be skipped
func makeDrive(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.txt"), "hello")
	writeFile(t, filepath.Join(root, "docs", "report.pdf"), "pdf")
	writeFile(t, filepath.Join(root, "media", "movie.MKV"), "movie bytes")
	writeFile(t, filepath.Join(root, "media", "song.mp3"), "song bytes")
	writeFile(t, filepath.Join(root, "media", "broken.mp4"), "broken bytes")
	writeFile(t, filepath.Join(root, "$RECYCLE.BIN", "S-1-5", "deleted.mkv"), "gone")
	return root
}

func failBroken(ctx context.Context, path string) (json.RawMessage, error) {
	if filepath.Base(path) == "broken.mp4" {
		return nil, errors.New("mediainfo exited with status 1")
	}
	return json.RawMessage(`{"media":{"track":[{"@type":"General"}]}}`), nil
}

func TestScanCompletes(t *testing.T) {
	env := newTestEnv(t)
	root := makeDrive(t)
	media := &fakeMedia{available: true, probe: failBroken}

	var snapshots atomic.Int64
	s := env.scanner(Options{Media: media, OnProgress: func(ProgressSnapshot) { snapshots.Add(1) }})

	res, err := s.Scan(context.Background(), Request{Label: "ARCHIVE01", MountPath: root, DriveType: "HDD 3.5"})
	require.NoError(t, err)

	assert.Equal(t, constants.JobDone, res.Status)
	assert.Equal(t, int64(5), res.Counts.TotalAll)
	assert.Equal(t, int64(3), res.Counts.TotalAV)
	assert.Equal(t, int64(3), res.Counts.DoneAV)
	assert.Equal(t, int64(1), res.Failed)
	assert.Equal(t, int64(5), res.Rows)
	assert.Empty(t, res.Warning)
	assert.Equal(t, int64(3), media.calls.Load())
	assert.Greater(t, snapshots.Load(), int64(0))
	assert.Equal(t, StateIdle, s.State())

	job, err := env.catalog.GetJob(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobDone, job.Status)
	assert.NotNil(t, job.FinishedAt)
	require.NotNil(t, job.DurationSec)
	assert.Greater(t, *job.DurationSec, 0.0)
	assert.Equal(t, int64(5), job.TotalAll)
	assert.Equal(t, int64(3), job.TotalAV)
	assert.Equal(t, int64(3), job.DoneFiles)

	drive, err := env.catalog.GetDrive(context.Background(), "ARCHIVE01")
	require.NoError(t, err)
	assert.Equal(t, root, drive.MountPath)
	assert.Equal(t, "HDD 3.5", drive.DriveType)
	assert.NotNil(t, drive.ScannedAt)

	store := env.shard(t, "ARCHIVE01")
	sum, err := store.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.Rows)
	assert.Equal(t, int64(2), sum.Skipped)
	assert.Equal(t, int64(3), sum.Enriched)
	assert.Equal(t, int64(1), sum.Failed)
	assert.Equal(t, int64(0), sum.Hashed)

	broken, err := store.Get(context.Background(), filepath.Join(root, "media", "broken.mp4"))
	require.NoError(t, err)
	assert.False(t, broken.IntegrityOK)
	assert.Contains(t, broken.MediaJSON.String, "status 1")

	_, err = store.Get(context.Background(), filepath.Join(root, "$RECYCLE.BIN", "S-1-5", "deleted.mkv"))
	assert.ErrorIs(t, err, shard.ErrFileNotFound)
}

func TestRescanIsIdempotentAndPrunes(t *testing.T) {
	env := newTestEnv(t)
	root := makeDrive(t)
	s := env.scanner(Options{Media: &fakeMedia{available: true}})
	ctx := context.Background()

	first, err := s.Scan(ctx, Request{Label: "A", MountPath: root})
	require.NoError(t, err)
	second, err := s.Scan(ctx, Request{Label: "A", MountPath: root})
	require.NoError(t, err)
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, int64(0), second.Pruned)
	assert.NotEqual(t, first.RunID, second.RunID)

	require.NoError(t, os.Remove(filepath.Join(root, "notes.txt")))
	third, err := s.Scan(ctx, Request{Label: "A", MountPath: root})
	require.NoError(t, err)
	assert.Equal(t, int64(1), third.Pruned)
	assert.Equal(t, int64(4), third.Rows)
	assert.Empty(t, third.Warning)
}

func TestScanHashesAVFiles(t *testing.T) {
	env := newTestEnv(t)
	root := makeDrive(t)
	s := env.scanner(Options{Media: &fakeMedia{available: true, probe: failBroken}})

	res, err := s.Scan(context.Background(), Request{Label: "H", MountPath: root, Hash: true})
	require.NoError(t, err)
	assert.Equal(t, constants.JobDone, res.Status)

	store := env.shard(t, "H")
	sum, err := store.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.Hashed)

	want := blake3.Sum256([]byte("movie bytes"))
	row, err := store.Get(context.Background(), filepath.Join(root, "media", "movie.MKV"))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want[:]), row.HashBlake3.String)

	notes, err := store.Get(context.Background(), filepath.Join(root, "notes.txt"))
	require.NoError(t, err)
	assert.False(t, notes.HashBlake3.Valid)
	assert.Equal(t, constants.SkippedNonAV, notes.MediaJSON.String)
}

func TestScanWithoutMediaInfo(t *testing.T) {
	env := newTestEnv(t)
	root := makeDrive(t)
	media := &fakeMedia{available: false}
	s := env.scanner(Options{Media: media, Tags: fakeTags{}})

	res, err := s.Scan(context.Background(), Request{Label: "T", MountPath: root})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Failed)
	assert.Equal(t, int64(0), media.calls.Load())

	store := env.shard(t, "T")
	song, err := store.Get(context.Background(), filepath.Join(root, "media", "song.mp3"))
	require.NoError(t, err)
	assert.Contains(t, song.MediaJSON.String, `"source":"tags"`)

	movie, err := store.Get(context.Background(), filepath.Join(root, "media", "movie.MKV"))
	require.NoError(t, err)
	assert.True(t, movie.IntegrityOK)
	assert.JSONEq(t, unprobedPayload, movie.MediaJSON.String)
}

func TestScanFallsBackWhenMediaInfoVanishes(t *testing.T) {
	env := newTestEnv(t)
	root := makeDrive(t)
	media := &fakeMedia{available: true, probe: func(context.Context, string) (json.RawMessage, error) {
		return nil, fmt.Errorf("%w: mediainfo", probe.ErrToolUnavailable)
	}}
	s := env.scanner(Options{Media: media, Tags: fakeTags{}})

	res, err := s.Scan(context.Background(), Request{Label: "V", MountPath: root})
	require.NoError(t, err)
	assert.Equal(t, constants.JobDone, res.Status)
	assert.Equal(t, int64(0), res.Failed)
	assert.Equal(t, int64(3), res.Counts.DoneAV)

	store := env.shard(t, "V")
	song, err := store.Get(context.Background(), filepath.Join(root, "media", "song.mp3"))
	require.NoError(t, err)
	assert.True(t, song.IntegrityOK)
	assert.Contains(t, song.MediaJSON.String, `"source":"tags"`)

	movie, err := store.Get(context.Background(), filepath.Join(root, "media", "movie.MKV"))
	require.NoError(t, err)
	assert.True(t, movie.IntegrityOK)
	assert.JSONEq(t, unprobedPayload, movie.MediaJSON.String)
}

func TestScanRecordsUnrecognizedFilesAsHealthy(t *testing.T) {
	env := newTestEnv(t)
	root := makeDrive(t)
	media := &fakeMedia{available: true, probe: func(_ context.Context, path string) (json.RawMessage, error) {
		if filepath.Base(path) == "broken.mp4" {
			return nil, probe.ErrNotRecognized
		}
		return json.RawMessage(`{"media":{"track":[{"@type":"General"}]}}`), nil
	}}
	s := env.scanner(Options{Media: media})

	res, err := s.Scan(context.Background(), Request{Label: "U", MountPath: root})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Failed)

	store := env.shard(t, "U")
	row, err := store.Get(context.Background(), filepath.Join(root, "media", "broken.mp4"))
	require.NoError(t, err)
	assert.True(t, row.IntegrityOK)
	assert.JSONEq(t, unrecognizedPayload, row.MediaJSON.String)

	failed, err := store.Failed(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestScanCountsEnumerationFailures(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ProgressInterval = time.Nanosecond
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "doc")
	writeFile(t, filepath.Join(root, "b.mkv"), "video")
	vanishing := filepath.Join(root, "b.mkv")

	// b.mkv is listed with its directory, then removed before it is stat'ed
	var once sync.Once
	media := &fakeMedia{available: true}
	s := env.scanner(Options{Media: media, OnProgress: func(snap ProgressSnapshot) {
		if snap.Phase == StateEnumerating && snap.TotalAll == 1 {
			once.Do(func() { require.NoError(t, os.Remove(vanishing)) })
		}
	}})

	res, err := s.Scan(context.Background(), Request{Label: "E", MountPath: root})
	require.NoError(t, err)
	assert.Equal(t, constants.JobDone, res.Status)
	assert.Equal(t, int64(2), res.Counts.TotalAll)
	assert.Equal(t, int64(1), res.Counts.TotalAV)
	assert.Equal(t, int64(1), res.Counts.DoneAV)
	assert.Equal(t, int64(1), res.Failed)
	assert.Equal(t, int64(2), res.Rows)
	assert.Contains(t, res.Message, "(1 failed)")
	assert.Equal(t, int64(0), media.calls.Load())

	row, err := env.shard(t, "E").Get(context.Background(), vanishing)
	require.NoError(t, err)
	assert.False(t, row.IntegrityOK)
	assert.Contains(t, row.MediaJSON.String, `"stage":"enumerate"`)
}

func TestScanFollowsSymlinkedMountPath(t *testing.T) {
	env := newTestEnv(t)
	link := filepath.Join(t.TempDir(), "mnt")
	require.NoError(t, os.Symlink(makeDrive(t), link))
	s := env.scanner(Options{Media: &fakeMedia{available: true}})

	res, err := s.Scan(context.Background(), Request{Label: "L", MountPath: link})
	require.NoError(t, err)
	assert.Equal(t, constants.JobDone, res.Status)
	assert.Equal(t, int64(5), res.Counts.TotalAll)
	assert.Equal(t, int64(3), res.Counts.DoneAV)

	_, err = env.shard(t, "L").Get(context.Background(), filepath.Join(link, "media", "song.mp3"))
	assert.NoError(t, err)
}

func TestScanMissingMountPathClosesJobAsError(t *testing.T) {
	env := newTestEnv(t)
	s := env.scanner(Options{})

	res, err := s.Scan(context.Background(), Request{Label: "GONE", MountPath: filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
	assert.ErrorIs(t, err, disk.ErrMountPath)
	require.NotNil(t, res)
	assert.Equal(t, constants.JobError, res.Status)

	job, err := env.catalog.GetJob(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobError, job.Status)
	assert.Contains(t, job.Message, "does not exist")
	assert.NotNil(t, job.FinishedAt)
}

func TestScanEmptyDriveIsAnError(t *testing.T) {
	env := newTestEnv(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "System Volume Information"), 0755))
	writeFile(t, filepath.Join(root, "System Volume Information", "IndexerVolumeGuid"), "x")

	res, err := env.scanner(Options{}).Scan(context.Background(), Request{Label: "EMPTY", MountPath: root})
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.Equal(t, constants.JobError, res.Status)
}

func TestScanRequiresLabel(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.scanner(Options{}).Scan(context.Background(), Request{Label: " ", MountPath: t.TempDir()})
	assert.ErrorIs(t, err, ErrLabelRequired)
}

func TestStopClosesJobAsCanceled(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Workers = 1
	root := makeDrive(t)

	var s *Scanner
	media := &fakeMedia{available: true}
	media.probe = func(ctx context.Context, path string) (json.RawMessage, error) {
		s.Stop()
		return json.RawMessage(`{"media":{"track":[{}]}}`), nil
	}
	s = env.scanner(Options{Media: media})

	res, err := s.Scan(context.Background(), Request{Label: "STOP", MountPath: root})
	require.NoError(t, err)
	assert.Equal(t, constants.JobCanceled, res.Status)
	assert.Equal(t, int64(1), res.Counts.DoneAV)
	assert.Equal(t, int64(3), res.Counts.TotalAV)
	assert.Contains(t, res.Message, "stopped after 1 of 3")

	job, err := env.catalog.GetJob(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobCanceled, job.Status)

	// The shard is released and can be deleted right away
	require.NoError(t, env.shards.Delete(context.Background(), "STOP"))
	assert.False(t, s.Stop())
}

func TestContextCancelClosesJob(t *testing.T) {
	env := newTestEnv(t)
	root := makeDrive(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	media := &fakeMedia{available: true}
	media.probe = func(pctx context.Context, path string) (json.RawMessage, error) {
		cancel()
		<-pctx.Done()
		return nil, pctx.Err()
	}

	res, err := env.scanner(Options{Media: media}).Scan(ctx, Request{Label: "CTX", MountPath: root})
	require.NoError(t, err)
	assert.Equal(t, constants.JobCanceled, res.Status)

	job, err := env.catalog.GetJob(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobCanceled, job.Status)
	assert.NotNil(t, job.FinishedAt)

	// Interrupted files stay pending rather than being flagged as failures
	sum, err := env.shard(t, "CTX").Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum.Failed)
}

func TestPauseAndResume(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Workers = 1
	root := makeDrive(t)

	var s *Scanner
	var once sync.Once
	var sawPaused atomic.Bool
	media := &fakeMedia{available: true}
	media.probe = func(ctx context.Context, path string) (json.RawMessage, error) {
		once.Do(func() {
			assert.True(t, s.Pause())
			assert.False(t, s.Pause())
			go func() {
				time.Sleep(50 * time.Millisecond)
				sawPaused.Store(s.Paused() && s.State() == StateEnriching)
				s.Resume()
			}()
		})
		return json.RawMessage(`{"media":{"track":[{}]}}`), nil
	}
	s = env.scanner(Options{Media: media})

	res, err := s.Scan(context.Background(), Request{Label: "PAUSE", MountPath: root})
	require.NoError(t, err)
	assert.Equal(t, constants.JobDone, res.Status)
	assert.True(t, sawPaused.Load())
	assert.Equal(t, int64(3), media.calls.Load())
}

func TestWorkerPanicClosesJobAsError(t *testing.T) {
	env := newTestEnv(t)
	root := makeDrive(t)
	media := &fakeMedia{available: true, probe: func(ctx context.Context, path string) (json.RawMessage, error) {
		panic("prober exploded")
	}}

	res, err := env.scanner(Options{Media: media}).Scan(context.Background(), Request{Label: "P", MountPath: root})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prober exploded")
	assert.Equal(t, constants.JobError, res.Status)

	running, err := env.catalog.RunningJobForLabel(context.Background(), "P")
	require.NoError(t, err)
	assert.Nil(t, running)
}

func TestScannerRejectsConcurrentScan(t *testing.T) {
	env := newTestEnv(t)
	root := makeDrive(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	media := &fakeMedia{available: true, probe: func(ctx context.Context, path string) (json.RawMessage, error) {
		once.Do(func() { close(started) })
		<-release
		return json.RawMessage(`{"media":{"track":[{}]}}`), nil
	}}
	s := env.scanner(Options{Media: media})

	done := make(chan error, 1)
	go func() {
		_, err := s.Scan(context.Background(), Request{Label: "ONE", MountPath: root})
		done <- err
	}()

	<-started
	assert.True(t, env.shards.InUse("ONE"))
	_, err := s.Scan(context.Background(), Request{Label: "TWO", MountPath: root})
	assert.ErrorIs(t, err, ErrScanRunning)
	assert.ErrorIs(t, env.shards.Delete(context.Background(), "ONE"), shard.ErrShardBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, env.shards.InUse("ONE"))
}

func TestWalkFilesSkipsNoiseDirectories(t *testing.T) {
	root := makeDrive(t)
	cfg := config.Default()

	var paths []string
	err := WalkFiles(context.Background(), root, cfg.ShouldSkipDir, func(fi FileInfo) error {
		require.NoError(t, fi.Err)
		rel, _ := filepath.Rel(root, fi.Path)
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"notes.txt", "docs/report.pdf", "media/movie.MKV", "media/song.mp3", "media/broken.mp4"}, paths)
}

func TestWalkFilesStopsOnCallbackError(t *testing.T) {
	root := makeDrive(t)
	err := WalkFiles(context.Background(), root, nil, func(FileInfo) error { return errStopped })
	assert.ErrorIs(t, err, errStopped)
}

func TestWalkFilesThroughSymlinkedRoot(t *testing.T) {
	target := makeDrive(t)
	link := filepath.Join(t.TempDir(), "drive")
	require.NoError(t, os.Symlink(target, link))

	var paths []string
	err := WalkFiles(context.Background(), link, config.Default().ShouldSkipDir, func(fi FileInfo) error {
		require.NoError(t, fi.Err)
		paths = append(paths, fi.Path)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, paths, 5)
	assert.Contains(t, paths, filepath.Join(link, "media", "movie.MKV"))

	// Symlinks below the root are still ignored
	require.NoError(t, os.Symlink(filepath.Join(target, "media"), filepath.Join(target, "alias")))
	paths = nil
	require.NoError(t, WalkFiles(context.Background(), link, nil, func(fi FileInfo) error {
		paths = append(paths, fi.Path)
		return nil
	}))
	assert.NotContains(t, paths, filepath.Join(link, "alias", "song.mp3"))
}

func TestFileHasher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mkv")
	content := make([]byte, 3*1024+17)
	for i := range content {
		content[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, content, 0644))

	// Small buffer forces several chunks
	h := NewFileHasher(1024)
	sum, err := h.FullHash(context.Background(), path)
	require.NoError(t, err)
	want := blake3.Sum256(content)
	assert.Equal(t, hex.EncodeToString(want[:]), sum)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.FullHash(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = h.FullHash(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestControlStopWhilePaused(t *testing.T) {
	c := newControl()
	require.True(t, c.pause())

	errc := make(chan error, 1)
	go func() { errc <- c.wait(context.Background()) }()

	select {
	case <-errc:
		t.Fatal("wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	require.True(t, c.requestStop())
	assert.ErrorIs(t, <-errc, errStopped)
	assert.False(t, c.requestStop())
}

func TestProgressSnapshot(t *testing.T) {
	p := NewProgress("X")
	p.AddEnumerated(10, true)
	p.AddEnumerated(5, false)
	p.MarkEnumerated()
	p.IncrementAV(true)

	snap := p.GetSnapshot()
	assert.Equal(t, int64(2), snap.TotalAll)
	assert.Equal(t, int64(1), snap.TotalAV)
	assert.Equal(t, int64(15), snap.Bytes)
	assert.Equal(t, int64(1), snap.Failed)
	assert.InDelta(t, 100.0, snap.PercentComplete, 0.001)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Elapsed"`)

	c := p.Counts()
	assert.Equal(t, catalog.Counts{DoneAV: 1, TotalAV: 1, DoneAll: 2, TotalAll: 2}, c)
}
