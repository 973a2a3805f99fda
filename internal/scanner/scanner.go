package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"github.com/mmenanno/drive-catalog/internal/catalog"
	"github.com/mmenanno/drive-catalog/internal/config"
	"github.com/mmenanno/drive-catalog/internal/constants"
	"github.com/mmenanno/drive-catalog/internal/disk"
	"github.com/mmenanno/drive-catalog/internal/probe"
	"github.com/mmenanno/drive-catalog/internal/shard"
)

var (
	// ErrNoFiles is returned when enumeration finds nothing under the mount path
	ErrNoFiles = errors.New("no files found under mount path")

	// ErrScanRunning is returned when Scan is called while another scan is active
	ErrScanRunning = errors.New("a scan is already running")

	// ErrLabelRequired is returned for an empty drive label
	ErrLabelRequired = errors.New("drive label is required")
)

// MediaProber describes audio/video files with an external tool
type MediaProber interface {
	Probe(ctx context.Context, path string) (json.RawMessage, error)
	Available() bool
}

// DriveIdentifier resolves the serial and model of the disk behind a mount
type DriveIdentifier interface {
	Identify(ctx context.Context, device string, capacity int64) (*probe.SmartInfo, error)
}

// Request describes one scan
type Request struct {
	Label     string
	MountPath string
	DriveType string
	Notes     string
	Hash      bool
}

// Result is the outcome of a scan as written to the job row
type Result struct {
	JobID     int64
	RunID     string
	Label     string
	MountPath string
	Status    string
	Message   string
	Warning   string
	Counts    catalog.Counts
	Failed    int64
	Rows      int64
	Pruned    int64
	Duration  time.Duration
}

// Options holds the optional collaborators of a Scanner
type Options struct {
	Media      MediaProber
	Tags       probe.Prober
	Smart      DriveIdentifier
	Logger     hclog.Logger
	OnProgress func(ProgressSnapshot)
}

// Scanner runs two-phase scans: every file is enumerated into the drive's
// shard, then audio/video files are enriched by a worker pool.
// One Scanner runs one scan at a time.
type Scanner struct {
	config  *config.Config
	catalog *catalog.DB
	shards  *shard.Manager

	media      MediaProber
	tags       probe.Prober
	smart      DriveIdentifier
	hasher     *FileHasher
	logger     hclog.Logger
	onProgress func(ProgressSnapshot)

	control *control
	running atomic.Bool

	mu       sync.RWMutex
	progress *Progress
}

// NewScanner creates a scanner writing to cat and shards
func NewScanner(cfg *config.Config, cat *catalog.DB, shards *shard.Manager, opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Scanner{
		config:     cfg,
		catalog:    cat,
		shards:     shards,
		media:      opts.Media,
		tags:       opts.Tags,
		smart:      opts.Smart,
		hasher:     NewFileHasher(cfg.HashBufferSize),
		logger:     logger.Named("scanner"),
		onProgress: opts.OnProgress,
		control:    newControl(),
	}
}

// Pause suspends the running scan at its next file boundary
func (s *Scanner) Pause() bool {
	if !s.running.Load() || !s.control.pause() {
		return false
	}
	s.logger.Info("scan paused")
	if p := s.currentProgress(); p != nil {
		p.SetPaused(true)
	}
	return true
}

// Resume continues a paused scan
func (s *Scanner) Resume() bool {
	if !s.control.unpause() {
		return false
	}
	s.logger.Info("scan resumed")
	if p := s.currentProgress(); p != nil {
		p.SetPaused(false)
	}
	return true
}

// Stop asks the running scan to finish cooperatively. In-flight probes
// complete; the job closes as Canceled.
func (s *Scanner) Stop() bool {
	if !s.running.Load() || !s.control.requestStop() {
		return false
	}
	s.logger.Info("stop requested")
	return true
}

// State returns the phase of the running scan
func (s *Scanner) State() State {
	if p := s.currentProgress(); p != nil {
		return p.GetSnapshot().Phase
	}
	return StateIdle
}

// Paused reports whether the running scan is paused
func (s *Scanner) Paused() bool {
	return s.running.Load() && s.control.isPaused()
}

// GetProgress returns a snapshot of the running scan, or nil when idle
func (s *Scanner) GetProgress() *ProgressSnapshot {
	p := s.currentProgress()
	if p == nil {
		return nil
	}
	snap := p.GetSnapshot()
	return &snap
}

func (s *Scanner) currentProgress() *Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

func (s *Scanner) setProgress(p *Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = p
}

// scanJob is the state of one Scan call
type scanJob struct {
	req      Request
	label    string
	root     string
	runID    string
	id       int64
	hash     bool
	progress *Progress
	result   *Result
	logger   hclog.Logger

	reportMu sync.Mutex
	limiter  *rate.Limiter
}

// Scan catalogs one drive. A job row is created first and is always closed,
// whatever happens afterwards: Done on success, Canceled after Stop or
// context cancellation, Error otherwise. A stopped scan returns a nil error.
func (s *Scanner) Scan(ctx context.Context, req Request) (result *Result, err error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, ErrLabelRequired
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrScanRunning
	}
	defer func() {
		s.control.reset()
		s.running.Store(false)
	}()

	runID := uuid.NewString()
	jobID, err := s.catalog.CreateJob(ctx, label, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	start := time.Now()
	job := &scanJob{
		req:      req,
		label:    label,
		runID:    runID,
		id:       jobID,
		hash:     req.Hash,
		progress: NewProgress(label),
		result:   &Result{JobID: jobID, RunID: runID, Label: label},
		logger:   s.logger.With("label", label, "job", jobID),
		limiter:  rate.NewLimiter(rate.Every(s.progressInterval()), 1),
	}
	result = job.result
	s.setProgress(job.progress)
	job.logger.Info("scan started", "mount", req.MountPath, "run", runID, "hash", req.Hash)

	stopHeartbeat := s.startHeartbeat(ctx, job)

	defer func() {
		stopHeartbeat()

		r := recover()
		if r != nil {
			err = fmt.Errorf("panic during scan: %v", r)
		}

		result.Duration = time.Since(start)
		result.Counts = job.progress.Counts()
		result.Failed = job.progress.GetSnapshot().Failed
		result.Status, result.Message = outcome(err, job)

		closeErr := s.catalog.CloseJob(context.WithoutCancel(ctx), jobID, result.Status,
			result.Duration, result.Counts, result.Message)
		if closeErr != nil {
			job.logger.Error("failed to close job", "error", closeErr)
		}
		s.setProgress(nil)
		s.notify(job, true)

		job.logger.Info("scan finished",
			"status", result.Status,
			"files", result.Counts.TotalAll,
			"av", result.Counts.TotalAV,
			"failed", result.Failed,
			"duration", result.Duration)

		if r != nil {
			panic(r)
		}
		if result.Status == constants.JobCanceled {
			err = nil
		}
		err = errors.Join(err, closeErr)
	}()

	return result, s.run(ctx, job)
}

// outcome maps a scan error to the job's terminal status and message
func outcome(err error, job *scanJob) (string, string) {
	snap := job.progress.GetSnapshot()

	var status, msg string
	switch {
	case err == nil:
		status = constants.JobDone
		msg = fmt.Sprintf("scanned %d files, %d audio/video (%d failed)", snap.TotalAll, snap.TotalAV, snap.Failed)
	case isCancel(err):
		status = constants.JobCanceled
		if snap.Enumerated {
			msg = fmt.Sprintf("stopped after %d of %d audio/video files", snap.DoneAV, snap.TotalAV)
		} else {
			msg = fmt.Sprintf("stopped during enumeration after %d files", snap.TotalAll)
		}
	default:
		status = constants.JobError
		msg = err.Error()
	}

	if job.result.Warning != "" {
		msg += "; warning: " + job.result.Warning
	}
	return status, msg
}

func isCancel(err error) bool {
	return errors.Is(err, errStopped) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *Scanner) run(ctx context.Context, job *scanJob) error {
	job.progress.SetPhase(StateEnumerating)

	root, err := disk.NormalizeMountPath(job.req.MountPath)
	if err != nil {
		return err
	}
	if err := disk.ValidateRoot(root); err != nil {
		return err
	}
	job.root = root
	job.result.MountPath = root

	drive := catalog.DriveUpsert{
		Label:     job.label,
		MountPath: root,
		DriveType: job.req.DriveType,
		Notes:     job.req.Notes,
		ScannedAt: time.Now().UTC(),
	}
	if space, err := disk.GetSpace(ctx, root); err != nil {
		job.logger.Warn("capacity unavailable", "error", err)
	} else {
		drive.TotalBytes = space.TotalBytes
		drive.FreeBytes = space.FreeBytes
	}
	s.identify(ctx, job, &drive)

	if err := s.catalog.UpsertDrive(ctx, drive); err != nil {
		return fmt.Errorf("failed to record drive: %w", err)
	}

	release := s.shards.Acquire(job.label)
	defer release()

	store, err := s.shards.Open(job.label)
	if err != nil {
		return fmt.Errorf("failed to open shard: %w", err)
	}
	writer := shard.NewWriter(store, shard.WriterOptions{
		Label:     job.label,
		RunID:     job.runID,
		BatchSize: s.config.BatchSize,
		QueueSize: s.config.QueueSize,
		Vacuum:    s.config.VacuumOnFinish,
		Logger:    job.logger,
	})

	scanErr := s.scanFiles(ctx, job, writer)

	// The writer owns the shard connection; it must be joined before the
	// shard is read back or deleted
	job.progress.SetPhase(StateFinalizing)
	closeErr := writer.Close()
	job.result.Pruned = writer.Pruned()

	if closeErr != nil {
		closeErr = fmt.Errorf("shard write failed: %w", closeErr)
		if scanErr == nil || isCancel(scanErr) {
			return closeErr
		}
		return errors.Join(scanErr, closeErr)
	}
	if scanErr != nil {
		return scanErr
	}

	s.verify(ctx, job)
	return nil
}

// identify fills serial, model and the SMART blob on a best-effort basis
func (s *Scanner) identify(ctx context.Context, job *scanJob, drive *catalog.DriveUpsert) {
	if s.smart == nil {
		return
	}

	device, err := disk.DeviceForMount(ctx, job.root)
	if err != nil {
		job.logger.Debug("no block device for mount", "error", err)
	}

	info, err := s.smart.Identify(ctx, device, drive.TotalBytes)
	switch {
	case errors.Is(err, probe.ErrToolUnavailable):
		job.logger.Debug("smartctl not available; serial and model unknown")
	case err != nil:
		job.logger.Warn("SMART lookup failed", "device", device, "error", err)
	case info == nil:
		job.logger.Debug("no SMART device matched", "device", device, "capacity", drive.TotalBytes)
	default:
		drive.Serial = info.Serial
		drive.Model = info.Model
		drive.SmartBlob = string(info.Raw)
		job.logger.Info("identified drive", "device", info.Device, "serial", info.Serial, "model", info.Model)
	}
}

// scanFiles runs enumeration then enrichment
func (s *Scanner) scanFiles(ctx context.Context, job *scanJob, w *shard.Writer) error {
	var av []avFile

	err := WalkFiles(ctx, job.root, s.config.ShouldSkipDir, func(fi FileInfo) error {
		if err := s.control.wait(ctx); err != nil {
			return err
		}

		rec := shard.FastRecord{Path: fi.Path, Size: fi.Size, ModTime: fi.ModTime, OK: true}
		isAV := s.config.IsAV(fi.Path)
		switch {
		case fi.Err != nil:
			rec.OK = false
			rec.MediaJSON = encodeError("enumerate", fi.Err, nil)
			job.progress.AddError(fmt.Sprintf("%s: %v", fi.Path, fi.Err))
			job.logger.Warn("unreadable entry", "path", fi.Path, "error", fi.Err)
		case isAV:
			av = append(av, avFile{Path: fi.Path, Size: fi.Size, ModTime: fi.ModTime, Audio: s.config.IsAudio(fi.Path)})
		default:
			rec.MediaJSON = constants.SkippedNonAV
		}

		if err := w.UpsertFast(ctx, rec); err != nil {
			return err
		}
		job.progress.AddEnumerated(fi.Size, isAV)
		if fi.Err != nil {
			job.progress.AddFailed(isAV)
		}
		return s.reportEnumeration(ctx, job)
	})
	if err != nil {
		return err
	}

	job.progress.MarkEnumerated()
	snap := job.progress.GetSnapshot()
	if snap.TotalAll == 0 {
		return fmt.Errorf("%w: %s", ErrNoFiles, job.root)
	}
	job.logger.Info("enumeration complete", "files", snap.TotalAll, "av", snap.TotalAV)

	// Every present file now carries this run's id
	if err := w.Prune(ctx); err != nil {
		return err
	}
	if err := s.writeProgress(ctx, job, fmt.Sprintf("enumerated %d files, %d audio/video", snap.TotalAll, snap.TotalAV)); err != nil {
		return err
	}

	return s.enrich(ctx, job, w, av)
}

func (s *Scanner) enrich(ctx context.Context, job *scanJob, w *shard.Writer, files []avFile) error {
	job.progress.SetPhase(StateEnriching)
	s.notify(job, true)
	if len(files) == 0 {
		return nil
	}

	useMedia := s.media != nil && s.media.Available()
	if !useMedia {
		job.logger.Warn("mediainfo not available; audio uses embedded tags, video is recorded unprobed")
	}

	pool := NewWorkerPool(ctx, s.config.Workers, s.config.Workers*2, Worker{
		enricher: &enricher{
			media:    s.media,
			useMedia: useMedia,
			tags:     s.tags,
			hasher:   s.hasher,
			hash:     job.hash,
		},
		writer:   w,
		control:  s.control,
		progress: job.progress,
		report: func(ctx context.Context, done int64) error {
			return s.reportEnrichment(ctx, job, done)
		},
		logger: job.logger,
	})
	pool.Start()

	var submitErr error
	for _, f := range files {
		if err := s.control.wait(ctx); err != nil {
			submitErr = err
			break
		}
		if err := pool.Submit(f); err != nil {
			submitErr = err
			break
		}
	}

	if err := pool.Wait(); err != nil {
		return err
	}
	if submitErr != nil {
		return submitErr
	}

	snap := job.progress.GetSnapshot()
	if snap.DoneAV < snap.TotalAV {
		// Workers left early after Stop
		return errStopped
	}
	return s.writeProgress(ctx, job, fmt.Sprintf("enriched %d audio/video files", snap.DoneAV))
}

func (s *Scanner) reportEnumeration(ctx context.Context, job *scanJob) error {
	s.notify(job, false)

	snap := job.progress.GetSnapshot()
	every := int64(s.config.BatchSize)
	if every < 1 || snap.TotalAll%every != 0 {
		return nil
	}
	return s.writeProgress(ctx, job, fmt.Sprintf("enumerating: %d files", snap.TotalAll))
}

func (s *Scanner) reportEnrichment(ctx context.Context, job *scanJob, done int64) error {
	s.notify(job, false)

	every := int64(s.config.ProgressEvery)
	if every < 1 {
		every = constants.DefaultProgressEvery
	}
	if done%every != 0 {
		return nil
	}
	snap := job.progress.GetSnapshot()
	return s.writeProgress(ctx, job, fmt.Sprintf("enriching %d/%d", done, snap.TotalAV))
}

// writeProgress updates the job row. Writes are serialized so counters
// never move backwards.
func (s *Scanner) writeProgress(ctx context.Context, job *scanJob, msg string) error {
	job.reportMu.Lock()
	defer job.reportMu.Unlock()

	if err := s.catalog.UpdateJobProgress(ctx, job.id, job.progress.Counts(), msg); err != nil {
		return fmt.Errorf("failed to record progress: %w", err)
	}
	return nil
}

// notify calls OnProgress, at most once per progress interval unless forced
func (s *Scanner) notify(job *scanJob, force bool) {
	if s.onProgress == nil {
		return
	}
	if !force && !job.limiter.Allow() {
		return
	}
	s.onProgress(job.progress.GetSnapshot())
}

func (s *Scanner) progressInterval() time.Duration {
	if s.config.ProgressInterval > 0 {
		return s.config.ProgressInterval
	}
	return constants.DefaultProgressInterval
}

// startHeartbeat refreshes the job's heartbeat until the returned func is called
func (s *Scanner) startHeartbeat(ctx context.Context, job *scanJob) func() {
	interval := s.config.HeartbeatInterval
	if interval <= 0 {
		interval = constants.DefaultHeartbeatInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.catalog.Heartbeat(ctx, job.id); err != nil && ctx.Err() == nil {
					job.logger.Warn("heartbeat failed", "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// verify compares the shard row count with the number of enumerated entries
func (s *Scanner) verify(ctx context.Context, job *scanJob) {
	snap := job.progress.GetSnapshot()
	if !snap.Enumerated {
		return
	}

	store, err := s.shards.OpenExisting(job.label)
	if err != nil {
		job.result.Warning = fmt.Sprintf("row count not verified: %v", err)
		return
	}
	defer store.Close()

	rows, err := store.Count(ctx)
	if err != nil {
		job.result.Warning = fmt.Sprintf("row count not verified: %v", err)
		return
	}
	job.result.Rows = rows

	if rows != snap.TotalAll {
		job.result.Warning = fmt.Sprintf("shard has %d rows but %d files were enumerated", rows, snap.TotalAll)
		job.logger.Warn("row count mismatch", "rows", rows, "enumerated", snap.TotalAll)
	}
}
