package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mmenanno/drive-catalog/internal/probe"
	"github.com/mmenanno/drive-catalog/internal/shard"
)

// avFile is an audio/video file waiting for enrichment
type avFile struct {
	Path    string
	Size    int64
	ModTime time.Time
	Audio   bool
}

// unprobedPayload is stored for video files when no prober is installed
const unprobedPayload = `{"unprobed":"mediainfo unavailable"}`

// unrecognizedPayload is stored when MediaInfo ran but found no tracks. Some
// A/V extensions are shared with non-media files, so this is not a failure.
const unrecognizedPayload = `{"unrecognized":"mediainfo found no media tracks"}`

type errorPayload struct {
	Error string          `json:"error"`
	Stage string          `json:"stage"`
	Media json.RawMessage `json:"media,omitempty"`
}

func encodeError(stage string, err error, media json.RawMessage) string {
	data, mErr := json.Marshal(errorPayload{Error: err.Error(), Stage: stage, Media: media})
	if mErr != nil {
		return fmt.Sprintf(`{"error":%q,"stage":%q}`, err.Error(), stage)
	}
	return string(data)
}

// enricher turns one audio/video file into its phase-two record
type enricher struct {
	media    MediaProber
	useMedia bool
	tags     probe.Prober
	hasher   *FileHasher
	hash     bool
}

// enrich probes and optionally hashes f. Failures are recorded in the
// returned record; only ctx cancellation is returned as an error.
func (e *enricher) enrich(ctx context.Context, f avFile) (shard.EnrichRecord, error) {
	rec := shard.EnrichRecord{Path: f.Path, Size: f.Size, ModTime: f.ModTime, OK: true}

	var media json.RawMessage
	var probeErr error
	useMedia := e.useMedia
	if useMedia {
		media, probeErr = e.media.Probe(ctx, f.Path)
		// MediaInfo went away mid-scan; fall back as if it was never there
		if errors.Is(probeErr, probe.ErrToolUnavailable) {
			useMedia, media, probeErr = false, nil, nil
		}
	}
	if !useMedia {
		if f.Audio && e.tags != nil {
			media, probeErr = e.tags.Probe(ctx, f.Path)
		} else {
			media = json.RawMessage(unprobedPayload)
		}
	}
	if err := ctx.Err(); err != nil {
		return rec, err
	}

	if errors.Is(probeErr, probe.ErrNotRecognized) {
		media, probeErr = json.RawMessage(unrecognizedPayload), nil
	}
	if probeErr != nil {
		rec.OK = false
		rec.MediaJSON = encodeError("probe", probeErr, nil)
	} else {
		rec.MediaJSON = string(media)
	}

	if e.hash {
		sum, err := e.hasher.FullHash(ctx, f.Path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rec, ctxErr
		}
		if err != nil {
			if rec.OK {
				rec.MediaJSON = encodeError("hash", err, media)
			}
			rec.OK = false
		} else {
			rec.Hash = sum
		}
	}

	return rec, nil
}

// Worker enriches files from a shared queue
type Worker struct {
	id       int
	enricher *enricher
	writer   *shard.Writer
	control  *control
	progress *Progress
	report   func(ctx context.Context, done int64) error
	logger   hclog.Logger
}

// Run processes files until in is closed, ctx is done, Stop is requested
// or a write fails. Fatal errors are passed to fail; a Stop only ends this
// worker so in-flight probes on other workers finish normally.
func (w *Worker) Run(ctx context.Context, in <-chan avFile, wg *sync.WaitGroup, fail func(error)) {
	defer wg.Done()

	for {
		if err := w.control.wait(ctx); err != nil {
			if !errors.Is(err, errStopped) {
				fail(err)
			}
			return
		}

		var f avFile
		var ok bool
		select {
		case <-ctx.Done():
			fail(ctx.Err())
			return
		case f, ok = <-in:
			if !ok {
				return
			}
		}

		if err := w.processFile(ctx, f); err != nil {
			fail(err)
			return
		}
	}
}

func (w *Worker) processFile(ctx context.Context, f avFile) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while enriching %s: %v", f.Path, r)
		}
	}()

	rec, err := w.enricher.enrich(ctx, f)
	if err != nil {
		// Row stays pending; a later scan enriches it
		return err
	}

	if !rec.OK {
		w.logger.Warn("enrichment failed", "path", f.Path, "media", rec.MediaJSON)
		w.progress.AddError(fmt.Sprintf("%s: %s", f.Path, rec.MediaJSON))
	}

	if err := w.writer.Enrich(ctx, rec); err != nil {
		return fmt.Errorf("failed to queue enrichment for %s: %w", f.Path, err)
	}

	done := w.progress.IncrementAV(!rec.OK)
	if w.report != nil {
		return w.report(ctx, done)
	}
	return nil
}

// WorkerPool runs a fixed number of enrichment workers over one queue.
// The first fatal error cancels the pool's context so every worker drains.
type WorkerPool struct {
	workers []*Worker
	input   chan avFile
	stop    <-chan struct{}
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu  sync.Mutex
	err error
}

// NewWorkerPool creates numWorkers copies of template
func NewWorkerPool(ctx context.Context, numWorkers, bufferSize int, template Worker) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers: make([]*Worker, numWorkers),
		input:   make(chan avFile, bufferSize),
		stop:    template.control.stopCh(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < numWorkers; i++ {
		w := template
		w.id = i
		w.logger = template.logger.With("worker", i)
		pool.workers[i] = &w
	}
	return pool
}

// Start starts all workers
func (p *WorkerPool) Start() {
	for _, worker := range p.workers {
		p.wg.Add(1)
		go worker.Run(p.ctx, p.input, &p.wg, p.fail)
	}
}

func (p *WorkerPool) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
	p.cancel()
}

// Submit queues a file, blocking while the queue is full
func (p *WorkerPool) Submit(f avFile) error {
	select {
	case p.input <- f:
		return nil
	case <-p.stop:
		return errStopped
	case <-p.ctx.Done():
		if err := p.Err(); err != nil {
			return err
		}
		return p.ctx.Err()
	}
}

// Err returns the first fatal error, if any
func (p *WorkerPool) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Wait closes the queue, waits for workers and returns the first fatal error
func (p *WorkerPool) Wait() error {
	close(p.input)
	p.wg.Wait()
	p.cancel()
	return p.Err()
}
