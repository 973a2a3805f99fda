package scanner

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/mmenanno/drive-catalog/internal/catalog"
	"github.com/mmenanno/drive-catalog/internal/constants"
	"github.com/mmenanno/drive-catalog/internal/stats"
)

// Progress tracks the counters of one scan
type Progress struct {
	mu sync.RWMutex

	Label     string
	Phase     State
	Paused    bool
	StartTime time.Time

	TotalAll int64 // entries enumerated so far, final once enumeration completes
	TotalAV  int64
	DoneAV   int64
	Failed   int64
	Bytes    int64

	Enumerated bool // enumeration reached the end of the tree

	Errors []string
}

// NewProgress creates a tracker for a scan of label
func NewProgress(label string) *Progress {
	return &Progress{
		Label:     label,
		Phase:     StateIdle,
		StartTime: time.Now(),
		Errors:    make([]string, 0, 16),
	}
}

// SetPhase sets the current phase
func (p *Progress) SetPhase(phase State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Phase = phase
}

// SetPaused records whether the scan is paused
func (p *Progress) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Paused = paused
}

// AddEnumerated counts one enumerated entry
func (p *Progress) AddEnumerated(size int64, av bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.TotalAll++
	p.Bytes += size
	if av {
		p.TotalAV++
	}
}

// MarkEnumerated records that the walk finished the whole tree
func (p *Progress) MarkEnumerated() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Enumerated = true
}

// IncrementAV counts one enriched audio/video file
func (p *Progress) IncrementAV(failed bool) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.DoneAV++
	if failed {
		p.Failed++
	}
	return p.DoneAV
}

// AddFailed counts an entry that failed during enumeration. An A/V entry
// is also counted as processed since it never reaches enrichment.
func (p *Progress) AddFailed(av bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Failed++
	if av {
		p.DoneAV++
	}
}

// AddError records a per-file error (keeps only the last MaxStoredErrors)
func (p *Progress) AddError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Errors = append(p.Errors, msg)
	if len(p.Errors) > constants.MaxStoredErrors {
		p.Errors = p.Errors[len(p.Errors)-constants.MaxStoredErrors:]
	}
}

// Counts returns the job counters. All entries count as done once enumerated.
func (p *Progress) Counts() catalog.Counts {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return catalog.Counts{
		DoneAV:   p.DoneAV,
		TotalAV:  p.TotalAV,
		DoneAll:  p.TotalAll,
		TotalAll: p.TotalAll,
	}
}

// GetSnapshot returns a point-in-time copy of the progress
func (p *Progress) GetSnapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := time.Since(p.StartTime)
	var eta time.Duration
	var percent float64

	if p.Enumerated && p.TotalAV > 0 {
		percent = float64(p.DoneAV) / float64(p.TotalAV) * 100
		if p.DoneAV > 0 {
			rate := float64(p.DoneAV) / elapsed.Seconds()
			eta = time.Duration(float64(p.TotalAV-p.DoneAV)/rate) * time.Second
		}
	}

	return ProgressSnapshot{
		Label:           p.Label,
		Phase:           p.Phase,
		Paused:          p.Paused,
		TotalAll:        p.TotalAll,
		TotalAV:         p.TotalAV,
		DoneAV:          p.DoneAV,
		Failed:          p.Failed,
		Bytes:           p.Bytes,
		ErrorCount:      len(p.Errors),
		Enumerated:      p.Enumerated,
		Elapsed:         elapsed,
		ETA:             eta,
		PercentComplete: percent,
		StartTime:       p.StartTime,
	}
}

// ProgressSnapshot is a point-in-time view of a scan
type ProgressSnapshot struct {
	Label           string
	Phase           State
	Paused          bool
	TotalAll        int64
	TotalAV         int64
	DoneAV          int64
	Failed          int64
	Bytes           int64
	ErrorCount      int
	Enumerated      bool
	Elapsed         time.Duration
	ETA             time.Duration
	PercentComplete float64
	StartTime       time.Time
}

// MarshalJSON formats durations for humans
func (ps ProgressSnapshot) MarshalJSON() ([]byte, error) {
	type Alias ProgressSnapshot
	return json.Marshal(&struct {
		Elapsed string `json:"Elapsed"`
		ETA     string `json:"ETA"`
		*Alias
	}{
		Elapsed: stats.FormatDuration(ps.Elapsed),
		ETA:     stats.FormatDuration(ps.ETA),
		Alias:   (*Alias)(&ps),
	})
}
