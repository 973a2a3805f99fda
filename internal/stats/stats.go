package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmenanno/drive-catalog/internal/catalog"
	"github.com/mmenanno/drive-catalog/internal/shard"
)

// Stats is a catalog-wide summary
type Stats struct {
	Drives         []DriveStats
	TotalFiles     int64
	TotalBytes     int64
	FailedFiles    int64
	HashedFiles    int64
	PendingFiles   int64
	CapacityBytes  int64
	FreeBytes      int64
	JobStatus      map[string]int64
	MissingShards  []string
	DuplicateSets  int
	ReclaimableDup int64
}

// DriveStats summarizes one drive and its shard
type DriveStats struct {
	Drive   *catalog.Drive
	Summary *shard.Summary // nil when the shard file is missing
	LastJob *catalog.Job
}

// Location is one copy of a duplicated file
type Location struct {
	Label string
	Path  string
}

// DuplicateSet is a BLAKE3 digest found more than once across all drives
type DuplicateSet struct {
	Hash      string
	SizeBytes int64
	Locations []Location
}

// Reclaimable returns the bytes held by all copies but one
func (d DuplicateSet) Reclaimable() int64 {
	return int64(len(d.Locations)-1) * d.SizeBytes
}

// Calculator derives statistics from the catalog and the drive shards
type Calculator struct {
	catalog *catalog.DB
	shards  *shard.Manager
}

// NewCalculator creates a new stats calculator
func NewCalculator(cat *catalog.DB, shards *shard.Manager) *Calculator {
	return &Calculator{catalog: cat, shards: shards}
}

// Calculate summarizes every drive in the catalog
func (c *Calculator) Calculate(ctx context.Context) (*Stats, error) {
	drives, err := c.catalog.ListDrives(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate drives: %w", err)
	}

	stats := &Stats{}
	for _, d := range drives {
		ds, err := c.driveStats(ctx, d)
		if err != nil {
			return nil, err
		}
		stats.Drives = append(stats.Drives, *ds)

		stats.CapacityBytes += d.TotalBytes
		stats.FreeBytes += d.FreeBytes
		if ds.Summary == nil {
			stats.MissingShards = append(stats.MissingShards, d.Label)
			continue
		}
		stats.TotalFiles += ds.Summary.Rows
		stats.TotalBytes += ds.Summary.TotalBytes
		stats.FailedFiles += ds.Summary.Failed
		stats.HashedFiles += ds.Summary.Hashed
		stats.PendingFiles += ds.Summary.Pending
	}

	if stats.JobStatus, err = c.catalog.JobStatusCounts(ctx); err != nil {
		return nil, fmt.Errorf("failed to calculate job statuses: %w", err)
	}

	dupes, err := c.Duplicates(ctx, 2)
	if err != nil {
		return nil, err
	}
	stats.DuplicateSets = len(dupes)
	for _, d := range dupes {
		stats.ReclaimableDup += d.Reclaimable()
	}

	return stats, nil
}

// Drive summarizes one drive by label
func (c *Calculator) Drive(ctx context.Context, label string) (*DriveStats, error) {
	d, err := c.catalog.GetDrive(ctx, label)
	if err != nil {
		return nil, err
	}
	return c.driveStats(ctx, d)
}

func (c *Calculator) driveStats(ctx context.Context, d *catalog.Drive) (*DriveStats, error) {
	ds := &DriveStats{Drive: d}

	jobs, err := c.catalog.ListJobs(ctx, d.Label, 1)
	if err != nil {
		return nil, err
	}
	if len(jobs) > 0 {
		ds.LastJob = jobs[0]
	}

	store, err := c.shards.OpenExisting(d.Label)
	if errors.Is(err, shard.ErrShardNotFound) {
		return ds, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open shard for %s: %w", d.Label, err)
	}
	defer store.Close()

	if ds.Summary, err = store.Summary(ctx); err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", d.Label, err)
	}
	return ds, nil
}

// Duplicates returns exact BLAKE3 matches across every drive's shard, largest
// reclaimable size first. Only hashed files take part.
func (c *Calculator) Duplicates(ctx context.Context, minCount int) ([]DuplicateSet, error) {
	if minCount < 2 {
		minCount = 2
	}

	drives, err := c.catalog.ListDrives(ctx)
	if err != nil {
		return nil, err
	}

	byHash := make(map[string]*DuplicateSet)
	for _, d := range drives {
		store, err := c.shards.OpenExisting(d.Label)
		if errors.Is(err, shard.ErrShardNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open shard for %s: %w", d.Label, err)
		}
		entries, err := store.HashEntries(ctx)
		store.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read hashes for %s: %w", d.Label, err)
		}

		for _, e := range entries {
			set, ok := byHash[e.Hash]
			if !ok {
				set = &DuplicateSet{Hash: e.Hash}
				byHash[e.Hash] = set
			}
			if e.SizeBytes > set.SizeBytes {
				set.SizeBytes = e.SizeBytes
			}
			set.Locations = append(set.Locations, Location{Label: d.Label, Path: e.Path})
		}
	}

	var sets []DuplicateSet
	for _, set := range byHash {
		if len(set.Locations) < minCount {
			continue
		}
		sort.Slice(set.Locations, func(i, j int) bool {
			if set.Locations[i].Label != set.Locations[j].Label {
				return set.Locations[i].Label < set.Locations[j].Label
			}
			return set.Locations[i].Path < set.Locations[j].Path
		})
		sets = append(sets, *set)
	}

	sort.Slice(sets, func(i, j int) bool {
		ri, rj := sets[i].Reclaimable(), sets[j].Reclaimable()
		if ri != rj {
			return ri > rj
		}
		return sets[i].Hash < sets[j].Hash
	})
	return sets, nil
}

// FormatDuration formats a duration as "1h2m3s", "4m5s" or "6s"
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
