package constants

import "time"

// Job status values stored in jobs.status
const (
	// JobRunning marks a scan that has not been closed yet
	JobRunning = "Running"

	// JobDone marks a scan that enumerated and enriched everything it was asked to
	JobDone = "Done"

	// JobCanceled marks a scan stopped by the user or by a signal
	JobCanceled = "Canceled"

	// JobError marks a scan aborted by a job-level failure
	JobError = "Error"
)

// Media payload sentinels written to files.media_json
const (
	// SkippedNonAV is stored for every file outside the audio/video extension sets
	SkippedNonAV = `{"skipped":"non-AV"}`
)

// Scan defaults
const (
	// DefaultWorkerCount is the number of concurrent enrichment workers
	DefaultWorkerCount = 4

	// DefaultQueueSize is the writer queue capacity
	DefaultQueueSize = 1000

	// DefaultBatchSize is the number of rows committed per shard transaction
	DefaultBatchSize = 500

	// DefaultProgressEvery is how many A/V files pass between job progress writes
	DefaultProgressEvery = 25

	// DefaultProgressInterval is the minimum spacing between progress writes
	DefaultProgressInterval = 500 * time.Millisecond

	// DefaultHeartbeatInterval is how often a running job refreshes heartbeat_at
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultStaleJobAfter is how old a Running job's heartbeat must be before startup recovery closes it
	DefaultStaleJobAfter = 5 * time.Minute

	// DefaultProbeTimeout bounds a single MediaInfo invocation
	DefaultProbeTimeout = 20 * time.Second

	// DefaultSmartTimeout bounds a single smartctl invocation
	DefaultSmartTimeout = 10 * time.Second

	// DefaultHashBufferSize is the BLAKE3 read chunk (1 MiB)
	DefaultHashBufferSize = 1024 * 1024

	// DefaultToolCheckInterval is how long a tool availability lookup is cached
	DefaultToolCheckInterval = 5 * time.Minute
)

// Shard deletion
const (
	// DefaultDeleteRetries is the number of unlink attempts per shard file
	DefaultDeleteRetries = 5

	// DefaultDeleteRetryDelay is the pause between unlink attempts
	DefaultDeleteRetryDelay = 200 * time.Millisecond
)

// Listing limits
const (
	// DefaultJobsListLimit is the number of jobs shown by `jobs list`
	DefaultJobsListLimit = 20

	// DefaultFailedListLimit is the number of failed rows shown by `shard failed`
	DefaultFailedListLimit = 100

	// MaxStoredErrors is the maximum number of per-file errors kept in memory during a scan
	MaxStoredErrors = 1000
)

// SmartCapacityTolerance is the relative difference allowed when matching a
// smartctl device capacity against a filesystem's total size.
const SmartCapacityTolerance = 0.02
