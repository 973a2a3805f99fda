package catalog

// schema is the base layout. Columns added after the first release live in
// migrations so that older catalogs are upgraded in place.
const schema = `
CREATE TABLE IF NOT EXISTS drives (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	label TEXT NOT NULL,
	mount_path TEXT NOT NULL DEFAULT '',
	drive_type TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	total_bytes INTEGER NOT NULL DEFAULT 0,
	free_bytes INTEGER NOT NULL DEFAULT 0,
	smart_scan TEXT,
	serial TEXT,
	model TEXT,
	scanned_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_drives_label ON drives(label);

CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	drive_label TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	status TEXT NOT NULL DEFAULT 'Running',
	total_files INTEGER NOT NULL DEFAULT 0,
	done_files INTEGER NOT NULL DEFAULT 0,
	message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_jobs_drive_label ON jobs(drive_label);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

type migration struct {
	table  string
	column string
	ddl    string
}

// migrations are applied in order, each only when its column is absent
var migrations = []migration{
	{"jobs", "duration_sec", `ALTER TABLE jobs ADD COLUMN duration_sec REAL`},
	{"jobs", "total_av", `ALTER TABLE jobs ADD COLUMN total_av INTEGER NOT NULL DEFAULT 0`},
	{"jobs", "total_all", `ALTER TABLE jobs ADD COLUMN total_all INTEGER NOT NULL DEFAULT 0`},
	{"jobs", "done_av", `ALTER TABLE jobs ADD COLUMN done_av INTEGER NOT NULL DEFAULT 0`},
	{"jobs", "done_all", `ALTER TABLE jobs ADD COLUMN done_all INTEGER NOT NULL DEFAULT 0`},
	{"jobs", "run_id", `ALTER TABLE jobs ADD COLUMN run_id TEXT NOT NULL DEFAULT ''`},
	{"jobs", "heartbeat_at", `ALTER TABLE jobs ADD COLUMN heartbeat_at DATETIME`},
}
