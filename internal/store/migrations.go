package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scan_state (
	account_id TEXT PRIMARY KEY,
	last_uid   INTEGER NOT NULL DEFAULT 0,
	last_scan  DATETIME,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS seen_ids (
	account_id  TEXT NOT NULL,
	tracking_id TEXT NOT NULL,
	first_seen  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (account_id, tracking_id)
);

CREATE TABLE IF NOT EXISTS matches (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL,
	supplier    TEXT NOT NULL,
	tracking_id TEXT NOT NULL,
	email_uid   INTEGER NOT NULL DEFAULT 0,
	message_id  TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	sender      TEXT NOT NULL DEFAULT '',
	date        DATETIME,
	snippet     TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	position    INTEGER NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_matches_account_position
	ON matches(account_id, position);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
