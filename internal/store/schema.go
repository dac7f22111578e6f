package store

// migrations is applied in order at startup. Each statement must be
// idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) so
// that re-running against an existing data directory is a no-op. Existing
// tables are not introspected and no ALTER TABLE runs: a table that already
// exists keeps its columns as they are and gets no new columns added.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		event_id            TEXT PRIMARY KEY,
		title               TEXT NOT NULL DEFAULT '',
		subtitle            TEXT NOT NULL DEFAULT '',
		summary             TEXT NOT NULL DEFAULT '',
		sport               TEXT NOT NULL DEFAULT '',
		league_name         TEXT NOT NULL DEFAULT '',
		league_abbr         TEXT NOT NULL DEFAULT '',
		network             TEXT NOT NULL DEFAULT '',
		network_short       TEXT NOT NULL DEFAULT '',
		language            TEXT NOT NULL DEFAULT '',
		packages            TEXT NOT NULL DEFAULT '',
		event_type          TEXT NOT NULL DEFAULT 'UNKNOWN',
		is_reair            INTEGER NOT NULL DEFAULT 0,
		is_studio           INTEGER NOT NULL DEFAULT 0,
		airing_id           TEXT NOT NULL DEFAULT '',
		simulcast_airing_id TEXT NOT NULL DEFAULT '',
		image               TEXT NOT NULL DEFAULT '',
		start_utc           INTEGER NOT NULL,
		stop_utc            INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_window ON events(start_utc, stop_utc)`,

	`CREATE TABLE IF NOT EXISTS feeds (
		feed_id    TEXT NOT NULL,
		event_id   TEXT NOT NULL,
		url        TEXT NOT NULL,
		is_primary INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (feed_id, event_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feeds_event ON feeds(event_id)`,

	`CREATE TABLE IF NOT EXISTS channel (
		channel_id TEXT PRIMARY KEY,
		chno       INTEGER NOT NULL,
		name       TEXT NOT NULL DEFAULT '',
		group_name TEXT NOT NULL DEFAULT '',
		active     INTEGER NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS plan_run (
		plan_id          INTEGER PRIMARY KEY AUTOINCREMENT,
		generated_at_utc INTEGER NOT NULL,
		valid_from_utc   INTEGER NOT NULL,
		valid_to_utc     INTEGER NOT NULL,
		source_version   TEXT NOT NULL DEFAULT '',
		note             TEXT NOT NULL DEFAULT '',
		checksum         TEXT NOT NULL DEFAULT '',
		committed        INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS plan_slot (
		plan_id           INTEGER NOT NULL,
		channel_id        TEXT NOT NULL,
		start_utc         INTEGER NOT NULL,
		end_utc           INTEGER NOT NULL,
		kind              TEXT NOT NULL,
		event_id          TEXT,
		preferred_feed_id TEXT,
		placeholder_reason TEXT,
		PRIMARY KEY (plan_id, channel_id, start_utc)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_plan_slot_lookup ON plan_slot(plan_id, channel_id, start_utc, end_utc)`,

	`CREATE TABLE IF NOT EXISTS event_lane (
		event_id      TEXT PRIMARY KEY,
		channel_id    TEXT NOT NULL,
		pinned_at_utc INTEGER NOT NULL,
		last_seen_utc INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS events_filterable (
		event_id   TEXT PRIMARY KEY,
		is_allowed INTEGER NOT NULL,
		reasons    TEXT NOT NULL DEFAULT ''
	)`,
}
