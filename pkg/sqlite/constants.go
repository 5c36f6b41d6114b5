package sqlite

// TableAccessEvents is the table storing normalized access events
const TableAccessEvents = "access_events"

// SchemaAccessEvents creates the access event table and its indexes.
//
// The UNIQUE constraint is the dedupe key for ingestion: re-inserting a
// row with the same tuple is a no-op under INSERT OR IGNORE, which makes
// checkpoint rollback and full re-scans safe.
const SchemaAccessEvents = `
CREATE TABLE IF NOT EXISTS access_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	remote_addr TEXT NOT NULL DEFAULT '',
	forwarded_for TEXT NOT NULL DEFAULT '',
	client_ip TEXT NOT NULL,
	network_scope TEXT NOT NULL DEFAULT 'Unknown',
	request_method TEXT NOT NULL DEFAULT '',
	request_uri TEXT NOT NULL DEFAULT '',
	request_path TEXT NOT NULL DEFAULT '',
	status INTEGER NOT NULL DEFAULT 0,
	status_family TEXT NOT NULL DEFAULT '0xx',
	request_time_ms INTEGER NOT NULL DEFAULT 0,
	body_bytes_sent INTEGER NOT NULL DEFAULT 0,
	bytes_sent INTEGER NOT NULL DEFAULT 0,
	api_key TEXT NOT NULL DEFAULT '(none)',
	referer TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	upstream_addr TEXT NOT NULL DEFAULT '',
	upstream_status TEXT NOT NULL DEFAULT '',
	upstream_response_time_ms INTEGER NOT NULL DEFAULT 0,
	flags TEXT NOT NULL DEFAULT '',
	UNIQUE(timestamp, client_ip, request_method, request_uri, status, api_key)
);
CREATE INDEX IF NOT EXISTS idx_access_events_timestamp ON access_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_access_events_client_ip ON access_events(client_ip);
`
