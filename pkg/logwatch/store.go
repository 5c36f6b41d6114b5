package logwatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gatewaylabs/logwatch/pkg/sqlite"
)

// storeTimeLayout is the canonical timestamp encoding in the database.
// Fixed-width fractional seconds keep lexicographic order identical to
// chronological order, so the timestamp index serves range scans directly.
const storeTimeLayout = "2006-01-02 15:04:05.000000000"

// DefaultMaxScanRows bounds how many rows a single list/count query may touch
const DefaultMaxScanRows = 50000

// EventStore is the durable, idempotent store of access events.
// The dedupe tuple (timestamp, client_ip, request_method, request_uri,
// status, api_key) is enforced by the schema, not by callers.
type EventStore struct {
	client      *sqlite.Client
	maxScanRows int
}

// QueryOptions filter and bound event reads
type QueryOptions struct {
	// Since limits results to events at or after this instant (zero = unbounded)
	Since time.Time
	// Limit caps returned rows; non-positive or out-of-range values are
	// clamped to the store's max scan bound
	Limit int
	// ExcludeClients removes the listed client identities from results
	ExcludeClients []string
}

// CommitResult reports what a batch commit did
type CommitResult struct {
	Inserted int64
	Purged   int64
}

// NewEventStore creates an event store over an open sqlite client
func NewEventStore(client *sqlite.Client, maxScanRows int) *EventStore {
	if maxScanRows <= 0 {
		maxScanRows = DefaultMaxScanRows
	}
	return &EventStore{client: client, maxScanRows: maxScanRows}
}

const insertEventStmt = `
INSERT OR IGNORE INTO access_events (
	timestamp, remote_addr, forwarded_for, client_ip, network_scope,
	request_method, request_uri, request_path, status, status_family,
	request_time_ms, body_bytes_sent, bytes_sent, api_key, referer,
	user_agent, upstream_addr, upstream_status, upstream_response_time_ms,
	flags
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CommitBatch inserts a batch of events and applies the retention purge
// in one transaction. Duplicate tuples are ignored (idempotent re-ingest).
//
// The purge cutoff is anchored to the newest event in the store after the
// insert, not wall clock, so replaying historical logs is reproducible.
// A zero retention disables purging.
func (s *EventStore) CommitBatch(ctx context.Context, events []AccessEvent,
	retention time.Duration) (CommitResult, error) {
	var result CommitResult
	if len(events) == 0 && retention <= 0 {
		return result, nil
	}

	tx, err := s.client.BeginTx(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(events) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertEventStmt)
		if err != nil {
			return result, fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := range events {
			e := &events[i]
			res, err := stmt.ExecContext(ctx,
				e.Timestamp.UTC().Format(storeTimeLayout),
				e.RemoteAddr, e.ForwardedFor, e.ClientIP, string(e.NetworkScope),
				e.RequestMethod, e.RequestURI, e.RequestPath,
				e.Status, e.StatusFamily,
				e.RequestTimeMs, e.BodyBytesSent, e.BytesSent,
				e.APIKey, e.Referer, e.UserAgent,
				e.UpstreamAddr, e.UpstreamStatus, e.UpstreamResponseTimeMs,
				e.FlagString(),
			)
			if err != nil {
				return CommitResult{}, fmt.Errorf("failed to insert event: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return CommitResult{}, fmt.Errorf("failed to read insert result: %w", err)
			}
			result.Inserted += n
		}
	}

	if retention > 0 {
		purged, err := purgeExpired(ctx, tx, retention)
		if err != nil {
			return CommitResult{}, err
		}
		result.Purged = purged
	}

	if err := tx.Commit(); err != nil {
		return CommitResult{}, fmt.Errorf("failed to commit batch: %w", err)
	}
	return result, nil
}

func purgeExpired(ctx context.Context, tx *sql.Tx, retention time.Duration) (int64, error) {
	var latestRaw sql.NullString
	err := tx.QueryRowContext(ctx,
		"SELECT MAX(timestamp) FROM access_events").Scan(&latestRaw)
	if err != nil {
		return 0, fmt.Errorf("failed to find latest event: %w", err)
	}
	if !latestRaw.Valid {
		return 0, nil
	}

	latest, err := time.ParseInLocation(storeTimeLayout, latestRaw.String, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("failed to parse latest timestamp %q: %w", latestRaw.String, err)
	}

	cutoff := latest.Add(-retention).Format(storeTimeLayout)
	res, err := tx.ExecContext(ctx,
		"DELETE FROM access_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired events: %w", err)
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge result: %w", err)
	}
	return purged, nil
}

// Query returns stored events newest-first
func (s *EventStore) Query(ctx context.Context, opts QueryOptions) ([]AccessEvent, error) {
	where, args := buildFilter(opts)

	limit := opts.Limit
	if limit <= 0 || limit > s.maxScanRows {
		limit = s.maxScanRows
	}
	args = append(args, limit)

	query := `SELECT timestamp, remote_addr, forwarded_for, client_ip, network_scope,
	request_method, request_uri, request_path, status, status_family,
	request_time_ms, body_bytes_sent, bytes_sent, api_key, referer,
	user_agent, upstream_addr, upstream_status, upstream_response_time_ms, flags
	FROM access_events` + where + " ORDER BY timestamp DESC, id DESC LIMIT ?"

	rows, err := s.client.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []AccessEvent
	for rows.Next() {
		var e AccessEvent
		var tsRaw, scope, flags string
		err := rows.Scan(&tsRaw, &e.RemoteAddr, &e.ForwardedFor, &e.ClientIP, &scope,
			&e.RequestMethod, &e.RequestURI, &e.RequestPath, &e.Status, &e.StatusFamily,
			&e.RequestTimeMs, &e.BodyBytesSent, &e.BytesSent, &e.APIKey, &e.Referer,
			&e.UserAgent, &e.UpstreamAddr, &e.UpstreamStatus, &e.UpstreamResponseTimeMs,
			&flags)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp, err = time.ParseInLocation(storeTimeLayout, tsRaw, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored timestamp %q: %w", tsRaw, err)
		}
		e.NetworkScope = NetworkScope(scope)
		e.Flags = ParseFlagString(flags)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// Count counts stored events under the same filter shape as Query.
// The count is clamped by the max scan bound so a single call cannot
// force an unbounded table scan.
func (s *EventStore) Count(ctx context.Context, opts QueryOptions) (int64, error) {
	where, args := buildFilter(opts)
	args = append(args, s.maxScanRows)

	query := "SELECT COUNT(*) FROM (SELECT 1 FROM access_events" + where + " LIMIT ?)"

	var count int64
	if err := s.client.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// LatestTimestamp returns the newest stored event time, or a zero time
// for an empty store
func (s *EventStore) LatestTimestamp(ctx context.Context) (time.Time, error) {
	var raw sql.NullString
	err := s.client.QueryRow(ctx, "SELECT MAX(timestamp) FROM access_events").Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("failed to find latest event: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, nil
	}
	ts, err := time.ParseInLocation(storeTimeLayout, raw.String, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", raw.String, err)
	}
	return ts, nil
}

func buildFilter(opts QueryOptions) (string, []any) {
	var clauses []string
	var args []any

	if !opts.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, opts.Since.UTC().Format(storeTimeLayout))
	}
	if len(opts.ExcludeClients) > 0 {
		placeholders := strings.Repeat("?, ", len(opts.ExcludeClients))
		clauses = append(clauses,
			"client_ip NOT IN ("+placeholders[:len(placeholders)-2]+")")
		for _, client := range opts.ExcludeClients {
			args = append(args, client)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
