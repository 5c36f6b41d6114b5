package logwatch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultMaxLineBytes bounds a single log line; longer lines are skipped
const DefaultMaxLineBytes = 1 << 20

// Coordinator owns the only write path to the event store. It tails the
// access log from the persisted checkpoint, normalizes new lines and
// commits them together with the retention purge, then advances the
// checkpoint. A mutex serializes cycles so at most one ingestion runs
// at a time; concurrent callers block and then observe the data the
// previous cycle committed.
type Coordinator struct {
	mu sync.Mutex

	logPath      string
	store        *EventStore
	checkpoints  CheckpointStore
	retention    time.Duration
	maxLineBytes int
	metrics      *Metrics
	logger       *slog.Logger
}

// CoordinatorConfig holds coordinator configuration
type CoordinatorConfig struct {
	// LogPath is the access log file to tail
	LogPath string
	// Store receives normalized events
	Store *EventStore
	// Checkpoints persists ingestion progress
	Checkpoints CheckpointStore
	// Retention is the maximum event age; 0 disables purging
	Retention time.Duration
	// MaxLineBytes caps a single line (default DefaultMaxLineBytes)
	MaxLineBytes int
	// Metrics is optional
	Metrics *Metrics
	Logger  *slog.Logger
}

// SyncResult reports what one ingestion cycle did
type SyncResult struct {
	LinesRead         int64
	LinesSkipped      int64
	EventsInserted    int64
	DuplicatesIgnored int64
	EventsPurged      int64
	RotationDetected  bool
	Checkpoint        Checkpoint
}

// NewCoordinator creates an ingestion coordinator
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	maxLineBytes := cfg.MaxLineBytes
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		logPath:      cfg.LogPath,
		store:        cfg.Store,
		checkpoints:  cfg.Checkpoints,
		retention:    cfg.Retention,
		maxLineBytes: maxLineBytes,
		metrics:      cfg.Metrics,
		logger:       logger,
	}
}

// Sync runs one ingestion cycle. It is idempotent and safe to call from
// concurrent readers.
//
// A missing log file is a no-op, not an error. Any I/O or storage error
// aborts the cycle without advancing the checkpoint, so the next call
// retries from the old position; the store's uniqueness constraint makes
// the retry a safe re-insert.
func (c *Coordinator) Sync(ctx context.Context) (SyncResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	result, err := c.runCycle(ctx)

	if c.metrics != nil {
		m := &c.metrics.Ingest
		m.SyncDuration.Observe(time.Since(start).Seconds())
		m.LinesRead.WithLabelValues("parsed").Add(float64(result.LinesRead - result.LinesSkipped))
		m.LinesRead.WithLabelValues("skipped").Add(float64(result.LinesSkipped))
		m.EventsInserted.Add(float64(result.EventsInserted))
		m.DuplicatesIgnored.Add(float64(result.DuplicatesIgnored))
		m.EventsPurged.Add(float64(result.EventsPurged))
		if result.RotationDetected {
			m.RotationsDetected.Inc()
		}
		if err != nil {
			m.SyncFailures.Inc()
		}
	}

	return result, err
}

func (c *Coordinator) runCycle(ctx context.Context) (SyncResult, error) {
	var result SyncResult

	var st unix.Stat_t
	if err := unix.Stat(c.logPath, &st); err != nil {
		if errors.Is(err, unix.ENOENT) {
			c.logger.Debug("access log absent, nothing to ingest", "path", c.logPath)
			return result, nil
		}
		return result, fmt.Errorf("failed to stat access log %s: %w", c.logPath, err)
	}

	cp, err := c.checkpoints.Load()
	if err != nil {
		return result, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	position := cp.Position
	if (cp.Inode != 0 && cp.Inode != st.Ino) || st.Size < cp.Position {
		// Rotated or truncated: the file is new, read it from the start.
		c.logger.Info("access log rotated, resetting position",
			"path", c.logPath,
			"storedInode", cp.Inode,
			"currentInode", st.Ino,
			"storedPosition", cp.Position,
			"currentSize", st.Size)
		position = 0
		result.RotationDetected = true
	}

	if !result.RotationDetected && cp.Inode == st.Ino && position >= st.Size {
		// Nothing appended since the last cycle.
		result.Checkpoint = cp
		return result, nil
	}

	events, newPosition, err := c.readNewLines(ctx, position, &result)
	if err != nil {
		return result, err
	}

	if len(events) > 0 {
		commit, err := c.store.CommitBatch(ctx, events, c.retention)
		if err != nil {
			return result, fmt.Errorf("failed to commit ingestion batch: %w", err)
		}
		result.EventsInserted = commit.Inserted
		result.DuplicatesIgnored = int64(len(events)) - commit.Inserted
		result.EventsPurged = commit.Purged
	}

	// The checkpoint advances only after the batch is durable. Noise-only
	// reads still advance it so garbage is not re-scanned every cycle.
	newCheckpoint := Checkpoint{Position: newPosition, Inode: st.Ino}
	if err := c.checkpoints.Save(newCheckpoint); err != nil {
		return result, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	result.Checkpoint = newCheckpoint

	c.logger.Debug("ingestion cycle completed",
		"linesRead", result.LinesRead,
		"linesSkipped", result.LinesSkipped,
		"eventsInserted", result.EventsInserted,
		"duplicatesIgnored", result.DuplicatesIgnored,
		"eventsPurged", result.EventsPurged,
		"position", newPosition)

	return result, nil
}

// readNewLines reads complete lines from the stored position to EOF and
// normalizes them. An unterminated tail is left for the next cycle so a
// line being written concurrently is never parsed half-done.
func (c *Coordinator) readNewLines(ctx context.Context, position int64,
	result *SyncResult) ([]AccessEvent, int64, error) {
	f, err := os.Open(c.logPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open access log %s: %w", c.logPath, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(position, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("failed to seek access log to %d: %w", position, err)
	}

	reader := bufio.NewReaderSize(f, 64*1024)
	var events []AccessEvent

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("failed to read access log: %w", err)
		}

		position += int64(len(line))
		trimmed := strings.TrimRight(line, "\n")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}

		result.LinesRead++
		if len(trimmed) > c.maxLineBytes {
			result.LinesSkipped++
			continue
		}

		fields, ok := ParseLine(trimmed)
		if !ok {
			result.LinesSkipped++
			continue
		}
		event, ok := Normalize(fields)
		if !ok {
			result.LinesSkipped++
			continue
		}
		events = append(events, *event)
	}

	return events, position, nil
}
