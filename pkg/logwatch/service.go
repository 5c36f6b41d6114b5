package logwatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatewaylabs/logwatch/pkg/sqlite"
)

// Default paging bounds for the consumer surface
const (
	DefaultPageSize = 500
	MaxPageSize     = 5000
)

// Service is the consumer surface of the monitor: summaries and event
// listings over the store, with the exclusion filter applied. Every read
// triggers an ingestion cycle first, so results are at most one call
// latency stale; ingestion failures degrade reads to the last committed
// data instead of failing them.
type Service struct {
	coordinator *Coordinator
	store       *EventStore
	db          *sqlite.Client

	defaultPageSize int
	maxPageSize     int
	ignoredClients  []string
	summaryConfig   SummaryConfig
	metrics         *Metrics
	logger          *slog.Logger
}

// Config holds service configuration
//
//nolint:govet // Field alignment is less important than readability for config structs
type Config struct {
	Logger *slog.Logger

	// LogPath is the gateway access log to tail
	LogPath string
	// DatabasePath is the sqlite event store file
	DatabasePath string
	// CheckpointPath is the ingestion checkpoint state file
	CheckpointPath string

	// MaxLineBytes caps a single log line
	MaxLineBytes int
	// MaxScanRows bounds any single list/count query
	MaxScanRows int
	// DefaultPageSize applies when a caller passes no limit
	DefaultPageSize int
	// MaxPageSize clamps caller-supplied limits
	MaxPageSize int

	// AlertWindow and the three thresholds parameterize summary alerts
	AlertWindow          time.Duration
	ClientErrorThreshold int
	RequestRateThreshold int
	MissingKeyThreshold  int

	// Retention is the maximum stored event age; 0 disables purging
	Retention time.Duration

	// IgnoredClients are removed from all reporting but still counted
	// separately as ignored
	IgnoredClients []string

	// Checkpoints is an optional checkpoint store (if nil, a file-backed
	// one at CheckpointPath is created)
	Checkpoints CheckpointStore
	// Metrics is optional
	Metrics *Metrics
	// DatabaseBusyTimeout bounds waits on a locked database
	DatabaseBusyTimeout time.Duration
}

// EventsResult is the paged event listing the consumer API returns
type EventsResult struct {
	Events []AccessEvent `json:"events"`
	// Total counts matching events after the exclusion filter
	Total int64 `json:"total"`
	// TotalIncludingIgnored counts matching events before the filter
	TotalIncludingIgnored int64 `json:"total_including_ignored"`
	// IgnoredCount is how many matching events the filter removed
	IgnoredCount int64 `json:"ignored_count"`
	// Truncated reports that Events holds fewer rows than Total
	Truncated bool `json:"truncated"`
}

// NewService opens the store and assembles the monitor
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlite.NewClient(ctx, sqlite.Config{
		Path:        cfg.DatabasePath,
		BusyTimeout: cfg.DatabaseBusyTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open event database: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ensure event schema: %w", err)
	}

	store := NewEventStore(db, cfg.MaxScanRows)

	checkpoints := cfg.Checkpoints
	if checkpoints == nil {
		checkpoints = NewFileCheckpointStore(cfg.CheckpointPath)
	}

	coordinator := NewCoordinator(CoordinatorConfig{
		LogPath:      cfg.LogPath,
		Store:        store,
		Checkpoints:  checkpoints,
		Retention:    cfg.Retention,
		MaxLineBytes: cfg.MaxLineBytes,
		Metrics:      cfg.Metrics,
		Logger:       logger,
	})

	defaultPageSize := cfg.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	maxPageSize := cfg.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}

	return &Service{
		coordinator:     coordinator,
		store:           store,
		db:              db,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		ignoredClients:  cfg.IgnoredClients,
		summaryConfig: SummaryConfig{
			AlertWindow:          cfg.AlertWindow,
			ClientErrorThreshold: cfg.ClientErrorThreshold,
			RequestRateThreshold: cfg.RequestRateThreshold,
			MissingKeyThreshold:  cfg.MissingKeyThreshold,
		},
		metrics: cfg.Metrics,
		logger:  logger,
	}, nil
}

// Close releases the store
func (s *Service) Close() error {
	return s.db.Close()
}

// Sync runs one ingestion cycle (exposed for scheduled runners)
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	return s.coordinator.Sync(ctx)
}

// GetSummary ingests pending log lines, then summarizes the most recent
// stored events (up to limit, after the exclusion filter)
func (s *Service) GetSummary(ctx context.Context, limit int) (Summary, error) {
	s.syncBestEffort(ctx)
	if s.metrics != nil {
		s.metrics.Query.Requests.WithLabelValues("summary").Inc()
	}

	events, err := s.store.Query(ctx, QueryOptions{
		Limit:          s.resolveLimit(limit),
		ExcludeClients: s.ignoredClients,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read events for summary: %w", err)
	}

	return Summarize(events, s.summaryConfig), nil
}

// GetEvents ingests pending log lines, then returns a paged event
// listing. windowMinutes, when positive, restricts the listing to the
// trailing window anchored at the newest stored event.
func (s *Service) GetEvents(ctx context.Context, limit, windowMinutes int) (EventsResult, error) {
	s.syncBestEffort(ctx)
	if s.metrics != nil {
		s.metrics.Query.Requests.WithLabelValues("events").Inc()
	}

	var since time.Time
	if windowMinutes > 0 {
		latest, err := s.store.LatestTimestamp(ctx)
		if err != nil {
			return EventsResult{}, fmt.Errorf("failed to anchor event window: %w", err)
		}
		if !latest.IsZero() {
			since = latest.Add(-time.Duration(windowMinutes) * time.Minute)
		}
	}

	total, err := s.store.Count(ctx, QueryOptions{
		Since:          since,
		ExcludeClients: s.ignoredClients,
	})
	if err != nil {
		return EventsResult{}, fmt.Errorf("failed to count events: %w", err)
	}
	totalIncludingIgnored, err := s.store.Count(ctx, QueryOptions{Since: since})
	if err != nil {
		return EventsResult{}, fmt.Errorf("failed to count unfiltered events: %w", err)
	}

	events, err := s.store.Query(ctx, QueryOptions{
		Since:          since,
		Limit:          s.resolveLimit(limit),
		ExcludeClients: s.ignoredClients,
	})
	if err != nil {
		return EventsResult{}, fmt.Errorf("failed to read events: %w", err)
	}

	return EventsResult{
		Events:                events,
		Total:                 total,
		TotalIncludingIgnored: totalIncludingIgnored,
		IgnoredCount:          totalIncludingIgnored - total,
		Truncated:             total > int64(len(events)),
	}, nil
}

// syncBestEffort runs an ingestion cycle before a read. Failures leave
// the store at the last committed state; the read proceeds with data as
// of the last successful ingestion.
func (s *Service) syncBestEffort(ctx context.Context) {
	if _, err := s.coordinator.Sync(ctx); err != nil {
		s.logger.Warn("ingestion failed, serving last committed data", "error", err)
	}
}

func (s *Service) resolveLimit(limit int) int {
	if limit <= 0 {
		return s.defaultPageSize
	}
	if limit > s.maxPageSize {
		return s.maxPageSize
	}
	return limit
}
