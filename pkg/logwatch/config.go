package logwatch

import "fmt"

// ValidateConfig performs additional validation beyond required field checks
func ValidateConfig() error {
	logLevel := ConfigSpec.GetString("log-level")
	validLevels := map[string]bool{"error": true, "warn": true, "info": true, "debug": true}
	if !validLevels[logLevel] {
		return fmt.Errorf("invalid log-level: %s (must be error|warn|info|debug)", logLevel)
	}

	if path := ConfigSpec.GetString("access-log.path"); path == "" {
		return fmt.Errorf("access-log.path must not be empty")
	}
	if path := ConfigSpec.GetString("database.path"); path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if path := ConfigSpec.GetString("checkpoint.path"); path == "" {
		return fmt.Errorf("checkpoint.path must not be empty")
	}

	maxLineBytes := ConfigSpec.GetInt("ingest.max-line-bytes")
	if maxLineBytes <= 0 {
		return fmt.Errorf("ingest.max-line-bytes must be positive, got %d", maxLineBytes)
	}

	maxScanRows := ConfigSpec.GetInt("query.max-scan-rows")
	if maxScanRows <= 0 {
		return fmt.Errorf("query.max-scan-rows must be positive, got %d", maxScanRows)
	}

	defaultPageSize := ConfigSpec.GetInt("query.default-page-size")
	maxPageSize := ConfigSpec.GetInt("query.max-page-size")
	if defaultPageSize <= 0 {
		return fmt.Errorf("query.default-page-size must be positive, got %d", defaultPageSize)
	}
	if maxPageSize < defaultPageSize {
		return fmt.Errorf("query.max-page-size (%d) must not be below query.default-page-size (%d)",
			maxPageSize, defaultPageSize)
	}

	windowMinutes := ConfigSpec.GetInt("alerts.window-minutes")
	if windowMinutes <= 0 {
		return fmt.Errorf("alerts.window-minutes must be positive, got %d", windowMinutes)
	}

	retentionDays := ConfigSpec.GetInt("retention.max-age-days")
	if retentionDays < 0 {
		return fmt.Errorf("retention.max-age-days must not be negative, got %d", retentionDays)
	}

	syncInterval := ConfigSpec.GetInt("sync.interval-seconds")
	if syncInterval <= 0 {
		return fmt.Errorf("sync.interval-seconds must be positive, got %d", syncInterval)
	}

	return nil
}
