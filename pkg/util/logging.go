package util

import "log/slog"

// ParseLogLevel maps a configured log level name to a slog level.
// Unknown names fall back to info.
func ParseLogLevel(name string) slog.Level {
	switch name {
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
