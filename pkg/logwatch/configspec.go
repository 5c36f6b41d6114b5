package logwatch

import "github.com/gatewaylabs/logwatch/pkg/util"

// ConfigSpec defines all configuration items for logwatch
//
//nolint:gochecknoglobals // global config spec is intentional
var ConfigSpec = util.ConfigSpec{
	// Access log input
	"access-log.path": util.ConfigVarSpec{
		Help:         "Path to the gateway access log file",
		DefaultValue: "/var/log/gateway/access.log",
		EnvVar:       "LOGWATCH_ACCESS_LOG_PATH",
	},
	"ingest.max-line-bytes": util.ConfigVarSpec{
		Help:         "Maximum length of a single log line in bytes",
		DefaultValue: 1048576,
		EnvVar:       "LOGWATCH_INGEST_MAX_LINE_BYTES",
	},

	// Storage
	"database.path": util.ConfigVarSpec{
		Help:         "Path to the sqlite event database",
		DefaultValue: "logwatch.db",
		EnvVar:       "LOGWATCH_DATABASE_PATH",
	},
	"database.busy-timeout-seconds": util.ConfigVarSpec{
		Help:         "Maximum wait on a locked database in seconds",
		DefaultValue: 5,
		EnvVar:       "LOGWATCH_DATABASE_BUSY_TIMEOUT_SECONDS",
	},
	"checkpoint.path": util.ConfigVarSpec{
		Help:         "Path to the ingestion checkpoint state file",
		DefaultValue: "logwatch.checkpoint.json",
		EnvVar:       "LOGWATCH_CHECKPOINT_PATH",
	},
	"retention.max-age-days": util.ConfigVarSpec{
		Help:         "Maximum stored event age in days (0 disables purging)",
		DefaultValue: 30,
		EnvVar:       "LOGWATCH_RETENTION_MAX_AGE_DAYS",
	},

	// Query bounds
	"query.max-scan-rows": util.ConfigVarSpec{
		Help:         "Maximum rows a single list/count query may scan",
		DefaultValue: 50000,
		EnvVar:       "LOGWATCH_QUERY_MAX_SCAN_ROWS",
	},
	"query.default-page-size": util.ConfigVarSpec{
		Help:         "Page size used when a caller passes no limit",
		DefaultValue: 500,
		EnvVar:       "LOGWATCH_QUERY_DEFAULT_PAGE_SIZE",
	},
	"query.max-page-size": util.ConfigVarSpec{
		Help:         "Upper clamp for caller-supplied page sizes",
		DefaultValue: 5000,
		EnvVar:       "LOGWATCH_QUERY_MAX_PAGE_SIZE",
	},

	// Alerts
	"alerts.window-minutes": util.ConfigVarSpec{
		Help:         "Rolling alert window in minutes, anchored to the newest event",
		DefaultValue: 15,
		EnvVar:       "LOGWATCH_ALERTS_WINDOW_MINUTES",
	},
	"alerts.client-error-threshold": util.ConfigVarSpec{
		Help:         "Per-client 4xx count in the window that triggers an alert",
		DefaultValue: 20,
		EnvVar:       "LOGWATCH_ALERTS_CLIENT_ERROR_THRESHOLD",
	},
	"alerts.request-rate-threshold": util.ConfigVarSpec{
		Help:         "Per-client request count in the window that triggers an alert",
		DefaultValue: 300,
		EnvVar:       "LOGWATCH_ALERTS_REQUEST_RATE_THRESHOLD",
	},
	"alerts.missing-key-threshold": util.ConfigVarSpec{
		Help:         "Keyless request count in the window that triggers an alert",
		DefaultValue: 50,
		EnvVar:       "LOGWATCH_ALERTS_MISSING_KEY_THRESHOLD",
	},

	// Reporting
	"clients.ignore": util.ConfigVarSpec{
		Help:         "Comma/whitespace separated client identities excluded from reporting",
		DefaultValue: "",
		EnvVar:       "LOGWATCH_CLIENTS_IGNORE",
	},

	// Runner
	"sync.interval-seconds": util.ConfigVarSpec{
		Help:         "Interval between scheduled ingestion cycles in seconds",
		DefaultValue: 30,
		EnvVar:       "LOGWATCH_SYNC_INTERVAL_SECONDS",
	},
	"shutdown-timeout-seconds": util.ConfigVarSpec{
		Help:         "Maximum time to wait for graceful shutdown in seconds",
		DefaultValue: 10,
		EnvVar:       "LOGWATCH_SHUTDOWN_TIMEOUT_SECONDS",
	},

	// Metrics server
	"metrics-server.enabled": util.ConfigVarSpec{
		Help:         "Expose prometheus metrics over HTTP",
		DefaultValue: false,
		EnvVar:       "LOGWATCH_METRICS_SERVER_ENABLED",
	},
	"metrics-server.listen-address": util.ConfigVarSpec{
		Help:         "Metrics server listen address",
		DefaultValue: "127.0.0.1",
		EnvVar:       "LOGWATCH_METRICS_SERVER_LISTEN_ADDRESS",
	},
	"metrics-server.listen-port": util.ConfigVarSpec{
		Help:         "Metrics server listen port",
		DefaultValue: 9321,
		EnvVar:       "LOGWATCH_METRICS_SERVER_LISTEN_PORT",
	},

	// General
	"log-level": util.ConfigVarSpec{
		Help:         "Log level (error|warn|info|debug)",
		DefaultValue: "info",
		EnvVar:       "LOGWATCH_LOG_LEVEL",
	},
}
