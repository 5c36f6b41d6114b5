package logwatch

import (
	"strings"

	"github.com/Songmu/axslogparser"
	"github.com/goccy/go-json"
)

// LineFormat identifies the dialect of a single access-log line
type LineFormat int

// Line formats
const (
	FormatUnknown LineFormat = iota
	// FormatJSON is a single-line JSON object with the gateway's
	// structured access-log fields
	FormatJSON
	// FormatCombined is the traditional Apache/nginx combined (or common)
	// log format
	FormatCombined
)

func (f LineFormat) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCombined:
		return "combined"
	default:
		return "unknown"
	}
}

// RawFields is the untyped field map produced by the line parser.
// Field names follow the JSON dialect of the log; combined-format
// lines are mapped onto the same names.
type RawFields map[string]any

// DetectFormat sniffs the dialect of a line. Blank lines are unknown;
// a leading '{' after trimming selects the JSON dialect, anything else
// is attempted as combined log format.
func DetectFormat(line string) LineFormat {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return FormatUnknown
	}
	if trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatCombined
}

// ParseLine parses one raw log line into a field map.
//
// Returns ok=false for anything that is not a well-formed log line:
// blank lines, undecodable JSON, combined-format lines that do not match.
// Malformed lines never produce partial field maps.
func ParseLine(line string) (RawFields, bool) {
	switch DetectFormat(line) {
	case FormatJSON:
		return parseJSONLine(line)
	case FormatCombined:
		return parseCombinedLine(line)
	default:
		return nil, false
	}
}

func parseJSONLine(line string) (RawFields, bool) {
	var fields RawFields
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func parseCombinedLine(line string) (RawFields, bool) {
	parsed, err := (&axslogparser.Apache{}).Parse(line)
	if err != nil {
		return nil, false
	}

	fields := RawFields{
		"remote_addr":     parsed.Host,
		"time":            parsed.Time,
		"request_method":  parsed.Method,
		"request_uri":     parsed.RequestURI,
		"status":          parsed.Status,
		"body_bytes_sent": parsed.Size,
		"http_referer":    parsed.Referer,
		"user_agent":      parsed.UserAgent,
	}
	if parsed.ForwardedFor != "" {
		fields["forwarded_for"] = parsed.ForwardedFor
	}
	return fields, true
}
