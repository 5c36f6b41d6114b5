package logwatch

import (
	"math"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// suspiciousPathHints are probe signatures matched (lower-cased) against
// the request URI
var suspiciousPathHints = []string{
	"../",
	"/etc/passwd",
	"/wp-admin",
	"/.git",
	"/phpmyadmin",
}

// verySlowThresholdMs flags requests slower than 15s end-to-end
const verySlowThresholdMs = 15000

// timestampLayouts are accepted for string-typed time fields, tried in order
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/Jan/2006:15:04:05 -0700",
}

// Normalize converts a raw field map into a canonical AccessEvent.
//
// The timestamp is the only mandatory field: when it is missing or
// unparseable the whole line is discarded (ok=false), never a partial
// event. Every other field degrades to a zero value.
func Normalize(fields RawFields) (*AccessEvent, bool) {
	ts, ok := timestampField(fields, "time")
	if !ok {
		return nil, false
	}

	remoteAddr := stringField(fields, "remote_addr")
	forwardedFor := stringField(fields, "forwarded_for")
	clientIP := resolveClientIP(remoteAddr, forwardedFor)

	uri := stringField(fields, "request_uri")
	status := int(intField(fields, "status"))
	apiKey := stringField(fields, "api_key")
	if apiKey == "" {
		apiKey = AnonymousAPIKey
	}
	requestTimeMs := durationMsField(fields, "request_time")

	event := &AccessEvent{
		Timestamp:              ts.UTC(),
		RemoteAddr:             remoteAddr,
		ForwardedFor:           forwardedFor,
		ClientIP:               clientIP,
		NetworkScope:           ClassifyScope(clientIP),
		RequestMethod:          stringField(fields, "request_method"),
		RequestURI:             uri,
		RequestPath:            stripQuery(uri),
		Status:                 status,
		StatusFamily:           StatusFamily(status),
		RequestTimeMs:          requestTimeMs,
		BodyBytesSent:          intField(fields, "body_bytes_sent"),
		BytesSent:              intField(fields, "bytes_sent"),
		APIKey:                 apiKey,
		Referer:                stringField(fields, "http_referer"),
		UserAgent:              stringField(fields, "user_agent"),
		UpstreamAddr:           stringField(fields, "upstream_addr"),
		UpstreamStatus:         stringField(fields, "upstream_status"),
		UpstreamResponseTimeMs: durationMsField(fields, "upstream_response_time"),
	}
	event.Flags = evaluateFlags(status, apiKey, uri, requestTimeMs)

	return event, true
}

// resolveClientIP picks the primary client identity: the first non-empty
// entry of the forwarded-for chain, then the network-layer address, then "-"
func resolveClientIP(remoteAddr, forwardedFor string) string {
	for _, part := range strings.Split(forwardedFor, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			return trimmed
		}
	}
	if remoteAddr != "" {
		return remoteAddr
	}
	return "-"
}

// ClassifyScope classifies an address's routability from its textual form
func ClassifyScope(clientIP string) NetworkScope {
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return ScopeUnknown
	}
	addr = addr.Unmap()
	switch {
	case addr.IsLoopback():
		return ScopeLoopback
	case addr.IsPrivate():
		return ScopePrivate
	case addr.IsMulticast(), addr.IsLinkLocalUnicast(), addr.IsUnspecified(),
		!addr.IsGlobalUnicast():
		return ScopeReserved
	default:
		return ScopePublic
	}
}

func evaluateFlags(status int, apiKey, uri string, requestTimeMs int64) []string {
	var flags []string

	switch {
	case status >= 500:
		flags = append(flags, FlagUpstreamError)
	case status >= 400:
		flags = append(flags, FlagClientError)
	}

	if apiKey == AnonymousAPIKey {
		flags = append(flags, FlagNoAPIKey)
	}

	lowered := strings.ToLower(uri)
	for _, hint := range suspiciousPathHints {
		if strings.Contains(lowered, hint) {
			flags = append(flags, FlagSuspiciousPath)
			break
		}
	}

	if requestTimeMs > verySlowThresholdMs {
		flags = append(flags, FlagVerySlow)
	}

	return flags
}

func stripQuery(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i]
	}
	return uri
}

func stringField(fields RawFields, key string) string {
	value, ok := fields[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// JSON numbers land here; upstream_status is numeric in some
		// gateway configurations.
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// intField coerces a numeric field to int64, tolerating JSON numbers,
// numeric strings and native integer types. Anything else is 0.
func intField(fields RawFields, key string) int64 {
	value, ok := fields[key]
	if !ok || value == nil {
		return 0
	}
	switch v := value.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case uint64:
		if v > math.MaxInt64 {
			return 0
		}
		return int64(v)
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}

// durationMsField coerces a request-time field expressed in seconds
// (nginx convention: "0.005") to whole milliseconds
func durationMsField(fields RawFields, key string) int64 {
	value, ok := fields[key]
	if !ok || value == nil {
		return 0
	}
	var seconds float64
	switch v := value.(type) {
	case float64:
		seconds = v
	case int:
		seconds = float64(v)
	case int64:
		seconds = float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		seconds = f
	default:
		return 0
	}
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}

func timestampField(fields RawFields, key string) (time.Time, bool) {
	value, ok := fields[key]
	if !ok || value == nil {
		return time.Time{}, false
	}
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v, true
	case string:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
