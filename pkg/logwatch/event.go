package logwatch

import (
	"fmt"
	"strings"
	"time"
)

// NetworkScope is the coarse routability classification of a client address
type NetworkScope string

// Network scope values
const (
	ScopeLoopback NetworkScope = "Loopback"
	ScopePrivate  NetworkScope = "Private"
	ScopeReserved NetworkScope = "Reserved"
	ScopePublic   NetworkScope = "Public"
	ScopeUnknown  NetworkScope = "Unknown"
)

// Suspicious activity flags
const (
	FlagUpstreamError  = "upstream_error"
	FlagClientError    = "client_error"
	FlagNoAPIKey       = "no_api_key"
	FlagSuspiciousPath = "suspicious_path"
	FlagVerySlow       = "very_slow"
)

// AnonymousAPIKey is the sentinel for requests that carried no API key
const AnonymousAPIKey = "(none)"

// AccessEvent is one normalized inbound HTTP request observed in the
// gateway access log. Events are immutable after insertion.
type AccessEvent struct {
	Timestamp    time.Time
	RemoteAddr   string
	ForwardedFor string

	// ClientIP is the resolved primary client identity: the first entry
	// of ForwardedFor when present, RemoteAddr otherwise, "-" as a last
	// resort. Never empty.
	ClientIP     string
	NetworkScope NetworkScope

	RequestMethod string
	RequestURI    string
	RequestPath   string

	Status       int
	StatusFamily string

	RequestTimeMs int64
	BodyBytesSent int64
	BytesSent     int64

	APIKey    string
	Referer   string
	UserAgent string

	UpstreamAddr           string
	UpstreamStatus         string
	UpstreamResponseTimeMs int64

	Flags []string
}

// IsFlagged reports whether any suspicious activity flag is set
func (e *AccessEvent) IsFlagged() bool {
	return len(e.Flags) > 0
}

// HasFlag reports whether a specific flag is set
func (e *AccessEvent) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// FlagString renders the flag set for storage (comma-joined, stable order)
func (e *AccessEvent) FlagString() string {
	return strings.Join(e.Flags, ",")
}

// ParseFlagString is the inverse of FlagString
func ParseFlagString(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// StatusFamily buckets an HTTP status code to its leading digit ("2xx", "4xx", ...)
func StatusFamily(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
