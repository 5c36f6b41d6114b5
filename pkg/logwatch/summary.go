package logwatch

import (
	"fmt"
	"sort"
	"time"
)

// topEntries is how many clients/keys/paths/agents a summary ranks
const topEntries = 5

// Alert severities
const (
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Alert types
const (
	AlertExcessiveClientErrors = "excessive_client_errors"
	AlertHighRequestRate       = "high_request_rate"
	AlertMissingAPIKeys        = "missing_api_keys"
)

// SummaryConfig holds the rolling-window alert rules
type SummaryConfig struct {
	// AlertWindow is the trailing span, anchored to the newest summarized
	// entry (not wall clock, so replayed history is reproducible)
	AlertWindow time.Duration
	// ClientErrorThreshold triggers a per-client alert on 4xx-flagged
	// requests within the window; 0 disables
	ClientErrorThreshold int
	// RequestRateThreshold triggers a per-client alert on total requests
	// within the window; 0 disables
	RequestRateThreshold int
	// MissingKeyThreshold triggers one aggregate alert on keyless
	// requests within the window; 0 disables
	MissingKeyThreshold int
}

// Totals are the headline counters of a summary
type Totals struct {
	Requests         int `json:"requests"`
	UniqueClients    int `json:"unique_clients"`
	UniqueAPIKeys    int `json:"unique_api_keys"`
	FlaggedRequests  int `json:"flagged_requests"`
	UniqueUserAgents int `json:"unique_user_agents"`
}

// ClientActivity ranks one client by request volume
type ClientActivity struct {
	Client    string       `json:"client"`
	Scope     NetworkScope `json:"scope"`
	Count     int          `json:"count"`
	FirstSeen time.Time    `json:"first_seen"`
	LastSeen  time.Time    `json:"last_seen"`
}

// KeyActivity ranks one API key by request volume
type KeyActivity struct {
	Key       string `json:"key"`
	Anonymous bool   `json:"anonymous"`
	Count     int    `json:"count"`
}

// PathActivity ranks one request path by request volume
type PathActivity struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// AgentActivity ranks one user agent by request volume
type AgentActivity struct {
	Agent string `json:"agent"`
	Count int    `json:"count"`
}

// MinuteCount is one bucket of the per-minute request histogram
type MinuteCount struct {
	Minute time.Time `json:"minute"`
	Count  int       `json:"count"`
}

// Alert is one triggered alert rule
type Alert struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	// Client is set for per-client alerts, empty for aggregate ones
	Client    string `json:"client,omitempty"`
	Count     int    `json:"count"`
	Threshold int    `json:"threshold"`
	Message   string `json:"message"`
}

// TimeWindow describes the span the summarized entries cover
type TimeWindow struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Minutes int       `json:"minutes"`
}

// Summary is the aggregate view over a set of access events
type Summary struct {
	Totals            Totals           `json:"totals"`
	StatusFamilies    map[string]int   `json:"status_families"`
	TopClients        []ClientActivity `json:"top_clients"`
	TopAPIKeys        []KeyActivity    `json:"top_api_keys"`
	TopPaths          []PathActivity   `json:"top_paths"`
	TopUserAgents     []AgentActivity  `json:"top_user_agents"`
	RequestsPerMinute []MinuteCount    `json:"requests_per_minute"`
	Alerts            []Alert          `json:"alerts"`
	TimeWindow        TimeWindow       `json:"time_window"`
}

// Summarize aggregates a set of already-filtered entries. Entry order
// does not matter. An empty set yields an all-zero summary with empty
// collections.
func Summarize(entries []AccessEvent, cfg SummaryConfig) Summary {
	summary := Summary{
		StatusFamilies:    map[string]int{},
		TopClients:        []ClientActivity{},
		TopAPIKeys:        []KeyActivity{},
		TopPaths:          []PathActivity{},
		TopUserAgents:     []AgentActivity{},
		RequestsPerMinute: []MinuteCount{},
		Alerts:            []Alert{},
	}
	if len(entries) == 0 {
		return summary
	}

	clients := map[string]*ClientActivity{}
	keys := map[string]int{}
	paths := map[string]int{}
	agents := map[string]int{}
	minutes := map[time.Time]int{}

	var start, end time.Time
	for i := range entries {
		e := &entries[i]
		ts := e.Timestamp

		if start.IsZero() || ts.Before(start) {
			start = ts
		}
		if ts.After(end) {
			end = ts
		}

		summary.Totals.Requests++
		if e.IsFlagged() {
			summary.Totals.FlaggedRequests++
		}
		summary.StatusFamilies[e.StatusFamily]++

		activity, ok := clients[e.ClientIP]
		if !ok {
			activity = &ClientActivity{
				Client:    e.ClientIP,
				Scope:     e.NetworkScope,
				FirstSeen: ts,
				LastSeen:  ts,
			}
			clients[e.ClientIP] = activity
		}
		activity.Count++
		if ts.Before(activity.FirstSeen) {
			activity.FirstSeen = ts
		}
		if ts.After(activity.LastSeen) {
			activity.LastSeen = ts
		}

		keys[e.APIKey]++
		if e.RequestPath != "" {
			paths[e.RequestPath]++
		}
		if e.UserAgent != "" {
			agents[e.UserAgent]++
		}
		minutes[ts.Truncate(time.Minute)]++
	}

	summary.Totals.UniqueClients = len(clients)
	summary.Totals.UniqueAPIKeys = len(keys)
	summary.Totals.UniqueUserAgents = len(agents)

	summary.TopClients = topClients(clients)
	summary.TopAPIKeys = topKeys(keys)
	summary.TopPaths = topPaths(paths)
	summary.TopUserAgents = topAgents(agents)
	summary.RequestsPerMinute = minuteHistogram(minutes)
	summary.Alerts = evaluateAlerts(entries, end, cfg)
	summary.TimeWindow = TimeWindow{
		Start:   start,
		End:     end,
		Minutes: int(end.Sub(start) / time.Minute),
	}

	return summary
}

// evaluateAlerts applies the rolling-window rules over entries whose
// timestamp falls within the window ending at the newest entry
func evaluateAlerts(entries []AccessEvent, latest time.Time, cfg SummaryConfig) []Alert {
	alerts := []Alert{}
	if cfg.AlertWindow <= 0 {
		return alerts
	}
	windowStart := latest.Add(-cfg.AlertWindow)

	clientErrors := map[string]int{}
	clientRequests := map[string]int{}
	missingKeys := 0

	for i := range entries {
		e := &entries[i]
		if e.Timestamp.Before(windowStart) {
			continue
		}
		clientRequests[e.ClientIP]++
		if e.HasFlag(FlagClientError) {
			clientErrors[e.ClientIP]++
		}
		if e.HasFlag(FlagNoAPIKey) {
			missingKeys++
		}
	}

	if cfg.ClientErrorThreshold > 0 {
		for _, client := range sortedKeys(clientErrors) {
			count := clientErrors[client]
			if count >= cfg.ClientErrorThreshold {
				alerts = append(alerts, Alert{
					Type:      AlertExcessiveClientErrors,
					Severity:  SeverityWarning,
					Client:    client,
					Count:     count,
					Threshold: cfg.ClientErrorThreshold,
					Message: fmt.Sprintf("client %s produced %d client errors in the last %s",
						client, count, cfg.AlertWindow),
				})
			}
		}
	}

	if cfg.RequestRateThreshold > 0 {
		for _, client := range sortedKeys(clientRequests) {
			count := clientRequests[client]
			if count >= cfg.RequestRateThreshold {
				alerts = append(alerts, Alert{
					Type:      AlertHighRequestRate,
					Severity:  SeverityWarning,
					Client:    client,
					Count:     count,
					Threshold: cfg.RequestRateThreshold,
					Message: fmt.Sprintf("client %s sent %d requests in the last %s",
						client, count, cfg.AlertWindow),
				})
			}
		}
	}

	if cfg.MissingKeyThreshold > 0 && missingKeys >= cfg.MissingKeyThreshold {
		alerts = append(alerts, Alert{
			Type:      AlertMissingAPIKeys,
			Severity:  SeverityInfo,
			Count:     missingKeys,
			Threshold: cfg.MissingKeyThreshold,
			Message: fmt.Sprintf("%d requests without an API key in the last %s",
				missingKeys, cfg.AlertWindow),
		})
	}

	return alerts
}

func topClients(clients map[string]*ClientActivity) []ClientActivity {
	ranked := make([]ClientActivity, 0, len(clients))
	for _, activity := range clients {
		ranked = append(ranked, *activity)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Client < ranked[j].Client
	})
	if len(ranked) > topEntries {
		ranked = ranked[:topEntries]
	}
	return ranked
}

func topKeys(keys map[string]int) []KeyActivity {
	ranked := make([]KeyActivity, 0, len(keys))
	for key, count := range keys {
		ranked = append(ranked, KeyActivity{
			Key:       key,
			Anonymous: key == AnonymousAPIKey,
			Count:     count,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Key < ranked[j].Key
	})
	if len(ranked) > topEntries {
		ranked = ranked[:topEntries]
	}
	return ranked
}

func topPaths(paths map[string]int) []PathActivity {
	ranked := make([]PathActivity, 0, len(paths))
	for path, count := range paths {
		ranked = append(ranked, PathActivity{Path: path, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Path < ranked[j].Path
	})
	if len(ranked) > topEntries {
		ranked = ranked[:topEntries]
	}
	return ranked
}

func topAgents(agents map[string]int) []AgentActivity {
	ranked := make([]AgentActivity, 0, len(agents))
	for agent, count := range agents {
		ranked = append(ranked, AgentActivity{Agent: agent, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Agent < ranked[j].Agent
	})
	if len(ranked) > topEntries {
		ranked = ranked[:topEntries]
	}
	return ranked
}

func minuteHistogram(minutes map[time.Time]int) []MinuteCount {
	histogram := make([]MinuteCount, 0, len(minutes))
	for minute, count := range minutes {
		histogram = append(histogram, MinuteCount{Minute: minute, Count: count})
	}
	sort.Slice(histogram, func(i, j int) bool {
		return histogram[i].Minute.Before(histogram[j].Minute)
	})
	return histogram
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
