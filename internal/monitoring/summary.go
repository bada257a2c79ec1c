package monitoring

import "time"

// Summary surfaces aggregated storage activity for the status endpoint and CLI.
type Summary struct {
	GeneratedAt   time.Time          `json:"generated_at"`
	OpenSessions  int64              `json:"open_sessions"`
	BytesUploaded uint64             `json:"bytes_uploaded"`
	Operations    []OperationSummary `json:"operations"`
	BestEffort    map[string]uint64  `json:"best_effort_failures"`
	Keepalive     KeepaliveSummary   `json:"keepalive"`
}

type OperationSummary struct {
	Operation              string            `json:"operation"`
	Outcomes               map[string]uint64 `json:"outcomes"`
	AverageDurationSeconds float64           `json:"average_duration_seconds"`
}

type KeepaliveSummary struct {
	LastResult string    `json:"last_result,omitempty"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
}

// Snapshot returns the summary of the process-wide module, or an empty summary.
func Snapshot() Summary {
	module := current()
	if module == nil {
		return Summary{GeneratedAt: time.Now().UTC()}
	}
	return module.stats.summary()
}
