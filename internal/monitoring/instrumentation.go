package monitoring

import (
	"strconv"
	"strings"
	"time"
)

// RecordOperation counts a storage operation and observes its duration.
func RecordOperation(operation, outcome string, duration time.Duration) {
	module := current()
	if module == nil {
		return
	}
	op := normalizeLabel(operation)
	res := normalizeLabel(outcome)
	module.metrics.operations.WithLabelValues(op, res).Inc()
	observeDuration(module.metrics.operationLatency.WithLabelValues(op), duration)
	module.stats.recordOperation(op, res, duration)
}

// RecordTransfer counts one upload of the given variant and the bytes it moved.
func RecordTransfer(variant, result string, bytes int64) {
	module := current()
	if module == nil {
		return
	}
	v := normalizeLabel(variant)
	module.metrics.transfers.WithLabelValues(v, normalizeLabel(result)).Inc()
	if bytes > 0 {
		module.metrics.transferBytes.WithLabelValues(v).Add(float64(bytes))
		module.stats.bytesUploaded.Add(uint64(bytes))
	}
}

// RecordBestEffortFailure counts a tolerated primitive failure.
func RecordBestEffortFailure(primitive string) {
	module := current()
	if module == nil {
		return
	}
	p := normalizeLabel(primitive)
	module.metrics.bestEffortFailure.WithLabelValues(p).Inc()
	module.stats.recordBestEffort(p)
}

// RecordConnect counts a session establishment attempt.
func RecordConnect(result string) {
	module := current()
	if module == nil {
		return
	}
	module.metrics.connectAttempts.WithLabelValues(normalizeLabel(result)).Inc()
}

// AdjustOpenSessions modifies the open session gauge by delta.
func AdjustOpenSessions(delta int64) {
	module := current()
	if module == nil || delta == 0 {
		return
	}
	module.metrics.openSessions.Add(float64(delta))
	if module.stats.openSessions.Add(delta) < 0 {
		module.stats.openSessions.Store(0)
		module.metrics.openSessions.Set(0)
	}
}

// RecordKeepalive counts a keepalive run.
func RecordKeepalive(result string, at time.Time) {
	module := current()
	if module == nil {
		return
	}
	res := normalizeLabel(result)
	module.metrics.keepaliveRuns.WithLabelValues(res).Inc()
	module.stats.recordKeepalive(res, at)
}

// RecordHTTPRequest observes one request served by the HTTP API.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	module := current()
	if module == nil {
		return
	}
	observeDuration(module.metrics.httpLatency.WithLabelValues(method, route, strconv.Itoa(status)), duration)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
