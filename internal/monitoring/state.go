package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	openSessions  atomic.Int64
	bytesUploaded atomic.Uint64

	mu            sync.Mutex
	operations    map[string]*operationStats
	bestEffort    map[string]uint64
	lastKeepalive KeepaliveSummary
}

type operationStats struct {
	outcomes      map[string]uint64
	totalDuration time.Duration
	count         uint64
}

func newStatStore() *statStore {
	return &statStore{
		operations: map[string]*operationStats{},
		bestEffort: map[string]uint64{},
	}
}

func (s *statStore) recordOperation(op, outcome string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.operations[op]
	if !ok {
		stats = &operationStats{outcomes: map[string]uint64{}}
		s.operations[op] = stats
	}
	stats.outcomes[outcome]++
	stats.count++
	if duration > 0 {
		stats.totalDuration += duration
	}
}

func (s *statStore) recordBestEffort(primitive string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bestEffort[primitive]++
}

func (s *statStore) recordKeepalive(result string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKeepalive = KeepaliveSummary{LastResult: result, LastRunAt: at}
}

func (s *statStore) summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make([]OperationSummary, 0, len(s.operations))
	for name, stats := range s.operations {
		outcomes := make(map[string]uint64, len(stats.outcomes))
		for k, v := range stats.outcomes {
			outcomes[k] = v
		}
		var avg float64
		if stats.count > 0 {
			avg = stats.totalDuration.Seconds() / float64(stats.count)
		}
		ops = append(ops, OperationSummary{
			Operation:              name,
			Outcomes:               outcomes,
			AverageDurationSeconds: avg,
		})
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Operation < ops[j].Operation })

	bestEffort := make(map[string]uint64, len(s.bestEffort))
	for k, v := range s.bestEffort {
		bestEffort[k] = v
	}

	return Summary{
		GeneratedAt:   time.Now().UTC(),
		OpenSessions:  s.openSessions.Load(),
		BytesUploaded: s.bytesUploaded.Load(),
		Operations:    ops,
		BestEffort:    bestEffort,
		Keepalive:     s.lastKeepalive,
	}
}
