package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
)

// DefaultCheckTimeout bounds a single probe unless SetCheckTimeout says otherwise.
const DefaultCheckTimeout = 5 * time.Second

// ProbeStatus is the state reported by one probe or a whole report.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDegraded ProbeStatus = "degraded"
	StatusDown     ProbeStatus = "down"
)

// severity orders statuses so a report takes the worst of its probes.
func (s ProbeStatus) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport is the outcome of a liveness or readiness evaluation.
type HealthReport struct {
	Success bool          `json:"success"`
	Status  ProbeStatus   `json:"status"`
	Checks  []ProbeResult `json:"checks"`
}

// Check is a named probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck pairs a name with a probe. A nil probe always reports down.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

type probeKind int

const (
	liveness probeKind = iota
	readiness
)

// HealthManager holds the liveness and readiness probes. Probes of one evaluation run
// concurrently; results keep registration order.
type HealthManager struct {
	mu      sync.RWMutex
	timeout time.Duration
	checks  map[probeKind][]Check
}

// NewHealthManager returns a manager without probes. An empty report is up.
func NewHealthManager() *HealthManager {
	return &HealthManager{
		timeout: DefaultCheckTimeout,
		checks:  map[probeKind][]Check{},
	}
}

// SetCheckTimeout sets the per-probe deadline; non-positive values restore the default.
func (m *HealthManager) SetCheckTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
}

// RegisterLiveness adds a probe answering "is the process alive". Unnamed checks are
// ignored.
func (m *HealthManager) RegisterLiveness(check Check) {
	m.register(liveness, check)
}

// RegisterReadiness adds a probe answering "can uploads be served".
func (m *HealthManager) RegisterReadiness(check Check) {
	m.register(readiness, check)
}

func (m *HealthManager) register(kind probeKind, check Check) {
	if check.Name == "" || check.Run == nil {
		return
	}
	m.mu.Lock()
	m.checks[kind] = append(m.checks[kind], check)
	m.mu.Unlock()
}

// EvaluateLiveness runs the liveness probes.
func (m *HealthManager) EvaluateLiveness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, liveness)
}

// EvaluateReadiness runs the readiness probes.
func (m *HealthManager) EvaluateReadiness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, readiness)
}

func (m *HealthManager) evaluate(ctx context.Context, kind probeKind) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.RLock()
	checks := append([]Check(nil), m.checks[kind]...)
	timeout := m.timeout
	m.mu.RUnlock()

	results := make([]ProbeResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			results[i] = runCheck(ctx, timeout, check)
		}(i, check)
	}
	wg.Wait()

	report := HealthReport{Success: true, Status: StatusUp, Checks: results}
	for _, r := range results {
		if r.Status.severity() > report.Status.severity() {
			report.Status = r.Status
		}
	}
	report.Success = report.Status == StatusUp
	return report
}

// runCheck bounds the probe by timeout and turns a panic into a down result.
func runCheck(ctx context.Context, timeout time.Duration, check Check) (result ProbeResult) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: fmt.Sprint(rec)}
		}
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration <= 0 {
			result.Duration = time.Since(start)
		}
		result.Component = check.Name
	}()

	return check.Run(ctx)
}

// ResultFromError converts a probe error into a result. Timeouts and closed adapters
// degrade rather than fail the probe.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	if duration < 0 {
		duration = 0
	}
	result := ProbeResult{Component: component, Status: StatusUp, Duration: duration}
	if err == nil {
		return result
	}

	result.Status = StatusDown
	result.Details = err.Error()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, apperrors.ErrClosed) {
		result.Status = StatusDegraded
	}
	return result
}
