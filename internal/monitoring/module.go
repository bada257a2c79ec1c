package monitoring

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/charlesng35/ftpstore/pkg/logger"
)

// DefaultNamespace prefixes every series registered by NewModule.
const DefaultNamespace = "ftpstore"

// Options configure NewModule.
type Options struct {
	// Namespace overrides DefaultNamespace.
	Namespace string
	// RuntimeCollectors adds the Go runtime and process collectors. Tests leave it off.
	RuntimeCollectors bool
}

// Module owns a private Prometheus registry, the storage collectors, the summary
// counters behind /api/status and the health manager.
type Module struct {
	registry *prometheus.Registry
	metrics  *metricSet
	stats    *statStore
	health   *HealthManager
}

// NewModule builds a module. Nothing is registered on the Prometheus default registry,
// so several modules can coexist in one process.
func NewModule(opts Options) (*Module, error) {
	namespace := strings.TrimSpace(opts.Namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Module{
		registry: prometheus.NewRegistry(),
		metrics:  newMetricSet(namespace),
		stats:    newStatStore(),
		health:   NewHealthManager(),
	}

	toRegister := m.metrics.all()
	if opts.RuntimeCollectors {
		toRegister = append(toRegister,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, c := range toRegister {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("monitoring: register collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format. Scrapes are
// themselves counted under promhttp_metric_handler_requests_total.
func (m *Module) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "monitoring disabled", http.StatusServiceUnavailable)
		})
	}
	return promhttp.InstrumentMetricHandler(m.registry, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(logger.WithModule("monitoring")),
		ErrorHandling: promhttp.ContinueOnError,
	}))
}

// Health returns the liveness/readiness probe registry.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

var active atomic.Pointer[Module]

// SetModule installs the module the Record* helpers report to. Nil turns them into
// no-ops.
func SetModule(module *Module) {
	active.Store(module)
}

func current() *Module {
	return active.Load()
}
