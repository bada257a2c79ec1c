package monitoring_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/ftpstore/internal/monitoring"
	"github.com/charlesng35/ftpstore/internal/monitoring/checks"
	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
)

func setupModule(t *testing.T) *monitoring.Module {
	t.Helper()

	mod, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(mod)
	t.Cleanup(func() { monitoring.SetModule(nil) })
	return mod
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestSummaryAggregatesMetrics(t *testing.T) {
	setupModule(t)

	monitoring.RecordOperation("write", "success", 200*time.Millisecond)
	monitoring.RecordOperation("write", "partial", 400*time.Millisecond)
	monitoring.RecordOperation("delete", "success", 0)
	monitoring.RecordTransfer("original", "success", 10)
	monitoring.RecordTransfer("thumbnail", "success", 5)
	monitoring.RecordBestEffortFailure("mkdir")
	monitoring.RecordBestEffortFailure("mkdir")
	monitoring.AdjustOpenSessions(2)
	monitoring.AdjustOpenSessions(-1)
	monitoring.RecordKeepalive("success", time.Unix(100, 0))

	summary := monitoring.Snapshot()
	require.Equal(t, int64(1), summary.OpenSessions)
	require.Equal(t, uint64(15), summary.BytesUploaded)
	require.Equal(t, uint64(2), summary.BestEffort["mkdir"])
	require.Equal(t, "success", summary.Keepalive.LastResult)
	require.Len(t, summary.Operations, 2)
	require.Equal(t, "delete", summary.Operations[0].Operation)
	require.Equal(t, "write", summary.Operations[1].Operation)
	require.Equal(t, uint64(1), summary.Operations[1].Outcomes["partial"])
	require.InDelta(t, 0.3, summary.Operations[1].AverageDurationSeconds, 0.0001)
}

func TestOpenSessionsNeverNegative(t *testing.T) {
	setupModule(t)

	monitoring.AdjustOpenSessions(-3)
	require.Equal(t, int64(0), monitoring.Snapshot().OpenSessions)
}

func TestHandlerExposesMetrics(t *testing.T) {
	mod := setupModule(t)
	monitoring.RecordConnect("success")

	rec := httptest.NewRecorder()
	mod.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `ftpstore_connect_attempts_total{result="success"} 1`))
}

func TestRecordHelpersWithoutModule(t *testing.T) {
	monitoring.SetModule(nil)
	require.NotPanics(t, func() {
		monitoring.RecordOperation("write", "success", time.Second)
		monitoring.RecordTransfer("original", "failure", 0)
		monitoring.AdjustOpenSessions(1)
	})
}

func TestHealthManagerEvaluate(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("process", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("ftp", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "ftp", report.Checks[1].Component)
}

func TestHealthManagerRecoversPanics(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("boom", func(ctx context.Context) monitoring.ProbeResult {
		panic("exploded")
	}))

	report := manager.EvaluateLiveness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, "exploded", report.Checks[0].Details)
	require.Equal(t, "boom", report.Checks[0].Component)
}

func TestStorageCheck(t *testing.T) {
	up := checks.Storage(pingFunc(func(context.Context) error { return nil }), time.Second)
	require.Equal(t, monitoring.StatusUp, up.Run(context.Background()).Status)

	down := checks.Storage(pingFunc(func(context.Context) error { return errors.New("421 service not available") }), time.Second)
	result := down.Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "421")

	closed := checks.Storage(pingFunc(func(context.Context) error { return apperrors.ErrClosed }), time.Second)
	require.Equal(t, monitoring.StatusDegraded, closed.Run(context.Background()).Status)

	missing := checks.Storage(nil, 0)
	require.Equal(t, monitoring.StatusDown, missing.Run(context.Background()).Status)
}

func TestHealthManagerTakesWorstStatus(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.SetCheckTimeout(50 * time.Millisecond)
	manager.RegisterReadiness(monitoring.NewCheck("process", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("slow", func(ctx context.Context) monitoring.ProbeResult {
		<-ctx.Done()
		return monitoring.ResultFromError("slow", ctx.Err(), 0)
	}))
	manager.RegisterReadiness(monitoring.NewCheck("", nil))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "process", report.Checks[0].Component)
	require.Equal(t, "slow", report.Checks[1].Component)

	empty := manager.EvaluateLiveness(context.Background())
	require.True(t, empty.Success)
	require.Equal(t, monitoring.StatusUp, empty.Status)
}
