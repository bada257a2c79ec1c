package checks

import (
	"context"
	"time"

	"github.com/charlesng35/ftpstore/internal/monitoring"
)

const defaultStorageTimeout = 5 * time.Second

// Pinger is satisfied by storage adapters and pools that can round-trip a NOOP.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Storage returns a readiness probe that pings the remote session(s) behind p.
func Storage(p Pinger, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("ftp", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if p == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  "storage not configured",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultStorageTimeout))
		defer cancel()

		return monitoring.ResultFromError("ftp", p.Ping(probeCtx), time.Since(start))
	})
}

// Process is a liveness probe that always reports up while the process can respond.
func Process() monitoring.Check {
	return monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
