package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/charlesng35/ftpstore/internal/monitoring"
	"github.com/charlesng35/ftpstore/pkg/logger"
)

const (
	defaultKeepaliveSpec    = "@every 1m"
	defaultKeepaliveTimeout = 10 * time.Second
)

// Pinger is satisfied by storage adapters and pools.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Keepalive periodically sends NOOP on idle FTP sessions so servers with short idle
// timeouts do not drop them between uploads.
type Keepalive struct {
	target   Pinger
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string
	timeout  time.Duration
}

// Option customises the Keepalive.
type Option func(*Keepalive)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(k *Keepalive) {
		if c != nil {
			k.cron = c
		}
	}
}

// WithNow overrides the clock used to timestamp runs.
func WithNow(now func() time.Time) Option {
	return func(k *Keepalive) {
		if now != nil {
			k.now = now
		}
	}
}

// WithSchedule overrides the cron specification.
func WithSchedule(spec string) Option {
	return func(k *Keepalive) {
		if spec != "" {
			k.schedule = spec
		}
	}
}

// WithTimeout bounds a single run.
func WithTimeout(d time.Duration) Option {
	return func(k *Keepalive) {
		if d > 0 {
			k.timeout = d
		}
	}
}

// NewKeepalive constructs a Keepalive. A nil target disables it.
func NewKeepalive(target Pinger, opts ...Option) *Keepalive {
	k := &Keepalive{
		target:   target,
		now:      time.Now,
		schedule: defaultKeepaliveSpec,
		timeout:  defaultKeepaliveTimeout,
		log:      logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(k)
	}

	if k.cron == nil {
		k.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return k
}

// Start registers the job and launches the scheduler.
func (k *Keepalive) Start() error {
	if k.target == nil {
		return nil
	}

	if _, err := k.cron.AddFunc(k.schedule, func() {
		if err := k.RunOnce(context.Background()); err != nil {
			k.log.Warn("ftp keepalive failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	k.cron.Start()
	k.log.Debug("ftp keepalive scheduled", zap.String("schedule", k.schedule))
	return nil
}

// Stop halts the scheduler. The returned context is done once a running job finishes.
func (k *Keepalive) Stop() context.Context {
	if k.cron == nil {
		return context.Background()
	}
	return k.cron.Stop()
}

// RunOnce pings the target and records the result.
func (k *Keepalive) RunOnce(ctx context.Context) error {
	if k.target == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	err := k.target.Ping(runCtx)
	result := "success"
	if err != nil {
		result = "error"
	}
	monitoring.RecordKeepalive(result, k.now())
	return err
}
