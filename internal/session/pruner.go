package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JonMunkholm/secretaria/internal/auth"
)

// DefaultPruneSchedule runs the pruner every fifteen minutes.
const DefaultPruneSchedule = "@every 15m"

// Pruner removes idle sessions on a cron schedule.
type Pruner struct {
	store  auth.Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	cron   *cron.Cron
}

// NewPruner returns a pruner that drops sessions unused for longer than ttl.
// It does nothing until Start is called.
func NewPruner(store auth.Store, ttl time.Duration, schedule string, logger *slog.Logger) (*Pruner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	p := &Pruner{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
		cron:   cron.New(),
	}
	if _, err := p.cron.AddFunc(schedule, func() { p.Run(context.Background()) }); err != nil {
		return nil, fmt.Errorf("session prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start runs one pass immediately, then follows the schedule until ctx is
// cancelled.
func (p *Pruner) Start(ctx context.Context) {
	p.logger.Info("session pruner started", "ttl", p.ttl)
	p.Run(ctx)
	p.cron.Start()

	go func() {
		<-ctx.Done()
		<-p.cron.Stop().Done()
		p.logger.Info("session pruner stopped")
	}()
}

// Run performs one prune pass and returns the number of sessions removed.
func (p *Pruner) Run(ctx context.Context) int {
	start := time.Now()
	n, err := p.store.DeleteIdle(ctx, p.now().Add(-p.ttl))
	if err != nil {
		p.logger.Error("session prune failed", "error", err)
		return 0
	}
	if n > 0 {
		p.logger.Info("pruned idle sessions",
			"sessions_removed", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return n
}
