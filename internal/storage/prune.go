package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "congratbot/pkg/logx"
)

const (
	defaultRetention     = 30 * 24 * time.Hour
	defaultPruneSchedule = "0 4 * * *" // daily at 04:00
)

// Pruner deletes dispatch rows past the retention window on a cron schedule.
type Pruner struct {
	store     Store
	log       logx.Logger
	retention time.Duration
	schedule  string

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPruner builds a pruner for store. schedule is a standard 5-field cron
// expression; empty picks the default nightly run.
func NewPruner(store Store, schedule string, retention time.Duration, log logx.Logger) *Pruner {
	if retention <= 0 {
		retention = defaultRetention
	}
	if strings.TrimSpace(schedule) == "" {
		schedule = defaultPruneSchedule
	}
	return &Pruner{store: store, log: log, retention: retention, schedule: schedule}
}

func (p *Pruner) Start() error {
	if p.store == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(p.schedule, p.runOnce)
	if err != nil {
		return err
	}
	c.Start()
	p.cron = c
	p.log.Debug("history pruner started", logx.String("schedule", p.schedule), logx.Duration("retention", p.retention))
	return nil
}

func (p *Pruner) Stop(ctx context.Context) {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (p *Pruner) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-p.retention)
	n, err := p.store.PruneBefore(ctx, cutoff)
	if err != nil {
		p.log.Warn("history prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		p.log.Info("history pruned", logx.Int64("rows", n), logx.Time("cutoff", cutoff))
	}
}
