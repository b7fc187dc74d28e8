package dispatch

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"cfpbot/pkg/logx"
)

// Run drives the dispatcher: one immediate tick, then repeating ticks on
// the configured interval until ctx is cancelled.
//
// Ticks never overlap: cron may fire while a slow cycle is still running,
// but Tick serializes on the dispatcher mutex, so a late tick's effects
// simply queue behind the in-flight cycle.
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := d.cfg.Interval
	if interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", interval)
	}

	d.Tick(ctx)

	c := cron.New()
	spec := "@every " + interval.String()
	if _, err := c.AddFunc(spec, func() { d.Tick(ctx) }); err != nil {
		return fmt.Errorf("register tick schedule: %w", err)
	}

	c.Start()
	d.log.Info("driver loop started", logx.Duration("interval", interval), logx.Bool("debug", d.cfg.Debug))

	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	d.log.Info("driver loop stopped")
	return nil
}
