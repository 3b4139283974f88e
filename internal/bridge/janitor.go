package bridge

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// startJanitor schedules periodic housekeeping: sweeping expired cache
// entries and reaping terminal queue operations past their retention
// window. Neither affects correctness (expired entries are already
// unservable, terminal operations already resolved); this is memory
// hygiene for long-running processes.
func (b *Bridge) startJanitor() (stop func(), err error) {
	c := cron.New()
	_, err = c.AddFunc(b.sweepSchedule, func() {
		swept := b.cache.Sweep()
		reaped := b.queue.Reap()
		if swept > 0 || reaped > 0 {
			b.logger.Debug("janitor pass", "swept", swept, "reaped", reaped)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("bad sweep schedule %q: %w", b.sweepSchedule, err)
	}
	c.Start()
	b.logger.Info("janitor started", "schedule", b.sweepSchedule)
	return func() { <-c.Stop().Done() }, nil
}
