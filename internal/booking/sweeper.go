package booking

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically pops due reminders and hands them to the event
// publisher.  It is stateless: any number of instances may run against
// the same database because the claim in ClaimDueReminders is atomic
// per row.  Deployments without a background process can instead hit
// the HTTP sweep trigger from an external cron.
type Sweeper struct {
	engine *Engine
	tick   time.Duration
}

// NewSweeper builds a sweeper around the engine.  tick <= 0 falls back
// to one minute.
func NewSweeper(engine *Engine, tick time.Duration) *Sweeper {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Sweeper{engine: engine, tick: tick}
}

// Run blocks until ctx is cancelled, sweeping on every tick.  Sweep
// failures are logged and the loop keeps going; a transient storage
// outage only delays reminders until the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	due, err := s.engine.PopDueReminders(ctx, s.engine.Now())
	if err != nil {
		log.Printf("sweeper: pop due reminders failed: %v", err)
		return
	}
	if len(due) > 0 {
		log.Printf("sweeper: dispatched %d due reminder(s)", len(due))
	}
}
