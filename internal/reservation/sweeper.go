package reservation

import (
    "context"
    "time"

    "github.com/iliyamo/transit-seat-reservation/internal/logger"
)

// Sweeper periodically reclaims seat locks that expired without being
// booked. It runs independently of request handling; a failed pass only
// delays reclamation and is retried on the next tick, never escalated.
type Sweeper struct {
    engine   *Engine
    interval time.Duration
    log      logger.Logger
}

// NewSweeper constructs a Sweeper. A zero or negative interval falls
// back to half the engine's lock TTL, which bounds how long a seat can
// stay wrongly locked at 1.5x the TTL.
func NewSweeper(engine *Engine, interval time.Duration, log logger.Logger) *Sweeper {
    if interval <= 0 {
        interval = engine.LockTTL() / 2
    }
    return &Sweeper{engine: engine, interval: interval, log: log}
}

// Run blocks, reclaiming expired locks once per interval until ctx is
// cancelled. Errors from a pass are logged and swallowed so that one
// bad tick never blocks the next.
func (s *Sweeper) Run(ctx context.Context) {
    ticker := time.NewTicker(s.interval)
    defer ticker.Stop()

    s.log.Infof("lock sweeper started (interval %s)", s.interval)
    for {
        select {
        case <-ctx.Done():
            s.log.Infof("lock sweeper stopped")
            return
        case <-ticker.C:
            n, err := s.engine.ReclaimExpired(ctx)
            if err != nil {
                s.log.Errorf("lock sweep failed: %v", err)
                continue
            }
            if n > 0 {
                s.log.Infof("released %d expired seat lock(s)", n)
            }
        }
    }
}
