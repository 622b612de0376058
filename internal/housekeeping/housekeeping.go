// Package housekeeping runs the periodic background work the per-key
// expiry timers in internal/store/strstore don't cover on their own: a
// belt-and-suspenders active-expire sweep and a stats log line, the same
// ticker-driven-background-work shape internal/metricstore.Checkpointing
// uses for its own periodic passes, built on github.com/go-co-op/gocron/v2
// instead of a hand-rolled ticker.
package housekeeping

import (
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/go-co-op/gocron/v2"

	"github.com/kvserver/kvserver/internal/store/strstore"
)

const (
	activeExpireInterval = time.Second
	statsInterval        = time.Minute
)

// Scheduler owns the background jobs for one server instance.
type Scheduler struct {
	sched gocron.Scheduler
}

// Stats reports counters worth logging periodically; Count funcs are
// cheap key-count reads over each store's own lock.
type Stats struct {
	StrKeys    func() int
	ListKeys   func() int
	StreamKeys func() int
	ZSetKeys   func() int
}

// Start builds and starts a Scheduler that actively sweeps str's expired
// keys and logs Stats on fixed intervals. Callers stop it via Shutdown.
func Start(str *strstore.Store, stats Stats) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(activeExpireInterval),
		gocron.NewTask(func() {
			if n := str.ActiveExpireSweep(time.Now()); n > 0 {
				cclog.Debugf("[HOUSEKEEPING]> active-expire sweep removed %d keys", n)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(statsInterval),
		gocron.NewTask(func() {
			cclog.Infof("[HOUSEKEEPING]> keys strings=%d lists=%d streams=%d zsets=%d",
				stats.StrKeys(), stats.ListKeys(), stats.StreamKeys(), stats.ZSetKeys())
		}),
	)
	if err != nil {
		return nil, err
	}

	s.Start()
	return &Scheduler{sched: s}, nil
}

// Shutdown stops the scheduler and waits for in-flight jobs to finish.
func (s *Scheduler) Shutdown() error {
	if s == nil {
		return nil
	}
	return s.sched.Shutdown()
}
