package workers

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/juju/errors"
)

// StartDispatchScheduler runs a dispatch pass every interval and the stale
// claim reconciler every staleAfter/2. Neither job overlaps itself. A zero
// interval disables the periodic pass. Call Shutdown on the returned scheduler.
func StartDispatchScheduler(ctx context.Context, d *Dispatcher, interval, staleAfter time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Annotate(err, "create scheduler")
	}

	if interval > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				result, err := d.RunOnce(ctx)
				if err != nil {
					log.Printf("[SCHEDULER] Dispatch pass failed: %v", err)
					return
				}
				if result.Processed > 0 {
					log.Printf("[SCHEDULER] Dispatch pass: %+v", *result)
				}
			}),
			gocron.WithName("notification-dispatch"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, errors.Annotate(err, "schedule dispatch job")
		}
	}

	if staleAfter > 0 {
		every := staleAfter / 2
		if every < time.Minute {
			every = time.Minute
		}
		_, err = sched.NewJob(
			gocron.DurationJob(every),
			gocron.NewTask(func() {
				if _, err := d.ReconcileStale(ctx, staleAfter); err != nil {
					log.Printf("[SCHEDULER] Stale claim reconcile failed: %v", err)
				}
			}),
			gocron.WithName("stale-claim-reconciler"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, errors.Annotate(err, "schedule reconcile job")
		}
	}

	sched.Start()
	log.Printf("✅ [SCHEDULER] Dispatch every %s, stale claims after %s", interval, staleAfter)
	return sched, nil
}
