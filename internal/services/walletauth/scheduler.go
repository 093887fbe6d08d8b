package walletauth

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/zeromicro/go-zero/core/logx"
)

// DefaultSweepInterval is how often expired nonces are cleared.
const DefaultSweepInterval = 5 * time.Minute

// StartNonceSweeper schedules SweepExpiredNonces every interval. The caller
// shuts the scheduler down.
func StartNonceSweeper(svc Service, interval time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := svc.SweepExpiredNonces(ctx); err != nil {
				logx.WithContext(ctx).Errorf("[Scheduler] nonce sweep failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
