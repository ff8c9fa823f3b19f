package job

import (
	"context"
	"os"
	"time"

	"crowdfund/internal/infrastructure/lock"
	"crowdfund/internal/service"
	"crowdfund/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const reconcileLockKey = "crowdfund:job:reconcile"

// Reconciler is the part of service.Reconciler the job needs.
type Reconciler interface {
	Reconcile(ctx context.Context, repair bool) (*service.ReconcileReport, error)
}

// ReconcileJob runs a read-only reconciliation on a cron schedule. With a
// Redis client only one instance runs each tick.
type ReconcileJob struct {
	reconciler Reconciler
	redis      redis.UniversalClient
	lockTTL    time.Duration
	timeout    time.Duration
	cron       *cron.Cron
}

func NewReconcileJob(reconciler Reconciler, client redis.UniversalClient, lockTTL time.Duration) *ReconcileJob {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &ReconcileJob{
		reconciler: reconciler,
		redis:      client,
		lockTTL:    lockTTL,
		timeout:    10 * time.Minute,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start schedules the job. spec is a robfig/cron expression such as
// "@every 1h" or "0 3 * * *".
func (j *ReconcileJob) Start(spec string) error {
	if _, err := j.cron.AddFunc(spec, func() { j.RunOnce(context.Background()) }); err != nil {
		return err
	}
	j.cron.Start()
	logger.Info("reconcile job scheduled", zap.String("spec", spec))
	return nil
}

// Stop waits for a running reconciliation to finish or ctx to expire.
func (j *ReconcileJob) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
		logger.Warn("reconcile job still running at shutdown")
	}
}

// lockExpiry outlasts the longest run ctx allows, so a slow pass still
// holds the lock until it unlocks.
func (j *ReconcileJob) lockExpiry() time.Duration {
	return j.timeout + j.lockTTL
}

// RunOnce performs one pass and reports whether it ran.
func (j *ReconcileJob) RunOnce(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if j.redis != nil {
		holder, _ := os.Hostname()
		l := lock.NewDistributedLock(j.redis, reconcileLockKey, holder+":"+uuid.NewString(), j.lockExpiry())
		ok, err := l.TryLock(ctx)
		if err != nil {
			logger.Error("reconcile job lock", zap.Error(err))
			return false
		}
		if !ok {
			logger.Debug("reconcile job held by another instance")
			return false
		}
		defer func() {
			if err := l.Unlock(context.Background()); err != nil {
				logger.Warn("reconcile job unlock", zap.Error(err))
			}
		}()
	}

	report, err := j.reconciler.Reconcile(ctx, false)
	if err != nil {
		logger.Error("scheduled reconciliation failed", zap.Error(err))
		return false
	}
	if n := len(report.Divergences); n > 0 {
		logger.Warn("scheduled reconciliation found divergences",
			zap.Int("count", n),
			zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	}
	return true
}
