package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/partypay/internal/app/service/notification"
	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/pkg/config"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/metrics"
	"github.com/fatflowers/partypay/pkg/types"
)

const (
	defaultSweepInterval = time.Minute
	defaultBatchSize     = 50
	defaultMaxAttempts   = 5
	// a running job whose row was not touched for this long is assumed orphaned by a crash
	staleRunningAfter = 10 * time.Minute
)

// Alerter receives the alert when a job gives up.
type Alerter interface {
	NotifyAdminsAsync(ctx context.Context, msg notification.Message)
}

type SweeperParams struct {
	fx.In

	DB         *gorm.DB
	Dispatcher Dispatcher
	Lock       Lock
	Config     *config.Config
	Logger     *zap.SugaredLogger
	Metrics    *metrics.Payments `optional:"true"`
	Alerter    Alerter           `optional:"true"`
}

// Sweeper periodically runs the payout jobs whose time has come.
type Sweeper struct {
	db          *gorm.DB
	dispatcher  Dispatcher
	lock        Lock
	log         *zap.SugaredLogger
	metrics     *metrics.Payments
	alerter     Alerter
	interval    time.Duration
	batchSize   int
	maxAttempts int
	now         func() time.Time
}

func NewSweeper(p SweeperParams) *Sweeper {
	s := &Sweeper{
		db:          p.DB,
		dispatcher:  p.Dispatcher,
		lock:        p.Lock,
		log:         p.Logger,
		metrics:     p.Metrics,
		alerter:     p.Alerter,
		interval:    defaultSweepInterval,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	if p.Config != nil {
		if p.Config.Escrow.SweepInterval > 0 {
			s.interval = p.Config.Escrow.SweepInterval
		}
		if p.Config.Escrow.BatchSize > 0 {
			s.batchSize = p.Config.Escrow.BatchSize
		}
		if p.Config.Escrow.MaxAttempts > 0 {
			s.maxAttempts = p.Config.Escrow.MaxAttempts
		}
	}
	if s.lock == nil {
		s.lock = &LocalLock{}
	}
	return s
}

// Run sweeps once immediately and then on every tick until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.sweepAndLog(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("escrow sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		s.log.Errorw("escrow_sweep_failed", "processed", n, "err", err)
		return
	}
	if n > 0 {
		s.log.Infow("escrow_sweep_done", "processed", n)
	}
}

// Sweep runs one batch of due jobs and returns how many it processed. Job failures are
// recorded on the job row and combined into the returned error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.log.Debugw("another sweeper holds the lock, skipping")
		return 0, nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.log.Errorw("failed to release sweeper lock", "err", relErr)
		}
	}()

	jobs, err := s.dueJobs(ctx)
	if err != nil {
		return 0, err
	}
	var errs error
	processed := 0
	for i := range jobs {
		job := &jobs[i]
		claimed, err := s.claim(ctx, job)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !claimed {
			continue
		}
		processed++
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return processed, errs
}

func (s *Sweeper) dueJobs(ctx context.Context) ([]models.PayoutJob, error) {
	now := s.now()
	var jobs []models.PayoutJob
	err := s.db.WithContext(ctx).
		Where("(status = ? AND run_at <= ?) OR (status = ? AND updated_at <= ?)",
			types.PayoutJobStatusPending, now,
			types.PayoutJobStatusRunning, now.Add(-staleRunningAfter)).
		Order("run_at asc").
		Limit(s.batchSize).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load due jobs: %w", err)
	}
	return jobs, nil
}

// claim flips the job to running only if nobody changed it since it was read.
func (s *Sweeper) claim(ctx context.Context, job *models.PayoutJob) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.PayoutJob{}).
		Where("id = ? AND status = ? AND attempts = ?", job.ID, job.Status, job.Attempts).
		Updates(map[string]any{
			"status":     types.PayoutJobStatusRunning,
			"attempts":   job.Attempts + 1,
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim job %s: %w", job.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	job.Status = types.PayoutJobStatusRunning
	job.Attempts++
	return true, nil
}

func (s *Sweeper) runJob(ctx context.Context, job *models.PayoutJob) error {
	start := time.Now()
	lg := logctx.FromCtx(ctx, s.log).With("job_id", job.ID, "transaction_id", job.TransactionID, "kind", job.Kind, "attempt", job.Attempts)
	jobCtx := logctx.WithLogger(ctx, lg)

	runErr := s.safeRun(jobCtx, job)
	if runErr == nil {
		s.metrics.ObservePayoutJob(string(job.Kind), metrics.ResultOK, start)
		lg.Infow("payout_job_done")
		return s.finish(ctx, job, types.PayoutJobStatusDone, nil, job.RunAt)
	}
	s.metrics.ObservePayoutJob(string(job.Kind), metrics.ResultError, start)

	msg := runErr.Error()
	if job.Attempts >= s.maxAttempts {
		lg.Errorw("payout_job_gave_up", "err", runErr)
		if s.alerter != nil {
			s.alerter.NotifyAdminsAsync(ctx, notification.AdminAlert(job.TransactionID,
				"Payout job failed",
				fmt.Sprintf("%s for transaction %s failed %d times: %s", job.Kind, job.TransactionID, job.Attempts, msg)))
		}
		return multierr.Append(runErr, s.finish(ctx, job, types.PayoutJobStatusFailed, &msg, job.RunAt))
	}
	next := s.now().Add(backoff(job.Attempts))
	lg.Warnw("payout_job_retry", "err", runErr, "next_run_at", next)
	return multierr.Append(runErr, s.finish(ctx, job, types.PayoutJobStatusPending, &msg, next))
}

func (s *Sweeper) safeRun(ctx context.Context, job *models.PayoutJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("payout job panicked: %v", r)
		}
	}()
	if s.dispatcher == nil {
		return errors.New("no payout dispatcher configured")
	}
	return s.dispatcher.RunJob(ctx, job)
}

func (s *Sweeper) finish(ctx context.Context, job *models.PayoutJob, status types.PayoutJobStatus, lastErr *string, runAt time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.PayoutJob{}).
		Where("id = ? AND status = ?", job.ID, types.PayoutJobStatusRunning).
		Updates(map[string]any{
			"status":     status,
			"last_error": lastErr,
			"run_at":     runAt,
			"updated_at": s.now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	return nil
}

// backoff grows quadratically: 1m, 4m, 9m, ...
func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt*attempt) * time.Minute
}

// Start ties the sweep loop to the fx lifecycle.
func (s *Sweeper) Start(lc fx.Lifecycle) {
	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.Run(ctx)
			}()
			s.log.Infow("escrow sweeper started", "interval", s.interval, "batch_size", s.batchSize)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			wg.Wait()
			return nil
		},
	})
}

func registerSweeper(lc fx.Lifecycle, cfg *config.Config, s *Sweeper, l *zap.SugaredLogger) {
	if !cfg.Escrow.Enabled {
		l.Infow("escrow sweeper disabled")
		return
	}
	s.Start(lc)
}

var Module = fx.Options(
	fx.Provide(NewLock, NewSweeper),
	fx.Invoke(registerSweeper),
)
