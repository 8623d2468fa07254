// Package scheduler runs the expired-bill sweep: pending bills whose
// payment window has lapsed are cancelled in batches.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/billorder/internal/bill/domain"
	"github.com/smallbiznis/billorder/internal/clock"
	obsmetrics "github.com/smallbiznis/billorder/internal/observability/metrics"
)

const cleanupLockKey = "billorder:cleanup"

var ErrInvalidConfig = errors.New("scheduler requires db, log, bill service, repository and clock")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	BillSvc domain.Service
	Repo    domain.Repository
	Clock   clock.Clock
	Config  Config  `optional:"true"`
	Locker  *Locker `optional:"true"`
}

type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	billSvc domain.Service
	repo    domain.Repository
	clock   clock.Clock
	locker  *Locker
}

// SweepResult reports one cleanup pass: how many bills were cancelled
// and which ones failed.
type SweepResult struct {
	Examined  int
	Cancelled int
	Failed    []SweepFailure
}

type SweepFailure struct {
	BillID     string
	BillNumber string
	Err        error
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.BillSvc == nil || p.Repo == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler").With(zap.String("component", "cleanup")),
		cfg:     cfg,
		billSvc: p.BillSvc,
		repo:    p.Repo,
		clock:   p.Clock,
		locker:  p.Locker,
	}, nil
}

// RunOnce executes a single cleanup sweep guarded by the distributed
// lock. A held lock means another instance is sweeping; that is not an
// error.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	token, ok, err := s.locker.TryLock(ctx, cleanupLockKey, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire cleanup lock: %w", err)
	}
	if !ok {
		s.log.Debug("cleanup lock held elsewhere, skipping sweep")
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), cleanupLockKey, token); err != nil {
			s.log.Warn("release cleanup lock failed", zap.Error(err))
		}
	}()

	_, err = s.CleanupJob(ctx)
	return err
}

// CleanupJob cancels pending bills older than the expiry window. A
// failing bill does not stop the batch; failures are collected and
// reported together.
func (s *Scheduler) CleanupJob(ctx context.Context) (SweepResult, error) {
	start := s.clock.Now()
	billMetrics := obsmetrics.Bill()
	billMetrics.IncCleanupRun()

	cutoff := start.AddDate(0, 0, -s.cfg.ExpiryDays)
	expired, err := s.repo.FindExpiredPending(ctx, s.db, cutoff, s.cfg.BatchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("find expired pending bills: %w", err)
	}

	result := SweepResult{Examined: len(expired)}
	if len(expired) == 0 {
		return result, nil
	}

	reason := fmt.Sprintf("系统自动取消：%d天内未完成支付", s.cfg.ExpiryDays)
	for _, bill := range expired {
		if s.cfg.DryRun {
			s.log.Info("dry run: would cancel expired bill",
				zap.String("bill_id", bill.ID.String()),
				zap.String("bill_number", bill.BillNumber),
				zap.Time("created_at", bill.CreatedAt),
			)
			continue
		}

		if _, err := s.billSvc.Cancel(ctx, bill.ID.String(), reason); err != nil {
			s.log.Warn("cancel expired bill failed",
				zap.String("bill_id", bill.ID.String()),
				zap.String("bill_number", bill.BillNumber),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, SweepFailure{
				BillID:     bill.ID.String(),
				BillNumber: bill.BillNumber,
				Err:        err,
			})
			continue
		}
		result.Cancelled++
	}

	billMetrics.AddCleanupCancelled(result.Cancelled)
	billMetrics.AddCleanupErrors(len(result.Failed))
	billMetrics.ObserveCleanupDuration(time.Since(start))

	s.log.Info("cleanup sweep finished",
		zap.Int("examined", result.Examined),
		zap.Int("cancelled", result.Cancelled),
		zap.Int("failed", len(result.Failed)),
		zap.Bool("dry_run", s.cfg.DryRun),
	)

	if len(result.Failed) > 0 {
		errs := make([]error, 0, len(result.Failed))
		for _, failure := range result.Failed {
			errs = append(errs, fmt.Errorf("bill %s: %w", failure.BillNumber, failure.Err))
		}
		return result, errors.Join(errs...)
	}
	return result, nil
}

// RunForever sweeps on the configured interval until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("cleanup run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
