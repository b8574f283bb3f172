package service

import (
	"context"
	"fmt"
	"time"

	"spinnergy/retention"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// PruneResult reports how many records one janitor pass removed
type PruneResult struct {
	ChatTurns   int64
	MealEntries int64
}

// RetentionJanitor physically removes chat turns and meal entries that fell out of
// their windows. The ledger event trail is never touched.
type RetentionJanitor struct {
	uowFactory     UnitOfWorkFactory
	chatWindowDays int
	mealWindowDays int
	metrics        Metrics
	now            func() time.Time
	cron           *cron.Cron
}

// NewRetentionJanitor creates a janitor for the given windows
func NewRetentionJanitor(uowFactory UnitOfWorkFactory, chatWindowDays, mealWindowDays int, metrics Metrics, now func() time.Time) *RetentionJanitor {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &RetentionJanitor{
		uowFactory:     uowFactory,
		chatWindowDays: chatWindowDays,
		mealWindowDays: mealWindowDays,
		metrics:        metricsOrNoop(metrics),
		now:            now,
		cron:           cron.New(),
	}
}

// PruneOnce deletes expired chat turns and meal entries in a single unit of work
func (j *RetentionJanitor) PruneOnce(ctx context.Context) (PruneResult, error) {
	var result PruneResult

	ctx, cancel := context.WithTimeout(ctx, DefaultStorageTimeout)
	defer cancel()

	uow := j.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return result, storageError("begin transaction", err)
	}
	defer uow.Rollback()

	now := j.now()

	var err error
	result.ChatTurns, err = uow.ChatRepository().DeleteBefore(ctx, retention.Cutoff(now, j.chatWindowDays))
	if err != nil {
		return PruneResult{}, storageError("prune chat turns", err)
	}

	result.MealEntries, err = uow.MealRepository().DeleteBefore(ctx, retention.Cutoff(now, j.mealWindowDays))
	if err != nil {
		return PruneResult{}, storageError("prune meal entries", err)
	}

	if err := uow.Commit(); err != nil {
		return PruneResult{}, storageError("commit transaction", err)
	}

	j.metrics.RecordRetentionPruned("chat", result.ChatTurns)
	j.metrics.RecordRetentionPruned("meal", result.MealEntries)

	return result, nil
}

// Schedule registers fn under a cron spec. Jobs start running once Start is called.
func (j *RetentionJanitor) Schedule(spec, name string, fn func(ctx context.Context) error) error {
	_, err := j.cron.AddFunc(spec, func() {
		if err := fn(context.Background()); err != nil {
			log.WithFields(log.Fields{
				"job":   name,
				"error": err,
			}).Error("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Start schedules the prune pass, runs it once immediately and starts the scheduler.
// The returned cleanup function stops the scheduler and waits for running jobs.
func (j *RetentionJanitor) Start(ctx context.Context, spec string) (func(), error) {
	prune := func(ctx context.Context) error {
		result, err := j.PruneOnce(ctx)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"chatTurns":   result.ChatTurns,
			"mealEntries": result.MealEntries,
		}).Info("Retention prune removed expired records")
		return nil
	}

	if err := j.Schedule(spec, "retention-prune", prune); err != nil {
		return nil, err
	}

	// Run immediately on startup
	if err := prune(ctx); err != nil {
		log.WithError(err).Error("Initial retention prune failed")
	}

	j.cron.Start()
	log.WithField("schedule", spec).Info("Retention janitor started")

	return func() {
		<-j.cron.Stop().Done()
		log.Info("Retention janitor stopped")
	}, nil
}
