package retrysettlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

const defaultSchedule = "*/5 * * * *"

// Worker handles retrying ledger writes for payments that failed to settle
type Worker struct {
	settlement SettlementService
	schedule   string
	logger     *slog.Logger
	cron       *cron.Cron
}

// NewWorker creates a new retry settlement worker
func NewWorker(settlement SettlementService, schedule string, logger *slog.Logger) *Worker {
	if schedule == "" {
		schedule = defaultSchedule
	}
	return &Worker{
		settlement: settlement,
		schedule:   schedule,
		logger:     logger,
		cron:       cron.New(),
	}
}

// Name returns the worker name
func (w *Worker) Name() string {
	return "retry-settlement"
}

// Start starts the retry settlement worker
func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Panic in retry settlement worker", slog.Any("panic", r))
			}
		}()
		w.run(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retry settlement worker: %w", err)
	}

	w.cron.Start()
	return nil
}

// Stop stops the worker
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
}

func (w *Worker) run(ctx context.Context) {
	if w.settlement.Pending() == 0 {
		return
	}

	w.logger.Info("Running retry settlement worker", slog.Int("pending", w.settlement.Pending()))

	applied, requeued := w.settlement.RetryFailed(ctx)

	w.logger.Info("Retry settlement worker execution completed",
		slog.Int("applied", applied),
		slog.Int("requeued", requeued))
}
