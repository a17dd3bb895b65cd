package sessionsweep

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper удаляет устаревшие сессии из памяти.
type Sweeper interface {
	Sweep() int
}

// Worker periodically evicts expired in-memory sessions
type Worker struct {
	sweeper Sweeper
	logger  *slog.Logger
	cron    *cron.Cron
}

func NewWorker(sweeper Sweeper, logger *slog.Logger) *Worker {
	return &Worker{
		sweeper: sweeper,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Name returns the worker name
func (w *Worker) Name() string {
	return "session-sweep"
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc("@hourly", w.run)
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep worker: %w", err)
	}

	w.cron.Start()
	return nil
}

func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
}

func (w *Worker) run() {
	if removed := w.sweeper.Sweep(); removed > 0 {
		w.logger.Debug("Expired sessions removed", slog.Int("count", removed))
	}
}
