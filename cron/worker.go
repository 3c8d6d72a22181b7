// Package cron runs the periodic maintenance jobs: sheet ingestion, auto
// status advancement and the archival sweep.
package cron

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"campsite/services/booking"
	"campsite/services/sheets"
	"campsite/utils"
)

// Worker owns the cron scheduler and the jobs it drives.
type Worker struct {
	Service booking.BookingService
	Source  sheets.Source

	runner *cron.Cron
}

// NewWorker builds a stopped worker around the booking service and the
// sheet source.
func NewWorker(svc booking.BookingService, src sheets.Source) *Worker {
	return &Worker{Service: svc, Source: src}
}

// Start registers the jobs and starts the scheduler. Sheet pulls run
// hourly; the status and archival sweeps run once a day, early morning,
// after any overnight departures have elapsed.
func (w *Worker) Start() error {
	w.runner = cron.New()

	if _, err := w.runner.AddFunc("@hourly", w.pullSheets); err != nil {
		return err
	}
	if _, err := w.runner.AddFunc("15 6 * * *", w.runSweeps); err != nil {
		return err
	}

	w.runner.Start()
	utils.GetLogger().Info("Cron worker started")
	return nil
}

// Stop shuts the scheduler down and waits for running jobs to finish.
func (w *Worker) Stop() {
	if w.runner == nil {
		return
	}
	<-w.runner.Stop().Done()
	utils.GetLogger().Info("Cron worker stopped")
}

func (w *Worker) pullSheets() {
	logger := utils.GetLogger()
	ctx := context.Background()

	result, err := w.Source.Rows(ctx, true)
	if err != nil {
		logger.Warn("Scheduled sheet pull failed", zap.Error(err))
		return
	}
	added, err := w.Service.AddNewData(ctx, result)
	if err != nil {
		logger.Error("Scheduled ingestion failed", zap.Error(err))
		return
	}
	if added > 0 {
		logger.Info("Scheduled ingestion complete", zap.Int("added", added))
	}
}

func (w *Worker) runSweeps() {
	logger := utils.GetLogger()
	ctx := context.Background()

	advanced, err := w.Service.AutoUpdateStatuses(ctx)
	if err != nil {
		logger.Error("Auto status sweep failed", zap.Error(err))
	} else if len(advanced) > 0 {
		logger.Info("Auto status sweep complete", zap.Strings("advanced", advanced))
	}

	archived, warnings, err := w.Service.ArchiveOldBookings(ctx)
	if err != nil {
		logger.Error("Archive sweep failed", zap.Error(err))
		return
	}
	for _, warn := range warnings {
		logger.Warn("Archive sweep warning", zap.String("warning", warn))
	}
	if archived > 0 {
		logger.Info("Archive sweep complete", zap.Int("archived", archived))
	}
}
