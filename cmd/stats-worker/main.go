package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/cityteam/stats-sub000/internal/amqp"
	"github.com/cityteam/stats-sub000/internal/cli"
	applog "github.com/cityteam/stats-sub000/internal/log"
	"github.com/cityteam/stats-sub000/internal/services"
	"github.com/cityteam/stats-sub000/internal/sheets"
	gsheet "github.com/cityteam/stats-sub000/internal/sheets/google"
	sheetmem "github.com/cityteam/stats-sub000/internal/sheets/memory"
	"github.com/cityteam/stats-sub000/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting stats-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	// The worker only reads the repository and never publishes.
	backendCfg := *cfg
	backendCfg.AMQPURL = ""
	b := cli.InitBackend(context.Background(), logger, &backendCfg)
	defer b.Cleanup()

	var exporter sheets.ReportExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err.Error())
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = sheetmem.New()
		logger.Warn("Google Sheets disabled, exporting to memory - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(b.Repository, services.NewReportService(b.Repository, nil), exporter, cfg.ExportTimeout)

	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		stopConsuming()
	})

	// Recover from messages lost while the worker was down.
	month := time.Now().Format("2006-01")
	if _, failed, err := exportWorker.ExportAll(consumeCtx, month); err != nil {
		logger.Error("Startup export failed", applog.FieldError, err.Error(), "month", month)
	} else if failed > 0 {
		logger.Warn("Startup export had failures", "month", month, "errors", failed)
	}

	go func() {
		err := amqpClient.ConsumeSummaryUpdated(consumeCtx, exportWorker.HandleSummaryUpdated)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err.Error())
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
