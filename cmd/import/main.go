// Command import reads a CSV of submissions, validates each row, optionally
// detects constellations for rows that have none, and queues the accepted
// rows on the pending-review topic. Nothing is written to the store.
//
// Usage:
//
//	go run ./cmd/import -csv data/import/2024-spring.csv [-detect] [-batch 100]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/skylore-service/internal/adapter/csvfile"
	kafkaadapter "github.com/couchcryptid/skylore-service/internal/adapter/kafka"
	"github.com/couchcryptid/skylore-service/internal/adapter/photostore"
	"github.com/couchcryptid/skylore-service/internal/app"
	"github.com/couchcryptid/skylore-service/internal/config"
	"github.com/couchcryptid/skylore-service/internal/observability"
	"github.com/couchcryptid/skylore-service/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "CSV file to import")
	detect := flag.Bool("detect", false, "detect constellations for rows without names")
	batch := flag.Int("batch", 100, "messages per publish call")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -csv")
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	raws, err := csvfile.ReadFile(*csvPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *csvPath, err)
	}
	logger.Info("csv loaded", "path", *csvPath, "rows", len(raws))

	var enricher *pipeline.Enricher
	if *detect {
		detector := app.NewDetector(cfg, metrics, logger)
		if detector == nil {
			return fmt.Errorf("-detect requires ASTROMETRY_API_KEY")
		}
		enricher = pipeline.NewEnricher(detector, photostore.NewFetcher(nil), logger)
	}

	writer := kafkaadapter.NewWriter(cfg, logger)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}()

	importer := pipeline.NewImporter(writer, enricher, logger, metrics, *batch)
	report, err := importer.Import(ctx, raws)
	if err != nil {
		return err
	}

	for _, r := range report.Rejected {
		fmt.Fprintf(os.Stderr, "row %d rejected: %v\n", r.Index, r.Err)
	}
	fmt.Printf("read %d, queued %d for review on %s, rejected %d\n",
		report.Read, report.Queued, cfg.KafkaReviewTopic, len(report.Rejected))
	if *detect {
		e := report.Enriched
		fmt.Printf("detection: %d attempted, %d detected, %d failed, %d timed out\n",
			e.Attempted, e.Detected, e.Failed, e.TimedOut)
	}
	return nil
}
