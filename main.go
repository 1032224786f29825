package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"retail-analytics/pkg/calculator"
	"retail-analytics/pkg/config"
	"retail-analytics/pkg/database"
	"retail-analytics/pkg/export"
	"retail-analytics/pkg/ingest"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	configPath := flag.String("config", os.Getenv("RETAIL_CONFIG"), "YAML settings file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment")
	flag.String("dsn", "", "store DSN (sqlite://path, mysql://, mariadb://, postgres://, clickhouse://, memory://)")
	flag.String("table", "", "store table name")
	flag.String("csv", "", "Online Retail CSV to ingest when the store is empty")
	flag.String("out", "", "output directory (fs sink) or key prefix (s3/gcs)")
	flag.String("format", "", "artifact format: csv | json")
	flag.String("sink", "", "export sink: fs | s3 | gcs")
	flag.String("bucket", "", "bucket for s3/gcs sinks")
	flag.String("as-of", "", "RFM evaluation instant (RFC3339 or 2006-01-02 15:04:05); default latest invoice")
	flag.Int("workers", 0, "reports run in parallel (<=1 sequential)")
	flag.String("reports", "", "comma-separated report names (default all)")
	flag.String("start_month", "", "first cohort month for cohort_ltv (MMYYYY)")
	flag.String("end_month", "", "last cohort month for cohort_ltv (MMYYYY)")
	flag.Bool("v", false, "verbose logging")
	flag.Parse()

	settings, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// explicit flags win over file and environment
	if err := settings.ApplyFlags(flag.CommandLine); err != nil {
		log.Fatalf("flags: %v", err)
	}
	if err := settings.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	cfg, err := settings.Engine()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	sinkOpts, err := settings.SinkOptions()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	store, err := database.Open(ctx, settings.DSN, settings.Table)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	// Ingestion
	if settings.CSVPath != "" {
		n, err := store.Count(ctx)
		if err != nil {
			log.Fatalf("count store: %v", err)
		}
		if n > 0 {
			log.Printf("[INFO] store already holds %d lines, skipping ingestion of %s", n, settings.CSVPath)
		} else {
			res, err := ingest.LoadFile(ctx, settings.CSVPath, store, ingest.DefaultChunkSize)
			if err != nil {
				log.Fatalf("ingest: %v", err)
			}
			log.Printf("[INFO] Data loaded successfully: read=%d inserted=%d skipped=%d chunks=%d",
				res.RowsRead, res.RowsInserted, res.RowsSkipped, res.Chunks)
		}
	}

	// Export
	sink, err := export.NewSink(ctx, sinkOpts)
	if err != nil {
		log.Fatalf("export sink: %v", err)
	}
	if c, ok := sink.(io.Closer); ok {
		defer c.Close()
	}

	// Reports
	summary, err := calculator.Run(ctx, store, sink, cfg)
	if err != nil {
		if errors.Is(err, calculator.ErrMissingInput) {
			log.Fatalf("no data: %v (ingest a CSV with -csv first)", err)
		}
		log.Fatalf("run: %v", err)
	}

	fmt.Printf("run %s\n", summary.RunID)
	for _, a := range summary.Produced {
		fmt.Printf("  %-34s %6d rows -> %s\n", a.Name, a.Rows, a.Location)
	}
	for _, name := range summary.Skipped {
		fmt.Printf("  %-34s empty, skipped\n", name)
	}
	for _, f := range summary.Failures {
		fmt.Printf("  %-34s FAILED: %v\n", f.Name, f.Err)
	}
	fmt.Printf("%d artifacts exported, %d skipped, %d failed\n",
		len(summary.Produced), len(summary.Skipped), len(summary.Failures))
	if len(summary.Failures) > 0 {
		os.Exit(1)
	}
}
