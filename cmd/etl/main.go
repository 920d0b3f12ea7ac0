package main // Entry point of the occupancy cleaning pipeline

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
	"github.com/iliyamo/bus-occupancy-pricing/internal/config"
	"github.com/iliyamo/bus-occupancy-pricing/internal/database"
	"github.com/iliyamo/bus-occupancy-pricing/internal/etl"
	"github.com/iliyamo/bus-occupancy-pricing/internal/loader"
	"github.com/iliyamo/bus-occupancy-pricing/internal/logger"
	"github.com/iliyamo/bus-occupancy-pricing/internal/queue"
	"github.com/iliyamo/bus-occupancy-pricing/internal/repository"
	queue_publisher "github.com/iliyamo/bus-occupancy-pricing/internal/service"
)

func main() {
	file := flag.String("file", "", "process one batch file (- for stdin) and print its quality report")
	metadata := flag.String("metadata", "", "directory holding routes_metadata.json and operators_metadata.json, loaded first")
	consume := flag.Bool("consume", false, "consume batches from the batch queue until interrupted")
	migrate := flag.Bool("migrate", false, "create missing tables before processing")
	publish := flag.Bool("publish", true, "publish a processed-batch event to the report queue")
	flag.Parse()

	if *file == "" && *metadata == "" && !*consume && !*migrate {
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(run(*metadata, *file, *consume, *migrate, *publish))
}

func run(metadata, file string, consume, migrate, publish bool) int {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	thresholds, err := config.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		log.Error("thresholds rejected", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Error("database unavailable", zap.String("driver", cfg.DB.Driver), zap.Error(err))
		return 1
	}
	defer db.Close()

	dialect, err := repository.DialectFor(cfg.DB.Driver)
	if err != nil {
		log.Error("unsupported driver", zap.Error(err))
		return 1
	}
	if migrate {
		if err := repository.Migrate(ctx, db, dialect); err != nil {
			log.Error("migration failed", zap.Error(err))
			return 1
		}
		log.Info("schema ready", zap.String("driver", cfg.DB.Driver))
	}

	store := repository.NewStore(db, dialect, thresholds.Pricing.HistoryLimit)
	opts := []etl.Option{etl.WithWorkers(cfg.Workers), etl.WithLogger(log)}
	if publish {
		opts = append(opts, etl.WithPublisher(queue_publisher.ReportPublisher{URL: cfg.RabbitURL, Queue: cfg.ReportQueue, Log: log}))
	}
	pipeline := etl.NewPipeline(thresholds, loader.New(store, cfg.LoadWorkers, log), opts...)

	if metadata != "" {
		for _, name := range []string{"routes_metadata.json", "operators_metadata.json"} {
			path := filepath.Join(metadata, name)
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				log.Warn("metadata file missing", zap.String("path", path))
				continue
			}
			if code := processFile(ctx, pipeline, path, log); code != 0 {
				return code
			}
		}
	}
	if file != "" {
		if code := processFile(ctx, pipeline, file, log); code != 0 || !consume {
			return code
		}
	}
	if !consume {
		return 0
	}

	c := &queue.Consumer{
		URL:      cfg.RabbitURL,
		Queue:    cfg.BatchQueue,
		Prefetch: cfg.Workers,
		Log:      log,
		Handle: func(ctx context.Context, body []byte) error {
			_, err := pipeline.ProcessRaw(ctx, bytes.NewReader(body))
			return err
		},
	}
	log.Info("consuming batches", zap.String("queue", cfg.BatchQueue))
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("consumer stopped", zap.Error(err))
		return 1
	}
	return 0
}

// processFile runs one batch and renders its report to stdout.  A
// malformed batch exits with status 2 so callers can tell it apart from
// infrastructure failures.
func processFile(ctx context.Context, p *etl.Pipeline, path string, log *zap.Logger) int {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			log.Error("open batch", zap.String("path", path), zap.Error(err))
			return 1
		}
		defer f.Close()
		r = f
	}
	res, err := p.ProcessRaw(ctx, r)
	switch {
	case apperr.IsBatchFormat(err):
		log.Error("malformed batch", zap.String("path", path), zap.Error(err))
		return 2
	case err != nil:
		log.Error("batch failed", zap.String("path", path), zap.Error(err))
		return 1
	}
	if err := res.Report.Render(os.Stdout); err != nil {
		log.Error("render report", zap.Error(err))
		return 1
	}
	return 0
}
