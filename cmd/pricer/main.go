package main // Entry point of the fare suggestion tool

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
	"github.com/iliyamo/bus-occupancy-pricing/internal/config"
	"github.com/iliyamo/bus-occupancy-pricing/internal/database"
	"github.com/iliyamo/bus-occupancy-pricing/internal/logger"
	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
	"github.com/iliyamo/bus-occupancy-pricing/internal/pricing"
	"github.com/iliyamo/bus-occupancy-pricing/internal/repository"
)

func main() {
	var (
		q         pricing.Query
		seat      string
		departure string
	)
	flag.Int64Var(&q.RouteID, "route", 0, "route id")
	flag.Int64Var(&q.ScheduleID, "schedule", 0, "schedule id; supplies route and departure")
	flag.StringVar(&seat, "seat", string(model.SeatRegular), "seat type: regular, premium or sleeper")
	flag.Float64Var(&q.OccupancyRate, "occupancy", 0, "current occupancy rate in [0, 1]")
	flag.StringVar(&departure, "departure", "", "departure time, RFC 3339; peak hours are read in the configured pricing timezone")
	flag.Float64Var(&q.CurrentFare, "fare", 0, "current fare; derived from history or tariff when 0")
	flag.Parse()

	q.SeatType = model.SeatType(seat)
	if departure != "" {
		t, err := time.Parse(time.RFC3339, departure)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -departure: %v\n", err)
			os.Exit(2)
		}
		q.DepartureTime = t
	}
	os.Exit(run(q))
}

func run(q pricing.Query) int {
	cfg, err := config.Load()
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

	store := repository.NewStore(db, dialect, thresholds.Pricing.HistoryLimit)
	rdb := config.NewRedisClient() // nil when Redis is disabled or unreachable
	if rdb != nil {
		defer rdb.Close()
	}
	history := repository.NewHistoryCache(store, rdb, cfg.HistoryCacheTTL, log)
	svc := pricing.NewService(pricing.NewEngine(thresholds.Pricing), store, store, history, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := svc.Suggest(ctx, q)
	switch {
	case apperr.IsPricingValidation(err):
		fmt.Fprintln(os.Stderr, err)
		return 2
	case err != nil:
		log.Error("suggestion failed", zap.Error(err))
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		log.Error("encode suggestion", zap.Error(err))
		return 1
	}
	return 0
}
