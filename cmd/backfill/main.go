package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/yanun0323/logs"

	"main/internal/backfill"
	"main/internal/exchange"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/ops"
	"main/internal/repository"
	"main/pkg/conn"
)

// One-shot historical backfill: fetch, upsert and verify one kline range,
// streaming the pipeline statuses to the log.
func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	symbol := flag.String("symbol", "BTCUSDT", "spot symbol")
	interval := flag.String("interval", "1d", "kline interval")
	start := flag.Int64("start", 0, "range start, unix seconds")
	end := flag.Int64("end", 0, "range end, unix seconds")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %+v", err)
	}

	pg, err := conn.New(conn.Option{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer func() {
		_ = pg.Close()
	}()

	store, err := repository.NewStore(pg.DB())
	if err != nil {
		log.Fatalf("create store: %v", err)
	}
	if err := store.AutoMigrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	provider := exchange.NewBinanceClient(exchange.BinanceConfig{
		BaseURL: cfg.Binance.BaseURL,
		Timeout: cfg.Binance.Timeout,
	})

	pipeline, err := backfill.NewPipeline(provider, store, backfill.Config{
		Market:    enum.MarketSpot,
		Symbol:    *symbol,
		Interval:  *interval,
		StartTime: *start,
		EndTime:   *end,
	})
	if err != nil {
		log.Fatalf("create pipeline: %+v", err)
	}

	for status := range pipeline.Run(ctx) {
		switch status.State {
		case model.StateFailed:
			log.Fatalf("backfill failed, symbol: %s, reason: %s", *symbol, status.Reason)
		default:
			logs.Infof("backfill %s, symbol: %s", status.State, *symbol)
		}
	}
}
