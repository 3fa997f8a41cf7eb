package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"golang.org/x/time/rate"

	"main/internal/exchange"
	"main/internal/ops"
	"main/internal/rates"
	"main/internal/repository"
	"main/internal/workflow"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	workflowPath := flag.String("workflow", "workflow.json", "path to workflow definition")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %+v", err)
	}

	if cfg.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   cfg.Profiling.ServerAddress,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	data, err := os.ReadFile(*workflowPath)
	if err != nil {
		log.Fatalf("read workflow: %v", err)
	}

	def, err := workflow.Parse(data)
	if err != nil {
		log.Fatalf("parse workflow: %+v", err)
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

	binance := exchange.NewBinanceClient(exchange.BinanceConfig{
		BaseURL:   cfg.Binance.BaseURL,
		APIKey:    cfg.Binance.APIKey,
		SecretKey: cfg.Binance.SecretKey,
		Timeout:   cfg.Binance.Timeout,
	})

	client := exchange.WithRetry(binance, exchange.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Wait:        cfg.Retry.Wait,
		Timeout:     cfg.Retry.Timeout,
		RateLimit:   rate.Limit(cfg.Retry.RateLimit),
		Burst:       cfg.Retry.Burst,
	})

	graph, err := workflow.Build(def, workflow.Dependencies{
		Client:   client,
		Provider: binance,
		Stream:   exchange.NewBinanceStream(ctx),
		Store:    store,
		Rates: rates.NewEngine(rates.Option{
			CacheTTL:         cfg.Rates.CacheTTL,
			OutlierThreshold: cfg.Rates.OutlierThreshold,
			DecayFactor:      cfg.Rates.DecayFactor,
		}),
		StatsRepo: store,
	})
	if err != nil {
		log.Fatalf("build workflow: %+v", err)
	}

	logs.Infof("workflow starting, id: %s, nodes: %d", def.ID, len(def.Nodes))

	if err := graph.Run(ctx); err != nil {
		log.Fatalf("workflow failed: %+v", err)
	}

	logs.Infof("workflow finished, id: %s", def.ID)
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
