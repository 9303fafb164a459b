package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"triflow/config"
	"triflow/internal/arb"
	"triflow/internal/exchange/bybit"
	"triflow/internal/session"
	"triflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge, cfg.Debug); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithEnv("APP_ENV").WithFields(logger.Fields{
		"service":     cfg.Triflow.Name,
		"version":     cfg.Triflow.Version,
		"environment": cfg.Triflow.Environment,
	}).Info("starting triflow")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("triflow stopped with error")
		os.Exit(1)
	}
	log.Info("triflow stopped")
}

// run owns the session so its cleanup completes before main decides the
// exit code.
func run(ctx context.Context, cfg *config.Config, log *logger.Log) error {
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}
	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	sess, err := session.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.WithError(err).Warn("session cleanup incomplete")
		}
	}()

	if cfg.Metrics.Prometheus.Enabled {
		go sess.Metrics.Serve(ctx, cfg.Metrics.Prometheus.Listen)
	}

	symbols, err := sess.Client.ListSymbols(ctx)
	if err != nil {
		if bybit.IsRateLimited(err) {
			log.WithComponent("main").Warn("exchange throttled the symbol listing")
		}
		return fmt.Errorf("load symbols: %w", err)
	}

	market := arb.NewMarket(symbols)
	triangles := arb.Enumerate(market, cfg.Strategy.Anchors)
	log.WithComponent("main").WithFields(logger.Fields{
		"symbols":   market.Len(),
		"anchors":   strings.Join(cfg.Strategy.Anchors, ","),
		"triangles": len(triangles),
	}).Info("triangles enumerated")
	if len(triangles) == 0 {
		return fmt.Errorf("no triangles found for anchors %v", cfg.Strategy.Anchors)
	}

	return sess.Scanner(triangles).Run(ctx)
}
