// Package session owns every long-lived resource of a run: the exchange
// client, notification channels, audit sinks, the event publisher and the
// debounce cache. Close releases them in reverse order of acquisition.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"triflow/config"
	"triflow/internal/arb"
	"triflow/internal/debounce"
	"triflow/internal/exchange/bybit"
	"triflow/internal/execution"
	"triflow/internal/metrics"
	"triflow/internal/notify"
	"triflow/logger"
	"triflow/models"
	"triflow/writer"
)

type closer struct {
	name string
	fn   func() error
}

type Session struct {
	Client    *bybit.Client
	Notifier  *notify.Notifier
	Audit     writer.MultiAudit
	Publisher *writer.KafkaPublisher
	Cache     debounce.Cache
	Metrics   *metrics.Recorder

	cfg      *config.Config
	file     *writer.FileAudit
	archiver *writer.S3Archiver
	closers  []closer
	log      *logger.Entry
}

// Open acquires all resources. On failure everything acquired so far is
// released before the error is returned.
func Open(ctx context.Context, cfg *config.Config) (s *Session, err error) {
	s = &Session{
		cfg:     cfg,
		Metrics: metrics.NewRecorder(),
		log:     logger.GetLogger().WithComponent("session"),
	}
	defer func() {
		if err != nil {
			if cerr := s.Close(); cerr != nil {
				s.log.WithError(cerr).Warn("cleanup after failed open")
			}
			s = nil
		}
	}()

	s.Client = bybit.NewClient(cfg.Exchange)
	s.push("exchange client", s.Client.Close)

	var senders []notify.Sender
	if cfg.Notify.Telegram.Enabled {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.Telegram))
	}
	s.Notifier = notify.NewNotifier(senders, cfg.Notify.Telegram.Timeout, s.Metrics)
	s.push("notifier", s.Notifier.Close)

	if s.file, err = writer.NewFileAudit(cfg.Audit); err != nil {
		return s, fmt.Errorf("open audit file: %w", err)
	}
	s.Audit = append(s.Audit, s.file)
	s.push("audit", s.closeAudit)
	if cfg.Audit.SQLite.Enabled {
		db, err := writer.OpenSQLiteAudit(ctx, cfg.Audit.SQLite.Path)
		if err != nil {
			return s, fmt.Errorf("open sqlite audit: %w", err)
		}
		s.Audit = append(s.Audit, db)
	}
	if cfg.Audit.S3.Enabled {
		if s.archiver, err = writer.NewS3Archiver(ctx, cfg.Audit.S3); err != nil {
			return s, fmt.Errorf("init s3 archiver: %w", err)
		}
	}

	if cfg.Publisher.Kafka.Enabled {
		if s.Publisher, err = writer.NewKafkaPublisher(cfg.Publisher.Kafka); err != nil {
			return s, fmt.Errorf("init kafka publisher: %w", err)
		}
		s.push("kafka publisher", s.Publisher.Close)
	}

	if s.Cache, err = openCache(ctx, cfg.Debounce); err != nil {
		return s, err
	}
	s.push("debounce cache", s.Cache.Close)

	s.log.WithFields(logger.Fields{
		"telegram":  cfg.Notify.Telegram.Enabled,
		"sqlite":    cfg.Audit.SQLite.Enabled,
		"s3":        cfg.Audit.S3.Enabled,
		"kafka":     cfg.Publisher.Kafka.Enabled,
		"debounce":  cfg.Debounce.Backend,
		"audit_log": cfg.Audit.Path,
	}).Info("session opened")
	return s, nil
}

func openCache(ctx context.Context, cfg config.DebounceConfig) (debounce.Cache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return debounce.NewMemoryCache(cfg.Hold, cfg.TTL), nil
	case "redis":
		c, err := debounce.NewRedisCache(ctx, debounce.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, cfg.Hold, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("open redis debounce cache: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown debounce backend %q", cfg.Backend)
	}
}

func (s *Session) push(name string, fn func() error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// closeAudit closes every audit sink, then ships the flushed file to S3.
func (s *Session) closeAudit() error {
	err := s.Audit.Close()
	if s.archiver != nil && s.file != nil {
		if aerr := s.archiver.Archive(context.Background(), s.file.Path()); aerr != nil {
			err = errors.Join(err, aerr)
		}
	}
	return err
}

// Scanner assembles the scan loop over triangles using the session's resources.
func (s *Session) Scanner(triangles []models.Triangle) *arb.Scanner {
	st := s.cfg.Strategy
	evaluator := arb.NewEvaluator(s.Client, arb.Params{
		CommissionRate:   st.CommissionRate,
		MinProfitPercent: st.MinProfitPercent,
		MaxProfitPercent: st.MaxProfitPercent,
		TargetNotional:   st.TargetNotional,
	})
	simulator := execution.NewSimulator(s.cfg.Execution.SimulateDelay, s.Notifier)

	sc := arb.ScannerConfig{
		Triangles:   triangles,
		Evaluator:   evaluator,
		Cache:       s.Cache,
		Gate:        arb.NewGatekeeper(s.Client, simulator),
		Notifier:    s.Notifier,
		Audit:       s.Audit,
		Metrics:     s.Metrics,
		Interval:    s.cfg.Scanner.Interval,
		Concurrency: s.cfg.Scanner.MaxConcurrency,
	}
	if s.Publisher != nil {
		sc.Publisher = s.Publisher
	}
	return arb.NewScanner(sc)
}

// Close releases resources in reverse order and joins their errors. It is
// safe to call more than once.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	s.closers = nil
	if len(errs) == 0 {
		s.log.Info("session closed")
	}
	return errors.Join(errs...)
}
