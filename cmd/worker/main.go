package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/securequery/agent-api/internal/alert"
	"github.com/securequery/agent-api/internal/config"
	"github.com/securequery/agent-api/internal/repository/postgres"
	auditService "github.com/securequery/agent-api/internal/service/audit"
	"github.com/securequery/agent-api/internal/worker"
	"github.com/securequery/agent-api/pkg/logger"
	"github.com/securequery/agent-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	lg := logger.NewLogger(&logger.Config{
		Level:  level,
		Format: cfg.Logging.Format,
	})
	zl := *lg.Zerolog()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to audit database")
	}
	defer db.Close()
	repo := postgres.NewAuditRepository(db)

	m := metrics.New("agent_worker", prometheus.DefaultRegisterer)
	notifier := alert.NewService(nil, nil, m, zl)

	fallbackOut := os.Stderr
	if cfg.Audit.FallbackPath != "" {
		f, err := os.OpenFile(cfg.Audit.FallbackPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open audit fallback file")
		}
		defer f.Close()
		fallbackOut = f
	}

	auditor := auditService.NewService(
		repo,
		auditService.NewFallbackSink(fallbackOut),
		notifier,
		m,
		auditService.WithWriteTimeout(time.Duration(cfg.Audit.WriteTimeoutSeconds)*time.Second),
	)

	retention := worker.NewRetentionWorker(
		repo,
		auditor,
		cfg.Audit.RetentionDays,
		time.Duration(cfg.Audit.PurgeIntervalHours)*time.Hour,
		zl,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go retention.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info().Msg("shutting down worker")
	cancel()
}
