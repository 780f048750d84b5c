package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/securequery/agent-api/internal/alert"
	"github.com/securequery/agent-api/internal/config"
	"github.com/securequery/agent-api/internal/email"
	auditHandler "github.com/securequery/agent-api/internal/handler/audit"
	healthHandler "github.com/securequery/agent-api/internal/handler/health"
	queryHandler "github.com/securequery/agent-api/internal/handler/query"
	"github.com/securequery/agent-api/internal/middleware"
	"github.com/securequery/agent-api/internal/phi"
	"github.com/securequery/agent-api/internal/repository/postgres"
	"github.com/securequery/agent-api/internal/router"
	"github.com/securequery/agent-api/internal/service/access"
	"github.com/securequery/agent-api/internal/service/agent"
	auditService "github.com/securequery/agent-api/internal/service/audit"
	cryptoService "github.com/securequery/agent-api/internal/service/crypto"
	"github.com/securequery/agent-api/internal/sqlguard"
	"github.com/securequery/agent-api/internal/translator"
	"github.com/securequery/agent-api/internal/warehouse"
	"github.com/securequery/agent-api/pkg/auth"
	"github.com/securequery/agent-api/pkg/logger"
	"github.com/securequery/agent-api/pkg/messaging"
	"github.com/securequery/agent-api/pkg/messaging/redis"
	"github.com/securequery/agent-api/pkg/metrics"
	"github.com/securequery/agent-api/pkg/security"
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

	// Audit store.
	auditDB, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to audit database")
	}
	defer auditDB.Close()
	auditRepo := postgres.NewAuditRepository(auditDB)

	// Warehouse connection; queries only ever read from it.
	warehouseDB, err := postgres.NewDB(cfg.Warehouse.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to warehouse")
	}
	defer warehouseDB.Close()
	engine := warehouse.NewPostgresEngine(warehouseDB, warehouse.Config{
		MaxRows: cfg.Warehouse.MaxRows,
		Timeout: time.Duration(cfg.Warehouse.TimeoutSeconds) * time.Second,
	})

	// Field encryption keys are derived from environment secrets.
	keys := security.DeriveKeys(
		map[int]string{1: cfg.Secrets.EncryptionPassphrase},
		[]byte(cfg.Secrets.EncryptionSalt),
	)
	encryptor, err := security.NewAESEncryptor(keys)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize field encryption")
	}

	m := metrics.New("agent_api", prometheus.DefaultRegisterer)

	var broker messaging.Broker
	if cfg.Redis.Enabled {
		broker, err = redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, &zl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer broker.Close()
	}

	var mailer email.Service
	if cfg.SMTP.Enabled {
		mailer = email.NewSMTPService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.Secrets.SMTPPassword,
			From:     cfg.SMTP.From,
			To:       cfg.SMTP.To,
		})
	}

	notifier := alert.NewService(broker, mailer, m, zl)

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
		auditRepo,
		auditService.NewFallbackSink(fallbackOut),
		notifier,
		m,
		auditService.WithWriteTimeout(time.Duration(cfg.Audit.WriteTimeoutSeconds)*time.Second),
	)

	phiCfg := phi.DefaultConfig()
	if cfg.PHI.RulesFile != "" {
		phiCfg, err = phi.LoadConfig(cfg.PHI.RulesFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load PHI rules")
		}
	}
	classifier, err := phi.NewClassifier(phiCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build PHI classifier")
	}

	cryptoSvc := cryptoService.NewService(encryptor, auditor, notifier, m)
	accessSvc := access.NewService(classifier)

	var tr translator.Translator
	if cfg.Translator.Enabled {
		tr = translator.NewHTTPTranslator(translator.Config{
			BaseURL:     cfg.Translator.BaseURL,
			APIKey:      cfg.Secrets.TranslatorAPIKey,
			Model:       cfg.Translator.Model,
			Temperature: cfg.Translator.Temperature,
			MaxTokens:   cfg.Translator.MaxTokens,
			Timeout:     time.Duration(cfg.Translator.TimeoutSeconds) * time.Second,
		})
	}

	agentSvc := agent.NewService(
		sqlguard.New(0),
		accessSvc,
		classifier,
		cryptoSvc,
		auditor,
		engine,
		tr,
		m,
		zl,
	)

	jwtSvc := auth.NewJWTService(
		cfg.Secrets.JWTSecret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		cfg.JWT.Issuer,
	)

	r := router.New(
		router.Config{
			Environment:      cfg.Environment,
			QueriesPerMinute: cfg.RateLimit.QueriesPerMinute,
		},
		middleware.NewAuthMiddleware(jwtSvc),
		queryHandler.NewHandler(agentSvc),
		auditHandler.NewHandler(auditor),
		healthHandler.NewHandler(auditDB, warehouseDB),
		zl,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.ServerTimeout(),
		WriteTimeout: cfg.ServerTimeout(),
	}

	go func() {
		zl.Info().Int("port", cfg.Server.Port).Str("environment", cfg.Environment).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	zl.Info().Msg("server exited")
}
