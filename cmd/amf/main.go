package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gholtzap/amf/internal/client"
	"github.com/gholtzap/amf/internal/config"
	amfcontext "github.com/gholtzap/amf/internal/context"
	"github.com/gholtzap/amf/internal/database"
	"github.com/gholtzap/amf/internal/metrics"
	"github.com/gholtzap/amf/internal/nas"
	"github.com/gholtzap/amf/internal/ngap"
	"github.com/gholtzap/amf/internal/sbi"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config/amf.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := createLogger(cfg.Observability.Logging.Level)
	defer logger.Sync()

	logger.Info("Starting AMF (Access and Mobility Management Function)",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("amf_name", cfg.AMF.Name),
		zap.String("ngap_bind", cfg.NGAP.BindAddress),
		zap.String("sbi_bind", fmt.Sprintf("%s:%d", cfg.SBI.BindAddress, cfg.SBI.Port)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Context tables
	ranContext := amfcontext.NewRanContextManager()
	ueContext := amfcontext.NewUeContextManager()
	logger.Info("Context managers initialized")

	// Context snapshot persistence
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	var persister ngap.Persister
	if db != nil {
		persister = db
		defer db.Close()
		restoreContexts(ctx, db, ranContext, ueContext, logger)
	}

	// NGAP core
	handlers := ngap.NewHandlers(cfg, ranContext, ueContext, &nas.NopHandler{Logger: logger}, persister, logger)
	ngapServer := ngap.NewServer(cfg, handlers, ranContext, ueContext, logger)

	// SBI surface
	sbiServer := sbi.NewServer(cfg, ranContext, ueContext, handlers, logger)

	// Metrics
	if cfg.Observability.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Observability.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
		defer metricsServer.Stop()
	}
	metrics.SetServiceUp(true)
	defer metrics.SetServiceUp(false)

	// NRF registration
	if cfg.NRF.Enabled {
		nrfClient := client.NewNRFClient(cfg.NRF.URL, logger)
		profile := client.BuildProfile(cfg)

		if err := nrfClient.Register(ctx, profile); err != nil {
			logger.Error("Failed to register with NRF", zap.Error(err))
		} else {
			go func() {
				ticker := time.NewTicker(time.Duration(cfg.NRF.HeartbeatInterval) * time.Second)
				defer ticker.Stop()

				for {
					select {
					case <-ticker.C:
						if err := nrfClient.Heartbeat(ctx, cfg.NF.InstanceID); err != nil {
							metrics.NRFHeartbeatFailures.Inc()
							logger.Error("Heartbeat failed", zap.Error(err))
						}
					case <-ctx.Done():
						return
					}
				}
			}()

			defer func() {
				if err := nrfClient.Deregister(context.Background(), cfg.NF.InstanceID); err != nil {
					logger.Error("Failed to deregister from NRF", zap.Error(err))
				}
			}()
		}
	}

	// NGAP server: a bind failure is fatal.
	ngapErrors := make(chan error, 1)
	go func() {
		ngapErrors <- ngapServer.Start(ctx)
	}()

	// SBI server
	sbiErrors := make(chan error, 1)
	go func() {
		sbiErrors <- sbiServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-ngapErrors:
		if err != nil {
			logger.Fatal("NGAP server error", zap.Error(err))
		}
	case err := <-sbiErrors:
		logger.Fatal("SBI server error", zap.Error(err))
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := sbiServer.Stop(shutdownCtx); err != nil {
			logger.Error("Failed to gracefully shutdown SBI server", zap.Error(err))
		}
		<-ngapErrors

		logger.Info("AMF shutdown complete")
	}
}

// restoreContexts rebuilds the in-memory tables from persisted snapshots.
func restoreContexts(
	ctx context.Context,
	db *database.Database,
	ranContext *amfcontext.RanContextManager,
	ueContext *amfcontext.UeContextManager,
	logger *zap.Logger,
) {
	ranSnapshots, err := db.LoadRanContexts(ctx)
	if err != nil {
		logger.Error("Failed to load RAN context snapshots", zap.Error(err))
	}
	for _, rc := range ranSnapshots {
		// Associations did not survive the restart.
		rc.State = amfcontext.RanStateDisconnected
		ranContext.Update(rc)
	}

	ueSnapshots, err := db.LoadUeContexts(ctx)
	if err != nil {
		logger.Error("Failed to load UE context snapshots", zap.Error(err))
	}
	for _, uc := range ueSnapshots {
		ueContext.Update(uc)
		ueContext.AdvanceAllocator(uc.AmfUeNgapID)
	}

	logger.Info("Contexts restored from database",
		zap.Int("ran_contexts", len(ranSnapshots)),
		zap.Int("ue_contexts", len(ueSnapshots)),
	)
}

// createLogger creates a structured logger.
func createLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}

	return logger
}
