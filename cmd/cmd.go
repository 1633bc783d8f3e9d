package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/automation"
	"github.com/anicoll/doorbell-integration/internal/pkg/backend"
	"github.com/anicoll/doorbell-integration/internal/pkg/camera"
	"github.com/anicoll/doorbell-integration/internal/pkg/config"
	"github.com/anicoll/doorbell-integration/internal/pkg/database"
	"github.com/anicoll/doorbell-integration/internal/pkg/database/migration"
	"github.com/anicoll/doorbell-integration/internal/pkg/detector"
	"github.com/anicoll/doorbell-integration/internal/pkg/homeassistant"
	"github.com/anicoll/doorbell-integration/internal/pkg/metrics"
	"github.com/anicoll/doorbell-integration/internal/pkg/monitor"
	"github.com/anicoll/doorbell-integration/internal/pkg/mqtt"
	"github.com/anicoll/doorbell-integration/internal/pkg/pairing"
	"github.com/anicoll/doorbell-integration/internal/pkg/publisher"
	"github.com/anicoll/doorbell-integration/internal/pkg/server"
	"github.com/anicoll/doorbell-integration/pkg/hasher"
	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	errCron        = errors.New("cron error")
	errMissingHost = errors.New("home assistant host and token are required")
)

var reconnectDelay = 5 * time.Second

func DoorbellCommand(ctx *cli.Context) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}
	if settings.Backend.URL == "" {
		settings.Backend.URL = ctx.String("backend-url")
	}
	cfg := &config.Config{
		HomeAssistant: &config.HomeAssistantConfig{
			Host:        ctx.String("ha-host"),
			Token:       ctx.String("ha-token"),
			Ssl:         ctx.Bool("ha-ssl"),
			ExternalURL: ctx.String("ha-external-url"),
		},
		Mqtt: &config.MqttConfig{
			Host:     ctx.String("mqtt-host"),
			Username: ctx.String("mqtt-user"),
			Password: ctx.String("mqtt-pass"),
			ClientID: ctx.String("mqtt-client-id"),
		},
		DatabaseURL:      ctx.String("database-url"),
		MigrationsFolder: ctx.String("migrations-folder"),
		LogLevel:         ctx.String("log-level"),
		Settings:         settings,
	}
	if cfg.HomeAssistant.Host == "" || cfg.HomeAssistant.Token == "" {
		return errMissingHost
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	var store EventStore
	if cfg.DatabaseURL != "" {
		if cfg.MigrationsFolder != "" {
			if err := migration.Migrate(cfg.DatabaseURL, cfg.MigrationsFolder); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
		}
		db, err := database.New(ctx.Context, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	}

	return run(ctx.Context, cfg, homeassistant.New(cfg.HomeAssistant), store, logger)
}

// GenerateAPIKeyCommand prints a new control API key and the hash to configure.
func GenerateAPIKeyCommand(ctx *cli.Context) error {
	key, hash, err := hasher.GenerateAPIKey()
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "API key:      %s\nAPI_KEY_HASH: %s\n", key, hash)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	var err error
	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

// run wires every component around one home assistant connection. store may be nil.
func run(ctx context.Context, cfg *config.Config, ha HomeAssistant, store EventStore, logger *zap.Logger) error {
	errorChan := make(chan error, 1000)
	eg, ctx := errgroup.WithContext(ctx)

	states := publisher.New()
	if store != nil {
		if err := states.RegisterPublisher("postgres", store); err != nil {
			return err
		}
	}
	if cfg.Mqtt != nil && cfg.Mqtt.Host != "" {
		mqttSvc := mqtt.New(paho_mqtt.NewClient(mqtt.NewClientOptions(cfg.Mqtt)))
		if err := mqttSvc.Connect(); err != nil {
			return fmt.Errorf("connect to mqtt: %w", err)
		}
		if err := states.RegisterPublisher("mqtt", mqttSvc); err != nil {
			return err
		}
	}

	backendClient, err := backend.New(cfg.Backend)
	if err != nil {
		return err
	}
	snapshots, err := camera.New(cfg.Snapshot, ha, ha.BaseURL())
	if err != nil {
		return err
	}
	engine := automation.New(cfg.Automation, ha, snapshots, backendClient, states)
	pairs := pairing.NewEngine()
	mon := monitor.New(ha, pairs, engine, cfg.Automation.DebounceWindow())
	det := detector.New(cfg.Automation, ha, pairs, store, mon, engine)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if _, err := metrics.NewCollector(registry, engine, snapshots, det); err != nil {
		return err
	}

	if err := snapshots.Start(); err != nil {
		return err
	}
	defer snapshots.Stop(context.Background())

	if store != nil {
		eg.Go(func() error {
			return cronDbCleanup(ctx, store, cfg.Events, errorChan)
		})
	}

	eg.Go(func() error {
		return connectionLoop(ctx, ha, det, logger)
	})

	srv := &http.Server{
		Handler: server.New(det, engine, snapshots, backendClient, states, store).Handler(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			server.LoggingMiddleware,
			server.APIKeyMiddleware(cfg.Server.APIKeyHash),
		),
		Addr:         cfg.Server.Addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		// handle any async errors from service
		for {
			select {
			case err := <-errorChan:
				if errors.Is(err, errCron) {
					logger.Error("cron error", zap.Error(err))
					return err
				}
				logger.Warn("async error", zap.Error(err))
			case <-ctx.Done():
				logger.Info("context done")
				return ctx.Err()
			}
		}
	})

	return eg.Wait()
}

type detectorLifecycle interface {
	Setup(ctx context.Context) error
	Shutdown()
}

// connectionLoop keeps home assistant connected, rediscovering doorbells on every
// connect. Authentication failures are fatal.
func connectionLoop(ctx context.Context, ha HomeAssistant, det detectorLifecycle, logger *zap.Logger) error {
	for {
		if err := ha.Connect(ctx); err != nil {
			if errors.Is(err, homeassistant.ErrAuth) || ctx.Err() != nil {
				return err
			}
			logger.Error("unable to connect to home assistant", zap.Error(err))
			if err := sleep(ctx, reconnectDelay); err != nil {
				return err
			}
			continue
		}
		if err := det.Setup(ctx); err != nil {
			logger.Error("doorbell detection setup failed", zap.Error(err))
		}

		select {
		case err := <-ha.Disconnected():
			det.Shutdown()
			logger.Warn("home assistant disconnected", zap.Error(err))
			if err := sleep(ctx, reconnectDelay); err != nil {
				return err
			}
		case <-ctx.Done():
			det.Shutdown()
			_ = ha.Close()
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type eventCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

func cronDbCleanup(ctx context.Context, db eventCleaner, cfg config.EventStoreConfig, errChan chan error) error {
	if _, err := db.Cleanup(ctx, cfg.Retention); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.CleanupSchedule, func() {
		removed, err := db.Cleanup(ctx, cfg.Retention)
		if err != nil {
			zap.L().Error("error cleaning up database", zap.Error(err))
			errChan <- errCron
			return
		}
		zap.L().Info("removed old doorbell events", zap.Int64("removed", removed))
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
