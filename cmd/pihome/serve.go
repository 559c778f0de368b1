package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/pihome/internal/api"
	"github.com/nerrad567/pihome/internal/audit"
	"github.com/nerrad567/pihome/internal/automation"
	"github.com/nerrad567/pihome/internal/infrastructure/database"
	"github.com/nerrad567/pihome/internal/infrastructure/influxdb"
	"github.com/nerrad567/pihome/internal/infrastructure/logging"
	"github.com/nerrad567/pihome/internal/infrastructure/mqtt"
)

// startupHealthTimeout bounds the health checks run once everything is up.
const startupHealthTimeout = 5 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and rule engine",
		Long: `Run the HTTP/WebSocket API, the MQTT device bridge and the rule engine
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
}

// run is the serve logic, separated from the command for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context, opts *rootOptions) error { //nolint:gocognit,gocyclo // Sequential startup wiring
	log := logging.Default()
	log.Info("starting PiHome Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, path, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if path == "" {
		log.Warn("no config file found, using defaults", "path", defaultConfigPath)
	} else {
		log.Info("configuration loaded", "path", path)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	st, err := openStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	// MQTT (optional)
	var mqttClient *mqtt.Client
	var publisher automation.MQTTClient
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		publisher = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	var recorder automation.Recorder
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorder = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Cancelled on any early return so background tasks stop with run.
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// The hub is shared by the API, the device bridge and the engine.
	hub := api.NewHub(cfg.WebSocket, log)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	bridge := automation.NewDeviceBridge(st.registry, publisher, hub, recorder, log)
	st.registry.OnChange(bridge.OnChange)
	st.registry.OnChange(audit.NewRecorder(st.audit, log).OnChange)
	st.kinds.OnSensorRead(bridge.OnSensorRead)
	if mqttClient != nil {
		if subErr := bridge.Subscribe(mqttClient); subErr != nil {
			return fmt.Errorf("subscribing to device commands: %w", subErr)
		}
		log.Info("device command bridge subscribed", "topic", mqtt.Topics{}.AllDeviceCommands())
	}

	engine := automation.NewEngine(st.registry, st.evaluator, publisher, hub, recorder, log, automation.EngineConfig{
		Interval: cfg.GetRuleInterval(),
		Workers:  cfg.Rules.Workers,
	})
	if cfg.Rules.Enabled {
		g.Go(func() error {
			return engine.Run(gctx)
		})
		log.Info("rule engine started", "interval", cfg.GetRuleInterval(), "workers", cfg.Rules.Workers)
	} else {
		log.Info("rule engine disabled")
	}

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Registry:    st.registry,
		Resolver:    st.resolver,
		Evaluator:   st.evaluator,
		Engine:      engine,
		Audit:       st.audit,
		MQTT:        mqttClient,
		DB:          st.db,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(gctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	healthCtx, cancel := context.WithTimeout(ctx, startupHealthTimeout)
	err = healthCheck(healthCtx, st.db, mqttClient, influxClient)
	cancel()
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("background task failed: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	log.Info("PiHome Core stopped")
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
