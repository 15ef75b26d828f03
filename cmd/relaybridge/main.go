// Relay Bridge - MQTT relay fleet control over Telegram and a local
// web dashboard.
//
// The bridge tracks a small fleet of 4-relay devices over MQTT, keeps
// their state in a SQLite-backed registry, and exposes control through
// a Telegram bot and a LAN dashboard with real-time WebSocket push.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nerrad567/relay-bridge/internal/api"
	"github.com/nerrad567/relay-bridge/internal/auth"
	"github.com/nerrad567/relay-bridge/internal/bot"
	"github.com/nerrad567/relay-bridge/internal/bot/telegram"
	"github.com/nerrad567/relay-bridge/internal/bridge"
	"github.com/nerrad567/relay-bridge/internal/device"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/config"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/database"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/relay-bridge/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Deferred Close calls tear components down in reverse
// start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Relay Bridge", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	adminID, err := strconv.ParseInt(cfg.Telegram.AdminID, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing telegram admin_id %q: %w", cfg.Telegram.AdminID, err)
	}

	// Persistence
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	snapshots := store.New(db)

	// Registries
	registry := device.NewRegistry(snapshots, device.Limits{
		MaxDevices:       cfg.Devices.Max,
		WarningThreshold: cfg.Devices.WarningThreshold,
	})
	registry.SetLogger(log)
	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("loading device registry: %w", err)
	}
	log.Info("device registry loaded",
		"devices", registry.Count(),
		"pending", registry.PendingCount(),
	)

	users := auth.NewUsers(snapshots, adminID, cfg.Passwords.User)
	users.SetLogger(log)
	if err := users.Load(ctx); err != nil {
		return fmt.Errorf("loading operators: %w", err)
	}

	// Transport
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Engine
	// #nosec G115 -- QoS validated by config to be 0..2
	engine := bridge.New(registry, users, mqttClient, cfg.Devices, byte(cfg.MQTT.QoS))
	engine.SetLogger(log)

	// Telemetry (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		engine.SetTelemetry(influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Dashboard
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Engine:  engine,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating dashboard server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting dashboard server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing dashboard server", "error", closeErr)
		}
	}()
	engine.SetBroadcaster(apiServer.Hub())

	// Chat surface
	adapter, err := telegram.New(cfg.Telegram)
	if err != nil {
		return fmt.Errorf("connecting to Telegram: %w", err)
	}
	adapter.SetLogger(log)

	chatBot := bot.New(adapter, engine, dashboardURL(cfg.API), cfg.Devices.PageSize)
	chatBot.SetLogger(log)
	engine.SetNotifier(chatBot.Notifier())

	go func() {
		if runErr := adapter.Run(ctx, chatBot); runErr != nil && !errors.Is(runErr, context.Canceled) {
			log.Error("telegram update pump stopped", "error", runErr)
		}
	}()
	log.Info("Telegram bot connected", "bot", adapter.Username())

	// Device topic subscriptions and the offline watchdog come last, so
	// every inbound event finds fully wired collaborators.
	if err := engine.Start(); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	go engine.RunWatchdog(ctx)

	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses RELAYBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RELAYBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// dashboardURL builds the address operators should open in a browser.
func dashboardURL(cfg config.APIConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Port)
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when telemetry is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
