// Hearth Core - Household Trust & Access Control service
//
// This is the main entry point for Hearth Core, the backend for the Hearth
// household-operations app. It owns the security-sensitive subsystems: the
// PIN-gated vault for encrypted household secrets, time-windowed guest
// access grants, and the compliance audit trail.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/hearthops/hearth-core/migrations"

	"github.com/hearthops/hearth-core/internal/api"
	"github.com/hearthops/hearth-core/internal/audit"
	"github.com/hearthops/hearth-core/internal/auth"
	"github.com/hearthops/hearth-core/internal/grant"
	"github.com/hearthops/hearth-core/internal/infrastructure/config"
	"github.com/hearthops/hearth-core/internal/infrastructure/database"
	"github.com/hearthops/hearth-core/internal/infrastructure/logging"
	"github.com/hearthops/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearthops/hearth-core/internal/infrastructure/telemetry"
	"github.com/hearthops/hearth-core/internal/notify"
	"github.com/hearthops/hearth-core/internal/vault"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
//nolint:gocognit,gocyclo // linear wiring of subsystems, no real branching complexity
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration. Validation fails hard when vault key material is
	// missing — the vault must never start in a state where it cannot
	// decrypt.
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Derive the vault encryption key before touching anything else.
	secretStore, err := vault.NewSecretStore(cfg.Security.Vault.MasterSecret)
	if err != nil {
		return fmt.Errorf("initialising secret store: %w", err)
	}

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	householdRepo := auth.NewHouseholdRepository(db.DB)
	userRepo := auth.NewUserRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	settingsRepo := vault.NewSQLiteSettingsRepository(db.DB)
	secretRepo := vault.NewSQLiteSecretRepository(db.DB)
	grantRepo := grant.NewSQLiteRepository(db.DB)

	// First-boot seed: create the initial household and owner account
	if _, seedErr := auth.SeedOwner(ctx, householdRepo, userRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding owner: %w", seedErr)
	}

	// Notification transport (optional)
	var notifier grant.Notifier
	if cfg.Notify.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.Notify)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Notify.Broker.Host, cfg.Notify.Broker.Port),
			"client_id", cfg.Notify.Broker.ClientID,
		)
		notifier = notify.NewDispatcher(mqttClient)
	} else {
		log.Info("notification transport disabled")
	}

	// Security telemetry (optional)
	var telemetryClient *telemetry.Client
	if cfg.InfluxDB.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		telemetryClient.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		log.Info("telemetry connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("telemetry disabled")
	}

	// Vault sessions and grant registry
	unlockLimiter := auth.NewAttemptLimiter(cfg.Security.Vault.UnlockAttemptsPerMin, 0)
	sessions := vault.NewSessionManager(settingsRepo, auditRepo, unlockLimiter, log.Logger,
		cfg.Security.Vault.DefaultAutoLock)
	registry := grant.NewRegistry(grantRepo, auditRepo, notifier, log.Logger)

	// Non-authoritative expiry sweep for grant listings
	sweeper := grant.NewSweeper(grantRepo, log.Logger, 0)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// API server
	server, err := api.New(api.Deps{
		Config:        cfg.API,
		Security:      cfg.Security,
		Logger:        log,
		UserRepo:      userRepo,
		HouseholdRepo: householdRepo,
		Sessions:      sessions,
		SecretStore:   secretStore,
		SecretRepo:    secretRepo,
		SettingsRepo:  settingsRepo,
		Grants:        registry,
		GrantRepo:     grantRepo,
		AuditRepo:     auditRepo,
		Telemetry:     telemetryClient,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify infrastructure is healthy before declaring ready
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: database: %w", err)
	}
	if telemetryClient != nil {
		if err := telemetryClient.HealthCheck(ctx); err != nil {
			log.Warn("telemetry health check failed", "error", err)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, telemetry, MQTT, sweeper, database.

	log.Info("Hearth Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
