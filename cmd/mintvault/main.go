package main

import (
	"MintVault/internal/engine"
	"MintVault/internal/observability"
	"MintVault/internal/oracle"
	"MintVault/internal/persistence"
	"MintVault/internal/server"
	"MintVault/internal/state"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration, loaded from environment
// variables with the MINT_ prefix.
type Config struct {
	// Postgres. Empty means the in-memory store (dev mode, no durability).
	PostgresDSN   string
	MigrationsDir string

	// NATS (oracle request-reply plus effect publishing).
	NATSURL       string
	OracleTimeout time.Duration

	// HTTP/Metrics
	HTTPAddr    string
	MetricsAddr string

	// Bootstrap config, applied only when the store holds no config yet.
	Owner            string
	Oracle           string
	Collector        string
	CollateralOracle string
	Staking          string
	Factory          string
	BaseDenom        string
	TokenCodeID      int
	ProtocolFeeRate  string
}

func DefaultConfig() Config {
	return Config{
		PostgresDSN:      os.Getenv("MINT_POSTGRES_DSN"),
		MigrationsDir:    envOrDefault("MINT_MIGRATIONS_DIR", "migrations"),
		NATSURL:          envOrDefault("MINT_NATS_URL", "nats://localhost:4222"),
		OracleTimeout:    envDurationOrDefault("MINT_ORACLE_TIMEOUT", oracle.DefaultTimeout),
		HTTPAddr:         envOrDefault("MINT_HTTP_ADDR", ":8080"),
		MetricsAddr:      envOrDefault("MINT_METRICS_ADDR", ":9091"),
		Owner:            os.Getenv("MINT_OWNER"),
		Oracle:           os.Getenv("MINT_ORACLE"),
		Collector:        os.Getenv("MINT_COLLECTOR"),
		CollateralOracle: os.Getenv("MINT_COLLATERAL_ORACLE"),
		Staking:          os.Getenv("MINT_STAKING"),
		Factory:          os.Getenv("MINT_FACTORY"),
		BaseDenom:        envOrDefault("MINT_BASE_DENOM", "uusd"),
		TokenCodeID:      envIntOrDefault("MINT_TOKEN_CODE_ID", 0),
		ProtocolFeeRate:  envOrDefault("MINT_PROTOCOL_FEE_RATE", "0.015"),
	}
}

func main() {
	log := observability.NewLogger("main")
	log.Info().Msg("MintVault starting")

	cfg := DefaultConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Store ---
	var store state.Store
	if cfg.PostgresDSN != "" {
		db, err := persistence.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres open")
		}
		defer db.Close()

		migrator := persistence.NewMigrator(db, cfg.MigrationsDir)
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("run migrations")
		}
		store = persistence.NewPGStore(db, metrics)
		log.Info().Msg("postgres store ready")
	} else {
		store = state.NewMemStore()
		log.Warn().Msg("MINT_POSTGRES_DSN not set, using in-memory store")
	}

	if err := bootstrapConfig(store, cfg); err != nil {
		log.Fatal().Err(err).Msg("bootstrap config")
	}

	// --- NATS ---
	nc, err := oracle.Connect(cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()
	log.Info().Str("url", cfg.NATSURL).Msg("NATS connected")

	oracleClient := oracle.NewNATSClient(nc, cfg.OracleTimeout, metrics)
	publisher := server.NewNATSPublisher(nc, metrics)

	// --- Engine + HTTP server ---
	eng := engine.New(store, oracleClient, oracleClient, metrics)
	srv := server.New(eng, publisher, healthChecker, metrics)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 4)

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsHandler(),
	}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	healthChecker.SetReady(true)
	log.Info().Str("http", cfg.HTTPAddr).Str("metrics", cfg.MetricsAddr).Msg("MintVault ready")

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		log.Error().Err(err).Msg("goroutine failed, shutting down")
	}

	cancel()
	healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics shutdown")
	}

	log.Info().Msg("MintVault shutdown complete")
}

// bootstrapConfig seeds the engine config on first run. An existing config
// always wins; bootstrap envs are ignored after that.
func bootstrapConfig(store state.Store, cfg Config) error {
	if _, err := store.Config(); err == nil {
		return nil
	} else if !errors.Is(err, state.ErrNotFound) {
		return err
	}

	if cfg.Owner == "" {
		return fmt.Errorf("store holds no config and MINT_OWNER is not set")
	}
	feeRate, err := decimal.NewFromString(cfg.ProtocolFeeRate)
	if err != nil {
		return fmt.Errorf("parse MINT_PROTOCOL_FEE_RATE: %w", err)
	}

	seed := &state.Config{
		Owner:            cfg.Owner,
		Oracle:           cfg.Oracle,
		Collector:        cfg.Collector,
		CollateralOracle: cfg.CollateralOracle,
		Staking:          cfg.Staking,
		Factory:          cfg.Factory,
		BaseDenom:        cfg.BaseDenom,
		TokenCodeID:      uint64(cfg.TokenCodeID),
		ProtocolFeeRate:  feeRate,
	}
	if err := seed.Validate(); err != nil {
		return fmt.Errorf("bootstrap config: %w", err)
	}
	return store.PutConfig(seed)
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var i int
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return defaultVal
	}
	return i
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
