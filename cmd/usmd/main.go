package main

import (
	"context"
	"os"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/usmfum/usmd/internal/config"
	"github.com/usmfum/usmd/internal/ledger"
	"github.com/usmfum/usmd/internal/logger"
	"github.com/usmfum/usmd/internal/monitor"
	"github.com/usmfum/usmd/internal/oracle"
	"github.com/usmfum/usmd/internal/state"
	"github.com/usmfum/usmd/internal/usm"
	"github.com/usmfum/usmd/internal/web"
)

const (
	MONITOR_INTERVAL = 1 * time.Minute
)

// main is the entry point for the USM issuer service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("USM issuer core starting...")

	// Initialize Database Connection (operation journal + solvency snapshots)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Price Source Initialization (with Safety Switch) ---
	var source oracle.PriceSource
	switch config.OracleMode {
	case config.OracleModeHTTP:
		httpSource, err := oracle.NewHTTPSource(config.OracleFeedURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize HTTP price source")
		}
		source = httpSource
		log.Info().Str("feed", config.OracleFeedURL).Msg("Using live HTTP price feed")
	case config.OracleModeFixed:
		price, ok := sdkmath.NewIntFromString(config.OracleFixedPrice)
		if !ok {
			log.Fatal().Str("price", config.OracleFixedPrice).Msg("ORACLE_FIXED_PRICE is not a base-10 integer")
		}
		source = oracle.FixedSource{Price: price, Shift: config.OracleFixedShift}
		log.Warn().
			Str("price", config.OracleFixedPrice).
			Uint64("shift", config.OracleFixedShift).
			Msg("Using FIXED price source. Conversions will not track any market.")
	default:
		log.Fatal().Str("mode", config.OracleMode).Msg("Unknown ORACLE_MODE. Halting.")
	}

	priceOracle, err := oracle.NewAdapter(source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create oracle adapter")
	}

	// --- 3. Issuer Core ---
	supplyLedger := ledger.NewMemoryLedger()

	issuer, err := usm.New(usm.Config{
		Name:   config.TokenName,
		Symbol: config.TokenSymbol,
		Oracle: priceOracle,
		Ledger: supplyLedger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create USM instance")
	}

	// --- 4. Web API ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, issuer, supplyLedger)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting issuer API server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Solvency Monitor Loop ---
	solvencyMonitor, err := monitor.New(monitor.Config{
		Issuer: issuer,
		Ledger: supplyLedger,
		Oracle: priceOracle,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create solvency monitor")
	}

	log.Info().Str("interval", MONITOR_INTERVAL.String()).Msg("Starting solvency monitor loop")
	solvencyMonitor.RunLoop(context.Background(), MONITOR_INTERVAL)
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
