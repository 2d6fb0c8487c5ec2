package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Oracle operating modes.
const (
	OracleModeHTTP  = "http"
	OracleModeFixed = "fixed"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// TokenName is the display name of the synthetic asset.
	TokenName string
	// TokenSymbol is the display symbol of the synthetic asset.
	TokenSymbol string

	// OracleMode selects the price source: "http" for a live feed, "fixed"
	// for a constant price (dry runs and local development).
	OracleMode string
	// OracleFeedURL is the price feed endpoint. Required in http mode.
	OracleFeedURL string
	// OracleFixedPrice is the raw price returned in fixed mode, as a base-10
	// integer in the feed's native decimal scale. Required in fixed mode.
	OracleFixedPrice string
	// OracleFixedShift is the decimal shift of the fixed price.
	OracleFixedShift uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	TokenName, err = getEnv("TOKEN_NAME")
	if err != nil {
		return err
	}

	TokenSymbol, err = getEnv("TOKEN_SYMBOL")
	if err != nil {
		return err
	}

	OracleMode, err = getEnv("ORACLE_MODE")
	if err != nil {
		return err
	}

	switch OracleMode {
	case OracleModeHTTP:
		OracleFeedURL, err = getEnv("ORACLE_FEED_URL")
		if err != nil {
			return err
		}
	case OracleModeFixed:
		OracleFixedPrice, err = getEnv("ORACLE_FIXED_PRICE")
		if err != nil {
			return err
		}
		OracleFixedShift, err = getEnvAsUint64("ORACLE_FIXED_SHIFT")
		if err != nil {
			return err
		}
	default:
		return errors.New("ORACLE_MODE must be either 'http' or 'fixed', got: " + OracleMode)
	}

	log.Debug().
		Str("TokenName", TokenName).
		Str("TokenSymbol", TokenSymbol).
		Str("OracleMode", OracleMode).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
