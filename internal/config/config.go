package config

import (
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/veilscan/fogstore/internal/logging"
)

func LoadConfigs(pathToConfig string) {
	// Set the file name of the configurations file
	viper.SetConfigFile(pathToConfig)

	// Handle errors reading the config file
	if err := viper.ReadInConfig(); err != nil {
		logging.L.Warn().Err(err).Msg("No config file detected")
	}

	/* set defaults */
	viper.SetDefault("backend", Backend)
	viper.SetDefault("http_host", HTTPHost)
	viper.SetDefault("pool_size", PoolSize)
	viper.SetDefault("tx_timeout", TxTimeout)
	viper.SetDefault("retry_attempts", RetryAttempts)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_path", LogsPath)
	viper.SetDefault("log_to_console", true)

	// Bind viper keys to environment variables (optional, for backup)
	viper.AutomaticEnv()
	viper.BindEnv("backend", "BACKEND")
	viper.BindEnv("http_host", "HTTP_HOST")
	viper.BindEnv("pool_size", "POOL_SIZE")
	viper.BindEnv("tx_timeout", "TX_TIMEOUT")
	viper.BindEnv("retry_attempts", "RETRY_ATTEMPTS")
	viper.BindEnv("log_level", "LOG_LEVEL")

	/* read and set config variables */
	Backend = viper.GetString("backend")
	HTTPHost = viper.GetString("http_host")
	PoolSize = viper.GetInt("pool_size")
	TxTimeout = viper.GetDuration("tx_timeout")
	RetryAttempts = viper.GetInt("retry_attempts")
	LogLevel = viper.GetString("log_level")
	LogsPath = viper.GetString("log_path")
	LogToConsole = viper.GetBool("log_to_console")

	switch Backend {
	case BackendSQLite, BackendPebble:
	default:
		logging.L.Fatal().Str("backend", Backend).Msg("backend undefined")
		return
	}

	switch LogLevel {
	case "trace":
		logging.SetLogLevel(zerolog.TraceLevel)
	case "info":
		logging.SetLogLevel(zerolog.InfoLevel)
	case "debug":
		logging.SetLogLevel(zerolog.DebugLevel)
	case "warn":
		logging.SetLogLevel(zerolog.WarnLevel)
	case "error":
		logging.SetLogLevel(zerolog.ErrorLevel)
	}

	logging.L.Info().Msgf("backend: %s", Backend)
	logging.L.Info().Msgf("pool_size: %d", PoolSize)
	logging.L.Info().Msgf("tx_timeout: %s", TxTimeout)

	if PoolSize < 1 {
		logging.L.Fatal().Msg("pool_size must be at least 1")
	}
}
