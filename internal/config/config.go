// Package config loads the simulator's configuration from environment
// variables: HTTP server settings, logging, the upstream WebSocket
// venue, tuning knobs for the book/benchmarker/impact model, and the
// default control-surface parameters.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the application's full configuration tree.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Transport  TransportConfig
	Simulation SimulationConfig
	Parameters ParametersConfig
}

// ServerConfig configures the HTTP/WS output surface.
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
	Debug    bool
	Secret   string
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// TransportConfig configures the upstream L2 snapshot feed.
type TransportConfig struct {
	WSEndpoint       string
	ReconnectDelay   time.Duration
	MaxReconnectWait time.Duration
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	MaxRetries       int
}

// SimulationConfig tunes the Book, Benchmarker and ImpactModel.
type SimulationConfig struct {
	MaxOrderbookDepth    int
	ProcessingBatchSize  int
	BenchmarkInterval    int
	MetricsTTL           time.Duration
	ACMarketImpactFactor float64
	ACVolatilityFactor   float64
	ACRiskAversion       float64
}

// ParametersConfig seeds the Simulator's initial Parameters set.
type ParametersConfig struct {
	Exchange    string
	SpotAsset   string
	OrderType   string
	QuantityUSD float64
	Volatility  float64
	FeeTier     string
}

// Load reads configuration from the environment, applying defaults for
// anything unset. Returns an error only on an unrecoverable
// misconfiguration.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
			Debug:    getEnvAsBool("DEBUG", false),
			Secret:   getEnv("APP_SECRET", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_FILE", ""),
		},
		Transport: TransportConfig{
			WSEndpoint:       getEnv("WS_ENDPOINT", "wss://stream.example.com/ws"),
			ReconnectDelay:   getEnvAsDuration("WS_RECONNECT_DELAY", 2*time.Second),
			MaxReconnectWait: getEnvAsDuration("WS_MAX_RECONNECT_WAIT", 16*time.Second),
			PingInterval:     getEnvAsDuration("WS_PING_INTERVAL", 15*time.Second),
			ReadTimeout:      getEnvAsDuration("WS_READ_TIMEOUT", 30*time.Second),
			MaxRetries:       getEnvAsInt("WS_MAX_RETRIES", 10),
		},
		Simulation: SimulationConfig{
			MaxOrderbookDepth:    getEnvAsInt("MAX_ORDERBOOK_DEPTH", 50),
			ProcessingBatchSize:  getEnvAsInt("PROCESSING_BATCH_SIZE", 100),
			BenchmarkInterval:    getEnvAsInt("BENCHMARK_INTERVAL", 100),
			MetricsTTL:           getEnvAsDuration("METRICS_TTL", 100*time.Millisecond),
			ACMarketImpactFactor: getEnvAsFloat("AC_MARKET_IMPACT_FACTOR", 0.1),
			ACVolatilityFactor:   getEnvAsFloat("AC_VOLATILITY_FACTOR", 1.0),
			ACRiskAversion:       getEnvAsFloat("AC_RISK_AVERSION", 1e-6),
		},
		Parameters: ParametersConfig{
			Exchange:    getEnv("DEFAULT_EXCHANGE", "OKX"),
			SpotAsset:   getEnv("DEFAULT_SPOT_ASSET", "BTC-USDT"),
			OrderType:   getEnv("DEFAULT_ORDER_TYPE", "market"),
			QuantityUSD: getEnvAsFloat("DEFAULT_QUANTITY_USD", 100.0),
			Volatility:  getEnvAsFloat("DEFAULT_VOLATILITY", 0.02),
			FeeTier:     getEnv("DEFAULT_FEE_TIER", "VIP0"),
		},
	}

	if cfg.Transport.WSEndpoint == "" {
		return nil, fmt.Errorf("WS_ENDPOINT must not be empty")
	}
	if cfg.Simulation.MaxOrderbookDepth <= 0 {
		return nil, fmt.Errorf("MAX_ORDERBOOK_DEPTH must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
