package config

import (
	"log"
	"math/big"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Matchmaking / session lifecycle
	QueueTTLMinutes       int
	SessionTTLMinutes     int
	MatcherPollSeconds    int
	SweeperPollSeconds    int
	ReconcilerPollSeconds int

	// Escrow contract (deployment-pinned)
	FeePercentage       int64
	MinBetWei           *big.Int
	MaxBetWei           *big.Int
	ChainTimeoutSeconds int
	ChainRPCURL         string
	EscrowAddress       string
	OwnerAddress        string

	// Identity
	IdentityAPIURL      string
	IdentityCacheTTLMin int

	// Security
	QuickAuthSecret string
	OwnerTokenHash  string
}

// Load reads configuration from the environment. Missing required values are
// fatal in production; development falls back to local defaults.
func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/chainduel?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		QueueTTLMinutes:       getEnvInt("QUEUE_TTL_MINUTES", 5),
		SessionTTLMinutes:     getEnvInt("SESSION_TTL_MINUTES", 10),
		MatcherPollSeconds:    getEnvInt("MATCHER_POLL_SECONDS", 2),
		SweeperPollSeconds:    getEnvInt("SWEEPER_POLL_SECONDS", 15),
		ReconcilerPollSeconds: getEnvInt("RECONCILER_POLL_SECONDS", 3),

		FeePercentage:       int64(getEnvInt("FEE_PERCENTAGE", 5)),
		MinBetWei:           getEnvWei("MIN_BET_WEI", "2500000000000000"),   // 0.0025 ether, the $5 tier
		MaxBetWei:           getEnvWei("MAX_BET_WEI", "500000000000000000"), // 0.5 ether, the $1000 tier
		ChainTimeoutSeconds: getEnvInt("CHAIN_TIMEOUT_SECONDS", 300),
		ChainRPCURL:         getEnv("CHAIN_RPC_URL", ""),
		EscrowAddress:       getEnv("ESCROW_ADDRESS", ""),
		OwnerAddress:        getEnv("OWNER_ADDRESS", ""),

		IdentityAPIURL:      getEnv("IDENTITY_API_URL", ""),
		IdentityCacheTTLMin: getEnvInt("IDENTITY_CACHE_TTL_MINUTES", 60),

		QuickAuthSecret: getEnv("QUICK_AUTH_SECRET", ""),
		OwnerTokenHash:  getEnv("OWNER_TOKEN_HASH", ""),
	}

	if cfg.Environment == "production" {
		mustSet("DATABASE_URL")
		mustSet("REDIS_URL")
		mustSet("OWNER_TOKEN_HASH")
	}
	if cfg.MinBetWei.Sign() <= 0 || cfg.MaxBetWei.Cmp(cfg.MinBetWei) < 0 {
		log.Fatalf("[CONFIG] invalid bet bounds: min=%s max=%s", cfg.MinBetWei, cfg.MaxBetWei)
	}
	if cfg.FeePercentage < 0 || cfg.FeePercentage >= 100 {
		log.Fatalf("[CONFIG] invalid FEE_PERCENTAGE: %d", cfg.FeePercentage)
	}

	return cfg
}

func mustSet(key string) {
	if os.Getenv(key) == "" {
		log.Fatalf("[CONFIG] %s is required in production", key)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvWei(key, defaultValue string) *big.Int {
	raw := getEnv(key, defaultValue)
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		log.Fatalf("[CONFIG] %s must be a base-10 wei amount, got %q", key, raw)
	}
	return v
}
