package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level settings. Domain thresholds live in Policy.
type Config struct {
	Environment        string
	OpsAddr            string
	DatabaseURL        string
	ReviewerSigningKey string
	PolicyFile         string
	Redis              RedisConfig
	Kafka              KafkaConfig
	Policy             Policy
}

// RedisConfig configures the Redis client used for the distributed ledger and
// per-subject locks. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// LockTTL is how long a subject stays locked after its holder dies.
	LockTTL      time.Duration
}

// KafkaConfig configures the audit outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	RelayInterval time.Duration
}

// IsProduction reports whether the process runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load builds the process configuration from the environment and the policy
// file it names, applying environment overrides on top of the policy.
func Load() (Config, error) {
	cfg := FromEnv()

	policy, err := LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return Config{}, err
	}
	if err := applyPolicyOverrides(&policy); err != nil {
		return Config{}, err
	}
	if err := policy.Validate(); err != nil {
		return Config{}, err
	}
	cfg.Policy = policy

	if cfg.IsProduction() && cfg.ReviewerSigningKey == devSigningKey {
		return Config{}, fmt.Errorf("REVIEWER_SIGNING_KEY must be set in production")
	}
	return cfg, nil
}

const devSigningKey = "dev-reviewer-key-change-in-production"

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		OpsAddr:            getEnv("RWAGATE_OPS_ADDR", ":9090"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		ReviewerSigningKey: getEnv("REVIEWER_SIGNING_KEY", devSigningKey),
		PolicyFile:         os.Getenv("RWAGATE_POLICY_FILE"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			LockTTL:      getEnvDuration("REDIS_LOCK_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:         getEnv("AUDIT_TOPIC", "rwagate.audit"),
			RelayInterval: time.Second,
		},
	}
}

// applyPolicyOverrides lets deployments flip the required/auto-verify
// switches without editing the policy file.
func applyPolicyOverrides(p *Policy) error {
	for _, o := range []struct {
		key string
		dst *bool
	}{
		{"KYC_REQUIRED", &p.KYC.Required},
		{"KYC_AUTO_VERIFY", &p.KYC.AutoVerify},
		{"RWA_REQUIRED", &p.RWA.Required},
		{"RWA_AUTO_VERIFY", &p.RWA.AutoVerify},
		{"KYC_AUTO_INITIALIZE", &p.KYC.AutoInitialize},
		{"RWA_AUTO_INITIALIZE", &p.RWA.AutoInitialize},
		{"REQUIRE_ASSET_VERIFICATION", &p.Compliance.RequireAssetVerification},
	} {
		raw, ok := os.LookupEnv(o.key)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", o.key, err)
		}
		*o.dst = v
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
