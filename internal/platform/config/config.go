// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"civitas/pkg/platform/strings"
)

// Config is the full process configuration.
type Config struct {
	Server       Server
	Auth         Auth
	Postgres     PostgresConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Verification Verification
	LogLevel     string `env:"CIVITAS_LOG_LEVEL" envDefault:"info"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"CIVITAS_ADDR"             envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"CIVITAS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"CIVITAS_REQUEST_TIMEOUT"  envDefault:"30s"`
}

// Auth configures bearer token validation.
type Auth struct {
	JWTSigningKey string `env:"CIVITAS_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer        string `env:"CIVITAS_JWT_ISSUER"      envDefault:"civitas"`
	Audience      string `env:"CIVITAS_JWT_AUDIENCE"    envDefault:"civitas-api"`
}

// PostgresConfig configures the relational store. An empty URL selects the
// in-memory datastore.
type PostgresConfig struct {
	URL             string        `env:"CIVITAS_DATABASE_URL"`
	MaxOpenConns    int           `env:"CIVITAS_DATABASE_MAX_OPEN_CONNS"    envDefault:"20"`
	MaxIdleConns    int           `env:"CIVITAS_DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CIVITAS_DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	TxTimeout       time.Duration `env:"CIVITAS_DATABASE_TX_TIMEOUT"        envDefault:"5s"`
}

// RedisConfig configures the managed session store. An empty URL selects
// the in-memory session store.
type RedisConfig struct {
	URL          string        `env:"CIVITAS_REDIS_URL"`
	PoolSize     int           `env:"CIVITAS_REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"CIVITAS_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"CIVITAS_REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"CIVITAS_REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"CIVITAS_REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
}

// KafkaConfig configures the audit outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string      `env:"CIVITAS_KAFKA_BROKERS"       envSeparator:","`
	AuditTopic   string        `env:"CIVITAS_KAFKA_AUDIT_TOPIC"   envDefault:"verification.audit"`
	Partitions   int32         `env:"CIVITAS_KAFKA_PARTITIONS"    envDefault:"3"`
	Replication  int16         `env:"CIVITAS_KAFKA_REPLICATION"   envDefault:"1"`
	PollInterval time.Duration `env:"CIVITAS_KAFKA_POLL_INTERVAL" envDefault:"2s"`
	BatchSize    int           `env:"CIVITAS_KAFKA_BATCH_SIZE"    envDefault:"100"`
}

// Verification configures the verification core.
type Verification struct {
	// Pepper keys identity hashes, commitments and hashed client IPs.
	Pepper string `env:"CIVITAS_IDENTITY_PEPPER"`
	// SessionSecret seals ephemeral private keys at rest.
	SessionSecret      string        `env:"CIVITAS_SESSION_SECRET"`
	SessionTTL         time.Duration `env:"CIVITAS_SESSION_TTL"           envDefault:"5m"`
	SessionGrace       time.Duration `env:"CIVITAS_SESSION_GRACE"         envDefault:"10m"`
	SweepInterval      time.Duration `env:"CIVITAS_SESSION_SWEEP"         envDefault:"1m"`
	MinimumAge         int           `env:"CIVITAS_MINIMUM_AGE"           envDefault:"18"`
	PassportVerifier   string        `env:"CIVITAS_PASSPORT_VERIFIER_URL"`
	MobileVerifier     string        `env:"CIVITAS_MOBILE_VERIFIER_URL"`
	LocalityResolver   string        `env:"CIVITAS_LOCALITY_RESOLVER_URL"`
	UpstreamTimeout    time.Duration `env:"CIVITAS_UPSTREAM_TIMEOUT"      envDefault:"10s"`
	UpstreamFailures   int           `env:"CIVITAS_UPSTREAM_FAILURES"     envDefault:"5"`
	UpstreamCooldown   time.Duration `env:"CIVITAS_UPSTREAM_COOLDOWN"     envDefault:"30s"`
	DevelopmentSecrets bool          `env:"CIVITAS_DEV_SECRETS"           envDefault:"false"`
}

// MaxSessionTTL bounds the ephemeral session lifetime.
const MaxSessionTTL = 5 * time.Minute

const devSecret = "dev-only-secret-do-not-use-in-production"

// Load parses the environment and validates cross-field rules.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Kafka.Brokers = strings.DedupeAndTrim(cfg.Kafka.Brokers)
	if cfg.Verification.DevelopmentSecrets {
		if cfg.Verification.Pepper == "" {
			cfg.Verification.Pepper = devSecret
		}
		if cfg.Verification.SessionSecret == "" {
			cfg.Verification.SessionSecret = devSecret
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces invariants that struct tags cannot express.
func (c Config) Validate() error {
	v := c.Verification
	if len(v.Pepper) < 16 {
		return errors.New("CIVITAS_IDENTITY_PEPPER must be at least 16 bytes")
	}
	if len(v.SessionSecret) < 16 {
		return errors.New("CIVITAS_SESSION_SECRET must be at least 16 bytes")
	}
	if v.SessionTTL <= 0 || v.SessionTTL > MaxSessionTTL {
		return fmt.Errorf("CIVITAS_SESSION_TTL must be in (0, %s]", MaxSessionTTL)
	}
	if v.MinimumAge < 0 {
		return errors.New("CIVITAS_MINIMUM_AGE must not be negative")
	}
	return nil
}
