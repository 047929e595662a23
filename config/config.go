package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App          `json:"app"          toml:"app"`
		Ledger       `json:"ledger"       toml:"ledger"`
		Signing      `json:"signing"      toml:"signing"`
		Confirmation `json:"confirmation" toml:"confirmation"`
		Audit        `json:"audit"        toml:"audit"`
		HTTP         `json:"http"         toml:"http"`
		Sessions     `json:"sessions"     toml:"sessions"`
		Log          `json:"logger"       toml:"logger"`

		// Plans maps a plan label to the recipient address it pays into.
		Plans map[string]string `json:"plans" toml:"plans" env:"TRANSFER_PLANS"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME"  env-default:"solnests-transfer"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME"  env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"     env-default:"false"`
	}

	Ledger struct {
		Network    string `json:"network"    toml:"network"    env:"SOLANA_NETWORK"    env-default:"mainnet"`
		RPCURL     string `json:"rpc_url"    toml:"rpc_url"    env:"SOLANA_RPC_URL"`
		Commitment string `json:"commitment" toml:"commitment" env:"SOLANA_COMMITMENT" env-default:"finalized"`
	}

	Signing struct {
		Agent           string        `json:"agent"            toml:"agent"            env:"SIGNING_AGENT"            env-default:"keypair"`
		Mnemonic        string        `json:"mnemonic"         toml:"mnemonic"         env:"SIGNING_MNEMONIC"`
		Passphrase      string        `json:"passphrase"       toml:"passphrase"       env:"SIGNING_PASSPHRASE"`
		PrivateKey      string        `json:"private_key"      toml:"private_key"      env:"SIGNING_PRIVATE_KEY"`
		RequireApproval bool          `json:"require_approval" toml:"require_approval" env:"SIGNING_REQUIRE_APPROVAL" env-default:"true"`
		ApprovalTimeout time.Duration `json:"approval_timeout" toml:"approval_timeout" env:"SIGNING_APPROVAL_TIMEOUT" env-default:"5m"`
	}

	Confirmation struct {
		PollInterval time.Duration `json:"poll_interval" toml:"poll_interval" env:"CONFIRMATION_POLL_INTERVAL" env-default:"2s"`
		MaxWait      time.Duration `json:"max_wait"      toml:"max_wait"      env:"CONFIRMATION_MAX_WAIT"      env-default:"90s"`
	}

	Audit struct {
		Backend      string        `json:"backend"       toml:"backend"       env:"AUDIT_BACKEND"       env-default:"none"`
		WriteTimeout time.Duration `json:"write_timeout" toml:"write_timeout" env:"AUDIT_WRITE_TIMEOUT" env-default:"10s"`

		MongoURI        string `json:"mongo_uri"        toml:"mongo_uri"        env:"MONGO_URI"`
		MongoDatabase   string `json:"mongo_database"   toml:"mongo_database"   env:"MONGO_DATABASE"   env-default:"solnests"`
		MongoCollection string `json:"mongo_collection" toml:"mongo_collection" env:"MONGO_COLLECTION" env-default:"transactions"`

		DatabaseURL       string `json:"database_url"        toml:"database_url"        env:"DATABASE_URL"`
		PoolMax           int32  `json:"pool_max"            toml:"pool_max"            env:"PG_POOL_MAX"          env-default:"4"`
		ConnectTimeout    int    `json:"connect_timeout"     toml:"connect_timeout"     env:"PG_POOL_CONN_TIMEOUT" env-default:"5"`
		HealthCheckPeriod int    `json:"health_check_period" toml:"health_check_period" env:"PG_POOL_HEALTHCHECK"  env-default:"1"`
		MigrationsPath    string `json:"migrations_path"     toml:"migrations_path"     env:"MIGRATIONS_PATH"      env-default:"./migrations"`
	}

	HTTP struct {
		Port           string   `json:"port"            toml:"port"            env:"HTTP_PORT"            env-default:"8080"`
		AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-default:"*"`
	}

	Sessions struct {
		IdleTTL      time.Duration `json:"idle_ttl"      toml:"idle_ttl"      env:"SESSION_IDLE_TTL"      env-default:"30m"`
		ReapInterval time.Duration `json:"reap_interval" toml:"reap_interval" env:"SESSION_REAP_INTERVAL" env-default:"1m"`
	}

	Log struct {
		Level slog.Level `json:"level" toml:"level" env:"LOG_LEVEL"`
	}
)

// DefaultPlans is the plan table used when none is configured.
var DefaultPlans = map[string]string{
	"Nest Starter": "9yrhTTh3y29NDVjxDzfo3tyiJ31r6DH42HiroGe2WASk",
	"Golden Nest":  "AnL8JWUWKC3WdWoST1bDLvrG1geMSaaWK72LupNNVLCb",
	"Elite Nest":   "5xsG6MEY6xYTc5kaK1kSvUGXiAaBfer9vao2GXhEbXJA",
}

// LoadConfig reads config.toml (or config.json) next to this package and applies env overrides.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	configTomlPath := filepath.Join(basePath, "config.toml")
	err := cleanenv.ReadConfig(configTomlPath, cfg)
	if err != nil {
		configJsonPath := filepath.Join(basePath, "config.json")
		err = cleanenv.ReadConfig(configJsonPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	err = cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	return cfg.withDefaults(), nil
}

// LoadConfigFrom reads the given file and applies env overrides.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg.withDefaults(), nil
}

func (c *Config) withDefaults() *Config {
	if len(c.Plans) == 0 {
		c.Plans = make(map[string]string, len(DefaultPlans))
		for label, address := range DefaultPlans {
			c.Plans[label] = address
		}
	}
	return c
}
