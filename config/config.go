// Package config loads runtime settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/layer-3/estate/core"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRPCURL         = "https://rpc.sepolia.org"
	DefaultHTTPAddr       = ":9000"
	DefaultChallengeTTL   = 5 * time.Minute
	DefaultAccessTTL      = 24 * time.Hour
	DefaultConfirmTimeout = 3 * time.Minute
	DefaultLogLevel       = "info"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for the estate service.
type Config struct {
	HTTPAddr string      `yaml:"http_addr"`
	RedisURL string      `yaml:"redis_url"`
	Chain    ChainConfig `yaml:"chain"`
	Auth     AuthConfig  `yaml:"auth"`
	Log      LogConfig   `yaml:"log"`
	// Admins may call the deployment and yield routes
	Admins []string `yaml:"admins"`
}

// ChainConfig points at the RPC endpoint and the fixed contracts.
type ChainConfig struct {
	RPCURL              string   `yaml:"rpc_url"`
	ChainID             int64    `yaml:"chain_id"`
	FactoryAddress      string   `yaml:"factory_address"`
	PaymentTokenAddress string   `yaml:"payment_token_address"`
	AdminPrivateKey     string   `yaml:"admin_private_key"`
	ConfirmTimeout      Duration `yaml:"confirm_timeout"`
}

// AuthConfig tunes the wallet login protocol.
type AuthConfig struct {
	ChallengeTTL Duration `yaml:"challenge_ttl"`
	AccessTTL    Duration `yaml:"access_ttl"`
}

// LogConfig selects level and optional rotated file output.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ChainIDBig returns the configured chain id, or nil to ask the node.
func (c ChainConfig) ChainIDBig() *big.Int {
	if c.ChainID <= 0 {
		return nil
	}
	return big.NewInt(c.ChainID)
}

// Load reads CONFIG_FILE when set, applies environment overrides and
// defaults, then validates the result.
func Load() (Config, error) {
	return load(os.Getenv("CONFIG_FILE"), os.LookupEnv)
}

// LoadFile is Load with an explicit file path and no environment overrides.
func LoadFile(path string) (Config, error) {
	return load(path, func(string) (string, bool) { return "", false })
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{}
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		dec := yaml.NewDecoder(file)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		dst.Duration = parsed
		return nil
	}

	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("REDIS_URL", &cfg.RedisURL)
	str("SEPOLIA_RPC_URL", &cfg.Chain.RPCURL)
	str("PROPERTY_FACTORY_CONTRACT_ADDRESS", &cfg.Chain.FactoryAddress)
	str("PAYMENT_TOKEN_CONTRACT_ADDRESS", &cfg.Chain.PaymentTokenAddress)
	str("BACKEND_PRIVATE_KEY", &cfg.Chain.AdminPrivateKey)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FILE", &cfg.Log.File)

	if v, ok := lookup("CHAIN_ID"); ok && strings.TrimSpace(v) != "" {
		id, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
		if !ok || !id.IsInt64() {
			return fmt.Errorf("CHAIN_ID: invalid value %q", v)
		}
		cfg.Chain.ChainID = id.Int64()
	}
	if v, ok := lookup("ADMIN_ADDRESSES"); ok && strings.TrimSpace(v) != "" {
		cfg.Admins = strings.Split(v, ",")
	}
	if err := dur("CHALLENGE_TTL", &cfg.Auth.ChallengeTTL); err != nil {
		return err
	}
	if err := dur("ACCESS_TTL", &cfg.Auth.AccessTTL); err != nil {
		return err
	}
	return dur("CONFIRM_TIMEOUT", &cfg.Chain.ConfirmTimeout)
}

func applyDefaults(cfg *Config) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Chain.RPCURL == "" {
		cfg.Chain.RPCURL = DefaultRPCURL
	}
	if cfg.Chain.ConfirmTimeout.Duration == 0 {
		cfg.Chain.ConfirmTimeout.Duration = DefaultConfirmTimeout
	}
	if cfg.Auth.ChallengeTTL.Duration == 0 {
		cfg.Auth.ChallengeTTL.Duration = DefaultChallengeTTL
	}
	if cfg.Auth.AccessTTL.Duration == 0 {
		cfg.Auth.AccessTTL.Duration = DefaultAccessTTL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func normalize(cfg *Config) {
	admins := cfg.Admins[:0]
	for _, a := range cfg.Admins {
		if a = strings.TrimSpace(a); a != "" {
			admins = append(admins, a)
		}
	}
	cfg.Admins = admins
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
}

func validate(cfg Config) error {
	if cfg.Chain.FactoryAddress == "" {
		return fmt.Errorf("PROPERTY_FACTORY_CONTRACT_ADDRESS must be configured")
	}
	if _, err := core.ParseAddress(cfg.Chain.FactoryAddress); err != nil {
		return fmt.Errorf("factory address: %w", err)
	}
	if cfg.Chain.PaymentTokenAddress == "" {
		return fmt.Errorf("PAYMENT_TOKEN_CONTRACT_ADDRESS must be configured")
	}
	if _, err := core.ParseAddress(cfg.Chain.PaymentTokenAddress); err != nil {
		return fmt.Errorf("payment token address: %w", err)
	}
	for _, a := range cfg.Admins {
		if _, err := core.ParseAddress(a); err != nil {
			return fmt.Errorf("admin address: %w", err)
		}
	}
	if cfg.Auth.ChallengeTTL.Duration < 0 || cfg.Auth.AccessTTL.Duration < 0 || cfg.Chain.ConfirmTimeout.Duration < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}
	return nil
}
