package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/saifu-wallet/gateway/internal/connection"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap/zapcore"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	Port     string `mapstructure:"PORT"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	Solana    SolanaConfig    `mapstructure:",squash"`
	Upstream  UpstreamConfig  `mapstructure:",squash"`
	Security  SecurityConfig  `mapstructure:",squash"`
	RateLimit RateLimitConfig `mapstructure:",squash"`
}

type SolanaConfig struct {
	Network      string `mapstructure:"SOLANA_NETWORK"`
	APIKey       string `mapstructure:"HELIUS_API_KEY"`
	ProviderHost string `mapstructure:"RPC_PROVIDER_HOST"`
	Policy       string `mapstructure:"RPC_POLICY"`
	PublicRPS    int    `mapstructure:"PUBLIC_RPC_RPS"`
}

type UpstreamConfig struct {
	IndexerBaseURL string        `mapstructure:"INDEXER_BASE_URL"`
	PriceOracleURL string        `mapstructure:"PRICE_ORACLE_URL"`
	SwapRouterURL  string        `mapstructure:"SWAP_ROUTER_URL"`
	Timeout        time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`
}

type SecurityConfig struct {
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	FrontendURL        string   `mapstructure:"FRONTEND_URL"`
	MaxBodyBytes       int64    `mapstructure:"MAX_BODY_BYTES"`
}

type RateLimitConfig struct {
	Max              int           `mapstructure:"RATE_LIMIT_MAX"`
	Window           time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	TrustedProxyHops int           `mapstructure:"TRUSTED_PROXY_HOPS"`
	Backend          string        `mapstructure:"RATELIMIT_BACKEND"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // variables already set in the environment win
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("PORT", "3001")
	v.SetDefault("HTTP_ADDR", "")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("SOLANA_NETWORK", "devnet")
	v.SetDefault("HELIUS_API_KEY", "")
	v.SetDefault("RPC_PROVIDER_HOST", connection.DefaultProviderHost)
	v.SetDefault("RPC_POLICY", string(connection.PolicyPermissive))
	v.SetDefault("PUBLIC_RPC_RPS", 9)
	v.SetDefault("INDEXER_BASE_URL", "https://api-{network}.helius.xyz")
	v.SetDefault("PRICE_ORACLE_URL", "https://api.coingecko.com/api/v3")
	v.SetDefault("SWAP_ROUTER_URL", "https://quote-api.jup.ag")
	v.SetDefault("UPSTREAM_TIMEOUT", "15s")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,https://saifu-flax.vercel.app")
	v.SetDefault("FRONTEND_URL", "")
	v.SetDefault("MAX_BODY_BYTES", 100*1024)
	v.SetDefault("RATE_LIMIT_MAX", 1000)
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("TRUSTED_PROXY_HOPS", 1)
	v.SetDefault("RATELIMIT_BACKEND", "memory")
	v.SetDefault("REDIS_URL", "")
}

// Load reads .env files, the process environment and defaults, in that
// order of increasing precedence for the environment.
func Load() (*Config, error) {
	loadDotEnvFiles()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	// Handle array parsing for comma-separated values
	if origins := v.GetString("CORS_ALLOWED_ORIGINS"); origins != "" {
		v.Set("CORS_ALLOWED_ORIGINS", splitList(origins))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Solana.Network = strings.TrimSpace(c.Solana.Network)
	c.Solana.APIKey = strings.TrimSpace(c.Solana.APIKey)
	c.Solana.Policy = strings.ToLower(strings.TrimSpace(c.Solana.Policy))

	if c.HTTPAddr == "" {
		c.HTTPAddr = ":" + strings.TrimPrefix(c.Port, ":")
	}

	c.Upstream.IndexerBaseURL = strings.TrimRight(
		strings.ReplaceAll(c.Upstream.IndexerBaseURL, "{network}", c.Solana.Network), "/")
	c.Upstream.PriceOracleURL = strings.TrimRight(c.Upstream.PriceOracleURL, "/")
	c.Upstream.SwapRouterURL = strings.TrimRight(c.Upstream.SwapRouterURL, "/")
}

func (c *Config) validate() error {
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
	}

	if c.Solana.Network == "" {
		return fmt.Errorf("SOLANA_NETWORK is required")
	}

	policy, err := connection.ParsePolicy(c.Solana.Policy)
	if err != nil {
		return err
	}
	if policy == connection.PolicyStrict && c.Solana.APIKey == "" {
		return fmt.Errorf("HELIUS_API_KEY is required when RPC_POLICY=%s", connection.PolicyStrict)
	}
	if c.Solana.PublicRPS < 0 {
		return fmt.Errorf("PUBLIC_RPC_RPS must not be negative")
	}

	for name, raw := range map[string]string{
		"INDEXER_BASE_URL": c.Upstream.IndexerBaseURL,
		"PRICE_ORACLE_URL": c.Upstream.PriceOracleURL,
		"SWAP_ROUTER_URL":  c.Upstream.SwapRouterURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}

	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.RateLimit.TrustedProxyHops < 0 {
		return fmt.Errorf("TRUSTED_PROXY_HOPS must not be negative")
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when RATELIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("invalid RATELIMIT_BACKEND %q (must be memory or redis)", c.RateLimit.Backend)
	}

	if c.Security.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == EnvDevelopment
}

func (c *Config) IsProd() bool {
	return c.Env == EnvProduction
}

// RPCPolicy returns the validated connection policy.
func (c *Config) RPCPolicy() connection.Policy {
	p, _ := connection.ParsePolicy(c.Solana.Policy)
	return p
}

// AllowedOrigins returns the CORS allow-list including FRONTEND_URL.
func (c *Config) AllowedOrigins() []string {
	origins := append([]string(nil), c.Security.CORSAllowedOrigins...)
	if fe := strings.TrimSpace(c.Security.FrontendURL); fe != "" {
		origins = append(origins, fe)
	}
	return origins
}

// Connection returns the resolver configuration.
func (c *Config) Connection() connection.Config {
	return connection.Config{
		Network:      c.Solana.Network,
		Credential:   c.Solana.APIKey,
		ProviderHost: c.Solana.ProviderHost,
		Policy:       c.RPCPolicy(),
	}
}
