// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Storage   StorageConfig   `koanf:"storage"`
	Features  FeaturesConfig  `koanf:"features"`
	Identity  IdentityConfig  `koanf:"identity"`
	Reaper    ReaperConfig    `koanf:"reaper"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath    string        `koanf:"private_key_path"`
	PublicKeyPath     string        `koanf:"public_key_path"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
	// Registration limits apply per IP to the register and login routes.
	RegistrationRequests int `koanf:"registration_requests"`
	RegistrationBurst    int `koanf:"registration_burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// StorageConfig selects the credential store backend: "postgres" or "memory".
type StorageConfig struct {
	Driver string `koanf:"driver"`
}

type FeaturesConfig struct {
	ExternalIdentityEnabled bool `koanf:"external_identity_enabled"`
}

// IdentityConfig describes the external identity provider (Auth0 tenant).
type IdentityConfig struct {
	Domain          string        `koanf:"domain"`
	ClientID        string        `koanf:"client_id"`
	ClientSecret    string        `koanf:"client_secret"`
	Connection      string        `koanf:"connection"`
	Issuer          string        `koanf:"issuer"`
	Audience        string        `koanf:"audience"`
	Timeout         time.Duration `koanf:"timeout"`
	JWKSRefresh     time.Duration `koanf:"jwks_refresh"`
	JWKSRefreshRate time.Duration `koanf:"jwks_refresh_rate_limit"`
}

type ReaperConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Interval    time.Duration `koanf:"interval"`
	GracePeriod time.Duration `koanf:"grace_period"`
	Scope       string        `koanf:"scope"`
	LeaseTTL    time.Duration `koanf:"lease_ttl"`
}

var (
	cfg     *Config
	loadErr error
	once    sync.Once
)

// Load resolves the process configuration once; later calls return the
// first result.
func Load(configPath string) (*Config, error) {
	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	return cfg, loadErr
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Hotel Backend",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.auto_migrate":       true,
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire": "24h",
		"jwt.issuer":              "hotel-backend",
		"jwt.audience":            "hotel-backend-api",
		"jwt.private_key_path":    "keys/private.pem",
		"jwt.public_key_path":     "keys/public.pem",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"rate_limit.registration_requests": 10,
		"rate_limit.registration_burst":    5,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "hotel-backend",

		"storage.driver": "postgres",

		"features.external_identity_enabled": false,

		"identity.connection":              "Username-Password-Authentication",
		"identity.timeout":                 "5s",
		"identity.jwks_refresh":            "1h",
		"identity.jwks_refresh_rate_limit": "5m",

		"reaper.enabled":      false,
		"reaper.interval":     "15m",
		"reaper.grace_period": "60m",
		"reaper.scope":        "any_unlinked",
		"reaper.lease_ttl":    "5m",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"RATE_LIMIT_REGISTRATION":     "rate_limit.registration_requests",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"STORAGE_DRIVER":              "storage.driver",
	"EXTERNAL_IDENTITY_ENABLED":   "features.external_identity_enabled",
	"IDENTITY_DOMAIN":             "identity.domain",
	"IDENTITY_CLIENT_ID":          "identity.client_id",
	"IDENTITY_CLIENT_SECRET":      "identity.client_secret",
	"IDENTITY_CONNECTION":         "identity.connection",
	"IDENTITY_ISSUER":             "identity.issuer",
	"IDENTITY_AUDIENCE":           "identity.audience",
	"IDENTITY_TIMEOUT":            "identity.timeout",
	"REAPER_ENABLED":              "reaper.enabled",
	"REAPER_INTERVAL":             "reaper.interval",
	"REAPER_GRACE_PERIOD":         "reaper.grace_period",
	"REAPER_SCOPE":                "reaper.scope",
	"REAPER_LEASE_TTL":            "reaper.lease_ttl",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	switch c.Storage.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "memory":
		if c.App.Environment == "production" {
			return fmt.Errorf("memory storage cannot be used in production")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Features.ExternalIdentityEnabled {
		if c.Identity.Domain == "" {
			return fmt.Errorf("IDENTITY_DOMAIN is required when external identity is enabled")
		}
		if c.Identity.ClientID == "" || c.Identity.ClientSecret == "" {
			return fmt.Errorf("identity client credentials are required when external identity is enabled")
		}
		if c.Identity.Timeout <= 0 {
			return fmt.Errorf("identity.timeout must be positive")
		}
	}

	if c.Reaper.Enabled {
		if c.Reaper.Interval <= 0 || c.Reaper.GracePeriod <= 0 {
			return fmt.Errorf("reaper interval and grace_period must be positive")
		}
		if c.Reaper.Scope != "any_unlinked" && c.Reaper.Scope != "failed_link" {
			return fmt.Errorf("reaper.scope must be any_unlinked or failed_link")
		}
		// Without a provider no local record will ever link, so nothing
		// qualifies as an orphan.
		if !c.Features.ExternalIdentityEnabled {
			return fmt.Errorf("reaper requires external identity to be enabled")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IssuerURL returns the provider's token issuer, derived from the domain when
// not configured explicitly.
func (c *IdentityConfig) IssuerURL() string {
	if c.Issuer != "" {
		return c.Issuer
	}
	if c.Domain == "" {
		return ""
	}
	return "https://" + c.Domain + "/"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
