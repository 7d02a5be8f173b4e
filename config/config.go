package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-activation"
	"github.com/spf13/viper"
)

// RoleMappingPrefix is prepended to the upper cased provider to find its
// role mapping, e.g. ACTIVATION_ROLE_MAPPING_ACME.
const RoleMappingPrefix = "ACTIVATION_ROLE_MAPPING_"

// DefaultDatabaseDSN opens a file database whose transactions take the write
// lock on BEGIN and wait for it instead of failing with SQLITE_BUSY.
const DefaultDatabaseDSN = "file:activation.db?_busy_timeout=5000&_txlock=immediate"

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Worker     WorkerConfig
	Seed       SeedConfig
	Activation ActivationConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string
}

// DatabaseConfig implements persistence.Config
type DatabaseConfig struct {
	DSN            string
	Driver         string
	Debug          bool
	PingTimeout    time.Duration
	BusyTimeout    time.Duration
	OtelIdentifier string
}

func (d DatabaseConfig) GetDebug() bool                { return d.Debug }
func (d DatabaseConfig) GetDriver() string             { return d.Driver }
func (d DatabaseConfig) GetServer() string             { return d.DSN }
func (d DatabaseConfig) GetDSN() string                { return d.DSN }
func (d DatabaseConfig) GetPingTimeout() time.Duration { return d.PingTimeout }
func (d DatabaseConfig) GetOtelIdentifier() string     { return d.OtelIdentifier }

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type WorkerConfig struct {
	Concurrency int
	// Inline delivers activation emails from the request instead of the
	// queue. Used when no redis is available.
	Inline bool
}

// SeedConfig lists the roles created for each provider on startup
type SeedConfig struct {
	Providers []string
	Roles     []string
}

// ActivationConfig implements activation.Config and activation.MappingSource.
type ActivationConfig struct {
	activation.BaseConfig
	v *viper.Viper
}

var (
	_ activation.Config        = ActivationConfig{}
	_ activation.MappingSource = ActivationConfig{}
)

// RoleMapping reads the mapping for provider on every call so that
// changes to the environment are picked up without a restart.
func (a ActivationConfig) RoleMapping(_ context.Context, provider string) (string, error) {
	if a.v == nil {
		return "", nil
	}
	return strings.TrimSpace(a.v.GetString(RoleMappingKey(provider))), nil
}

// RoleMappingKey returns the configuration key holding provider's mapping
func RoleMappingKey(provider string) string {
	key := strings.ToUpper(strings.TrimSpace(provider))
	key = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(key)
	return RoleMappingPrefix + key
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

// Load reads configuration from defaults, an optional .env file found in
// paths (the working directory when empty) and the environment.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	defaults := activation.DefaultConfig()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("DATABASE_DSN", DefaultDatabaseDSN)
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DEBUG", false)
	v.SetDefault("DATABASE_PING_TIMEOUT", "5s")
	v.SetDefault("DATABASE_BUSY_TIMEOUT", "5s")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("WORKER_INLINE", false)
	v.SetDefault("SEED_PROVIDERS", "")
	v.SetDefault("SEED_ROLES", activation.RoleNameUser+","+activation.RoleNamePending)
	v.SetDefault("ACTIVATION_BASE_URL", defaults.ActivationBaseURL)
	v.SetDefault("ACTIVATION_DIGEST_KEY", "")
	v.SetDefault("ACTIVATION_CASE_INSENSITIVE", false)
	v.SetDefault("ACTIVATION_BYPASS_PROVIDERS", "")
	v.SetDefault("ACTIVATION_SIGN_IN_ROUTE", defaults.SignInRoute)
	v.SetDefault("ACTIVATION_PENDING_ROUTE", defaults.PendingRoute)
	v.SetDefault("ACTIVATION_LANDING_ROUTE", defaults.LandingRoute)
	v.SetDefault("ACTIVATION_SIGNED_IN_ROUTE", defaults.SignedInRoute)
	v.SetDefault("ACTIVATION_RESEND_ROUTE", defaults.ResendRoute)

	v.SetConfigName(".env")
	v.SetConfigType("env")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
			Env:  v.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			DSN:         v.GetString("DATABASE_DSN"),
			Driver:      v.GetString("DATABASE_DRIVER"),
			Debug:       v.GetBool("DATABASE_DEBUG"),
			PingTimeout: v.GetDuration("DATABASE_PING_TIMEOUT"),
			BusyTimeout: v.GetDuration("DATABASE_BUSY_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("WORKER_CONCURRENCY"),
			Inline:      v.GetBool("WORKER_INLINE"),
		},
		Seed: SeedConfig{
			Providers: splitList(v.GetString("SEED_PROVIDERS")),
			Roles:     splitList(v.GetString("SEED_ROLES")),
		},
		Activation: ActivationConfig{
			BaseConfig: activation.BaseConfig{
				ActivationBaseURL:           v.GetString("ACTIVATION_BASE_URL"),
				DigestKey:                   v.GetString("ACTIVATION_DIGEST_KEY"),
				RoleMappingCaseInsensitive:  v.GetBool("ACTIVATION_CASE_INSENSITIVE"),
				VerificationBypassProviders: splitList(v.GetString("ACTIVATION_BYPASS_PROVIDERS")),
				SignInRoute:                 v.GetString("ACTIVATION_SIGN_IN_ROUTE"),
				PendingRoute:                v.GetString("ACTIVATION_PENDING_ROUTE"),
				LandingRoute:                v.GetString("ACTIVATION_LANDING_ROUTE"),
				SignedInRoute:               v.GetString("ACTIVATION_SIGNED_IN_ROUTE"),
				ResendRoute:                 v.GetString("ACTIVATION_RESEND_ROUTE"),
			},
			v: v,
		},
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
