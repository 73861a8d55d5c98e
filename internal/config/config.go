package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config/config.yaml"

// Database drivers understood by the app.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverBolt     = "bolt"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"url"`
	BoltPath string `yaml:"bolt_path"`
}

type SolapiConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	From      string `yaml:"from"`
	BaseURL   string `yaml:"base_url"`
	Brand     string `yaml:"brand"`
	DryRun    bool   `yaml:"dry_run"`
}

type SupabaseConfig struct {
	URL            string `yaml:"url"`
	ServiceRoleKey string `yaml:"service_role_key"`
	JWTSecret      string `yaml:"jwt_secret"`
}

type OTPConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	Cooldown     time.Duration `yaml:"cooldown"`
	AllowSandbox bool          `yaml:"allow_sandbox"`
}

type ResolverConfig struct {
	MinLatency time.Duration `yaml:"min_latency"`
}

type RateLimitConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	Limit         int           `yaml:"limit"`
	Window        time.Duration `yaml:"window"`
	Block         time.Duration `yaml:"block"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Mode string `yaml:"mode"`
	} `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Solapi    SolapiConfig    `yaml:"solapi"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	OTP       OTPConfig       `yaml:"otp"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// LoadConfig reads the yaml file (CONFIG_PATH or config/config.yaml), then
// .env, then lets process environment variables override the file.
// A missing file is not an error: env-only deployments are allowed.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	_ = godotenv.Load()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func LoadFile(path string) (*Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from the deployment environment. lookup is
// os.LookupEnv outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("SUPABASE_URL", &c.Supabase.URL)
	str("SUPABASE_SERVICE_ROLE_KEY", &c.Supabase.ServiceRoleKey)
	str("SUPABASE_JWT_SECRET", &c.Supabase.JWTSecret)
	str("SOLAPI_API_KEY", &c.Solapi.APIKey)
	str("SOLAPI_API_SECRET", &c.Solapi.APISecret)
	str("SOLAPI_FROM", &c.Solapi.From)
	str("DATABASE_URL", &c.Database.DSN)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("REDIS_ADDR", &c.RateLimit.RedisAddr)
	str("REDIS_PASSWORD", &c.RateLimit.RedisPassword)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("OTP_ALLOW_SANDBOX"); ok && v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OTP_ALLOW_SANDBOX: %w", err)
		}
		c.OTP.AllowSandbox = allow
	}
	return nil
}

// ApplyDefaults fills every zero value with the production default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Driver == DriverBolt && c.Database.BoltPath == "" {
		c.Database.BoltPath = "./data/otp.db"
	}
	if c.Solapi.BaseURL == "" {
		c.Solapi.BaseURL = "https://api.solapi.com"
	}
	if c.Solapi.Brand == "" {
		c.Solapi.Brand = "StudySnap"
	}
	if c.OTP.TTL <= 0 {
		c.OTP.TTL = 3 * time.Minute
	}
	if c.OTP.Cooldown <= 0 {
		c.OTP.Cooldown = 30 * time.Second
	}
	if c.Resolver.MinLatency <= 0 {
		c.Resolver.MinLatency = 400 * time.Millisecond
	}
	if c.RateLimit.Limit <= 0 {
		c.RateLimit.Limit = 20
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.Block <= 0 {
		c.RateLimit.Block = 5 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// MissingStore lists the absent variables the OTP table needs.
func (c *Config) MissingStore() []string {
	if c.Database.Driver == DriverBolt {
		return nil
	}
	if c.Database.DSN == "" {
		return []string{"DATABASE_URL"}
	}
	return nil
}

// MissingSender lists what otp-send needs beyond the store.
func (c *Config) MissingSender() []string {
	missing := c.MissingStore()
	if c.Solapi.APIKey == "" {
		missing = append(missing, "SOLAPI_API_KEY")
	}
	if c.Solapi.APISecret == "" {
		missing = append(missing, "SOLAPI_API_SECRET")
	}
	if c.Solapi.From == "" {
		missing = append(missing, "SOLAPI_FROM")
	}
	return missing
}

// MissingResolver lists what find-email-by-phone needs beyond the store.
func (c *Config) MissingResolver() []string {
	missing := c.MissingStore()
	if c.Supabase.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.Supabase.ServiceRoleKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}
	return missing
}
