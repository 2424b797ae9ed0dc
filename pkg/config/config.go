// Package config loads service configuration from a YAML file, a .env file
// and BOOKTRACK_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"booktrack/pkg/database"
	"booktrack/pkg/logger"
)

// EnvPrefix namespaces environment overrides, e.g. BOOKTRACK_DATABASE_HOST.
const EnvPrefix = "BOOKTRACK"

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	GRPC       ListenConfig     `mapstructure:"grpc"`
	UDP        UDPConfig        `mapstructure:"udp"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Logging    logger.Config    `mapstructure:"logging"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Ranking    RankingConfig    `mapstructure:"ranking"`
	Reminder   ReminderConfig   `mapstructure:"reminder"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Timezone string `mapstructure:"timezone"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type ListenConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type UDPConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	GatewayAddr string  `mapstructure:"gateway_addr"`
	BufferSize  int     `mapstructure:"buffer_size"`
	RateLimit   float64 `mapstructure:"rate_limit"`
	RateBurst   int     `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type ClassifierConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CatalogConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	TTBKey     string        `mapstructure:"ttb_key"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RankingConfig struct {
	Limit    int           `mapstructure:"limit"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type ReminderConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	SendAt        string        `mapstructure:"send_at"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	TemplatesFile string        `mapstructure:"templates_file"`
}

// Load reads path (optional) and the environment. A missing file is not an
// error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "booktrack")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.timezone", "UTC")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 9090)

	v.SetDefault("udp.enabled", true)
	v.SetDefault("udp.gateway_addr", "127.0.0.1:9091")
	v.SetDefault("udp.buffer_size", 256)
	v.SetDefault("udp.rate_limit", 100.0)
	v.SetDefault("udp.rate_burst", 50)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "booktrack")
	v.SetDefault("database.password", "booktrack_dev_password")
	v.SetDefault("database.database", "booktrack_dev")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	v.SetDefault("database.timeout", 5*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "booktrack")
	v.SetDefault("jwt.expiration", 24*time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("classifier.base_url", "https://api.openai.com/v1")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.model", "gpt-4o-mini")
	v.SetDefault("classifier.timeout", 10*time.Second)

	v.SetDefault("catalog.base_url", "https://www.aladin.co.kr/ttb/api")
	v.SetDefault("catalog.ttb_key", "")
	v.SetDefault("catalog.sqlite_path", "")
	v.SetDefault("catalog.timeout", 5*time.Second)

	v.SetDefault("ranking.limit", 50)
	v.SetDefault("ranking.cache_ttl", time.Minute)

	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.send_at", "20:00")
	v.SetDefault("reminder.check_interval", time.Minute)
	v.SetDefault("reminder.templates_file", "configs/reminders.yaml")
}

// Validate checks values that have no safe default
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required (set BOOKTRACK_JWT_SECRET)")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: invalid app.timezone %q: %w", c.App.Timezone, err)
	}
	if _, _, err := c.Reminder.SendTime(); err != nil {
		return fmt.Errorf("config: invalid reminder.send_at: %w", err)
	}
	return nil
}

// Location is the zone used for calendar boundaries (today, ranking windows)
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.App.Timezone)
}

// DatabaseConfig converts to the connection settings used by pkg/database
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
		Timeout:         c.Database.Timeout,
	}
}

// SendTime parses SendAt as HH:MM
func (r ReminderConfig) SendTime() (hour, minute int, err error) {
	t, err := time.Parse("15:04", r.SendAt)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
