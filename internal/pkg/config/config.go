// Package config loads server and client settings from the environment with
// go-envconfig. When LANCHAT_CONFIG names a YAML file it is read first and the
// environment only fills the fields the file leaves unset.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

const fileEnvVar = "LANCHAT_CONFIG"

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreMySQL  = "mysql"
)

type Config struct {
	ChatHost string `env:"CHAT_HOST"                  yaml:"chat_host"`
	ChatPort int    `env:"CHAT_PORT, default=5555"    yaml:"chat_port"`
	HTTPAddr string `env:"HTTP_ADDR, default=:8080"   yaml:"http_addr"`

	Env       string `env:"ENV,        default=development" yaml:"env"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"        yaml:"log_level"`
	LogPretty bool   `env:"LOG_PRETTY"                      yaml:"log_pretty"`
	JWTSecret string `env:"JWT_SECRET"                      yaml:"jwt_secret"`

	Chat  ChatConfig  `yaml:"chat"`
	Store StoreConfig `yaml:"store"`
	Mongo MongoConfig `yaml:"mongo"`
	MySQL MySQLConfig `yaml:"mysql"`
	Redis RedisConfig `yaml:"redis"`
}

type ChatConfig struct {
	HistoryLimit    int           `env:"HISTORY_LIMIT,    default=100"   yaml:"history_limit"`
	LoginTimeout    time.Duration `env:"LOGIN_TIMEOUT,    default=30s"   yaml:"login_timeout"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,    default=10s"   yaml:"write_timeout"`
	SendBuffer      int           `env:"SEND_BUFFER,      default=256"   yaml:"send_buffer"`
	MaxFrameBytes   int           `env:"MAX_FRAME_BYTES,  default=65536" yaml:"max_frame_bytes"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"   yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver                 string `env:"STORE_DRIVER,             default=memory"   yaml:"driver"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD, default=admin123" yaml:"bootstrap_admin_password"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017" yaml:"uri"`
	Database string `env:"MONGO_DB,  default=lanchat"                   yaml:"database"`
}

type MySQLConfig struct {
	DSN string `env:"MYSQL_DSN, default=lanchat:lanchat@tcp(localhost:3306)/lanchat" yaml:"dsn"`
}

// RedisConfig enables the history cache when Addr is set.
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR"                      yaml:"addr"`
	DB        int    `env:"REDIS_DB,           default=0"   yaml:"db"`
	CacheSize int    `env:"HISTORY_CACHE_SIZE, default=500" yaml:"cache_size"`
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	Server   string `env:"CHAT_SERVER, default=127.0.0.1:5555"`
	Username string `env:"CHAT_USERNAME"`
	Password string `env:"CHAT_PASSWORD"`
	LogLevel string `env:"LOG_LEVEL, default=warn"`
}

// Load reads the server configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

// MustLoad is Load for main packages.
func MustLoad(ctx context.Context) *Config {
	cfg, err := Load(ctx)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config

	if path, ok := lookuper.Lookup(fileEnvVar); ok && path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// envconfig leaves non-zero fields alone, so values from the file win.
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreMongo, StoreMySQL:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.ChatPort < 0 || c.ChatPort > 65535 {
		return fmt.Errorf("config: CHAT_PORT %d out of range", c.ChatPort)
	}
	return nil
}

// IsDevelopment reports whether the server runs with ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// LoadClient reads the terminal client configuration from the environment.
func LoadClient(ctx context.Context) (*ClientConfig, error) {
	return loadClient(ctx, envconfig.OsLookuper())
}

func loadClient(ctx context.Context, lookuper envconfig.Lookuper) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
