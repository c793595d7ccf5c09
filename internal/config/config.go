package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	NATS       NATSConfig       `yaml:"nats"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
	Settlement SettlementConfig `yaml:"settlement"`
	P2P        P2PConfig        `yaml:"p2p"`
	Valuation  ValuationConfig  `yaml:"valuation"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
	// Subject prefix for user notifications, the category is appended.
	Subject string `yaml:"subject"`
	Workers int    `yaml:"workers"`
	Buffer  int    `yaml:"buffer"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type SettlementConfig struct {
	// FuturesFundingType is the wallet type futures margin is reserved from.
	FuturesFundingType string `yaml:"futures_funding_type"`
}

type P2PConfig struct {
	AdminUserIDs []uint `yaml:"admin_user_ids"`
}

type ValuationConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Interval          time.Duration `yaml:"interval"`
	Concurrency       int           `yaml:"concurrency"`
	UserTimeout       time.Duration `yaml:"user_timeout"`
	RetentionDays     int           `yaml:"retention_days"`
	ZeroRetentionDays int           `yaml:"zero_retention_days"`
	TickerQuote       string        `yaml:"ticker_quote"`
}

// Load loads configuration from an optional .env file, the YAML file and
// environment variables, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.loadFromEnv()
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.Mode = v
	}

	// Database
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.DBName = v
	}

	// Redis
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	// NATS
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}

	// JWT
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}

	// Log
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	// P2P
	if v := os.Getenv("P2P_ADMIN_USER_IDS"); v != "" {
		c.P2P.AdminUserIDs = parseIDs(v)
	}

	// Valuation
	if v := os.Getenv("VALUATION_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Valuation.Enabled = enabled
		}
	}
	if v := os.Getenv("VALUATION_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Valuation.Interval = d
		}
	}
	if v := os.Getenv("VALUATION_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Valuation.Concurrency = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "notifications"
	}
	if c.NATS.Workers <= 0 {
		c.NATS.Workers = 4
	}
	if c.NATS.Buffer <= 0 {
		c.NATS.Buffer = 1024
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	if c.Settlement.FuturesFundingType == "" {
		c.Settlement.FuturesFundingType = "FUTURES"
	}
	if c.Valuation.Interval <= 0 {
		c.Valuation.Interval = time.Hour
	}
	if c.Valuation.Concurrency <= 0 {
		c.Valuation.Concurrency = 8
	}
	if c.Valuation.UserTimeout <= 0 {
		c.Valuation.UserTimeout = 30 * time.Second
	}
	if c.Valuation.RetentionDays <= 0 {
		c.Valuation.RetentionDays = 30
	}
	if c.Valuation.ZeroRetentionDays <= 0 {
		c.Valuation.ZeroRetentionDays = 1
	}
	if c.Valuation.TickerQuote == "" {
		c.Valuation.TickerQuote = "USDT"
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

func parseIDs(v string) []uint {
	var ids []uint
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseUint(part, 10, 64); err == nil {
			ids = append(ids, uint(id))
		}
	}
	return ids
}
