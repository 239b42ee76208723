package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	AFIP       AFIPConfig
	Cache      CacheConfig
	RetryQueue RetryQueueConfig
	Monitor    MonitorConfig
	Log        LogConfig
	HTTP       HTTPConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AFIPConfig holds fiscal service endpoints and session settings
type AFIPConfig struct {
	WSAAEndpoint     string
	WSFEEndpoint     string
	RegistryEndpoint string
	CUIT             string
	ServiceName      string
	ExpiryBuffer     time.Duration
	RequestTimeout   time.Duration
}

// CacheConfig holds validation cache backend and per-type TTLs
type CacheConfig struct {
	Backend      string // memory, redis, postgres, tiered
	CUITTTL      time.Duration
	CAETTL       time.Duration
	TaxpayerTTL  time.Duration
	ParameterTTL time.Duration
}

// RetryQueueConfig holds retry scheduling settings
type RetryQueueConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	ScanInterval time.Duration
	BatchSize    int
	StaleAfter   time.Duration
}

// MonitorConfig holds connectivity probe settings
type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FACTURA_ prefix (e.g., FACTURA_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("FACTURA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		AFIP: AFIPConfig{
			WSAAEndpoint:     v.GetString("afip.wsaa_endpoint"),
			WSFEEndpoint:     v.GetString("afip.wsfe_endpoint"),
			RegistryEndpoint: v.GetString("afip.registry_endpoint"),
			CUIT:             v.GetString("afip.cuit"),
			ServiceName:      v.GetString("afip.service_name"),
			ExpiryBuffer:     v.GetDuration("afip.expiry_buffer"),
			RequestTimeout:   v.GetDuration("afip.request_timeout"),
		},
		Cache: CacheConfig{
			Backend:      v.GetString("cache.backend"),
			CUITTTL:      v.GetDuration("cache.cuit_ttl"),
			CAETTL:       v.GetDuration("cache.cae_ttl"),
			TaxpayerTTL:  v.GetDuration("cache.taxpayer_ttl"),
			ParameterTTL: v.GetDuration("cache.parameter_ttl"),
		},
		RetryQueue: RetryQueueConfig{
			MaxAttempts:  v.GetInt("retry_queue.max_attempts"),
			BaseDelay:    v.GetDuration("retry_queue.base_delay"),
			MaxDelay:     v.GetDuration("retry_queue.max_delay"),
			ScanInterval: v.GetDuration("retry_queue.scan_interval"),
			BatchSize:    v.GetInt("retry_queue.batch_size"),
			StaleAfter:   v.GetDuration("retry_queue.stale_after"),
		},
		Monitor: MonitorConfig{
			Enabled:  v.GetBool("monitor.enabled"),
			Interval: v.GetDuration("monitor.interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "factura-validador"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "factura"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	// Homologation endpoints by default; production overrides via env
	if cfg.AFIP.WSAAEndpoint == "" {
		cfg.AFIP.WSAAEndpoint = "https://wsaahomo.afip.gov.ar/ws/services/LoginCms"
	}
	if cfg.AFIP.WSFEEndpoint == "" {
		cfg.AFIP.WSFEEndpoint = "https://wswhomo.afip.gov.ar/wsfev1/service.asmx"
	}
	if cfg.AFIP.RegistryEndpoint == "" {
		cfg.AFIP.RegistryEndpoint = "https://awshomo.afip.gov.ar/sr-padron/webservices/personaServiceA5"
	}
	if cfg.AFIP.ServiceName == "" {
		cfg.AFIP.ServiceName = "wsfe"
	}
	if cfg.AFIP.ExpiryBuffer == 0 {
		cfg.AFIP.ExpiryBuffer = time.Hour
	}
	if cfg.AFIP.RequestTimeout == 0 {
		cfg.AFIP.RequestTimeout = 30 * time.Second
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "tiered"
	}
	if cfg.Cache.CUITTTL == 0 {
		cfg.Cache.CUITTTL = 24 * time.Hour
	}
	if cfg.Cache.CAETTL == 0 {
		cfg.Cache.CAETTL = time.Hour
	}
	if cfg.Cache.TaxpayerTTL == 0 {
		cfg.Cache.TaxpayerTTL = 12 * time.Hour
	}
	if cfg.Cache.ParameterTTL == 0 {
		cfg.Cache.ParameterTTL = time.Hour
	}
	if cfg.RetryQueue.MaxAttempts == 0 {
		cfg.RetryQueue.MaxAttempts = 3
	}
	if cfg.RetryQueue.BaseDelay == 0 {
		cfg.RetryQueue.BaseDelay = time.Second
	}
	if cfg.RetryQueue.MaxDelay == 0 {
		cfg.RetryQueue.MaxDelay = 30 * time.Second
	}
	if cfg.RetryQueue.ScanInterval == 0 {
		cfg.RetryQueue.ScanInterval = 5 * time.Second
	}
	if cfg.RetryQueue.BatchSize == 0 {
		cfg.RetryQueue.BatchSize = 10
	}
	if cfg.RetryQueue.StaleAfter == 0 {
		cfg.RetryQueue.StaleAfter = 10 * time.Minute
	}
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = 5 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
}

var validCacheBackends = map[string]bool{
	"memory":   true,
	"redis":    true,
	"postgres": true,
	"tiered":   true,
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if !validCacheBackends[c.Cache.Backend] {
		return fmt.Errorf("cache.backend must be one of memory, redis, postgres, tiered; got %q", c.Cache.Backend)
	}
	if c.RetryQueue.MaxAttempts <= 0 {
		return fmt.Errorf("retry_queue.max_attempts must be positive")
	}
	if c.RetryQueue.BaseDelay > c.RetryQueue.MaxDelay {
		return fmt.Errorf("retry_queue.base_delay (%s) cannot exceed retry_queue.max_delay (%s)",
			c.RetryQueue.BaseDelay, c.RetryQueue.MaxDelay)
	}

	if c.App.Env == "production" {
		if c.AFIP.CUIT == "" {
			return fmt.Errorf("afip.cuit is required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for name, endpoint := range map[string]string{
			"afip.wsaa_endpoint":     c.AFIP.WSAAEndpoint,
			"afip.wsfe_endpoint":     c.AFIP.WSFEEndpoint,
			"afip.registry_endpoint": c.AFIP.RegistryEndpoint,
		} {
			if !strings.HasPrefix(endpoint, "https://") {
				return fmt.Errorf("%s must use https in production", name)
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
