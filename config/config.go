package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the optimization service.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Maps     MapsConfig
	Solver   SolverConfig
	Sentry   SentryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
	Debug        bool          `mapstructure:"SERVER_DEBUG"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// MapsConfig holds settings for the external driving-distance provider.
// An empty APIKey disables provider fetches entirely; the distance matrix
// then falls back to haversine estimates.
type MapsConfig struct {
	APIKey         string        `mapstructure:"MAPS_API_KEY"`
	BaseURL        string        `mapstructure:"MAPS_BASE_URL"`
	RateLimitDelay time.Duration `mapstructure:"MAPS_RATE_LIMIT_DELAY"`
	BatchSize      int           `mapstructure:"MAPS_BATCH_SIZE"`
	Timeout        time.Duration `mapstructure:"MAPS_TIMEOUT"`
}

// SolverConfig holds the optimizer parameters.
type SolverConfig struct {
	TimeoutMS           int     `mapstructure:"SOLVER_TIMEOUT_MS"`
	CacheTolerance      float64 `mapstructure:"DISTANCE_CACHE_TOLERANCE"`
	MaxClusterRadiusMi  float64 `mapstructure:"MAX_CLUSTER_RADIUS_MILES"`
	MaxStopsPerTrip     int     `mapstructure:"MAX_STOPS_PER_TRIP"`
	SetupBufferHours    float64 `mapstructure:"SETUP_BUFFER_HOURS"`
	TeardownBufferHours float64 `mapstructure:"TEARDOWN_BUFFER_HOURS"`
}

// SentryConfig holds the optional error-telemetry settings.
type SentryConfig struct {
	DSN string `mapstructure:"OPTIMIZER_SENTRY_DSN"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Timeout returns the solver timeout as a duration.
func (s *SolverConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// ── Defaults ────────────────────────────────────────
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 5001)
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "120s")
	viper.SetDefault("SERVER_IDLE_TIMEOUT", "120s")
	viper.SetDefault("SERVER_DEBUG", false)

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "optimizer")
	viper.SetDefault("POSTGRES_PASSWORD", "optimizer_secret")
	viper.SetDefault("POSTGRES_DB", "dragonseats")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 20)
	viper.SetDefault("POSTGRES_MIN_CONNS", 4)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 50)

	viper.SetDefault("MAPS_API_KEY", "")
	viper.SetDefault("MAPS_BASE_URL", "https://maps.googleapis.com/maps/api/distancematrix/json")
	viper.SetDefault("MAPS_RATE_LIMIT_DELAY", "200ms")
	viper.SetDefault("MAPS_BATCH_SIZE", 25)
	viper.SetDefault("MAPS_TIMEOUT", "30s")

	viper.SetDefault("SOLVER_TIMEOUT_MS", 30000)
	viper.SetDefault("DISTANCE_CACHE_TOLERANCE", 0.001)
	viper.SetDefault("MAX_CLUSTER_RADIUS_MILES", 150.0)
	viper.SetDefault("MAX_STOPS_PER_TRIP", 4)
	viper.SetDefault("SETUP_BUFFER_HOURS", 4.0)
	viper.SetDefault("TEARDOWN_BUFFER_HOURS", 3.0)

	viper.SetDefault("OPTIMIZER_SENTRY_DSN", "")

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by the runtime are used instead.
	_ = viper.ReadInConfig()

	cfg := &Config{}

	// ── Server ──────────────────────────────────────────
	cfg.Server = ServerConfig{
		Host:         viper.GetString("SERVER_HOST"),
		Port:         viper.GetInt("SERVER_PORT"),
		ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
		Debug:        viper.GetBool("SERVER_DEBUG"),
	}

	// ── Postgres ────────────────────────────────────────
	cfg.Postgres = PostgresConfig{
		Host:     viper.GetString("POSTGRES_HOST"),
		Port:     viper.GetInt("POSTGRES_PORT"),
		User:     viper.GetString("POSTGRES_USER"),
		Password: viper.GetString("POSTGRES_PASSWORD"),
		DBName:   viper.GetString("POSTGRES_DB"),
		SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		MaxConns: viper.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: viper.GetInt32("POSTGRES_MIN_CONNS"),
	}

	// ── Redis ───────────────────────────────────────────
	cfg.Redis = RedisConfig{
		Host:     viper.GetString("REDIS_HOST"),
		Port:     viper.GetInt("REDIS_PORT"),
		Password: viper.GetString("REDIS_PASSWORD"),
		DB:       viper.GetInt("REDIS_DB"),
		PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
	}

	// ── Maps provider ───────────────────────────────────
	cfg.Maps = MapsConfig{
		APIKey:         viper.GetString("MAPS_API_KEY"),
		BaseURL:        viper.GetString("MAPS_BASE_URL"),
		RateLimitDelay: viper.GetDuration("MAPS_RATE_LIMIT_DELAY"),
		BatchSize:      viper.GetInt("MAPS_BATCH_SIZE"),
		Timeout:        viper.GetDuration("MAPS_TIMEOUT"),
	}

	// ── Solver ──────────────────────────────────────────
	cfg.Solver = SolverConfig{
		TimeoutMS:           viper.GetInt("SOLVER_TIMEOUT_MS"),
		CacheTolerance:      viper.GetFloat64("DISTANCE_CACHE_TOLERANCE"),
		MaxClusterRadiusMi:  viper.GetFloat64("MAX_CLUSTER_RADIUS_MILES"),
		MaxStopsPerTrip:     viper.GetInt("MAX_STOPS_PER_TRIP"),
		SetupBufferHours:    viper.GetFloat64("SETUP_BUFFER_HOURS"),
		TeardownBufferHours: viper.GetFloat64("TEARDOWN_BUFFER_HOURS"),
	}

	cfg.Sentry = SentryConfig{
		DSN: viper.GetString("OPTIMIZER_SENTRY_DSN"),
	}

	return cfg, nil
}
