package config

import (
	"fmt"
	"time"

	"realm-server/internal/shared/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Frontend  FrontendConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Game      GameConfig
}

type ServerConfig struct {
	Port            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsPath  string
}

type RedisConfig struct {
	Enabled      bool
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	SaveQueueKey string
}

type AuthConfig struct {
	JWTSecret       string
	TokenExpiration time.Duration
}

type FrontendConfig struct {
	URL       string
	CORSDebug bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	JSONFormat bool
}

// RateLimitConfig bounds HTTP requests per client address and input frames
// per websocket connection.
type RateLimitConfig struct {
	Enabled           bool
	TrustProxy        bool
	RequestsPerSecond float64
	RequestBurst      int
	InputsPerSecond   float64
	BurstSize         int
}

type GameConfig struct {
	DataPath               string
	ZonesPath              string
	DefaultClass           string
	InventoryCapacity      int
	TickRate               int
	BatchSaveIntervalTicks int
	MaxInputsPerTick       int
	SaveRetries            int
	SaveRetryBackoff       time.Duration
	SaveQueueFlushInterval time.Duration
	Seed                   int64
}

var GlobalConfig *Config

func Init() error {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	config, err := load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	GlobalConfig = config
	return nil
}

func load() (*Config, error) {
	config := &Config{
		Server:    loadServerConfig(),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		Auth:      loadAuthConfig(),
		Frontend:  loadFrontendConfig(),
		Logging:   loadLoggingConfig(),
		RateLimit: loadRateLimitConfig(),
		Game:      loadGameConfig(),
	}

	return config, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            utils.GetEnv("SERVER_PORT", "8080"),
		Environment:     utils.GetEnv("ENVIRONMENT", "development"),
		ReadTimeout:     utils.GetEnvDuration("SERVER_READ_TIMEOUT_SECONDS", 15, time.Second),
		WriteTimeout:    utils.GetEnvDuration("SERVER_WRITE_TIMEOUT_SECONDS", 15, time.Second),
		IdleTimeout:     utils.GetEnvDuration("SERVER_IDLE_TIMEOUT_SECONDS", 60, time.Second),
		ShutdownTimeout: utils.GetEnvDuration("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30, time.Second),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            utils.GetEnv("DB_HOST", "localhost"),
		Port:            utils.GetEnv("DB_PORT", "5432"),
		User:            utils.GetEnv("DB_USER", "postgres"),
		Password:        utils.GetEnv("DB_PASSWORD", "postgres"),
		Name:            utils.GetEnv("DB_NAME", "realm"),
		SSLMode:         utils.GetEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    utils.GetEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    utils.GetEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: utils.GetEnvDuration("DB_CONN_MAX_LIFETIME_MINUTES", 5, time.Minute),
		MigrationsPath:  utils.GetEnv("DB_MIGRATIONS_PATH", "migrations"),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      utils.GetEnv("REDIS_ENABLED", "true") == "true",
		URL:          utils.GetEnv("REDIS_URL", ""),
		Host:         utils.GetEnv("REDIS_HOST", "localhost"),
		Port:         utils.GetEnv("REDIS_PORT", "6379"),
		Password:     utils.GetEnv("REDIS_PASSWORD", ""),
		DB:           utils.GetEnvInt("REDIS_DB", 0),
		SaveQueueKey: utils.GetEnv("REDIS_SAVE_QUEUE_KEY", "realm:pending_saves"),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:       utils.GetEnv("JWT_SECRET", ""),
		TokenExpiration: utils.GetEnvDuration("JWT_EXPIRATION_HOURS", 24, time.Hour),
	}
}

func loadFrontendConfig() FrontendConfig {
	return FrontendConfig{
		URL:       utils.GetEnv("FRONTEND_URL", "http://localhost:3000"),
		CORSDebug: utils.GetEnv("CORS_DEBUG", "") == "true",
	}
}

func loadLoggingConfig() LoggingConfig {
	environment := utils.GetEnv("ENVIRONMENT", "development")
	jsonFormat := environment == "production" || utils.GetEnv("LOG_FORMAT", "text") == "json"

	return LoggingConfig{
		Level:      utils.GetEnv("LOG_LEVEL", "debug"),
		Format:     utils.GetEnv("LOG_FORMAT", "text"),
		JSONFormat: jsonFormat,
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           utils.GetEnv("RATE_LIMIT_ENABLED", "true") == "true",
		TrustProxy:        utils.GetEnvBool("RATE_LIMIT_TRUST_PROXY", false),
		RequestsPerSecond: utils.GetEnvFloat("RATE_LIMIT_REQUESTS_PER_SECOND", 10),
		RequestBurst:      utils.GetEnvInt("RATE_LIMIT_REQUEST_BURST", 20),
		InputsPerSecond:   utils.GetEnvFloat("RATE_LIMIT_INPUTS_PER_SECOND", 60),
		BurstSize:         utils.GetEnvInt("RATE_LIMIT_BURST_SIZE", 30),
	}
}

func loadGameConfig() GameConfig {
	return GameConfig{
		DataPath:               utils.GetEnv("GAME_DATA_PATH", ""),
		ZonesPath:              utils.GetEnv("GAME_ZONES_PATH", ""),
		DefaultClass:           utils.GetEnv("GAME_DEFAULT_CLASS", "warrior"),
		InventoryCapacity:      utils.GetEnvInt("GAME_INVENTORY_CAPACITY", 45),
		TickRate:               utils.GetEnvInt("GAME_TICK_RATE", 20),
		BatchSaveIntervalTicks: utils.GetEnvInt("GAME_BATCH_SAVE_INTERVAL_TICKS", 6000),
		MaxInputsPerTick:       utils.GetEnvInt("GAME_MAX_INPUTS_PER_TICK", 8),
		SaveRetries:            utils.GetEnvInt("GAME_SAVE_RETRIES", 3),
		SaveRetryBackoff:       utils.GetEnvDuration("GAME_SAVE_RETRY_BACKOFF_MS", 250, time.Millisecond),
		SaveQueueFlushInterval: utils.GetEnvDuration("GAME_SAVE_QUEUE_FLUSH_SECONDS", 30, time.Second),
		Seed:                   utils.GetEnvInt64("GAME_SEED", 0),
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Game.TickRate <= 0 || c.Game.TickRate > 120 {
		return fmt.Errorf("GAME_TICK_RATE must be between 1 and 120, got %d", c.Game.TickRate)
	}

	if c.Game.InventoryCapacity <= 0 {
		return fmt.Errorf("GAME_INVENTORY_CAPACITY must be positive")
	}

	if c.Game.SaveRetries < 1 {
		return fmt.Errorf("GAME_SAVE_RETRIES must be at least 1")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
