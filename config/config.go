package config

import (
	"os"
	"strconv"
	"time"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
}

type AppConfig struct {
	Port            string
	JWTSecret       string
	StoreBackend    string // postgres | memory
	InventoryStore  string // postgres | redis
	QueueBackend    string // memory | redis
	QueueBufferSize int
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Loaded 最近一次 LoadConfig 的結果
var Loaded *Config

func LoadConfig() *Config {
	Loaded = &Config{
		App:      GetAppConfig(),
		Database: GetDatabaseConfig(),
		Redis:    GetRedisConfig(),
	}

	return Loaded
}

func LoadTestConfig() *Config {
	testConfig := &DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnv("TEST_DB_PORT", "5433"), // 測試 DB 用 5433 port
		User:     "postgres",
		Password: "postgres",
		DBName:   "test_db",
		SSLMode:  "disable",
	}

	testRedisConfig := RedisConfig{
		Host:     getEnv("TEST_REDIS_HOST", "localhost"),
		Port:     getEnv("TEST_REDIS_PORT", "6380"), // 測試 Redis 用 6380 port
		Password: "",
		DB:       1,
	}

	return &Config{
		App: AppConfig{
			Port:            "0",
			JWTSecret:       "test-secret",
			StoreBackend:    BackendPostgres,
			InventoryStore:  BackendPostgres,
			QueueBackend:    BackendMemory,
			QueueBufferSize: 16,
			ShutdownTimeout: time.Second,
		},
		Database: *testConfig,
		Redis:    testRedisConfig,
	}
}

func GetAppConfig() AppConfig {
	return AppConfig{
		Port:            getEnv("APP_PORT", "8080"),
		JWTSecret:       getEnv("JWT_SECRET", "change-me"),
		StoreBackend:    getEnv("STORE_BACKEND", BackendPostgres),
		InventoryStore:  getEnv("INVENTORY_BACKEND", BackendPostgres),
		QueueBackend:    getEnv("QUEUE_BACKEND", BackendMemory),
		QueueBufferSize: getEnvInt("QUEUE_BUFFER_SIZE", 1024),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "postgres"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
}

func GetRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

// NeedsRedis 是否有任何元件使用 Redis
func (c *Config) NeedsRedis() bool {
	return c.App.InventoryStore == BackendRedis || c.App.QueueBackend == BackendRedis
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		panic(err)
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(err)
	}
	return d
}
