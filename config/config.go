package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"coldreach/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `json:"poll_interval"`
	BatchSize    int           `json:"batch_size"`
	SendTimeout  time.Duration `json:"send_timeout"`
	PollTimeout  time.Duration `json:"poll_timeout"`
}

type Config struct {
	Environment   string          `json:"environment"`
	ServerPort    string          `json:"server_port"`
	AppURL        string          `json:"app_url"`
	EncryptionKey string          `json:"-"`
	JWTSecret     string          `json:"-"`
	DBHost        string          `json:"db_host"`
	DBPort        string          `json:"db_port"`
	DBUser        string          `json:"db_user"`
	DBPassword    string          `json:"-"`
	DBName        string          `json:"db_name"`
	DBSSLMode     string          `json:"db_ssl_mode"`
	SentryDSN     string          `json:"-"`
	Redis         RedisConfig     `json:"redis"`
	Scheduler     SchedulerConfig `json:"scheduler"`
	CaptureLimit  int             `json:"capture_limit"` // requests/min on the public capture endpoint
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		ServerPort:    getEnv("SERVER_PORT", "5000"),
		AppURL:        getEnv("APP_URL", "http://localhost:5000"),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "coldreach"),
		DBSSLMode:     getEnv("DB_SSL_MODE", "disable"),
		SentryDSN:     getEnv("SENTRY_DSN", ""),
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Scheduler: SchedulerConfig{
			PollInterval: getEnvAsDuration("SCHEDULER_POLL_INTERVAL", time.Minute),
			BatchSize:    getEnvAsInt("SCHEDULER_BATCH_SIZE", 50),
			SendTimeout:  getEnvAsDuration("SCHEDULER_SEND_TIMEOUT", 30*time.Second),
			PollTimeout:  getEnvAsDuration("SCHEDULER_IMAP_TIMEOUT", 60*time.Second),
		},
		CaptureLimit: getEnvAsInt("RATE_LIMIT_CAPTURE", 30),
	}

	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(AppConfig.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}
	if AppConfig.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	return nil
}

func ConnectDB() error {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBUser,
		AppConfig.DBPassword, AppConfig.DBName, AppConfig.DBSSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(getEnvAsInt("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetMaxOpenConns(getEnvAsInt("DB_MAX_OPEN_CONNS", 100))

	if err := models.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	DB = db
	log.Println("Database connected and migrated")
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
