package config

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"taskhub/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type Config struct {
	Environment        string        `json:"environment"`
	ServerPort         string        `json:"server_port"`
	LogLevel           string        `json:"log_level"`
	DBHost             string        `json:"db_host"`
	DBPort             string        `json:"db_port"`
	DBUser             string        `json:"db_user"`
	DBPassword         string        `json:"-"`
	DBName             string        `json:"db_name"`
	DBSSLMode          string        `json:"db_ssl_mode"`
	DBMaxIdleConns     int           `json:"db_max_idle_conns"`
	DBMaxOpenConns     int           `json:"db_max_open_conns"`
	JWTSecret          string        `json:"-"`
	AccessTokenTTL     time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `json:"refresh_token_ttl"`
	CORSAllowedOrigins []string      `json:"cors_allowed_origins"`
	RateLimitLogin     int           `json:"rate_limit_login"`
	Redis              RedisConfig   `json:"redis"`
	SentryDSN          string        `json:"-"`
}

func init() {
	// A missing .env file is fine, the environment may be set directly.
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		ServerPort:         getEnv("SERVER_PORT", "5000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", ""),
		DBName:             getEnv("DB_NAME", "taskhub"),
		DBSSLMode:          getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTokenTTL:     time.Duration(getEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", 15)) * time.Minute,
		RefreshTokenTTL:    time.Duration(getEnvAsInt("REFRESH_TOKEN_TTL_HOURS", 7*24)) * time.Hour,
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitLogin:     getEnvAsInt("RATE_LIMIT_LOGIN", 10),
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SentryDSN: getEnv("SENTRY_DSN", ""),
	}

	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if AppConfig.IsProduction() && len(AppConfig.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}

	logConfig()
	return nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// DSN is the postgres connection string for the configured database.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost,
		c.DBPort,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBSSLMode,
	)
}

// ReadTxOptions are the options dashboards read with: a single snapshot,
// never written through.
func ReadTxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

func ConnectDB() error {
	logrus.Info("Attempting to connect to database...")

	dsn := AppConfig.DSN()
	logrus.WithField("dsn", maskPassword(dsn)).Debug("Using connection string")

	gormConfig := &gorm.Config{}
	if AppConfig.IsProduction() {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("Successfully connected to the database")
	return nil
}

func MigrateDB() error {
	logrus.Info("Starting database migration...")
	if err := models.AutoMigrate(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	logrus.Info("Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"environment":  AppConfig.Environment,
		"server_port":  AppConfig.ServerPort,
		"database":     fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName),
		"redis":        AppConfig.Redis.Enabled,
		"sentry":       AppConfig.SentryDSN != "",
		"cors_origins": AppConfig.CORSAllowedOrigins,
	}).Info("Loaded configuration")
}
