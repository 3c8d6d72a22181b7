package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	SiteName string `mapstructure:"SITE_NAME"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	JWTSecret         string `mapstructure:"JWT_SECRET"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Data files.
	DataDir          string `mapstructure:"DATA_DIR"`
	LiveFileName     string `mapstructure:"LIVE_FILE_NAME"`
	ArchiveFileName  string `mapstructure:"ARCHIVE_FILE_NAME"`
	MaxBackupsToKeep int    `mapstructure:"MAX_BACKUPS_TO_KEEP"`

	// Booking lifecycle.
	Timezone             string `mapstructure:"TIMEZONE"`
	ArchiveAfterDays     int    `mapstructure:"ARCHIVE_AFTER_DAYS"`
	FieldMappingsPath    string `mapstructure:"FIELD_MAPPINGS_PATH"`
	ServiceAccountPath   string `mapstructure:"SERVICE_ACCOUNT_PATH"`
	GoogleCalendarID     string `mapstructure:"GOOGLE_CALENDAR_ID"`
	SpreadsheetID        string `mapstructure:"SPREADSHEET_ID"`
	SpreadsheetRange     string `mapstructure:"SPREADSHEET_RANGE"`
	SheetCacheTTLMinutes int    `mapstructure:"SHEET_CACHE_TTL_MINUTES"`

	// Redis configuration (sheet row cache).
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`

	// Email.
	EmailEnabled         bool   `mapstructure:"EMAIL_ENABLED"`
	SMTPHost             string `mapstructure:"SMTP_HOST"`
	SMTPPort             int    `mapstructure:"SMTP_PORT"`
	EmailLoginUsername   string `mapstructure:"EMAIL_LOGIN_USERNAME"`
	EmailLoginPassword   string `mapstructure:"EMAIL_LOGIN_PASSWD"`
	EmailDisplayUsername string `mapstructure:"EMAIL_DISPLAY_USERNAME"`
	EmailFromAddress     string `mapstructure:"EMAIL_FROM_ADDRESS"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SITE_NAME", "Paddington")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("DATA_DIR", "data")
	viper.SetDefault("LIVE_FILE_NAME", "bookings.json")
	viper.SetDefault("ARCHIVE_FILE_NAME", "archive.json")
	viper.SetDefault("MAX_BACKUPS_TO_KEEP", 50)
	viper.SetDefault("TIMEZONE", "Europe/London")
	viper.SetDefault("ARCHIVE_AFTER_DAYS", 90)
	viper.SetDefault("FIELD_MAPPINGS_PATH", "config/field_mappings.json")
	viper.SetDefault("SERVICE_ACCOUNT_PATH", "config/credentials.json")
	viper.SetDefault("SPREADSHEET_RANGE", "2025!A:K")
	viper.SetDefault("SHEET_CACHE_TTL_MINUTES", 30)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("EMAIL_ENABLED", false)
	viper.SetDefault("SMTP_HOST", "localhost")
	viper.SetDefault("SMTP_PORT", 25)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
