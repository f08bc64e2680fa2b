package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	LocalStorageDir        string
	StoragePublicURL       string
	CORSAllowOrigins       string
	UploadMaxSizeMB        int
	StatisticsCacheTTL     time.Duration
	EventsChannel          string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether Cloudinary credentials are configured.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BARGEH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Bargeh API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "bargeh/submissions")
	v.SetDefault("storage.local_dir", "./data/uploads")
	v.SetDefault("storage.public_url", "/files")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("upload.max_size_mb", 20)
	v.SetDefault("statistics.cache_ttl", "2m")
	v.SetDefault("events.channel", "bargeh:grading")

	ttlString := v.GetString("statistics.cache_ttl")
	if ttlString == "" {
		ttlString = "2m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid statistics cache ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		LocalStorageDir:        v.GetString("storage.local_dir"),
		StoragePublicURL:       v.GetString("storage.public_url"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		StatisticsCacheTTL:     ttl,
		EventsChannel:          v.GetString("events.channel"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 20
	}

	return cfg, nil
}
