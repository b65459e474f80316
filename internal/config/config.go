// internal/config/config.go
package config

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Upload    UploadConfig
	Namespace NamespaceConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	MaxUploadMB    int64
}

// StorageConfig describes the remote object store. Bucket and region are
// deployment settings; credentials are read once at startup.
type StorageConfig struct {
	Driver           string
	Endpoint         string
	AccessKey        string
	SecretKey        string
	Bucket           string
	Region           string
	UseSSL           bool
	PathStyle        bool
	CanonicalBaseURL string
	GrantTTL         time.Duration
	DefaultFolder    string
}

type UploadConfig struct {
	GatewayURL     string
	Mode           string
	Folder         string
	MaxFileMB      int64
	QuotaMB        int64
	MaxConcurrent  int
	RequestTimeout time.Duration
}

type NamespaceConfig struct {
	Backend      string
	FilePath     string
	Name         string
	PollInterval time.Duration
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
)

// Load reads configuration from the environment (and a .env file if present)
// once per process.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.New()
		SetDefaults(v)

		// Read from environment variables
		v.AutomaticEnv()

		instance = FromViper(v)
	})

	return instance
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "5000")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 60)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 0)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:5173"})
	v.SetDefault("SERVER_MAX_UPLOAD_MB", 200)

	v.SetDefault("STORAGE_DRIVER", "s3")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_BUCKET", "tutor-support")
	v.SetDefault("S3_REGION", "ap-southeast-2")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("S3_PATH_STYLE", false)
	v.SetDefault("S3_CANONICAL_BASE_URL", "")
	v.SetDefault("S3_GRANT_TTL", time.Hour)
	v.SetDefault("S3_DEFAULT_FOLDER", "course-files")

	v.SetDefault("GATEWAY_URL", "http://localhost:5000")
	v.SetDefault("UPLOAD_MODE", "proxy")
	v.SetDefault("UPLOAD_FOLDER", "private-storage")
	v.SetDefault("UPLOAD_MAX_FILE_MB", 200)
	v.SetDefault("UPLOAD_QUOTA_MB", 300)
	v.SetDefault("UPLOAD_MAX_CONCURRENT", 0)
	v.SetDefault("UPLOAD_REQUEST_TIMEOUT", 10*time.Minute)

	v.SetDefault("NAMESPACE_BACKEND", "file")
	v.SetDefault("NAMESPACE_FILE", "./data/namespace.json")
	v.SetDefault("NAMESPACE_NAME", "private-storage")
	v.SetDefault("NAMESPACE_POLL_INTERVAL", 2*time.Second)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tutorstore")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			MaxUploadMB:    v.GetInt64("SERVER_MAX_UPLOAD_MB"),
		},
		Storage: StorageConfig{
			Driver:           strings.ToLower(v.GetString("STORAGE_DRIVER")),
			Endpoint:         v.GetString("S3_ENDPOINT"),
			AccessKey:        v.GetString("AWS_ACCESS_KEY_ID"),
			SecretKey:        v.GetString("AWS_SECRET_ACCESS_KEY"),
			Bucket:           v.GetString("S3_BUCKET"),
			Region:           v.GetString("S3_REGION"),
			UseSSL:           v.GetBool("S3_USE_SSL"),
			PathStyle:        v.GetBool("S3_PATH_STYLE"),
			CanonicalBaseURL: v.GetString("S3_CANONICAL_BASE_URL"),
			GrantTTL:         getDuration(v, "S3_GRANT_TTL"),
			DefaultFolder:    v.GetString("S3_DEFAULT_FOLDER"),
		},
		Upload: UploadConfig{
			GatewayURL:     v.GetString("GATEWAY_URL"),
			Mode:           strings.ToLower(v.GetString("UPLOAD_MODE")),
			Folder:         v.GetString("UPLOAD_FOLDER"),
			MaxFileMB:      v.GetInt64("UPLOAD_MAX_FILE_MB"),
			QuotaMB:        v.GetInt64("UPLOAD_QUOTA_MB"),
			MaxConcurrent:  v.GetInt("UPLOAD_MAX_CONCURRENT"),
			RequestTimeout: getDuration(v, "UPLOAD_REQUEST_TIMEOUT"),
		},
		Namespace: NamespaceConfig{
			Backend:      strings.ToLower(v.GetString("NAMESPACE_BACKEND")),
			FilePath:     v.GetString("NAMESPACE_FILE"),
			Name:         v.GetString("NAMESPACE_NAME"),
			PollInterval: getDuration(v, "NAMESPACE_POLL_INTERVAL"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("DB_DRIVER"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

// getDuration reads key as a Go duration ("90s", "1h"). A bare integer is
// taken as seconds.
func getDuration(v *viper.Viper, key string) time.Duration {
	if secs, err := strconv.ParseInt(strings.TrimSpace(v.GetString(key)), 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return v.GetDuration(key)
}

// HasCredentials reports whether both halves of the store credentials are set.
func (c StorageConfig) HasCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}
