package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	// Gemini API
	GeminiAPIKey       string
	GeminiBaseURL      string
	GeminiModel        string
	GeminiTTSModel     string
	GeminiTimeout      time.Duration
	UploadPollInterval time.Duration
	UploadPollTimeout  time.Duration

	// HTTP server
	Host            string
	Port            int
	ShutdownTimeout time.Duration

	// File storage
	UploadDir string // Uploaded source videos
	OutputDir string // Generated dubbed audio
	DataDir   string // JSON record store root

	// Limits and defaults
	MaxFileSize       int64
	MaxConcurrentJobs int // 0 means unbounded
	DefaultLanguage   string
	DefaultVoiceStyle string

	// Logging
	LogLevel string
	LogFile  string

	// Redis配置，RedisHost 为空时不启用状态缓存
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	StatusCacheTTL time.Duration

	// MinIO配置，MinioEndpoint 为空时不归档音频
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("2s", "1m30s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() *Config {
	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTTSModel:     getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		GeminiTimeout:      getEnvDuration("GEMINI_TIMEOUT", 120*time.Second),
		UploadPollInterval: getEnvDuration("UPLOAD_POLL_INTERVAL", 2*time.Second),
		UploadPollTimeout:  getEnvDuration("UPLOAD_POLL_TIMEOUT", 60*time.Second),
		Host:               getEnv("HOST", "0.0.0.0"),
		Port:               getEnvInt("PORT", 8000),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		OutputDir:          getEnv("OUTPUT_DIR", "outputs"),
		DataDir:            dataDir,
		MaxFileSize:        getEnvInt64("MAX_FILE_SIZE", 100*1024*1024), // 100MB
		MaxConcurrentJobs:  getEnvInt("MAX_CONCURRENT_JOBS", 4),
		DefaultLanguage:    getEnv("DEFAULT_LANGUAGE", "en-US"),
		DefaultVoiceStyle:  getEnv("DEFAULT_VOICE_STYLE", "natural"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", ""),
		RedisHost:          getEnv("REDIS_HOST", ""),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		StatusCacheTTL:     getEnvDuration("STATUS_CACHE_TTL", 24*time.Hour),
		MinioEndpoint:      getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:        getEnv("MINIO_BUCKET", "dubflow"),
		MinioUseSSL:        getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:        getEnv("MINIO_REGION", ""),
	}
}

// Validate reports configuration that would prevent the server from doing useful work.
func (c *Config) Validate() error {
	var errs []error
	if c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must be positive"))
	}
	if c.MaxConcurrentJobs < 0 {
		errs = append(errs, errors.New("MAX_CONCURRENT_JOBS must not be negative"))
	}
	if c.UploadPollInterval <= 0 {
		errs = append(errs, errors.New("UPLOAD_POLL_INTERVAL must be positive"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, errors.New("PORT must be between 1 and 65535"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// VideoStorePath is the JSON document holding MediaAsset records.
func (c *Config) VideoStorePath() string {
	return filepath.Join(c.DataDir, "videos", "metadata.json")
}

// RequestStorePath is the JSON document holding DubbingRequest records.
func (c *Config) RequestStorePath() string {
	return filepath.Join(c.DataDir, "requests", "requests.json")
}

// ResultStorePath is the JSON document holding DubbingResult records.
func (c *Config) ResultStorePath() string {
	return filepath.Join(c.DataDir, "results", "results.json")
}

// CacheEnabled reports whether a Redis status cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisHost != ""
}

// ArchiveEnabled reports whether generated audio should be copied to MinIO.
func (c *Config) ArchiveEnabled() bool {
	return c.MinioEndpoint != ""
}
