package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// Server
	Port        string
	Environment string
	JWTSecret   string

	// Registry
	RegistryBackend string // "postgres" or "memory"
	DatabaseURL     string

	// Storage
	StorageBackend  string // "fs" or "supabase"
	FSStoragePath   string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseBucket  string

	// Activity events
	AMQPURL       string
	ActivityQueue string

	// Job execution
	Workers      int
	QueueSize    int
	MaxRetries   int
	ItemsPerPage int

	// Media limits
	MinTrimDuration           float64
	MinVideoWidth             int
	MaxVideoWidth             int
	MinVideoHeight            int
	MaxVideoHeight            int
	AllowInterpolation        bool
	InterpolationLimit        int
	DefaultTimelineThumbnails int

	// Supported codecs
	VideoCodecs []string
	ImageCodecs []string

	// ffmpeg
	FFmpegThreads string
	FFmpegPreset  string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "5050"),
		Environment: getEnv("ENVIRONMENT", "development"),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		RegistryBackend: getEnv("REGISTRY_BACKEND", "postgres"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),

		StorageBackend: getEnv("STORAGE_BACKEND", "fs"),
		FSStoragePath:  getEnv("FS_MEDIA_STORAGE_PATH", "./media/projects"),
		SupabaseURL:    getEnv("SUPABASE_URL", ""),
		SupabaseKey:    getEnv("SUPABASE_KEY", ""),
		SupabaseBucket: getEnv("SUPABASE_STORAGE_BUCKET", "videoserver"),

		AMQPURL:       getEnv("AMQP_URL", ""),
		ActivityQueue: getEnv("ACTIVITY_QUEUE", "project_activity"),

		Workers:      getEnvInt("WORKERS", 5),
		QueueSize:    getEnvInt("JOB_QUEUE_SIZE", 100),
		MaxRetries:   getEnvInt("MAX_RETRIES", 3),
		ItemsPerPage: getEnvInt("ITEMS_PER_PAGE", 25),

		MinTrimDuration:           getEnvFloat("MIN_TRIM_DURATION", 2),
		MinVideoWidth:             getEnvInt("MIN_VIDEO_WIDTH", 320),
		MaxVideoWidth:             getEnvInt("MAX_VIDEO_WIDTH", 3840),
		MinVideoHeight:            getEnvInt("MIN_VIDEO_HEIGHT", 180),
		MaxVideoHeight:            getEnvInt("MAX_VIDEO_HEIGHT", 2160),
		AllowInterpolation:        getEnvBool("ALLOW_INTERPOLATION", true),
		InterpolationLimit:        getEnvInt("INTERPOLATION_LIMIT", 1280),
		DefaultTimelineThumbnails: getEnvInt("DEFAULT_TOTAL_TIMELINE_THUMBNAILS", 40),

		VideoCodecs: getEnvList("CODEC_SUPPORT_VIDEO", []string{"vp8", "vp9", "h264", "theora", "av1"}),
		ImageCodecs: getEnvList("CODEC_SUPPORT_IMAGE", []string{"bmp", "mjpeg", "png"}),

		FFmpegThreads: getEnv("FFMPEG_THREADS", "0"),
		FFmpegPreset:  getEnv("FFMPEG_PRESET", "medium"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RegistryBackend == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when REGISTRY_BACKEND is postgres")
	}
	if c.StorageBackend == "supabase" && (c.SupabaseURL == "" || c.SupabaseKey == "") {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required when STORAGE_BACKEND is supabase")
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
