package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the classifier service.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	LogLevel        string
	ShutdownTimeout time.Duration

	ModelPath       string
	ORTLibraryPath  string
	ModelInputName  string
	ModelOutputName string
	ImageSize       int

	UploadDir      string
	MaxUploadBytes int64

	DBDriver    string
	DatabaseDSN string

	RedisAddr string
	CacheTTL  time.Duration

	JWTSecret   string
	JWTAudience string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var p envParser
	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":5000"),
		GRPCAddr:        os.Getenv("GRPC_ADDR"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		ModelPath:       getEnv("MODEL_PATH", "models/batik_optimized.onnx"),
		ORTLibraryPath:  os.Getenv("ONNXRUNTIME_LIB"),
		ModelInputName:  getEnv("MODEL_INPUT_NAME", "input"),
		ModelOutputName: getEnv("MODEL_OUTPUT_NAME", "output"),
		ImageSize:       p.integer("IMAGE_SIZE", 224),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes:  p.integer64("MAX_UPLOAD_BYTES", 10<<20),
		DBDriver:        getEnv("DB_DRIVER", "sqlite"),
		DatabaseDSN:     getEnv("DATABASE_DSN", "batik.db"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		CacheTTL:        p.duration("CACHE_TTL", 5*time.Minute),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience:     os.Getenv("JWT_AUDIENCE"),
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.ImageSize <= 0 {
		return fmt.Errorf("IMAGE_SIZE must be positive, got %d", c.ImageSize)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.ModelPath == "" {
		return errors.New("MODEL_PATH is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// envParser collects every malformed variable so Load can report them together.
type envParser struct {
	errs []error
}

func (p *envParser) integer(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return fallback
	}
	return n
}

func (p *envParser) integer64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return fallback
	}
	return n
}

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return fallback
	}
	return d
}
