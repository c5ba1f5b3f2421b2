package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML. Environment
// variables override file values for secrets and deploy-time settings.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// SessionBackend selects token handling: "jwt" for stateless signed
	// tokens, "redis" for revocable server-side sessions.
	SessionBackend string `yaml:"sessionBackend"`
	JWTSecret      string `yaml:"jwtSecret"`
	SessionTTL     string `yaml:"sessionTTL"`

	OpenAIAPIKey  string `yaml:"openaiAPIKey"`
	OpenAIBaseURL string `yaml:"openaiBaseURL"`
	OpenAIModel   string `yaml:"openaiModel"`
	GenTimeout    string `yaml:"generationTimeout"`

	PDFDir      string `yaml:"pdfDir"`
	PDFFontPath string `yaml:"pdfFontPath"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	RenderStream      string `yaml:"renderStream"`
	RenderConcurrency int    `yaml:"renderConcurrency"`
	RenderMaxRetries  int    `yaml:"renderMaxRetries"`

	GenerateRatePerMinute int `yaml:"generateRatePerMinute"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("GIFTAI_SESSION_BACKEND"); v != "" {
		cfg.SessionBackend = v
	}
	if v := os.Getenv("GIFTAI_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("GIFTAI_PDF_DIR"); v != "" {
		cfg.PDFDir = v
	}
	if v := os.Getenv("GIFTAI_RENDER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RenderConcurrency = n
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SessionBackend == "" {
		cfg.SessionBackend = "jwt"
	}
	if cfg.PDFDir == "" {
		cfg.PDFDir = "generated-pdfs"
	}
	if cfg.RenderStream == "" {
		cfg.RenderStream = "giftai:render"
	}
	if cfg.RenderConcurrency <= 0 {
		cfg.RenderConcurrency = 2
	}
	if cfg.RenderMaxRetries <= 0 {
		cfg.RenderMaxRetries = 3
	}
	if cfg.GenerateRatePerMinute <= 0 {
		cfg.GenerateRatePerMinute = 5
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	switch cfg.SessionBackend {
	case "jwt":
		if cfg.JWTSecret == "" {
			return errors.New("config: jwtSecret is required for the jwt session backend (set in config.yaml or GIFTAI_JWT_SECRET)")
		}
	case "redis":
		// sessions share redisAddr, which is checked above
	default:
		return fmt.Errorf("config: unknown sessionBackend %q (jwt or redis)", cfg.SessionBackend)
	}
	if _, err := ParseSessionTTL(cfg.SessionTTL); err != nil {
		return err
	}
	if _, err := ParseGenerationTimeout(cfg.GenTimeout); err != nil {
		return err
	}
	return nil
}

// ParseSessionTTL parses the configured session lifetime, defaulting to
// 24 hours when unset.
func ParseSessionTTL(value string) (time.Duration, error) {
	if value == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: invalid sessionTTL %q", value)
	}
	return d, nil
}

// ParseGenerationTimeout parses the text-generation timeout. Zero means
// the generator's built-in default.
func ParseGenerationTimeout(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("config: invalid generationTimeout %q", value)
	}
	return d, nil
}
