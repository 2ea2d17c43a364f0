package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Tasks     TasksConfig
	Scoring   ScoringConfig
	Gradebook GradebookConfig
	Imports   ImportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TasksConfig governs the background task orchestrator.
type TasksConfig struct {
	Workers            int
	DependencyInterval time.Duration
	DependencyAttempts int
	EventBufferSize    int
}

// ScoringConfig points at the external late-policy scoring engine.
type ScoringConfig struct {
	Enabled         bool
	PolicyServerURL string
	RequestTimeout  time.Duration
}

// GradebookConfig configures the downstream gradebook publisher.
type GradebookConfig struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
}

// ImportsConfig tunes raw score CSV ingestion.
type ImportsConfig struct {
	TimeZone string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Tasks = TasksConfig{
		Workers:            v.GetInt("TASK_WORKERS"),
		DependencyInterval: parseDuration(v.GetString("TASK_DEPENDENCY_INTERVAL"), 2*time.Second),
		DependencyAttempts: v.GetInt("TASK_DEPENDENCY_ATTEMPTS"),
		EventBufferSize:    v.GetInt("TASK_EVENT_BUFFER"),
	}

	cfg.Scoring = ScoringConfig{
		Enabled:         v.GetBool("SCORING_ENABLED"),
		PolicyServerURL: v.GetString("SCORING_POLICY_SERVER_URL"),
		RequestTimeout:  parseDuration(v.GetString("SCORING_REQUEST_TIMEOUT"), 30*time.Second),
	}

	cfg.Gradebook = GradebookConfig{
		BaseURL:        v.GetString("GRADEBOOK_BASE_URL"),
		Token:          v.GetString("GRADEBOOK_TOKEN"),
		RequestTimeout: parseDuration(v.GetString("GRADEBOOK_REQUEST_TIMEOUT"), 30*time.Second),
	}

	cfg.Imports = ImportsConfig{
		TimeZone: v.GetString("IMPORT_TIME_ZONE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "gradeflow")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "gradeflow")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TASK_WORKERS", 10)
	v.SetDefault("TASK_DEPENDENCY_INTERVAL", "2s")
	v.SetDefault("TASK_DEPENDENCY_ATTEMPTS", 10)
	v.SetDefault("TASK_EVENT_BUFFER", 64)

	v.SetDefault("SCORING_ENABLED", true)
	v.SetDefault("SCORING_POLICY_SERVER_URL", "http://localhost:8081")
	v.SetDefault("SCORING_REQUEST_TIMEOUT", "30s")

	v.SetDefault("GRADEBOOK_BASE_URL", "")
	v.SetDefault("GRADEBOOK_TOKEN", "")
	v.SetDefault("GRADEBOOK_REQUEST_TIMEOUT", "30s")

	v.SetDefault("IMPORT_TIME_ZONE", "America/Denver")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
