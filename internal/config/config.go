package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	Environment string
	LogLevel    string

	DBDriver      string
	DBDSN         string
	RunMigrations bool
	ResetDB       bool

	RedisAddr string
	RedisDB   int
	RedisPass string

	JWTSecret         string
	JWTIssuer         string
	JWTAudience       string
	JWTExpirationDays int

	CORSAllowedOrigins []string

	Avatar AvatarConfig
	S3     S3Config

	SwaggerHost string
}

// AvatarConfig controls where avatars are stored and how they are normalized.
type AvatarConfig struct {
	Storage      string // "local" or "s3"
	Dir          string
	PublicPath   string
	MaxDimension int
}

// S3Config describes an S3-compatible bucket (AWS, R2, MinIO).
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// Load builds Config from environment with sensible defaults.
// A .env file (ENV_FILE, default ".env") is applied first when present;
// variables already set in the environment win.
func Load() *Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DBDriver:      getEnv("DB_DRIVER", "mysql"),
		DBDSN:         getEnv("DB_DSN", "user:password@tcp(localhost:3306)/cdm?charset=utf8mb4&parseTime=True&loc=UTC"),
		RunMigrations: getEnvBool("RUN_MIGRATIONS", true),
		ResetDB:       getEnvBool("RESET_DB", false),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		RedisPass: os.Getenv("REDIS_PASSWORD"),

		JWTSecret:         getEnv("JWT_SECRET", "change-me-to-a-secret-of-at-least-32-bytes"),
		JWTIssuer:         getEnv("JWT_ISSUER", "ChroniqueDesMondes"),
		JWTAudience:       getEnv("JWT_AUDIENCE", "ChroniqueDesMondesWeb"),
		JWTExpirationDays: getEnvInt("JWT_EXPIRATION_DAYS", 7),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5000"}),

		Avatar: AvatarConfig{
			Storage:      getEnv("AVATAR_STORAGE", "local"),
			Dir:          getEnv("AVATAR_DIR", "uploads/avatars"),
			PublicPath:   getEnv("AVATAR_PUBLIC_PATH", "/uploads/avatars"),
			MaxDimension: getEnvInt("AVATAR_MAX_DIMENSION", 512),
		},
		S3: S3Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          getEnv("S3_REGION", "auto"),
			Bucket:          os.Getenv("S3_BUCKET"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		},

		SwaggerHost: os.Getenv("SWAGGER_HOST"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
