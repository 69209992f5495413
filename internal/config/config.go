package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	ServerPort string
	JWTSecret  string

	// Sync backend selection, by configuration presence.
	FirebaseAPIKey    string
	FirebaseProjectID string
	MySQLDSN          string

	// Local store directory, also the fallback backend.
	DataDir string

	// Export archive storage.
	StorageType      string
	S3Endpoint       string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	LocalStoragePath string
	ExportMasterKey  string

	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string

	TrialCheckInterval time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("config: could not load .env")
	}

	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"),
		FirebaseAPIKey:     getEnv("FIREBASE_API_KEY", ""),
		FirebaseProjectID:  getEnv("FIREBASE_PROJECT_ID", ""),
		MySQLDSN:           getEnv("MYSQL_DSN", ""),
		DataDir:            getEnv("DATA_DIR", "./data"),
		StorageType:        getEnv("STORAGE_TYPE", "local"),
		S3Endpoint:         getEnv("S3_ENDPOINT", "minio:9000"),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           getEnv("S3_BUCKET", "exports"),
		LocalStoragePath:   getEnv("LOCAL_STORAGE_PATH", "./data/exports"),
		ExportMasterKey:    getEnv("EXPORT_MASTER_KEY", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		OAuthRedirectURL:   getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		TrialCheckInterval: getEnvDuration("TRIAL_CHECK_INTERVAL", time.Minute),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
