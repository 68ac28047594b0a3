package config

import "time"

// APIConfig holds runtime configuration for the dashboard API service.
type APIConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	ServiceToken       string
	JenkinsURL         string
	JenkinsUser        string
	JenkinsToken       string
	JenkinsTimeout     time.Duration
	NASRoot            string
	NASRetryDelay      time.Duration
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://buildboard:buildboard@db:5432/buildboard?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		ServiceToken:       GetString("API_SERVICE_TOKEN", ""),
		JenkinsURL:         GetString("JENKINS_URL", "http://jenkins:8080"),
		JenkinsUser:        GetString("JENKINS_USER", ""),
		JenkinsToken:       GetString("JENKINS_API_TOKEN", ""),
		JenkinsTimeout:     time.Duration(GetInt("JENKINS_TIMEOUT_SECONDS", 10)) * time.Second,
		NASRoot:            GetString("NAS_ROOT", "/mnt/nas/releases"),
		NASRetryDelay:      time.Duration(GetInt("NAS_RETRY_DELAY_MS", 200)) * time.Millisecond,
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
