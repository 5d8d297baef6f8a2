package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	MongoURI         string
	MongoDatabase    string
	RedisAddr        string
	HTTPPort         string
	AllowedDistanceM float64
	MaxSampleAge     time.Duration
}

func Load() *Config {
	return &Config{
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "harmonicrealm"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		HTTPPort:         getEnv("PORT", "8080"),
		AllowedDistanceM: getEnvFloat("ALLOWED_DISTANCE_M", 100),
		MaxSampleAge:     getEnvDuration("MAX_SAMPLE_AGE", 5*time.Minute),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
