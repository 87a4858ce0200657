package config

import (
	"os"
)

// Config holds the application configuration
type Config struct {
	Port                 string
	Environment          string
	APIKey               string
	QdrantURL            string
	QdrantAPIKey         string
	OpenWeatherMapAPIKey string
	WAQIAPIToken         string
	ModelDir             string
	AdminUsername        string
	AdminPassword        string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:                 getEnv("PORT", "8080"),
		Environment:          getEnv("ENVIRONMENT", "development"),
		APIKey:               getEnv("API_KEY", ""),
		QdrantURL:            getEnv("QDRANT_URL", ""),
		QdrantAPIKey:         getEnv("QDRANT_API_KEY", ""),
		OpenWeatherMapAPIKey: getEnv("OPENWEATHERMAP_API_KEY", ""),
		WAQIAPIToken:         getEnv("WAQI_API_TOKEN", ""),
		ModelDir:             getEnv("MODEL_DIR", "./data/models"),
		AdminUsername:        getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:        getEnv("ADMIN_PASSWORD", ""),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
