package config

import (
	"os"
	"slices"
	"strconv"
)

// EnvConfig holds environment variable-based configuration
type EnvConfig struct {
	Port       int
	LogLevel   string
	ConfigFile string
	SecretsDir string
	WebDebug   bool
}

// LoadFromEnv reads configuration from environment variables
func LoadFromEnv() *EnvConfig {
	env := &EnvConfig{
		Port:       getEnvAsInt("PORT", 0),
		LogLevel:   getEnv("LOG_LEVEL", ""),
		ConfigFile: getEnv("CONFIG_FILE", "config.yaml"),
		SecretsDir: getEnv("SECRETS_DIR", "/secrets"),
		WebDebug:   getEnvAsBool("WEB_DEBUG", false) || slices.Contains(os.Args[1:], "web-debug"),
	}

	return env
}

// Apply overrides file configuration with values set in the environment
func (e *EnvConfig) Apply(cfg *Config) {
	if e.Port != 0 {
		cfg.Server.Port = e.Port
	}
	if e.LogLevel != "" {
		cfg.LogLevel = e.LogLevel
	}
	if e.WebDebug {
		cfg.Render.Debug = true
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
