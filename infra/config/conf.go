package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Validator *validator.Validate
}

var (
	instance *Config
	once     sync.Once
)

// App returns the process wide configuration holding the shared validator
func App() *Config {
	once.Do(func() {
		instance = &Config{
			Validator: validator.New(validator.WithRequiredStructEnabled()),
		}
	})
	return instance
}

// Provider resolves named settings, falling back to a default value
type Provider interface {
	Get(key, defaultValue string) string
}

// EnvProvider reads settings from the process environment after loading an
// optional .env file. Variables already present in the environment win over
// the file.
type EnvProvider struct{}

// NewEnvProvider loads the given .env files (".env" in the working directory
// when none is given) and returns a provider backed by the environment.
// Missing files are skipped, malformed files are reported.
func NewEnvProvider(files ...string) (*EnvProvider, error) {
	if len(files) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		files = []string{filepath.Join(wd, ".env")}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
	}
	return &EnvProvider{}, nil
}

// Get implements Provider
func (EnvProvider) Get(key, defaultValue string) string {
	return GetEnv(key, defaultValue)
}

// MapProvider serves settings from a fixed map
type MapProvider map[string]string

// Get implements Provider
func (m MapProvider) Get(key, defaultValue string) string {
	if value, ok := m[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
