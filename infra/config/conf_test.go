package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp(t *testing.T) {
	config1 := App()
	config2 := App()

	require.NotNil(t, config1)
	assert.Same(t, config1, config2, "App() should return singleton instance")
	assert.NotNil(t, config1.Validator, "Validator should be initialized")
}

func TestNewEnvProvider(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GOMPESA_TEST_FROM_FILE=file\nGOMPESA_TEST_OVERRIDDEN=file\n"), 0o600))

	t.Setenv("GOMPESA_TEST_OVERRIDDEN", "env")
	t.Cleanup(func() { os.Unsetenv("GOMPESA_TEST_FROM_FILE") })

	p, err := NewEnvProvider(envFile)
	require.NoError(t, err)

	assert.Equal(t, "file", p.Get("GOMPESA_TEST_FROM_FILE", "default"))
	assert.Equal(t, "env", p.Get("GOMPESA_TEST_OVERRIDDEN", "default"))
	assert.Equal(t, "default", p.Get("GOMPESA_TEST_MISSING", "default"))
}

func TestNewEnvProvider_MissingFile(t *testing.T) {
	p, err := NewEnvProvider(filepath.Join(t.TempDir(), "does-not-exist.env"))
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewEnvProvider_MalformedFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("KEY='unterminated\n"), 0o600))

	_, err := NewEnvProvider(envFile)
	assert.Error(t, err)
}

func TestMapProvider(t *testing.T) {
	p := MapProvider{"A": "1", "EMPTY": ""}

	assert.Equal(t, "1", p.Get("A", "x"))
	assert.Equal(t, "x", p.Get("EMPTY", "x"))
	assert.Equal(t, "x", p.Get("B", "x"))
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{"env_var_exists", "GOMPESA_TEST_VAR", "default", "custom", "custom"},
		{"env_var_not_exists", "GOMPESA_NON_EXISTENT", "default", "", "default"},
		{"empty_default", "GOMPESA_NON_EXISTENT_2", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.expected, GetEnv(tt.key, tt.defaultValue))
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		expected     bool
	}{
		{"true", "true", false, true},
		{"false", "false", true, false},
		{"numeric", "1", false, true},
		{"invalid falls back", "maybe", true, true},
		{"unset", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOMPESA_TEST_BOOL", tt.envValue)
			assert.Equal(t, tt.expected, GetBoolEnv("GOMPESA_TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("GOMPESA_TEST_INT", "42")
	assert.Equal(t, 42, GetIntEnv("GOMPESA_TEST_INT", 1))

	t.Setenv("GOMPESA_TEST_INT", "abc")
	assert.Equal(t, 1, GetIntEnv("GOMPESA_TEST_INT", 1))
}
