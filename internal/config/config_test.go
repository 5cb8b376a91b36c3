package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAreValid(t *testing.T) {
	cfg, err := Load("TITANTEST")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Events.Bus)
	assert.Equal(t, "bidirectional", cfg.Federation.Mode)
}

func TestLoad_ReadsOverridesUnderPrefix(t *testing.T) {
	os.Setenv("TITANTEST_PORT", "9090")
	os.Setenv("TITANTEST_MQTT_BROKER", "mqtt.example.com")
	defer os.Unsetenv("TITANTEST_PORT")
	defer os.Unsetenv("TITANTEST_MQTT_BROKER")

	cfg, err := Load("TITANTEST")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "mqtt.example.com", cfg.MQTT.Broker)
}

func TestLoad_RejectsInvalidEnvironment(t *testing.T) {
	os.Setenv("TITANTEST_ENVIRONMENT", "sandbox")
	defer os.Unsetenv("TITANTEST_ENVIRONMENT")

	_, err := Load("TITANTEST")
	assert.Error(t, err)
}

func TestLoad_RequiresBucketForS3Backend(t *testing.T) {
	os.Setenv("TITANTEST_BLOB_BACKEND", "s3")
	defer os.Unsetenv("TITANTEST_BLOB_BACKEND")

	_, err := Load("TITANTEST")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Blob.Bucket")
}

func TestLoadFromFile_OverlaysFileValuesOntoEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9999\nmqtt:\n  broker: file.example.com\n"), 0o644))

	cfg, err := LoadFromFile(path, "TITANFILETEST")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "file.example.com", cfg.MQTT.Broker)

	os.Unsetenv("TITANFILETEST_PORT")
	os.Unsetenv("TITANFILETEST_MQTT_BROKER")
}

func TestLoadFromFile_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9999\n"), 0o644))

	os.Setenv("TITANFILETEST2_PORT", "7777")
	defer os.Unsetenv("TITANFILETEST2_PORT")

	cfg, err := LoadFromFile(path, "TITANFILETEST2")
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestEnv_GetDurationFallsBackOnUnparseable(t *testing.T) {
	os.Setenv("TITANTEST_TIMEOUT", "not-a-duration")
	defer os.Unsetenv("TITANTEST_TIMEOUT")

	env := NewEnv("TITANTEST")
	assert.Equal(t, 5*time.Second, env.GetDuration("TIMEOUT", 5*time.Second))
}

func TestEnv_GetStringSliceSplitsAndTrims(t *testing.T) {
	os.Setenv("TITANTEST_TOPICS", "a, b ,c")
	defer os.Unsetenv("TITANTEST_TOPICS")

	env := NewEnv("TITANTEST")
	assert.Equal(t, []string{"a", "b", "c"}, env.GetStringSlice("TOPICS", nil))
}

func TestValidator_AccumulatesAllErrors(t *testing.T) {
	v := NewValidator()
	v.RequireString("A", "")
	v.RequirePositiveInt("B", -1)
	v.RequireOneOf("C", "z", []string{"x", "y"})

	assert.False(t, v.IsValid())
	assert.Len(t, v.Errors(), 3)
	assert.Error(t, v.Validate())
}
