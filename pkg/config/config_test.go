package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "./data", cfg.Directories.DataDir)
	assert.False(t, cfg.Locking.SharedLockEnabled)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Storage.Backend = "ftp"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveConcurrency(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Locking.CloudConcurrency = 0
	assert.Error(t, cfg.Validate())
}

func TestStringRedactsCredentials(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Credentials.S3SecretAccessKey = "super-secret"
	assert.NotContains(t, cfg.String(), "super-secret")
}
