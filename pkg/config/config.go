// Package config loads kgstore's process-wide configuration from
// environment variables, in the same env-var-driven style the teacher uses
// for its Neo4j-compatible settings (dual NEO4J_*/NORNICDB_* prefixes). This
// configuration carries the sections named in spec §6: storage backend
// selection, per-backend credentials, data/system root directories (which
// may themselves be cloud URIs), the shared-cross-process-lock toggle, and
// the cloud-operation concurrency budget.
//
// Example:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend identifies which FileStorage provider a root directory resolves
// through.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
	BackendGCS   Backend = "gcs"
	BackendAzure Backend = "azure"
)

// Config holds all kgstore configuration loaded from environment variables.
type Config struct {
	Storage    StorageConfig
	Credentials CredentialsConfig
	Directories DirectoryConfig
	Locking    LockingConfig
	Logging    LoggingConfig
}

// StorageConfig selects and configures the backing FileStorage provider.
type StorageConfig struct {
	// Backend is the default provider for non-URI-qualified paths.
	Backend Backend
}

// CredentialsConfig carries per-backend cloud credentials. Fields are
// deliberately loose (string-keyed) since each provider interprets its own
// subset; unset fields fall back to the provider SDK's default credential
// chain (env vars, instance metadata, shared config files).
type CredentialsConfig struct {
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	GCSCredentialsFile string
	GCSProjectID       string

	AzureAccountName string
	AzureAccountKey  string
}

// DirectoryConfig holds the root data and system directories. Either may be
// a cloud URI (s3://, gs://, az://) per spec §4.4/§6.
type DirectoryConfig struct {
	DataDir   string
	SystemDir string
}

// LockingConfig toggles the shared-cross-process lock described in spec §5
// and bounds concurrent cloud operations.
type LockingConfig struct {
	// SharedLockEnabled opts an adapter into the process-external named
	// lock, for databases shared across processes over a networked
	// filesystem.
	SharedLockEnabled bool
	// CloudConcurrency is the system-level concurrency budget for cloud
	// operations (spec §6).
	CloudConcurrency int
	// LockAcquireTimeout is loaded from the environment and checked by
	// Validate. No component reads it: acquiring the shared lock waits
	// without a time limit.
	LockAcquireTimeout time.Duration
}

// LoggingConfig configures the ambient structured logger.
type LoggingConfig struct {
	Level string
	JSON  bool
}

// LoadFromEnv builds a Config from environment variables, applying
// defaults for anything unset.
func LoadFromEnv() *Config {
	cfg := &Config{}

	cfg.Storage.Backend = Backend(getEnv("KGSTORE_STORAGE_BACKEND", string(BackendLocal)))

	cfg.Credentials.S3Region = getEnv("KGSTORE_S3_REGION", getEnv("AWS_REGION", ""))
	cfg.Credentials.S3Endpoint = getEnv("KGSTORE_S3_ENDPOINT", "")
	cfg.Credentials.S3AccessKeyID = getEnv("KGSTORE_S3_ACCESS_KEY_ID", "")
	cfg.Credentials.S3SecretAccessKey = getEnv("KGSTORE_S3_SECRET_ACCESS_KEY", "")

	cfg.Credentials.GCSCredentialsFile = getEnv("KGSTORE_GCS_CREDENTIALS_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""))
	cfg.Credentials.GCSProjectID = getEnv("KGSTORE_GCS_PROJECT_ID", "")

	cfg.Credentials.AzureAccountName = getEnv("KGSTORE_AZURE_ACCOUNT_NAME", "")
	cfg.Credentials.AzureAccountKey = getEnv("KGSTORE_AZURE_ACCOUNT_KEY", "")

	// Dual-prefix directories, mirroring the teacher's NEO4J_/NORNICDB_
	// convention: accept the legacy Neo4j-style variable name too.
	cfg.Directories.DataDir = getEnv("KGSTORE_DATA_DIR", getEnv("NEO4J_dbms_directories_data", "./data"))
	cfg.Directories.SystemDir = getEnv("KGSTORE_SYSTEM_DIR", "./system")

	cfg.Locking.SharedLockEnabled = getEnvBool("KGSTORE_SHARED_LOCK_ENABLED", false)
	cfg.Locking.CloudConcurrency = getEnvInt("KGSTORE_CLOUD_CONCURRENCY", 8)
	cfg.Locking.LockAcquireTimeout = getEnvDuration("KGSTORE_LOCK_ACQUIRE_TIMEOUT", 30*time.Second)

	cfg.Logging.Level = getEnv("KGSTORE_LOG_LEVEL", "info")
	cfg.Logging.JSON = getEnvBool("KGSTORE_LOG_JSON", false)

	return cfg
}

// Validate checks the configuration for logical errors before use.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendLocal, BackendS3, BackendGCS, BackendAzure:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	if c.Directories.DataDir == "" {
		return fmt.Errorf("config: data directory must not be empty")
	}
	if c.Directories.SystemDir == "" {
		return fmt.Errorf("config: system directory must not be empty")
	}
	if c.Locking.CloudConcurrency <= 0 {
		return fmt.Errorf("config: cloud concurrency budget must be positive, got %d", c.Locking.CloudConcurrency)
	}
	if c.Locking.LockAcquireTimeout <= 0 {
		return fmt.Errorf("config: lock acquire timeout must be positive")
	}

	return nil
}

// String returns a safe, credential-free representation for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Backend: %s, DataDir: %s, SystemDir: %s, SharedLock: %v, CloudConcurrency: %d}",
		c.Storage.Backend, c.Directories.DataDir, c.Directories.SystemDir,
		c.Locking.SharedLockEnabled, c.Locking.CloudConcurrency,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
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
