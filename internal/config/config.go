package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:7334"
	DefaultDBFileName  = ".codedrop.db"
	DefaultDataDirName = ".codedrop-data"
	DefaultLogLevel    = "debug"

	DefaultMaxFileBytes       int64 = 8 * 1024 * 1024
	DefaultMaxBatchBytes      int64 = 20 * 1024 * 1024
	DefaultMultipartMaxMemory int64 = 4 * 1024 * 1024

	DefaultRetention     = 6 * time.Hour
	DefaultSweepInterval = time.Hour
	DefaultSweepBatch    = 500

	BackendLocal = "local"
	BackendS3    = "s3"

	configFileName           = ".codedrop.toml"
	configDirEnvKey          = "CODEDROP_CONFIG_DIR"
	trustProjectConfigEnvKey = "CODEDROP_TRUST_PROJECT_CONFIG"
	apiURLEnvKey             = "CODEDROP_API_URL"
	dbPathEnvKey             = "CODEDROP_DB"
	dataDirEnvKey            = "CODEDROP_DATA_DIR"
	storageBackendEnvKey     = "CODEDROP_STORAGE_BACKEND"
	s3AccessKeyEnvKey        = "CODEDROP_S3_ACCESS_KEY"
	s3SecretKeyEnvKey        = "CODEDROP_S3_SECRET_KEY"
)

// Duration is a time.Duration that reads and writes as "6h", "90m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LimitsConfig caps upload sizes.
type LimitsConfig struct {
	MaxFileBytes       int64 `toml:"max_file_bytes"`
	MaxBatchBytes      int64 `toml:"max_batch_bytes"`
	MultipartMaxMemory int64 `toml:"multipart_max_memory"`
}

// ExpiryConfig controls how long files live and how often they are swept.
type ExpiryConfig struct {
	Retention     Duration `toml:"retention"`
	SweepInterval Duration `toml:"sweep_interval"`
	BatchSize     int      `toml:"batch_size"`
}

// S3Config locates an S3 or MinIO bucket.
type S3Config struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Prefix    string `toml:"prefix"`
}

// StorageConfig selects the byte backend.
type StorageConfig struct {
	Backend string   `toml:"backend"`
	S3      S3Config `toml:"s3"`
}

// Config defines runtime configuration for codedrop.
type Config struct {
	APIURL                   string        `toml:"api_url"`
	DBPath                   string        `toml:"db_path"`
	DataDir                  string        `toml:"data_dir"`
	LogLevel                 string        `toml:"log_level"`
	Limits                   LimitsConfig  `toml:"limits"`
	Expiry                   ExpiryConfig  `toml:"expiry"`
	Storage                  StorageConfig `toml:"storage"`
	TrustedProjectConfigPath string        `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		DataDir:  "",
		LogLevel: DefaultLogLevel,
		Limits: LimitsConfig{
			MaxFileBytes:       DefaultMaxFileBytes,
			MaxBatchBytes:      DefaultMaxBatchBytes,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
		},
		Expiry: ExpiryConfig{
			Retention:     Duration{DefaultRetention},
			SweepInterval: Duration{DefaultSweepInterval},
			BatchSize:     DefaultSweepBatch,
		},
		Storage: StorageConfig{Backend: BackendLocal},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"data_dir",
	"log_level",
	"limits.max_file_bytes",
	"limits.max_batch_bytes",
	"limits.multipart_max_memory",
	"expiry.retention",
	"expiry.sweep_interval",
	"expiry.batch_size",
	"storage.backend",
	"storage.s3.bucket",
	"storage.s3.region",
	"storage.s3.endpoint",
	"storage.s3.access_key",
	"storage.s3.secret_key",
	"storage.s3.prefix",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key. Secrets are masked.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "data_dir":
		return c.DataDir, nil
	case "log_level":
		return c.LogLevel, nil
	case "limits.max_file_bytes":
		return strconv.FormatInt(c.Limits.MaxFileBytes, 10), nil
	case "limits.max_batch_bytes":
		return strconv.FormatInt(c.Limits.MaxBatchBytes, 10), nil
	case "limits.multipart_max_memory":
		return strconv.FormatInt(c.Limits.MultipartMaxMemory, 10), nil
	case "expiry.retention":
		return c.Expiry.Retention.String(), nil
	case "expiry.sweep_interval":
		return c.Expiry.SweepInterval.String(), nil
	case "expiry.batch_size":
		return strconv.Itoa(c.Expiry.BatchSize), nil
	case "storage.backend":
		return c.Storage.Backend, nil
	case "storage.s3.bucket":
		return c.Storage.S3.Bucket, nil
	case "storage.s3.region":
		return c.Storage.S3.Region, nil
	case "storage.s3.endpoint":
		return c.Storage.S3.Endpoint, nil
	case "storage.s3.access_key":
		return c.Storage.S3.AccessKey, nil
	case "storage.s3.secret_key":
		if c.Storage.S3.SecretKey == "" {
			return "", nil
		}
		return "********", nil
	case "storage.s3.prefix":
		return c.Storage.S3.Prefix, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	cfg.applyEnv()

	if cwd, err := os.Getwd(); err == nil {
		if cfg.DBPath == "" {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
		if cfg.DataDir == "" {
			cfg.DataDir = filepath.Join(cwd, DefaultDataDirName)
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		c.APIURL = apiURL
	}
	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		c.DBPath = dbPath
	}
	if dataDir := os.Getenv(dataDirEnvKey); dataDir != "" {
		c.DataDir = dataDir
	}
	if backend := os.Getenv(storageBackendEnvKey); backend != "" {
		c.Storage.Backend = backend
	}
	if key := os.Getenv(s3AccessKeyEnvKey); key != "" {
		c.Storage.S3.AccessKey = key
	}
	if secret := os.Getenv(s3SecretKeyEnvKey); secret != "" {
		c.Storage.S3.SecretKey = secret
	}
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Limits.MaxFileBytes <= 0 {
		c.Limits.MaxFileBytes = DefaultMaxFileBytes
	}
	if c.Limits.MaxBatchBytes <= 0 {
		c.Limits.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if c.Limits.MultipartMaxMemory <= 0 {
		c.Limits.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
	if c.Expiry.Retention.Duration <= 0 {
		c.Expiry.Retention = Duration{DefaultRetention}
	}
	if c.Expiry.SweepInterval.Duration <= 0 {
		c.Expiry.SweepInterval = Duration{DefaultSweepInterval}
	}
	if c.Expiry.BatchSize <= 0 {
		c.Expiry.BatchSize = DefaultSweepBatch
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendLocal:
	case BackendS3:
		if strings.TrimSpace(c.Storage.S3.Bucket) == "" {
			return fmt.Errorf("storage.s3.bucket is required when storage.backend is s3")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendLocal, BackendS3, c.Storage.Backend)
	}
	if c.Limits.MaxFileBytes > c.Limits.MaxBatchBytes {
		return fmt.Errorf("limits.max_file_bytes (%d) exceeds limits.max_batch_bytes (%d)", c.Limits.MaxFileBytes, c.Limits.MaxBatchBytes)
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "limits.max_file_bytes", "limits.max_batch_bytes", "limits.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "expiry.batch_size":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "expiry.retention", "expiry.sweep_interval":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration like 6h or 30m", key)
		}
		return parsed.String(), nil
	case "storage.backend":
		backend := strings.ToLower(value)
		if backend != BackendLocal && backend != BackendS3 {
			return nil, fmt.Errorf("%s must be %q or %q", key, BackendLocal, BackendS3)
		}
		return backend, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
