package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdirTemp(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configDirEnvKey,
		trustProjectConfigEnvKey,
		apiURLEnvKey,
		dbPathEnvKey,
		dataDirEnvKey,
		storageBackendEnvKey,
		s3AccessKeyEnvKey,
		s3SecretKeyEnvKey,
	} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.APIURL != "http://127.0.0.1:7334" {
		t.Fatalf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "" {
		t.Fatalf("expected empty db path, got %q", cfg.DBPath)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Limits.MaxFileBytes != 8*1024*1024 {
		t.Fatalf("expected 8 MiB file cap, got %d", cfg.Limits.MaxFileBytes)
	}
	if cfg.Limits.MaxBatchBytes != 20*1024*1024 {
		t.Fatalf("expected 20 MiB batch cap, got %d", cfg.Limits.MaxBatchBytes)
	}
	if cfg.Expiry.Retention.Duration != 6*time.Hour {
		t.Fatalf("expected 6h retention, got %v", cfg.Expiry.Retention)
	}
	if cfg.Expiry.SweepInterval.Duration != time.Hour {
		t.Fatalf("expected hourly sweep, got %v", cfg.Expiry.SweepInterval)
	}
	if cfg.Storage.Backend != BackendLocal {
		t.Fatalf("expected local backend, got %q", cfg.Storage.Backend)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".codedrop.toml")
	if err := os.WriteFile(path, []byte(`api_url = "http://localhost:9999"
log_level = "warn"

[limits]
max_file_bytes = 1024

[expiry]
retention = "90m"
sweep_interval = "5m"

[storage]
backend = "s3"

[storage.s3]
bucket = "drops"
endpoint = "http://minio:9000"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:9999" {
		t.Fatalf("expected api_url 'http://localhost:9999', got %q", cfg.APIURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log_level 'warn', got %q", cfg.LogLevel)
	}
	if cfg.Limits.MaxFileBytes != 1024 {
		t.Fatalf("expected max_file_bytes 1024, got %d", cfg.Limits.MaxFileBytes)
	}
	if cfg.Limits.MaxBatchBytes != DefaultMaxBatchBytes {
		t.Fatalf("expected untouched batch cap, got %d", cfg.Limits.MaxBatchBytes)
	}
	if cfg.Expiry.Retention.Duration != 90*time.Minute {
		t.Fatalf("expected 90m retention, got %v", cfg.Expiry.Retention)
	}
	if cfg.Storage.Backend != BackendS3 || cfg.Storage.S3.Bucket != "drops" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
}

func TestLoadFileInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".codedrop.toml")
	if err := os.WriteFile(path, []byte("[expiry]\nretention = \"soon\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := Default()
	if err := loadFile(path, &cfg); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.codedrop.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("defaults should be preserved")
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range []string{
		"api_url",
		"db_path",
		"data_dir",
		"log_level",
		"limits.max_file_bytes",
		"expiry.retention",
		"storage.backend",
		"storage.s3.bucket",
	} {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
	}
	if IsAllowedKey("invalid") {
		t.Fatal("expected 'invalid' to not be allowed")
	}
}

func TestGetKey(t *testing.T) {
	cfg := Config{
		APIURL:   "http://test:1234",
		DBPath:   "/tmp/test.db",
		DataDir:  "/tmp/data",
		LogLevel: "warn",
		Limits:   LimitsConfig{MaxFileBytes: 123, MaxBatchBytes: 456, MultipartMaxMemory: 789},
		Expiry:   ExpiryConfig{Retention: Duration{2 * time.Hour}, SweepInterval: Duration{10 * time.Minute}, BatchSize: 50},
		Storage:  StorageConfig{Backend: "s3", S3: S3Config{Bucket: "b", SecretKey: "shh"}},
	}

	for key, want := range map[string]string{
		"api_url":                     "http://test:1234",
		"db_path":                     "/tmp/test.db",
		"data_dir":                    "/tmp/data",
		"log_level":                   "warn",
		"limits.max_file_bytes":       "123",
		"limits.max_batch_bytes":      "456",
		"limits.multipart_max_memory": "789",
		"expiry.retention":            "2h0m0s",
		"expiry.sweep_interval":       "10m0s",
		"expiry.batch_size":           "50",
		"storage.backend":             "s3",
		"storage.s3.bucket":           "b",
		"storage.s3.secret_key":       "********",
	} {
		val, err := cfg.Get(key)
		if err != nil || val != want {
			t.Fatalf("expected %s=%q, got %q (err: %v)", key, want, val, err)
		}
	}
	if _, err := cfg.Get("invalid"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestSetKeyCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.toml")
	if err := SetKey(path, "api_url", "http://set"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://set" {
		t.Fatalf("expected 'http://set', got %q", cfg.APIURL)
	}
}

func TestSetKeyUpdatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.toml")
	if err := os.WriteFile(path, []byte("log_level = \"info\"\napi_url = \"http://keep\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetKey(path, "log_level", "error"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("expected 'error', got %q", cfg.LogLevel)
	}
	if cfg.APIURL != "http://keep" {
		t.Fatalf("expected preserved api_url 'http://keep', got %q", cfg.APIURL)
	}
}

func TestSetNestedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested.toml")
	if err := SetKey(path, "expiry.retention", "3h"); err != nil {
		t.Fatalf("set retention: %v", err)
	}
	if err := SetKey(path, "limits.max_batch_bytes", "1048576"); err != nil {
		t.Fatalf("set batch cap: %v", err)
	}
	if err := SetKey(path, "storage.s3.bucket", "drops"); err != nil {
		t.Fatalf("set bucket: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Expiry.Retention.Duration != 3*time.Hour {
		t.Fatalf("expected 3h retention, got %v", cfg.Expiry.Retention)
	}
	if cfg.Limits.MaxBatchBytes != 1048576 {
		t.Fatalf("expected batch cap 1048576, got %d", cfg.Limits.MaxBatchBytes)
	}
	if cfg.Storage.S3.Bucket != "drops" {
		t.Fatalf("expected bucket 'drops', got %q", cfg.Storage.S3.Bucket)
	}
}

func TestSetKeyRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	cases := map[string]string{
		"invalid_key":           "value",
		"limits.max_file_bytes": "-1",
		"expiry.batch_size":     "zero",
		"expiry.retention":      "later",
		"storage.backend":       "ftp",
	}
	for key, value := range cases {
		if err := SetKey(path, key, value); err == nil {
			t.Fatalf("expected error for %s=%q", key, value)
		}
	}
}

func TestConfigDirOverridePaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)

	globalPath, err := GlobalPath()
	if err != nil {
		t.Fatalf("global path: %v", err)
	}
	if globalPath != filepath.Join(dir, ".codedrop.toml") {
		t.Fatalf("unexpected global path: %s", globalPath)
	}

	projectPath, err := ProjectPath()
	if err != nil {
		t.Fatalf("project path: %v", err)
	}
	if projectPath != filepath.Join(dir, ".codedrop.toml") {
		t.Fatalf("unexpected project path: %s", projectPath)
	}
}

func TestLoadConfigDirOverride(t *testing.T) {
	clearEnv(t)
	configDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(configDir, ".codedrop.toml"), []byte("api_url = \"http://127.0.0.1:9001\"\n"), 0o644); err != nil {
		t.Fatalf("write override config: %v", err)
	}

	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, ".codedrop.toml"), []byte("api_url = \"http://ignored\"\n"), 0o644); err != nil {
		t.Fatalf("write workspace config: %v", err)
	}
	chdirTemp(t, workspace)

	t.Setenv(configDirEnvKey, configDir)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://127.0.0.1:9001" {
		t.Fatalf("expected config-dir api_url override, got %q", cfg.APIURL)
	}
	if cfg.DBPath != filepath.Join(workspace, DefaultDBFileName) {
		t.Fatalf("expected default workspace db path, got %q", cfg.DBPath)
	}
	if cfg.DataDir != filepath.Join(workspace, DefaultDataDirName) {
		t.Fatalf("expected default workspace data dir, got %q", cfg.DataDir)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(configDirEnvKey, t.TempDir())
	t.Setenv(apiURLEnvKey, "http://example.com:8080")
	t.Setenv(dbPathEnvKey, "/tmp/override.db")
	t.Setenv(dataDirEnvKey, "/tmp/override-data")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://example.com:8080" {
		t.Fatalf("expected env override for API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Fatalf("expected env override for DB path, got %q", cfg.DBPath)
	}
	if cfg.DataDir != "/tmp/override-data" {
		t.Fatalf("expected env override for data dir, got %q", cfg.DataDir)
	}
}

func TestLoadRejectsS3WithoutBucket(t *testing.T) {
	clearEnv(t)
	t.Setenv(configDirEnvKey, t.TempDir())
	t.Setenv(storageBackendEnvKey, "s3")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for s3 backend without bucket")
	}
}

func TestLoadFallsBackToDefaultLogLevelWhenConfiguredEmpty(t *testing.T) {
	clearEnv(t)
	homeDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(homeDir, ".codedrop.toml"), []byte("log_level = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	chdirTemp(t, t.TempDir())
	t.Setenv("HOME", homeDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
}

func TestLoadProjectConfigTrust(t *testing.T) {
	tests := []struct {
		name      string
		trust     string
		wantURL   string
		wantTrust bool
	}{
		{name: "ignored by default", trust: "", wantURL: "http://home"},
		{name: "applied when trusted", trust: "true", wantURL: "http://project", wantTrust: true},
		{name: "ignored on invalid env", trust: "definitely-not-bool", wantURL: "http://home"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			homeDir := t.TempDir()
			workspace := t.TempDir()
			if err := os.WriteFile(filepath.Join(homeDir, ".codedrop.toml"), []byte("api_url = \"http://home\"\n"), 0o644); err != nil {
				t.Fatalf("write home config: %v", err)
			}
			if err := os.WriteFile(filepath.Join(workspace, ".codedrop.toml"), []byte("api_url = \"http://project\"\n"), 0o644); err != nil {
				t.Fatalf("write project config: %v", err)
			}
			chdirTemp(t, workspace)
			t.Setenv("HOME", homeDir)
			t.Setenv(trustProjectConfigEnvKey, tt.trust)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.APIURL != tt.wantURL {
				t.Fatalf("expected api_url %q, got %q", tt.wantURL, cfg.APIURL)
			}
			if got := cfg.TrustedProjectConfigPath != ""; got != tt.wantTrust {
				t.Fatalf("expected trusted path set=%v, got %q", tt.wantTrust, cfg.TrustedProjectConfigPath)
			}
		})
	}
}
