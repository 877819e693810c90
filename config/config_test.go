package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Meltano.Executable != "meltano" {
		t.Errorf("expected default executable meltano, got %s", cfg.Meltano.Executable)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Log.Level)
	}
	if !cfg.NATS.Embedded {
		t.Error("expected embedded NATS by default")
	}
	if cfg.NATS.SubjectPrefix != "meltano.pipelines" {
		t.Errorf("expected default subject prefix meltano.pipelines, got %s", cfg.NATS.SubjectPrefix)
	}
	if cfg.Serve.MetricsAddr != ":9650" {
		t.Errorf("expected default metrics addr :9650, got %s", cfg.Serve.MetricsAddr)
	}
	if !cfg.Serve.Scheduler || !cfg.Serve.Watch {
		t.Error("expected scheduler and watch enabled by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing executable",
			modify:  func(c *Config) { c.Meltano.Executable = "" },
			wantErr: true,
		},
		{
			name:    "negative run timeout",
			modify:  func(c *Config) { c.Meltano.RunTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "chatty" },
			wantErr: true,
		},
		{
			name:    "missing subject prefix",
			modify:  func(c *Config) { c.NATS.SubjectPrefix = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
meltano:
  executable: /opt/meltano/bin/meltano
  run_timeout: 30m
log:
  level: debug
nats:
  url: "nats://test:4222"
serve:
  metrics_addr: ":9999"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Meltano.Executable != "/opt/meltano/bin/meltano" {
		t.Errorf("expected executable /opt/meltano/bin/meltano, got %s", cfg.Meltano.Executable)
	}
	if cfg.Meltano.RunTimeout != 30*time.Minute {
		t.Errorf("expected run timeout 30m, got %v", cfg.Meltano.RunTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Serve.MetricsAddr != ":9999" {
		t.Errorf("expected metrics addr :9999, got %s", cfg.Serve.MetricsAddr)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Meltano: MeltanoConfig{Executable: "/usr/local/bin/meltano"},
		NATS:    NATSConfig{URL: "nats://remote:4222"},
	}

	base.Merge(override)

	if base.Meltano.Executable != "/usr/local/bin/meltano" {
		t.Errorf("expected executable override, got %s", base.Meltano.Executable)
	}
	// Log level should remain from base since override didn't set it
	if base.Log.Level != "info" {
		t.Errorf("expected log level to remain default, got %s", base.Log.Level)
	}
	// An explicit external NATS URL disables the embedded server
	if base.NATS.URL != "nats://remote:4222" {
		t.Errorf("expected NATS URL override, got %s", base.NATS.URL)
	}
	if base.NATS.Embedded {
		t.Error("expected external NATS URL to disable embedded server")
	}
}

func TestConfigMergeNil(t *testing.T) {
	base := DefaultConfig()
	base.Merge(nil)
	if base.Meltano.Executable != "meltano" {
		t.Errorf("expected defaults untouched, got %s", base.Meltano.Executable)
	}
}

func TestLoaderLoadDefaults(t *testing.T) {
	// Point HOME and the working directory somewhere with no config files.
	t.Setenv("HOME", t.TempDir())

	loader := NewLoader(nil)
	loader.workDir = t.TempDir()

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Meltano.Executable != "meltano" {
		t.Errorf("expected default executable, got %s", cfg.Meltano.Executable)
	}
}

func TestLoaderProjectConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	content := "log:\n  level: debug\n"
	if err := os.WriteFile(filepath.Join(dir, ProjectConfigFile), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write project config: %v", err)
	}

	// Loading from a subdirectory walks up to the project config.
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	loader := NewLoader(nil)
	loader.workDir = sub

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected project config log level debug, got %s", cfg.Log.Level)
	}
}
