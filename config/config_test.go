package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsEmptyDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty data dir")
	}
}

func TestValidateRejectsZeroMaxCheckpoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Checkpoint.MaxCheckpoints = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max_checkpoints < 1 with a checkpoint dir set")
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	os.Setenv("KVSTORE_DATA_DIR", "/tmp/custom-data")
	os.Setenv("KVSTORE_CHECKPOINT_MAX", "9")
	defer os.Unsetenv("KVSTORE_DATA_DIR")
	defer os.Unsetenv("KVSTORE_CHECKPOINT_MAX")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Database.DataDir != "/tmp/custom-data" {
		t.Fatalf("DataDir = %q, want /tmp/custom-data", cfg.Database.DataDir)
	}
	if cfg.Checkpoint.MaxCheckpoints != 9 {
		t.Fatalf("MaxCheckpoints = %d, want 9", cfg.Checkpoint.MaxCheckpoints)
	}
}

func TestLoadFromFileOverlaysPartialDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvstore.yaml")
	doc := "database:\n  data_dir: /var/lib/kvstore\ncheckpoint:\n  interval: 2m\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Database.DataDir != "/var/lib/kvstore" {
		t.Fatalf("DataDir = %q, want /var/lib/kvstore", cfg.Database.DataDir)
	}
	if cfg.Checkpoint.Interval != 2*time.Minute {
		t.Fatalf("Checkpoint.Interval = %v, want 2m", cfg.Checkpoint.Interval)
	}
	// Fields absent from the document keep their defaults.
	if cfg.Checkpoint.MaxCheckpoints != 5 {
		t.Fatalf("MaxCheckpoints = %d, want default 5", cfg.Checkpoint.MaxCheckpoints)
	}
}

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"100B": 100,
		"1KB":  1024,
		"2MB":  2 * 1024 * 1024,
		"1GB":  1024 * 1024 * 1024,
		"64":   64,
	}
	for in, want := range cases {
		got, err := ParseSize(in)
		if err != nil {
			t.Fatalf("ParseSize(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseSizeRejectsGarbage(t *testing.T) {
	if _, err := ParseSize("not-a-size"); err == nil {
		t.Fatal("expected error for malformed size string")
	}
}
