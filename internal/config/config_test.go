package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.SegmentDB.URL != "https://segments.ligo.org" {
		t.Fatalf("unexpected segment DB default: %s", cfg.SegmentDB.URL)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected log level default: %s", cfg.Logging.Level)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "series:\n  url: http://frames.example.org\n  timeout: 10s\ntriggers:\n  directory: /data/triggers\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DQFLAGGER_SEGMENTDB_URL", "http://segdb.example.org")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Series.URL != "http://frames.example.org" {
		t.Fatalf("file value not applied: %s", cfg.Series.URL)
	}
	if cfg.Series.Timeout != 10*time.Second {
		t.Fatalf("file timeout not applied: %v", cfg.Series.Timeout)
	}
	if cfg.Triggers.Directory != "/data/triggers" {
		t.Fatalf("trigger directory not applied: %s", cfg.Triggers.Directory)
	}
	if cfg.SegmentDB.URL != "http://segdb.example.org" {
		t.Fatalf("env override not applied: %s", cfg.SegmentDB.URL)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
