package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.BatchLoadingSize != 30 {
		t.Fatalf("got batch loading size %d, want 30", cfg.BatchLoadingSize)
	}
	if cfg.DecryptionConcurrency != 15 {
		t.Fatalf("got decryption concurrency %d, want 15", cfg.DecryptionConcurrency)
	}
}

func TestLoadLayersOverDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("durableCacheDir: /var/lib/drive\nlogLevel: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DurableCacheDir != "/var/lib/drive" {
		t.Fatalf("got %q", cfg.DurableCacheDir)
	}
	if cfg.BatchLoadingSize != 30 {
		t.Fatalf("expected unspecified field to keep default, got %d", cfg.BatchLoadingSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
