package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "8080" {
		t.Errorf("APIPort = %q, want 8080", cfg.APIPort)
	}
	if cfg.CacheBackend != "memory" {
		t.Errorf("CacheBackend = %q, want memory", cfg.CacheBackend)
	}
	if cfg.EmbeddingDimensions != 768 {
		t.Errorf("EmbeddingDimensions = %d, want 768", cfg.EmbeddingDimensions)
	}
	if !cfg.PDFConversionEnabled {
		t.Error("PDFConversionEnabled should default to true")
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("ADE_ENABLED", "true")
	t.Setenv("EMBED_RATE_LIMIT_PER_SEC", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "9999" {
		t.Errorf("APIPort = %q, want 9999", cfg.APIPort)
	}
	if cfg.ChunkSize != 500 {
		t.Errorf("ChunkSize = %d, want 500", cfg.ChunkSize)
	}
	if !cfg.ADEEnabled {
		t.Error("ADEEnabled should be true")
	}
	if cfg.EmbedRateLimitPerSec != 2.5 {
		t.Errorf("EmbedRateLimitPerSec = %v, want 2.5", cfg.EmbedRateLimitPerSec)
	}
}

func TestInvalidEnvValuesKeepFallback(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("ADE_ENABLED", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 900 {
		t.Errorf("ChunkSize = %d, want fallback 900", cfg.ChunkSize)
	}
	if cfg.ADEEnabled {
		t.Error("ADEEnabled should keep false fallback")
	}
}

func TestConfigFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docpipe.yaml")
	content := []byte("api_port: \"7070\"\nchunk_size: 1200\nindex_backend: memory\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "7070" {
		t.Errorf("APIPort = %q, want 7070 from file", cfg.APIPort)
	}
	if cfg.ChunkSize != 1200 {
		t.Errorf("ChunkSize = %d, want 1200 from file", cfg.ChunkSize)
	}
	if cfg.IndexBackend != "memory" {
		t.Errorf("IndexBackend = %q, want memory from file", cfg.IndexBackend)
	}
	// Fields absent from the file keep their defaults.
	if cfg.NATSSubject != "documents.stages" {
		t.Errorf("NATSSubject = %q, want default", cfg.NATSSubject)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docpipe.yaml")
	if err := os.WriteFile(path, []byte("api_port: \"7070\"\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("API_PORT", "6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "6060" {
		t.Errorf("APIPort = %q, want env value 6060", cfg.APIPort)
	}
}

func TestMissingConfigFileFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/nonexistent/docpipe.yaml")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
