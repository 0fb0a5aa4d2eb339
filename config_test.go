package cogniclear

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Classifier.Endpoint != "http://localhost:3001/api/simplify" {
		t.Errorf("endpoint: got %q", cfg.Classifier.Endpoint)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("ttl: got %v", cfg.Cache.TTL)
	}
	if cfg.Pipeline.FirstChunkSize != 5 || cfg.Pipeline.MaxElements != 100 {
		t.Errorf("chunking: %+v", cfg.Pipeline)
	}
	if cfg.Navigation.Debounce != time.Second || cfg.Navigation.MutationThreshold != 10 {
		t.Errorf("navigation: %+v", cfg.Navigation)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogniclear.yaml")
	src := `
classifier:
  endpoint: https://classify.internal/api/simplify
cache:
  ttl: 10m
pipeline:
  first_chunk_size: 8
navigation:
  debounce: 2s
browser:
  stealth: true
  resource_blocking: [images, fonts]
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Classifier.Endpoint != "https://classify.internal/api/simplify" {
		t.Errorf("endpoint: got %q", cfg.Classifier.Endpoint)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("ttl: got %v", cfg.Cache.TTL)
	}
	if cfg.Pipeline.FirstChunkSize != 8 {
		t.Errorf("first chunk: got %d", cfg.Pipeline.FirstChunkSize)
	}
	// Unset fields still get defaults.
	if cfg.Pipeline.MaxElements != 100 {
		t.Errorf("max elements: got %d", cfg.Pipeline.MaxElements)
	}
	if len(cfg.Browser.ResourceBlocking) != 2 {
		t.Errorf("resource blocking: %v", cfg.Browser.ResourceBlocking)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/cogniclear.yaml"); err == nil {
		t.Error("want error for missing file")
	}
}
