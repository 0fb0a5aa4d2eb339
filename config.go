// Package cogniclear holds the top-level configuration shared by the CLI
// and the service, loaded from YAML with environment overrides applied by
// the caller.
package cogniclear

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	Cache      CacheConfig      `yaml:"cache"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Navigation NavigationConfig `yaml:"navigation"`
	Browser    BrowserConfig    `yaml:"browser"`
	Service    ServiceConfig    `yaml:"service"`
}

// ClassifierConfig points at the classification service.
type ClassifierConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	SQLitePath string        `yaml:"sqlite_path"` // empty means in-memory only
}

// PipelineConfig controls progressive chunking.
type PipelineConfig struct {
	FirstChunkSize int `yaml:"first_chunk_size"`
	MaxElements    int `yaml:"max_elements"`
}

// NavigationConfig controls SPA navigation detection.
type NavigationConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	Debounce          time.Duration `yaml:"debounce"`
	MutationThreshold int           `yaml:"mutation_threshold"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"` // DevTools URL of an existing Chrome
	Stealth          bool     `yaml:"stealth"`
	ResourceBlocking []string `yaml:"resource_blocking"` // images, fonts, media, stylesheets
}

// ServiceConfig controls the serve mode.
type ServiceConfig struct {
	Addr         string `yaml:"addr"`
	ModelBaseURL string `yaml:"model_base_url"` // empty selects the rule model
	ModelName    string `yaml:"model_name"`
	APIKeyEnv    string `yaml:"api_key_env"`
}

// LoadConfig reads a YAML configuration file and applies defaults. An
// empty path yields the defaults alone.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cogniclear: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("cogniclear: parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Classifier.Endpoint == "" {
		c.Classifier.Endpoint = "http://localhost:3001/api/simplify"
	}
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = 60 * time.Second
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 30 * time.Minute
	}
	if c.Pipeline.FirstChunkSize <= 0 {
		c.Pipeline.FirstChunkSize = 5
	}
	if c.Pipeline.MaxElements <= 0 {
		c.Pipeline.MaxElements = 100
	}
	if c.Navigation.PollInterval <= 0 {
		c.Navigation.PollInterval = 500 * time.Millisecond
	}
	if c.Navigation.Debounce <= 0 {
		c.Navigation.Debounce = time.Second
	}
	if c.Navigation.MutationThreshold <= 0 {
		c.Navigation.MutationThreshold = 10
	}
	if c.Service.Addr == "" {
		c.Service.Addr = ":3001"
	}
	if c.Service.ModelName == "" {
		c.Service.ModelName = "gpt-4o-mini"
	}
	if c.Service.APIKeyEnv == "" {
		c.Service.APIKeyEnv = "OPENAI_API_KEY"
	}
}
