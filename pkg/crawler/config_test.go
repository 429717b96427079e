package crawler

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// DefaultConfig Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if config.OutputDir != "site" {
		t.Errorf("OutputDir = %s, want site", config.OutputDir)
	}
	if config.Renderer != RendererBrowser {
		t.Errorf("Renderer = %s, want browser", config.Renderer)
	}
	if config.MaxPages != 0 || config.MaxDepth != 0 {
		t.Error("pages and depth should be unlimited by default")
	}
	if config.RateLimit.RequestsPerSecond != 0 {
		t.Errorf("RequestsPerSecond = %v, want 0 (unlimited)", config.RateLimit.RequestsPerSecond)
	}
	if config.Browser.RenderTimeout != 30*time.Second {
		t.Errorf("Browser.RenderTimeout = %v, want 30s", config.Browser.RenderTimeout)
	}
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"http renderer", func(c *Config) { c.Renderer = RendererHTTP }, false},
		{"missing target", func(c *Config) { c.Target = "" }, true},
		{"relative target", func(c *Config) { c.Target = "/about" }, true},
		{"mailto target", func(c *Config) { c.Target = "mailto:a@example.com" }, true},
		{"no host", func(c *Config) { c.Target = "https:///path" }, true},
		{"empty output", func(c *Config) { c.OutputDir = "" }, true},
		{"root output", func(c *Config) { c.OutputDir = string(filepath.Separator) }, true},
		{"working directory output", func(c *Config) { c.OutputDir = "." }, true},
		{"parent of working directory", func(c *Config) { c.OutputDir = ".." }, true},
		{"nested output", func(c *Config) { c.OutputDir = filepath.Join("out", "site") }, false},
		{"bad renderer", func(c *Config) { c.Renderer = "curl" }, true},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, true},
		{"negative max depth", func(c *Config) { c.MaxDepth = -1 }, true},
		{"negative rate", func(c *Config) { c.RateLimit.RequestsPerSecond = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Target = "https://example.com/"
			tt.modify(config)

			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_HomeDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		dir     string
		wantErr bool
	}{
		{home, true},
		{filepath.Dir(home), true},
		{filepath.Join(home, "mirror"), false},
	}

	for _, tt := range tests {
		config := DefaultConfig()
		config.Target = "https://example.com/"
		config.OutputDir = tt.dir

		err := config.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%s) error = %v, wantErr %v", tt.dir, err, tt.wantErr)
		}
	}
}

func TestContainsPath(t *testing.T) {
	sep := string(filepath.Separator)
	tests := []struct {
		dir    string
		target string
		want   bool
	}{
		{sep + "a", sep + "a", true},
		{sep + "a", filepath.Join(sep+"a", "b"), true},
		{filepath.Join(sep+"a", "b"), sep + "a", false},
		{sep + "a", sep + "ab", false},
		{sep + "a", filepath.Join(sep+"a", "..b"), true},
	}

	for _, tt := range tests {
		if got := containsPath(tt.dir, tt.target); got != tt.want {
			t.Errorf("containsPath(%s, %s) = %v, want %v", tt.dir, tt.target, got, tt.want)
		}
	}
}

func TestConfig_EffectiveDomain(t *testing.T) {
	tests := []struct {
		target string
		domain string
		want   string
	}{
		{"https://example.com/docs", "", "example.com"},
		{"https://example.com:8443/", "", "example.com"},
		{"https://example.com/", "docs.example.com", "docs.example.com"},
	}

	for _, tt := range tests {
		config := &Config{Target: tt.target, Domain: tt.domain}
		if got := config.EffectiveDomain(); got != tt.want {
			t.Errorf("EffectiveDomain(%s, %q) = %s, want %s", tt.target, tt.domain, got, tt.want)
		}
	}
}

// =============================================================================
// File Tests
// =============================================================================

func TestConfig_SaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			config := DefaultConfig()
			config.Target = "https://example.com/"
			config.MaxPages = 25
			config.Renderer = RendererHTTP
			config.Browser.RenderTimeout = 45 * time.Second
			config.Scope.ExcludePatterns = []string{`/logout`}

			if err := config.SaveToFile(path); err != nil {
				t.Fatalf("SaveToFile() error = %v", err)
			}

			loaded, err := LoadFromFile(path)
			if err != nil {
				t.Fatalf("LoadFromFile() error = %v", err)
			}

			if loaded.Target != config.Target {
				t.Errorf("Target = %s, want %s", loaded.Target, config.Target)
			}
			if loaded.MaxPages != 25 {
				t.Errorf("MaxPages = %d, want 25", loaded.MaxPages)
			}
			if loaded.Renderer != RendererHTTP {
				t.Errorf("Renderer = %s, want http", loaded.Renderer)
			}
			if loaded.Browser.RenderTimeout != 45*time.Second {
				t.Errorf("RenderTimeout = %v, want 45s", loaded.Browser.RenderTimeout)
			}
			if len(loaded.Scope.ExcludePatterns) != 1 || loaded.Scope.ExcludePatterns[0] != `/logout` {
				t.Errorf("ExcludePatterns = %v", loaded.Scope.ExcludePatterns)
			}
		})
	}
}

func TestLoadFromFile_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := "target: https://example.com/\nbrowser:\n  settle_delay: 2s\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if config.Browser.SettleDelay != 2*time.Second {
		t.Errorf("SettleDelay = %v, want 2s", config.Browser.SettleDelay)
	}
	if config.OutputDir != "site" {
		t.Errorf("OutputDir = %s, want default site", config.OutputDir)
	}
	if config.Browser.RenderTimeout != 30*time.Second {
		t.Errorf("RenderTimeout = %v, want default 30s", config.Browser.RenderTimeout)
	}
}

func TestLoadFromFile_Env(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte("target: https://example.com/\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OPENMIRROR_OUTPUT_DIR", "mirror-out")
	t.Setenv("OPENMIRROR_RATE_LIMIT_REQUESTS_PER_SECOND", "2.5")

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if config.OutputDir != "mirror-out" {
		t.Errorf("OutputDir = %s, want mirror-out", config.OutputDir)
	}
	if config.RateLimit.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v, want 2.5", config.RateLimit.RequestsPerSecond)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFromFile() should fail for a missing file")
	}
}

// =============================================================================
// Clone Tests
// =============================================================================

func TestConfig_Clone(t *testing.T) {
	config := DefaultConfig()
	config.Target = "https://example.com/"
	config.Scope.IncludePatterns = []string{"/docs"}
	config.Browser.Headers = map[string]string{"X-Test": "1"}

	clone := config.Clone()
	clone.Scope.IncludePatterns[0] = "/blog"
	clone.Browser.Headers["X-Test"] = "2"

	if config.Scope.IncludePatterns[0] != "/docs" {
		t.Error("Clone should copy slices")
	}
	if config.Browser.Headers["X-Test"] != "1" {
		t.Error("Clone should copy maps")
	}
	if clone.Target != config.Target {
		t.Errorf("Target = %s, want %s", clone.Target, config.Target)
	}
}
