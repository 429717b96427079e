package crawler

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/OpenMirror/internal/browser"
	"github.com/PentesterFlow/OpenMirror/internal/scope"
)

// Renderer kinds.
const (
	RendererBrowser = "browser"
	RendererHTTP    = "http"
)

// envPrefix is the prefix of environment variables overriding config keys,
// e.g. OPENMIRROR_OUTPUT_DIR or OPENMIRROR_RATE_LIMIT_REQUESTS_PER_SECOND.
const envPrefix = "OPENMIRROR"

// Config holds all mirroring configuration.
type Config struct {
	// Start URL
	Target string `json:"target" yaml:"target" mapstructure:"target"`

	// Exact host to archive. Defaults to the host of Target.
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty" mapstructure:"domain"`

	// Root of the output tree. Removed and recreated on every run.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// "browser" renders with headless Chrome, "http" archives served HTML.
	Renderer string `json:"renderer" yaml:"renderer" mapstructure:"renderer"`

	// Stop after this many pages. Zero means no limit.
	MaxPages int `json:"max_pages" yaml:"max_pages" mapstructure:"max_pages"`

	// Maximum link distance from Target. Zero means no limit.
	MaxDepth int `json:"max_depth" yaml:"max_depth" mapstructure:"max_depth"`

	// Scope rules for queueing pages
	Scope scope.ScopeRules `json:"scope" yaml:"scope" mapstructure:"scope"`

	// Rate limiting
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// Browser and HTTP renderer configuration
	Browser browser.Config `json:"browser" yaml:"browser" mapstructure:"browser"`

	// Run record persistence
	State StateConfig `json:"state" yaml:"state" mapstructure:"state"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose" mapstructure:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug" mapstructure:"debug"`
}

// RateLimitConfig bounds request rate against the target.
type RateLimitConfig struct {
	// Zero means unlimited.
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `json:"burst" yaml:"burst" mapstructure:"burst"`
	DomainDelay       time.Duration `json:"domain_delay" yaml:"domain_delay" mapstructure:"domain_delay"`
}

// StateConfig configures where the run record is kept.
type StateConfig struct {
	// bbolt database, or a .json / .json.gz file. Empty disables persistence.
	FilePath string `json:"file_path" yaml:"file_path" mapstructure:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "site",
		Renderer:  RendererBrowser,
		Scope:     scope.NewRuleBuilder().Build(),
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0,
			Burst:             1,
		},
		Browser: browser.DefaultConfig(),
	}
}

// EffectiveDomain returns Domain, or the host of Target when Domain is
// empty.
func (c *Config) EffectiveDomain() string {
	if c.Domain != "" {
		return c.Domain
	}
	return scope.HostOf(c.Target)
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults. Keys may be overridden by OPENMIRROR_* environment variables.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// setDefaults registers the keys that may come from the environment alone.
// Viper only consults the environment for keys it already knows.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("target", d.Target)
	v.SetDefault("domain", d.Domain)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("renderer", d.Renderer)
	v.SetDefault("max_pages", d.MaxPages)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("scope.skip_session_links", d.Scope.SkipSessionLinks)
	v.SetDefault("rate_limit.requests_per_second", d.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
	v.SetDefault("rate_limit.domain_delay", d.RateLimit.DomainDelay)
	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.render_timeout", d.Browser.RenderTimeout)
	v.SetDefault("browser.settle_delay", d.Browser.SettleDelay)
	v.SetDefault("browser.idle_time", d.Browser.IdleTime)
	v.SetDefault("browser.fetch_timeout", d.Browser.FetchTimeout)
	v.SetDefault("browser.user_agent", d.Browser.UserAgent)
	v.SetDefault("browser.ignore_https_errors", d.Browser.IgnoreHTTPSErrors)
	v.SetDefault("state.file_path", d.State.FilePath)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("debug", d.Debug)
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("target URL is required")
	}

	u, err := url.Parse(c.Target)
	if err != nil {
		return fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target URL must be http or https")
	}
	if u.Hostname() == "" {
		return fmt.Errorf("target URL has no host")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if err := checkOutputDir(c.OutputDir); err != nil {
		return err
	}

	if c.Renderer != RendererBrowser && c.Renderer != RendererHTTP {
		return fmt.Errorf("unknown renderer %q", c.Renderer)
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max pages must not be negative")
	}

	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative")
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}

	return nil
}

// checkOutputDir rejects output directories whose removal at the start of a
// run would take the filesystem root, the working directory or the home
// directory with it.
func checkOutputDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}

	if abs == filepath.Dir(abs) {
		return fmt.Errorf("output directory %s is the filesystem root", dir)
	}
	if cwd, err := os.Getwd(); err == nil && containsPath(abs, cwd) {
		return fmt.Errorf("output directory %s contains the working directory", dir)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" && containsPath(abs, home) {
		return fmt.Errorf("output directory %s contains the home directory", dir)
	}
	return nil
}

// containsPath reports whether target is dir or lies below it.
func containsPath(dir, target string) bool {
	rel, err := filepath.Rel(dir, filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}
