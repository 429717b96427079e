package browser

import (
	"context"
	"time"

	"github.com/PentesterFlow/OpenMirror/internal/parser"
)

// Config defines renderer and fetcher configuration.
type Config struct {
	Headless          bool              `json:"headless" yaml:"headless" mapstructure:"headless"`
	RenderTimeout     time.Duration     `json:"render_timeout" yaml:"render_timeout" mapstructure:"render_timeout"`
	SettleDelay       time.Duration     `json:"settle_delay" yaml:"settle_delay" mapstructure:"settle_delay"`
	IdleTime          time.Duration     `json:"idle_time" yaml:"idle_time" mapstructure:"idle_time"`
	FetchTimeout      time.Duration     `json:"fetch_timeout" yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	UserAgent         string            `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
	Headers           map[string]string `json:"headers" yaml:"headers" mapstructure:"headers"`
	IgnoreHTTPSErrors bool              `json:"ignore_https_errors" yaml:"ignore_https_errors" mapstructure:"ignore_https_errors"`
	ViewportWidth     int               `json:"viewport_width" yaml:"viewport_width" mapstructure:"viewport_width"`
	ViewportHeight    int               `json:"viewport_height" yaml:"viewport_height" mapstructure:"viewport_height"`
	MaxBodySize       int64             `json:"max_body_size" yaml:"max_body_size" mapstructure:"max_body_size"`
}

// DefaultConfig returns default renderer configuration.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		RenderTimeout:     30 * time.Second,
		SettleDelay:       1 * time.Second,
		IdleTime:          500 * time.Millisecond,
		FetchTimeout:      30 * time.Second,
		UserAgent:         "OpenMirror/1.0 (+https://github.com/PentesterFlow/OpenMirror)",
		IgnoreHTTPSErrors: false,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		MaxBodySize:       50 * 1024 * 1024,
	}
}

// PageResult contains the result of rendering a page.
type PageResult struct {
	URL      string
	FinalURL string
	HTML     string
	Refs     parser.References
}

// Response is the raw result of fetching a single resource.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// withTimeout bounds ctx by d. A zero duration means no extra bound.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
