package crawler

import (
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/PentesterFlow/OpenMirror/internal/assets"
	"github.com/PentesterFlow/OpenMirror/internal/browser"
	"github.com/PentesterFlow/OpenMirror/internal/logger"
	"github.com/PentesterFlow/OpenMirror/internal/state"
)

// Option is a functional option for configuring the Crawler.
type Option func(*Crawler) error

// WithConfig replaces the whole configuration. Options applied after it
// still take effect.
func WithConfig(config *Config) Option {
	return func(c *Crawler) error {
		c.config = config.Clone()
		return nil
	}
}

// WithTarget sets the start URL.
func WithTarget(url string) Option {
	return func(c *Crawler) error {
		c.config.Target = url
		return nil
	}
}

// WithDomain sets the exact host to archive.
func WithDomain(domain string) Option {
	return func(c *Crawler) error {
		c.config.Domain = domain
		return nil
	}
}

// WithOutputDir sets the root of the output tree.
func WithOutputDir(dir string) Option {
	return func(c *Crawler) error {
		c.config.OutputDir = dir
		return nil
	}
}

// WithRendererKind selects the "browser" or "http" renderer.
func WithRendererKind(kind string) Option {
	return func(c *Crawler) error {
		c.config.Renderer = kind
		return nil
	}
}

// WithMaxPages limits the number of pages visited.
func WithMaxPages(n int) Option {
	return func(c *Crawler) error {
		if n < 0 {
			n = 0
		}
		c.config.MaxPages = n
		return nil
	}
}

// WithMaxDepth limits link distance from the start URL.
func WithMaxDepth(depth int) Option {
	return func(c *Crawler) error {
		if depth < 0 {
			depth = 0
		}
		c.config.MaxDepth = depth
		return nil
	}
}

// WithIncludePatterns adds URL patterns pages must match to be queued.
func WithIncludePatterns(patterns ...string) Option {
	return func(c *Crawler) error {
		c.config.Scope.IncludePatterns = append(c.config.Scope.IncludePatterns, patterns...)
		return nil
	}
}

// WithExcludePatterns adds URL patterns of pages never queued.
func WithExcludePatterns(patterns ...string) Option {
	return func(c *Crawler) error {
		c.config.Scope.ExcludePatterns = append(c.config.Scope.ExcludePatterns, patterns...)
		return nil
	}
}

// WithSessionLinks sets whether logout and similar links may be queued.
func WithSessionLinks(follow bool) Option {
	return func(c *Crawler) error {
		c.config.Scope.SkipSessionLinks = !follow
		return nil
	}
}

// WithRateLimit sets the rate limiting configuration.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Crawler) error {
		c.config.RateLimit.RequestsPerSecond = rps
		c.config.RateLimit.Burst = burst
		return nil
	}
}

// WithDomainDelay sets a minimum delay between requests.
func WithDomainDelay(delay time.Duration) Option {
	return func(c *Crawler) error {
		c.config.RateLimit.DomainDelay = delay
		return nil
	}
}

// WithBrowserConfig sets the renderer configuration.
func WithBrowserConfig(config browser.Config) Option {
	return func(c *Crawler) error {
		c.config.Browser = config
		return nil
	}
}

// WithHeadless enables or disables headless mode.
func WithHeadless(headless bool) Option {
	return func(c *Crawler) error {
		c.config.Browser.Headless = headless
		return nil
	}
}

// WithRenderTimeout bounds each page render.
func WithRenderTimeout(timeout time.Duration) Option {
	return func(c *Crawler) error {
		c.config.Browser.RenderTimeout = timeout
		return nil
	}
}

// WithSettleDelay sets the pause after the network goes idle.
func WithSettleDelay(delay time.Duration) Option {
	return func(c *Crawler) error {
		c.config.Browser.SettleDelay = delay
		return nil
	}
}

// WithUserAgent sets the user agent for pages and assets.
func WithUserAgent(ua string) Option {
	return func(c *Crawler) error {
		c.config.Browser.UserAgent = ua
		return nil
	}
}

// WithHeaders adds request headers sent with every page and asset.
func WithHeaders(headers map[string]string) Option {
	return func(c *Crawler) error {
		if c.config.Browser.Headers == nil {
			c.config.Browser.Headers = make(map[string]string)
		}
		for k, v := range headers {
			c.config.Browser.Headers[k] = v
		}
		return nil
	}
}

// WithStateFile sets where the run record is persisted.
func WithStateFile(path string) Option {
	return func(c *Crawler) error {
		c.config.State.FilePath = path
		return nil
	}
}

// WithVerbose enables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(c *Crawler) error {
		c.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(c *Crawler) error {
		c.config.Debug = debug
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Crawler) error {
		c.logger = l
		return nil
	}
}

// WithFilesystem writes the output tree to fs instead of OutputDir on disk.
// fs is used as is and is not cleared.
func WithFilesystem(fs afero.Fs) Option {
	return func(c *Crawler) error {
		c.fs = fs
		return nil
	}
}

// WithRenderer sets the page renderer. The crawler does not close it.
func WithRenderer(r Renderer) Option {
	return func(c *Crawler) error {
		c.renderer = r
		return nil
	}
}

// WithFetcher sets the asset fetcher. The crawler does not close it.
func WithFetcher(f assets.Fetcher) Option {
	return func(c *Crawler) error {
		c.fetcher = f
		return nil
	}
}

// WithStore sets the run record store. The crawler does not close it.
func WithStore(s state.Store) Option {
	return func(c *Crawler) error {
		c.store = s
		return nil
	}
}

// WithProgress shows a progress line on w while crawling.
func WithProgress(w io.Writer) Option {
	return func(c *Crawler) error {
		c.progressOut = w
		return nil
	}
}
