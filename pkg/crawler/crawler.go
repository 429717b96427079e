package crawler

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/PentesterFlow/OpenMirror/internal/assets"
	"github.com/PentesterFlow/OpenMirror/internal/browser"
	crawlerrors "github.com/PentesterFlow/OpenMirror/internal/errors"
	"github.com/PentesterFlow/OpenMirror/internal/logger"
	"github.com/PentesterFlow/OpenMirror/internal/metrics"
	"github.com/PentesterFlow/OpenMirror/internal/pathmap"
	"github.com/PentesterFlow/OpenMirror/internal/progress"
	"github.com/PentesterFlow/OpenMirror/internal/queue"
	"github.com/PentesterFlow/OpenMirror/internal/ratelimit"
	"github.com/PentesterFlow/OpenMirror/internal/rewrite"
	"github.com/PentesterFlow/OpenMirror/internal/scope"
	"github.com/PentesterFlow/OpenMirror/internal/state"
)

// estimatedPages sizes the visited set's Bloom filter.
const estimatedPages = 10000

// Crawler mirrors one site. A single goroutine drives the crawl: pages are
// processed one at a time and every blocking call honours the context.
type Crawler struct {
	config *Config

	fs       afero.Fs
	renderer Renderer
	fetcher  assets.Fetcher
	store    state.Store

	// Resources created by initialize and released by cleanup.
	closers []io.Closer

	classifier *scope.Classifier
	mapper     *pathmap.Mapper
	rewriter   *rewrite.Rewriter
	assets     *assets.Store
	frontier   *queue.Frontier
	state      *state.Manager
	limiter    *ratelimit.Limiter
	metrics    *metrics.Collector

	logger      *logger.Logger
	baseLogger  *logger.Logger
	progress    *progress.Display
	progressOut io.Writer
}

// New creates a new crawler with the given options.
func New(opts ...Option) (*Crawler, error) {
	c := &Crawler{
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := c.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.logger == nil {
		logLevel := logger.InfoLevel
		if c.config.Debug {
			logLevel = logger.DebugLevel
		} else if !c.config.Verbose {
			logLevel = logger.WarnLevel
		}
		c.logger = logger.New(logger.Config{
			Level:  logLevel,
			Pretty: true,
		})
	}
	c.baseLogger = c.logger
	c.logger = c.logger.WithComponent("crawler")

	return c, nil
}

func (c *Crawler) initialize() error {
	var err error

	domain := c.config.EffectiveDomain()
	c.classifier, err = scope.NewClassifier(domain, c.config.Scope)
	if err != nil {
		return fmt.Errorf("invalid scope pattern: %w", err)
	}
	c.mapper = pathmap.New(c.classifier)
	c.rewriter = rewrite.New(c.classifier, c.mapper)

	if c.fs == nil {
		c.fs, err = prepareOutputDir(afero.NewOsFs(), c.config.OutputDir)
		if err != nil {
			return err
		}
	}

	if c.renderer == nil {
		if err := c.initRenderer(); err != nil {
			return err
		}
	}
	if c.fetcher == nil {
		f, ok := c.renderer.(assets.Fetcher)
		if !ok {
			return fmt.Errorf("renderer %T cannot fetch assets; set a fetcher", c.renderer)
		}
		c.fetcher = f
	}

	if c.store == nil && c.config.State.FilePath != "" {
		store, err := state.OpenStore(c.config.State.FilePath)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		c.store = store
		c.closers = append(c.closers, store)
	}
	c.state = state.NewManager(c.store, estimatedPages)
	c.metrics = metrics.New()

	c.limiter = ratelimit.NewLimiter(c.config.RateLimit.RequestsPerSecond, c.config.RateLimit.Burst)
	c.limiter.SetDomainDelay(c.config.RateLimit.DomainDelay)

	c.assets = assets.NewStore(c.fs, &timedFetcher{c.fetcher, c.metrics}, c.mapper,
		assets.WithLimiter(c.limiter),
		assets.WithRecorder(c.state),
		assets.WithLogger(c.baseLogger),
	)

	c.frontier = queue.NewFrontier()

	if c.progressOut != nil {
		c.progress = progress.New(c.progressOut)
	}

	return nil
}

func (c *Crawler) initRenderer() error {
	switch c.config.Renderer {
	case RendererHTTP:
		r := browser.NewHTTPRenderer(c.config.Browser)
		c.renderer = r
		c.closers = append(c.closers, r)
	default:
		b, err := browser.New(c.config.Browser)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
		c.renderer = b
		c.closers = append(c.closers, b)
	}
	return nil
}

// prepareOutputDir removes dir, recreates it empty and returns a filesystem
// rooted at it.
func prepareOutputDir(base afero.Fs, dir string) (afero.Fs, error) {
	if err := base.RemoveAll(dir); err != nil {
		return nil, crawlerrors.NewFilesystemError(dir, "clear_output", err)
	}
	if err := base.MkdirAll(dir, 0755); err != nil {
		return nil, crawlerrors.NewFilesystemError(dir, "create_output", err)
	}
	return afero.NewBasePathFs(base, dir), nil
}

func (c *Crawler) cleanup() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.logger.Warnf("cleanup: %v", err)
		}
	}
	c.closers = nil
}

// Start mirrors the site breadth-first from the start URL until no
// unvisited page remains, the page limit is reached or ctx is cancelled.
// The returned error is non-nil only for fatal (filesystem) failures and
// setup problems; per-page and per-asset failures are recorded in the run
// record instead.
func (c *Crawler) Start(ctx context.Context) (*Summary, error) {
	if err := c.initialize(); err != nil {
		c.cleanup()
		return nil, err
	}
	defer c.cleanup()

	start := scope.Normalize(c.config.Target)
	c.state.Start(start, c.classifier.Domain(), c.config.OutputDir)
	c.frontier.Push(&queue.QueueItem{URL: start, Timestamp: time.Now()})

	c.logger.Infof("Mirroring %s into %s", start, c.config.OutputDir)

	if c.progress != nil {
		c.progress.Start(start)
		defer c.progress.Stop()
	}

	status, runErr := c.run(ctx)

	record := c.state.Finish(status)
	if err := c.state.Save(); err != nil {
		c.logger.Warnf("failed to save run record: %v", err)
	}

	stats := c.metrics.Snapshot().Summary()
	stats["status"] = string(status)
	stats["pages_written"] = record.Stats.PagesWritten
	stats["assets_downloaded"] = record.Stats.AssetsDownloaded
	stats["errors"] = record.Stats.ErrorCount
	stats["bytes"] = record.Stats.BytesWritten
	stats["duration"] = record.Stats.Duration.String()
	c.logger.StatsEvent(stats)

	return newSummary(record), runErr
}

func (c *Crawler) run(ctx context.Context) (state.RunStatus, error) {
	for !c.frontier.IsEmpty() {
		if ctx.Err() != nil {
			c.logger.Warnf("Interrupted with %d pages pending", c.frontier.Len())
			return state.StatusInterrupted, nil
		}

		if c.config.MaxPages > 0 && c.state.GetStats().PagesVisited >= c.config.MaxPages {
			c.logger.Infof("Page limit %d reached, %d pages left pending", c.config.MaxPages, c.frontier.Len())
			break
		}

		item, err := c.frontier.Pop()
		if err != nil {
			break
		}

		if err := c.crawlPage(ctx, item); err != nil {
			c.logger.ErrorEvent(err, item.URL, "crawl")
			return state.StatusFailed, err
		}

		c.reportProgress()
	}

	if ctx.Err() != nil {
		return state.StatusInterrupted, nil
	}
	return state.StatusCompleted, nil
}

// crawlPage renders one page, queues its in-scope links, writes the
// rewritten markup and downloads its assets. Only fatal errors are
// returned.
func (c *Crawler) crawlPage(ctx context.Context, item *queue.QueueItem) error {
	pageURL := item.URL
	if !c.state.MarkVisited(pageURL) {
		return nil
	}

	c.logger.WithURL(pageURL).Debugf("Rendering (depth %d)", item.Depth)

	if err := c.limiter.WaitDomain(ctx, c.classifier.Domain()); err != nil {
		return nil
	}

	var result *browser.PageResult
	err := c.metrics.Time(metrics.OpRender, func() error {
		var err error
		result, err = c.renderer.Render(ctx, pageURL)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		crawlErr := crawlerrors.Categorize(err, pageURL, "render")
		c.metrics.RecordError(crawlErr.Type.String())
		c.logger.ErrorEvent(crawlErr, pageURL, "render")
		c.state.RecordError(pageURL, "render", crawlErr)
		return nil
	}

	base := result.FinalURL
	if base == "" {
		base = pageURL
	}

	queued := c.queueLinks(item, result.Refs.Links, base)
	c.logger.WithURL(pageURL).Debugf("Queued %d new links", queued)

	localPath, ok := c.mapper.LocalPath(pageURL)
	if !ok {
		crawlErr := crawlerrors.NewCrawlError(crawlerrors.Parse, pageURL, "map", "no local path", nil)
		c.state.RecordError(pageURL, "map", crawlErr)
		return nil
	}

	markup := c.rewriter.Rewrite(result.HTML, pageURL, base)
	if err := c.writePage(localPath, markup); err != nil {
		return err
	}
	c.state.RecordPage(pageURL, localPath, len(result.Refs.Links), len(markup))
	c.logger.PageEvent(pageURL, localPath, len(result.Refs.Links))

	return c.downloadAssets(ctx, result, base)
}

// queueLinks pushes every same-domain, in-scope, unvisited link and
// returns how many were newly queued.
func (c *Crawler) queueLinks(parent *queue.QueueItem, links []string, base string) int {
	depth := parent.Depth + 1
	if c.config.MaxDepth > 0 && depth > c.config.MaxDepth {
		return 0
	}

	queued := 0
	for _, link := range links {
		resolved, ok := scope.Resolve(link, base)
		if !ok {
			continue
		}

		canonical := scope.Normalize(resolved.Absolute)
		if !c.classifier.ShouldQueue(canonical) || c.state.HasVisited(canonical) {
			continue
		}

		if c.frontier.Push(&queue.QueueItem{
			URL:       canonical,
			Depth:     depth,
			ParentURL: parent.URL,
			Timestamp: time.Now(),
		}) {
			queued++
		}
	}
	return queued
}

func (c *Crawler) writePage(localPath, markup string) error {
	name := filepath.FromSlash(localPath)
	if err := c.fs.MkdirAll(filepath.FromSlash(path.Dir(localPath)), 0755); err != nil {
		return crawlerrors.NewFilesystemError(localPath, "mkdir", err)
	}
	if err := afero.WriteFile(c.fs, name, []byte(markup), 0644); err != nil {
		return crawlerrors.NewFilesystemError(localPath, "write_page", err)
	}
	return nil
}

// assetGroup is one category of page references sharing download options.
type assetGroup struct {
	name string
	urls []string
	opts assets.Options
}

// downloadAssets downloads every asset category of a rendered page. Each
// reference is independent: failures are recorded and the next one is
// tried. Only filesystem errors abort.
func (c *Crawler) downloadAssets(ctx context.Context, result *browser.PageResult, base string) error {
	refs := result.Refs
	groups := []assetGroup{
		// Non-stylesheet link hrefs include icons, manifests and canonical
		// pages, so only known asset extensions are fetched.
		{"link", refs.LinkHrefs, assets.Options{RequireAssetExtension: true}},
		// Cross-origin hyperlinks to files are rewritten to their external
		// copy, so that copy has to exist.
		{"external_link", c.externalLinks(refs.Links, base), assets.Options{RequireAssetExtension: true}},
		{"stylesheet", refs.Stylesheets, assets.Options{LogFailures: true}},
		{"script", refs.Scripts, assets.Options{LogFailures: true}},
		{"image", refs.Images, assets.Options{LogFailures: true}},
		{"srcset", refs.Srcsets, assets.Options{LogFailures: true}},
		{"font", refs.Fonts, assets.Options{LogFailures: true}},
	}

	for _, g := range groups {
		for _, raw := range g.urls {
			if ctx.Err() != nil {
				return nil
			}

			if _, err := c.assets.DownloadHTTPAsset(ctx, raw, base, g.opts); err != nil {
				if crawlerrors.IsFatal(err) {
					return err
				}
				if ctx.Err() != nil {
					return nil
				}
				c.metrics.RecordError(crawlerrors.GetErrorType(err).String())
				c.state.RecordError(raw, "fetch_"+g.name, err)
			}
		}
	}

	return nil
}

// externalLinks returns the hyperlinks that point off the target domain.
func (c *Crawler) externalLinks(links []string, base string) []string {
	var external []string
	for _, link := range links {
		resolved, ok := scope.Resolve(link, base)
		if !ok || c.classifier.IsTargetDomain(resolved.Absolute) {
			continue
		}
		external = append(external, resolved.Absolute)
	}
	return external
}

func (c *Crawler) reportProgress() {
	if c.progress == nil {
		return
	}
	stats := c.state.GetStats()
	c.progress.Update(progress.Snapshot{
		Pages:  stats.PagesWritten,
		Queued: c.frontier.Len(),
		Assets: stats.AssetsDownloaded,
		Errors: stats.ErrorCount,
		Bytes:  stats.BytesWritten,
	})
}

// Record returns the run record of the last Start.
func (c *Crawler) Record() *state.RunRecord {
	if c.state == nil {
		return nil
	}
	return c.state.Record()
}

// Metrics returns render and fetch timings of the last Start.
func (c *Crawler) Metrics() *metrics.Snapshot {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.Snapshot()
}

// Assets returns the URL to local path registry of the last Start.
func (c *Crawler) Assets() map[string]string {
	if c.assets == nil {
		return nil
	}
	return c.assets.Registry()
}

// Config returns a copy of the configuration.
func (c *Crawler) Config() *Config {
	return c.config.Clone()
}

// timedFetcher records the latency and outcome of every asset fetch.
type timedFetcher struct {
	fetcher assets.Fetcher
	metrics *metrics.Collector
}

func (f *timedFetcher) Fetch(ctx context.Context, url string) (*browser.Response, error) {
	start := time.Now()
	resp, err := f.fetcher.Fetch(ctx, url)

	var status, size int
	failed := err
	if resp != nil {
		status, size = resp.StatusCode, len(resp.Body)
		if failed == nil && !resp.OK() {
			failed = crawlerrors.NewHTTPStatusError(url, "fetch", status)
		}
	}
	f.metrics.RecordFetch(time.Since(start), status, size, failed)

	return resp, err
}
