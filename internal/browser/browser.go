// Package browser renders pages and fetches resources, either through
// headless Chrome via Rod or through a plain HTTP client.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/PentesterFlow/OpenMirror/internal/parser"
)

// extractReferencesJS collects asset and link references from the live DOM.
// Element properties (a.href, img.src) are already absolute.
const extractReferencesJS = `() => {
	const strs = list => list.filter(v => typeof v === 'string' && v !== '');
	const all = sel => Array.from(document.querySelectorAll(sel));
	const rels = el => (el.getAttribute('rel') || '').toLowerCase().split(/\s+/);
	const links = all('link[href]');
	const sheet = el => rels(el).includes('stylesheet');

	return {
		base: document.baseURI,
		links: strs(all('a[href]').map(a => a.href)),
		downloads: strs(all('a[download][href]').map(a => a.href)),
		linkHrefs: strs(links.filter(l => !sheet(l)).map(l => l.href)),
		stylesheets: strs(links.filter(sheet).map(l => l.href)),
		scripts: strs(all('script[src]').map(s => s.src)),
		images: strs(all('img[src]').map(i => i.src)),
		srcsets: strs(all('img[srcset], source[srcset]').map(e => e.getAttribute('srcset'))),
		fonts: strs(links.filter(l => rels(l).includes('preload') &&
			(l.getAttribute('as') || '').toLowerCase() === 'font').map(l => l.href)),
	};
}`

// Browser wraps a Rod browser instance.
type Browser struct {
	browser *rod.Browser
	config  Config
}

// New launches a browser instance.
func New(config Config) (*Browser, error) {
	l := launcher.New().Headless(config.Headless)

	if config.IgnoreHTTPSErrors {
		l = l.Set("ignore-certificate-errors", "true")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{
		browser: browser,
		config:  config,
	}, nil
}

// newPage opens a blank tab with the configured viewport, user agent and
// extra headers applied.
func (b *Browser) newPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	// Viewport failures are not critical.
	_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  b.config.ViewportWidth,
		Height: b.config.ViewportHeight,
	})

	if b.config.UserAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{
			UserAgent: b.config.UserAgent,
		}.Call(page)
	}

	if len(b.config.Headers) > 0 {
		networkHeaders := make(proto.NetworkHeaders)
		for k, v := range b.config.Headers {
			networkHeaders[k] = gson.New(v)
		}
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: networkHeaders}).Call(page); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("failed to set headers: %w", err)
		}
	}

	return page, nil
}

// Render navigates to url, waits until the network has been idle for
// IdleTime (bounded by RenderTimeout), lets scripts settle for SettleDelay
// and returns the serialized DOM together with its references.
func (b *Browser) Render(ctx context.Context, url string) (*PageResult, error) {
	ctx, cancel := withTimeout(ctx, b.config.RenderTimeout)
	defer cancel()

	tab, err := b.newPage()
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	page := tab.Context(ctx)

	waitIdle := page.WaitRequestIdle(b.config.IdleTime, nil, nil, nil)
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	waitIdle()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("waiting for network idle: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(b.config.SettleDelay):
	}

	result := &PageResult{URL: url, FinalURL: url}
	if info, err := page.Info(); err == nil && info != nil && info.URL != "" {
		result.FinalURL = info.URL
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("serialize DOM: %w", err)
	}
	result.HTML = html

	obj, err := page.Eval(extractReferencesJS)
	if err != nil {
		return nil, fmt.Errorf("extract references: %w", err)
	}
	result.Refs = referencesFromJSON(obj.Value)

	return result, nil
}

// referencesFromJSON converts the extraction script result into References,
// keeping only http(s) URLs and splitting srcset values into candidates.
func referencesFromJSON(v gson.JSON) parser.References {
	base, _ := url.Parse(v.Get("base").Str())

	list := func(key string) []string {
		out := make([]string, 0)
		seen := make(map[string]bool)
		for _, item := range v.Get(key).Arr() {
			s := item.Str()
			if !isHTTP(s) || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
		return out
	}

	refs := parser.References{
		Links:       list("links"),
		Stylesheets: list("stylesheets"),
		Scripts:     list("scripts"),
		Images:      list("images"),
		Fonts:       list("fonts"),
	}

	seen := make(map[string]bool)
	for _, s := range append(list("downloads"), list("linkHrefs")...) {
		if !seen[s] {
			seen[s] = true
			refs.LinkHrefs = append(refs.LinkHrefs, s)
		}
	}

	seen = make(map[string]bool)
	for _, item := range v.Get("srcsets").Arr() {
		for _, c := range parser.ParseSrcset(item.Str()) {
			abs := c.URL
			if base != nil {
				if ref, err := url.Parse(c.URL); err == nil {
					abs = base.ResolveReference(ref).String()
				}
			}
			if isHTTP(abs) && !seen[abs] {
				seen[abs] = true
				refs.Srcsets = append(refs.Srcsets, abs)
			}
		}
	}

	return refs
}

func isHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// Fetch loads url as a top-level document and returns the raw response body
// as delivered on the wire. Non-2xx responses are returned, not errors.
func (b *Browser) Fetch(ctx context.Context, url string) (*Response, error) {
	ctx, cancel := withTimeout(ctx, b.config.FetchTimeout)
	defer cancel()

	tab, err := b.newPage()
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	page := tab.Context(ctx)

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, fmt.Errorf("enable network: %w", err)
	}

	var (
		doc     *proto.NetworkResponseReceived
		failure string
	)
	wait := page.EachEvent(
		func(e *proto.NetworkResponseReceived) {
			if doc == nil && e.Type == proto.NetworkResourceTypeDocument {
				doc = e
			}
		},
		func(e *proto.NetworkLoadingFinished) bool {
			return doc != nil && e.RequestID == doc.RequestID
		},
		func(e *proto.NetworkLoadingFailed) bool {
			if doc != nil && e.RequestID != doc.RequestID {
				return false
			}
			failure = e.ErrorText
			return e.Type == proto.NetworkResourceTypeDocument
		},
	)

	// Navigation may report an error for non-HTML bodies even though the
	// response arrived. The events decide.
	navErr := page.Navigate(url)
	wait()

	if doc == nil {
		if navErr != nil {
			return nil, fmt.Errorf("navigate: %w", navErr)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no document response for %s: %s", url, failure)
	}

	resp := &Response{URL: url, StatusCode: doc.Response.Status}

	body, err := proto.NetworkGetResponseBody{RequestID: doc.RequestID}.Call(page)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if body.Base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body.Body)
		if err != nil {
			return nil, fmt.Errorf("decode response body: %w", err)
		}
		resp.Body = decoded
	} else {
		resp.Body = []byte(body.Body)
	}

	return resp, nil
}

// Close closes the browser.
func (b *Browser) Close() error {
	return b.browser.Close()
}

// GetConfig returns the browser configuration.
func (b *Browser) GetConfig() Config {
	return b.config
}
