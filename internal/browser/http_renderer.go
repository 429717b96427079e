package browser

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PentesterFlow/OpenMirror/internal/errors"
	"github.com/PentesterFlow/OpenMirror/internal/parser"
)

// HTTPRenderer renders pages without executing JavaScript: the served HTML
// is archived as-is and references are extracted statically.
type HTTPRenderer struct {
	client *http.Client
	config Config
}

// NewHTTPRenderer creates an HTTP renderer.
func NewHTTPRenderer(config Config) *HTTPRenderer {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.IgnoreHTTPSErrors,
		},
	}

	return &HTTPRenderer{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		config: config,
	}
}

func (r *HTTPRenderer) get(ctx context.Context, targetURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, errors.NewParseError(targetURL, "request_creation", err)
	}

	if r.config.UserAgent != "" {
		req.Header.Set("User-Agent", r.config.UserAgent)
	}
	req.Header.Set("Accept", accept)
	for k, v := range r.config.Headers {
		req.Header.Set(k, v)
	}

	return r.client.Do(req)
}

func (r *HTTPRenderer) readBody(resp *http.Response) ([]byte, error) {
	limit := r.config.MaxBodySize
	if limit <= 0 {
		return io.ReadAll(resp.Body)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// Render fetches targetURL and extracts references from the returned HTML.
// Non-2xx responses and non-HTML content are render errors.
func (r *HTTPRenderer) Render(ctx context.Context, targetURL string) (*PageResult, error) {
	ctx, cancel := withTimeout(ctx, r.config.RenderTimeout)
	defer cancel()

	resp, err := r.get(ctx, targetURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, errors.Categorize(err, targetURL, "render")
	}
	defer resp.Body.Close()

	if httpErr := errors.CategorizeHTTPStatus(resp.StatusCode, targetURL, "render"); httpErr != nil {
		return nil, httpErr
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return nil, errors.NewCrawlError(errors.Render, targetURL, "render",
			fmt.Sprintf("unexpected content type %q", contentType), nil)
	}

	body, err := r.readBody(resp)
	if err != nil {
		return nil, errors.Categorize(err, targetURL, "render")
	}

	result := &PageResult{
		URL:      targetURL,
		FinalURL: resp.Request.URL.String(),
		HTML:     string(body),
	}

	p, err := parser.NewHTMLParser(result.FinalURL)
	if err != nil {
		return nil, errors.NewParseError(targetURL, "render", err)
	}
	refs, err := p.Parse(result.HTML)
	if err != nil {
		return nil, errors.NewParseError(targetURL, "render", err)
	}
	result.Refs = *refs

	return result, nil
}

// Fetch performs a single GET and returns the body. Only transport
// failures are errors; the caller inspects the status code.
func (r *HTTPRenderer) Fetch(ctx context.Context, targetURL string) (*Response, error) {
	ctx, cancel := withTimeout(ctx, r.config.FetchTimeout)
	defer cancel()

	resp, err := r.get(ctx, targetURL, "*/*")
	if err != nil {
		return nil, errors.Categorize(err, targetURL, "fetch")
	}
	defer resp.Body.Close()

	body, err := r.readBody(resp)
	if err != nil {
		return nil, errors.Categorize(err, targetURL, "fetch")
	}

	return &Response{
		URL:        targetURL,
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// Close releases idle connections.
func (r *HTTPRenderer) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
