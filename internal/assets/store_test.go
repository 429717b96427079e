package assets

import (
	"context"
	goerrors "errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/PentesterFlow/OpenMirror/internal/browser"
	"github.com/PentesterFlow/OpenMirror/internal/errors"
	"github.com/PentesterFlow/OpenMirror/internal/pathmap"
	"github.com/PentesterFlow/OpenMirror/internal/ratelimit"
	"github.com/PentesterFlow/OpenMirror/internal/scope"
)

type fakeFetcher struct {
	responses map[string]*browser.Response
	failures  map[string]error
	calls     map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]*browser.Response),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (f *fakeFetcher) serve(url, body string) {
	f.responses[url] = &browser.Response{URL: url, StatusCode: 200, Body: []byte(body)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*browser.Response, error) {
	f.calls[url]++
	if err, ok := f.failures[url]; ok {
		return nil, err
	}
	if resp, ok := f.responses[url]; ok {
		return resp, nil
	}
	return &browser.Response{URL: url, StatusCode: 404}, nil
}

type recorder struct {
	assets map[string]int
}

func (r *recorder) RecordAsset(url, localPath string, size int) {
	r.assets[url] = size
}

func newTestStore(t *testing.T, fs afero.Fs, fetcher Fetcher, opts ...StoreOption) *Store {
	t.Helper()
	c, err := scope.NewClassifier("example.com", scope.ScopeRules{})
	if err != nil {
		t.Fatal(err)
	}
	return NewStore(fs, fetcher, pathmap.New(c), opts...)
}

func readFile(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", name, err)
	}
	return string(data)
}

// =============================================================================
// Download Tests
// =============================================================================

func TestStore_Download(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	fetcher.serve("https://example.com/images/logo.png", "PNG")
	rec := &recorder{assets: make(map[string]int)}
	s := newTestStore(t, fs, fetcher, WithRecorder(rec))

	got, err := s.Download(context.Background(), "https://example.com/images/logo.png", "images/logo.png")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if got != "images/logo.png" {
		t.Errorf("Download() = %q", got)
	}
	if readFile(t, fs, "images/logo.png") != "PNG" {
		t.Error("asset bytes not written")
	}
	if s.Count() != 1 || s.Bytes() != 3 {
		t.Errorf("Count() = %d, Bytes() = %d", s.Count(), s.Bytes())
	}
	if rec.assets["https://example.com/images/logo.png"] != 3 {
		t.Errorf("recorder = %v", rec.assets)
	}
}

func TestStore_Download_OncePerURL(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	fetcher.serve("https://example.com/style.css", "body{}")
	s := newTestStore(t, fs, fetcher)

	for i := 0; i < 3; i++ {
		got, err := s.Download(context.Background(), "https://example.com/style.css", "style.css")
		if err != nil || got != "style.css" {
			t.Fatalf("Download() #%d = %q, %v", i, got, err)
		}
	}

	if calls := fetcher.calls["https://example.com/style.css"]; calls != 1 {
		t.Errorf("fetched %d times, want 1", calls)
	}
}

func TestStore_Download_RegistryWinsOverLocalPath(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.serve("https://example.com/a.css", "a")
	s := newTestStore(t, afero.NewMemMapFs(), fetcher)

	s.Download(context.Background(), "https://example.com/a.css", "a.css")
	got, _ := s.Download(context.Background(), "https://example.com/a.css", "other/a.css")
	if got != "a.css" {
		t.Errorf("cached download should return the first path, got %q", got)
	}
}

func TestStore_Download_FailuresNotCached(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fakeFetcher, url string)
		wantType errors.ErrorType
	}{
		{
			name:     "transport error",
			setup:    func(f *fakeFetcher, url string) { f.failures[url] = goerrors.New("connection reset") },
			wantType: errors.Fetch,
		},
		{
			name:     "not found",
			setup:    func(f *fakeFetcher, url string) {},
			wantType: errors.HTTPStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const url = "https://example.com/missing.png"
			fs := afero.NewMemMapFs()
			fetcher := newFakeFetcher()
			tt.setup(fetcher, url)
			s := newTestStore(t, fs, fetcher)

			_, err := s.Download(context.Background(), url, "missing.png")
			if err == nil {
				t.Fatal("Download() should fail")
			}
			if errors.IsFatal(err) {
				t.Error("fetch failures must not be fatal")
			}
			if got := errors.GetErrorType(err); got != tt.wantType {
				t.Errorf("error type = %v, want %v", got, tt.wantType)
			}
			if _, ok := s.Lookup(url); ok {
				t.Error("failed download must not be registered")
			}
			if exists, _ := afero.Exists(fs, "missing.png"); exists {
				t.Error("failed download must not write a file")
			}

			delete(fetcher.failures, url)
			fetcher.serve(url, "PNG")
			if _, err := s.Download(context.Background(), url, "missing.png"); err != nil {
				t.Errorf("retry after failure error = %v", err)
			}
			if fetcher.calls[url] != 2 {
				t.Errorf("calls = %d, want 2", fetcher.calls[url])
			}
		})
	}
}

func TestStore_Download_FilesystemErrorIsFatal(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.serve("https://example.com/a.css", "a")
	s := newTestStore(t, afero.NewReadOnlyFs(afero.NewMemMapFs()), fetcher)

	_, err := s.Download(context.Background(), "https://example.com/a.css", "css/a.css")
	if err == nil {
		t.Fatal("Download() should fail on a read-only tree")
	}
	if !errors.IsFatal(err) {
		t.Errorf("filesystem errors must be fatal, got %v", err)
	}
}

func TestStore_Download_Cancelled(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.serve("https://example.com/a.css", "a")
	limiter := ratelimit.NewLimiter(0.001, 1)
	limiter.Allow()
	s := newTestStore(t, afero.NewMemMapFs(), fetcher, WithLimiter(limiter))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Download(ctx, "https://example.com/a.css", "a.css")
	if err == nil {
		t.Fatal("Download() should fail when the context is cancelled")
	}
	if fetcher.calls["https://example.com/a.css"] != 0 {
		t.Error("nothing should be fetched after cancellation")
	}
}

// =============================================================================
// DownloadHTTPAsset Tests
// =============================================================================

func TestStore_DownloadHTTPAsset(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := newFakeFetcher()
	fetcher.serve("https://example.com/docs/img/a.png", "A")
	fetcher.serve("https://cdn.example.net/lib.js", "JS")
	fetcher.serve("https://example.com/files/report.pdf", "PDF")
	fetcher.serve("https://example.com/style.css", "CSS")
	s := newTestStore(t, fs, fetcher)

	const base = "https://example.com/docs/intro"

	tests := []struct {
		name string
		ref  string
		opts Options
		want string
	}{
		{"relative same-domain", "img/a.png", Options{}, "docs/img/a.png"},
		{"external host", "https://cdn.example.net/lib.js", Options{}, "external/cdn.example.net/lib.js"},
		{"extension required, missing", "/files/report.pdf", Options{RequireAssetExtension: true}, ""},
		{"extension required, present", "/style.css#x", Options{RequireAssetExtension: true}, "style.css"},
		{"not http", "data:image/png;base64,AAAA", Options{LogFailures: true}, ""},
		{"unparseable", "%zz", Options{LogFailures: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.DownloadHTTPAsset(context.Background(), tt.ref, base, tt.opts)
			if err != nil {
				t.Fatalf("DownloadHTTPAsset() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DownloadHTTPAsset(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}

	if readFile(t, fs, "external/cdn.example.net/lib.js") != "JS" {
		t.Error("external asset not written under external/<host>/")
	}
	if fetcher.calls["https://example.com/files/report.pdf"] != 0 {
		t.Error("filtered reference must not be fetched")
	}
	if _, ok := s.Lookup("https://example.com/style.css"); !ok {
		t.Error("registry should be keyed without the fragment")
	}

	registry := s.Registry()
	if len(registry) != 3 {
		t.Errorf("Registry() = %v", registry)
	}
	registry["mutated"] = "x"
	if s.Count() != 3 {
		t.Error("Registry() should return a copy")
	}
}
