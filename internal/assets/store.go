// Package assets downloads static resources into the output tree, each
// source URL at most once per run.
package assets

import (
	"context"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/PentesterFlow/OpenMirror/internal/browser"
	"github.com/PentesterFlow/OpenMirror/internal/errors"
	"github.com/PentesterFlow/OpenMirror/internal/logger"
	"github.com/PentesterFlow/OpenMirror/internal/pathmap"
	"github.com/PentesterFlow/OpenMirror/internal/ratelimit"
	"github.com/PentesterFlow/OpenMirror/internal/scope"
)

// Fetcher retrieves the raw bytes of a resource.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*browser.Response, error)
}

// Recorder is notified of every asset written to the output tree.
type Recorder interface {
	RecordAsset(url, localPath string, size int)
}

// Options controls DownloadHTTPAsset.
type Options struct {
	// RequireAssetExtension skips URLs whose path lacks a known asset
	// extension.
	RequireAssetExtension bool
	// LogFailures logs references that cannot be resolved.
	LogFailures bool
}

// Store downloads assets and keeps the registry of successful downloads.
// It is owned by the single crawl loop and takes no locks.
type Store struct {
	fs       afero.Fs
	fetcher  Fetcher
	mapper   *pathmap.Mapper
	limiter  *ratelimit.Limiter
	recorder Recorder
	logger   *logger.Logger
	registry map[string]string
	bytes    int64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLimiter throttles fetches per host.
func WithLimiter(l *ratelimit.Limiter) StoreOption {
	return func(s *Store) {
		s.limiter = l
	}
}

// WithRecorder reports each download to r.
func WithRecorder(r Recorder) StoreOption {
	return func(s *Store) {
		s.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a Store writing into fs.
func NewStore(fs afero.Fs, fetcher Fetcher, mapper *pathmap.Mapper, opts ...StoreOption) *Store {
	s := &Store{
		fs:       fs,
		fetcher:  fetcher,
		mapper:   mapper,
		logger:   logger.Nop(),
		registry: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("assets")
	return s
}

// Download fetches absURL and writes it at localPath. A URL already in the
// registry returns its recorded path without fetching. Fetch failures and
// non-2xx responses are returned as non-fatal errors and are not cached, so
// a later reference retries. Filesystem failures are fatal.
func (s *Store) Download(ctx context.Context, absURL, localPath string) (string, error) {
	if existing, ok := s.registry[absURL]; ok {
		return existing, nil
	}

	if s.limiter != nil {
		if err := s.limiter.WaitDomain(ctx, scope.HostOf(absURL)); err != nil {
			return "", errors.Categorize(err, absURL, "fetch")
		}
	}

	if err := s.fs.MkdirAll(filepath.FromSlash(path.Dir(localPath)), 0755); err != nil {
		return "", errors.NewFilesystemError(localPath, "mkdir", err)
	}

	resp, err := s.fetcher.Fetch(ctx, absURL)
	if err != nil {
		crawlErr := errors.Categorize(err, absURL, "fetch")
		s.logger.ErrorEvent(crawlErr, absURL, "fetch")
		return "", crawlErr
	}

	if !resp.OK() {
		crawlErr := errors.NewHTTPStatusError(absURL, "fetch", resp.StatusCode)
		s.logger.ErrorEvent(crawlErr, absURL, "fetch")
		return "", crawlErr
	}

	if err := afero.WriteFile(s.fs, filepath.FromSlash(localPath), resp.Body, 0644); err != nil {
		return "", errors.NewFilesystemError(localPath, "write", err)
	}

	s.registry[absURL] = localPath
	s.bytes += int64(len(resp.Body))
	if s.recorder != nil {
		s.recorder.RecordAsset(absURL, localPath, len(resp.Body))
	}
	s.logger.AssetEvent(absURL, localPath, len(resp.Body))

	return localPath, nil
}

// DownloadHTTPAsset resolves rawURL against baseURL and downloads it to its
// asset local path. Unresolvable and non-http references are skipped and
// return "" with a nil error, as are URLs without an asset extension when
// RequireAssetExtension is set.
func (s *Store) DownloadHTTPAsset(ctx context.Context, rawURL, baseURL string, opts Options) (string, error) {
	resolved, ok := scope.Resolve(rawURL, baseURL)
	if !ok {
		if opts.LogFailures {
			s.logger.WithURL(rawURL).Debugf("skipping unresolvable asset reference from %s", baseURL)
		}
		return "", nil
	}

	if opts.RequireAssetExtension && !pathmap.HasAssetExtension(resolved.URL.Path) {
		return "", nil
	}

	// The fragment never reaches the server.
	resolved.URL.Fragment = ""
	resolved.URL.RawFragment = ""
	absURL := resolved.URL.String()

	localPath, ok := s.mapper.AssetLocalPath(absURL)
	if !ok {
		return "", nil
	}

	return s.Download(ctx, absURL, localPath)
}

// Lookup returns the local path of a downloaded asset.
func (s *Store) Lookup(absURL string) (string, bool) {
	p, ok := s.registry[absURL]
	return p, ok
}

// Registry returns a copy of the URL to local path registry.
func (s *Store) Registry() map[string]string {
	out := make(map[string]string, len(s.registry))
	for k, v := range s.registry {
		out[k] = v
	}
	return out
}

// Count returns the number of downloaded assets.
func (s *Store) Count() int {
	return len(s.registry)
}

// Bytes returns the total size of downloaded assets.
func (s *Store) Bytes() int64 {
	return s.bytes
}
