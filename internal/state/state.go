// Package state tracks visited pages and the run record of a mirroring run.
package state

import (
	"time"

	crawlerrors "github.com/PentesterFlow/OpenMirror/internal/errors"
)

// Manager owns the visited set and the run record. It is driven by the
// single crawl loop and is not safe for concurrent use.
type Manager struct {
	store  Store
	dedup  *Deduplicator
	record *RunRecord
	clock  func() time.Time
}

// NewManager creates a new state manager. store may be nil, in which case
// Save is a no-op.
func NewManager(store Store, estimatedURLs int) *Manager {
	m := &Manager{
		store: store,
		dedup: NewDeduplicator(estimatedURLs),
		clock: time.Now,
	}
	m.record = m.newRecord("", "", "")
	return m
}

func (m *Manager) newRecord(target, domain, outputDir string) *RunRecord {
	return &RunRecord{
		Target:    target,
		Domain:    domain,
		OutputDir: outputDir,
		Status:    StatusRunning,
		StartedAt: m.clock(),
		Pages:     make([]PageRecord, 0),
		Assets:    make(map[string]string),
		Errors:    make([]ErrorRecord, 0),
	}
}

// Start resets the visited set and begins a new run record.
func (m *Manager) Start(target, domain, outputDir string) {
	m.dedup.Reset()
	m.record = m.newRecord(target, domain, outputDir)
}

// MarkVisited marks a canonical URL as visited. It returns false if the URL
// had already been visited.
func (m *Manager) MarkVisited(url string) bool {
	if !m.dedup.Add(url) {
		return false
	}
	m.record.Stats.PagesVisited++
	return true
}

// HasVisited checks if a URL has been visited.
func (m *Manager) HasVisited(url string) bool {
	return m.dedup.HasSeen(url)
}

// VisitedURLs returns the visited URLs in visit order.
func (m *Manager) VisitedURLs() []string {
	return m.dedup.GetAll()
}

// RecordPage records a page written to the output tree.
func (m *Manager) RecordPage(url, localPath string, links, size int) {
	m.record.Pages = append(m.record.Pages, PageRecord{
		URL:       url,
		LocalPath: localPath,
		Links:     links,
		Size:      size,
	})
	m.record.Stats.PagesWritten++
	m.record.Stats.BytesWritten += int64(size)
}

// RecordAsset records a downloaded asset.
func (m *Manager) RecordAsset(url, localPath string, size int) {
	if _, exists := m.record.Assets[url]; exists {
		return
	}
	m.record.Assets[url] = localPath
	m.record.Stats.AssetsDownloaded++
	m.record.Stats.BytesWritten += int64(size)
}

// RecordError records a non-fatal failure.
func (m *Manager) RecordError(url, operation string, err error) {
	if err == nil {
		return
	}
	m.record.Errors = append(m.record.Errors, ErrorRecord{
		URL:       url,
		Operation: operation,
		Type:      crawlerrors.GetErrorType(err).String(),
		Error:     err.Error(),
		Timestamp: m.clock(),
	})
	m.record.Stats.ErrorCount++
}

// GetStats returns a copy of the current statistics with the elapsed
// duration filled in.
func (m *Manager) GetStats() RunStats {
	stats := m.record.Stats
	if m.record.CompletedAt.IsZero() {
		stats.Duration = m.clock().Sub(m.record.StartedAt)
	}
	return stats
}

// Finish closes the run record with status.
func (m *Manager) Finish(status RunStatus) *RunRecord {
	m.record.Status = status
	m.record.CompletedAt = m.clock()
	m.record.Stats.Duration = m.record.CompletedAt.Sub(m.record.StartedAt)
	return m.record
}

// Record returns the current run record.
func (m *Manager) Record() *RunRecord {
	return m.record
}

// Save persists the run record.
func (m *Manager) Save() error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(m.record)
}

// Load returns the last persisted run record, or nil if there is none.
func (m *Manager) Load() (*RunRecord, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.Load()
}

// GetDeduplicator returns the visited set.
func (m *Manager) GetDeduplicator() *Deduplicator {
	return m.dedup
}
