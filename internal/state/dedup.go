package state

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// Deduplicator is the visited set: a Bloom filter in front of an exact set.
// Membership is write-once. It is owned by the single crawl loop and takes
// no locks.
type Deduplicator struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
	order  []string
	fpRate float64
}

// NewDeduplicator creates a new deduplicator.
func NewDeduplicator(estimatedItems int) *Deduplicator {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}

	fpRate := 0.001

	return &Deduplicator{
		filter: bloom.NewWithEstimates(uint(estimatedItems), fpRate),
		exact:  make(map[string]struct{}),
		order:  make([]string, 0),
		fpRate: fpRate,
	}
}

// Add adds a URL and reports whether it was new.
func (d *Deduplicator) Add(url string) bool {
	if _, exists := d.exact[url]; exists {
		return false
	}
	d.filter.AddString(url)
	d.exact[url] = struct{}{}
	d.order = append(d.order, url)
	return true
}

// HasSeen checks if a URL has been added.
func (d *Deduplicator) HasSeen(url string) bool {
	if !d.filter.TestString(url) {
		return false
	}
	// The filter may report false positives.
	_, exists := d.exact[url]
	return exists
}

// Count returns the number of unique URLs seen.
func (d *Deduplicator) Count() int {
	return len(d.order)
}

// GetAll returns all URLs in insertion order.
func (d *Deduplicator) GetAll() []string {
	urls := make([]string, len(d.order))
	copy(urls, d.order)
	return urls
}

// Reset empties the deduplicator.
func (d *Deduplicator) Reset() {
	d.filter.ClearAll()
	d.exact = make(map[string]struct{})
	d.order = make([]string, 0)
}

// FalsePositiveRate returns the configured filter false positive rate.
func (d *Deduplicator) FalsePositiveRate() float64 {
	return d.fpRate
}
