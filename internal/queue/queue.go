// Package queue holds the crawl frontier: canonical page URLs that have been
// discovered but not yet visited.
package queue

import "errors"

// ErrQueueEmpty is returned by Pop when nothing is pending.
var ErrQueueEmpty = errors.New("queue is empty")

// Frontier is a FIFO queue with set semantics. A URL is pending at most once
// and popping it frees it to be pushed again. FIFO order makes the crawl
// breadth-first. Frontier is not safe for concurrent use; a single crawl loop
// owns it.
type Frontier struct {
	items  []*QueueItem
	head   int
	urlSet map[string]struct{}
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		items:  make([]*QueueItem, 0),
		urlSet: make(map[string]struct{}),
	}
}

// Push adds item unless its URL is already pending. It reports whether the
// item was added.
func (f *Frontier) Push(item *QueueItem) bool {
	if _, exists := f.urlSet[item.URL]; exists {
		return false
	}

	f.urlSet[item.URL] = struct{}{}
	f.items = append(f.items, item)
	return true
}

// Pop removes and returns the oldest pending item.
func (f *Frontier) Pop() (*QueueItem, error) {
	if f.head >= len(f.items) {
		return nil, ErrQueueEmpty
	}

	item := f.items[f.head]
	f.items[f.head] = nil
	f.head++
	delete(f.urlSet, item.URL)

	// Reclaim the consumed prefix once it dominates the backing array.
	if f.head > 1024 && f.head*2 > len(f.items) {
		f.items = append([]*QueueItem(nil), f.items[f.head:]...)
		f.head = 0
	}

	return item, nil
}

// Len returns the number of pending items.
func (f *Frontier) Len() int {
	return len(f.items) - f.head
}

// IsEmpty returns true if nothing is pending.
func (f *Frontier) IsEmpty() bool {
	return f.Len() == 0
}

// Contains checks if a URL is pending.
func (f *Frontier) Contains(url string) bool {
	_, exists := f.urlSet[url]
	return exists
}

// URLs returns the pending URLs in pop order.
func (f *Frontier) URLs() []string {
	urls := make([]string, 0, f.Len())
	for _, item := range f.items[f.head:] {
		urls = append(urls, item.URL)
	}
	return urls
}

// Clear removes all pending items.
func (f *Frontier) Clear() {
	f.items = make([]*QueueItem, 0)
	f.head = 0
	f.urlSet = make(map[string]struct{})
}
