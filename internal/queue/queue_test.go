package queue

import (
	"fmt"
	"reflect"
	"testing"
)

// =============================================================================
// Frontier Tests
// =============================================================================

func TestFrontier_FIFO(t *testing.T) {
	f := NewFrontier()

	urls := []string{
		"https://example.com/",
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}
	for _, u := range urls {
		if !f.Push(&QueueItem{URL: u}) {
			t.Fatalf("Push(%s) = false", u)
		}
	}

	if f.Len() != len(urls) {
		t.Errorf("Len() = %d, want %d", f.Len(), len(urls))
	}

	for _, want := range urls {
		item, err := f.Pop()
		if err != nil {
			t.Fatalf("Pop() error = %v", err)
		}
		if item.URL != want {
			t.Errorf("Pop() = %s, want %s", item.URL, want)
		}
	}

	if !f.IsEmpty() {
		t.Error("frontier should be empty")
	}
	if _, err := f.Pop(); err != ErrQueueEmpty {
		t.Errorf("Pop() on empty error = %v, want ErrQueueEmpty", err)
	}
}

func TestFrontier_SetSemantics(t *testing.T) {
	f := NewFrontier()

	if !f.Push(&QueueItem{URL: "https://example.com/about"}) {
		t.Fatal("first Push should add")
	}
	if f.Push(&QueueItem{URL: "https://example.com/about", Depth: 3}) {
		t.Error("duplicate Push should be ignored")
	}
	if f.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.Len())
	}
	if !f.Contains("https://example.com/about") {
		t.Error("Contains() = false for pending URL")
	}

	item, _ := f.Pop()
	if item.Depth != 0 {
		t.Error("the first pushed item should win")
	}
	if f.Contains(item.URL) {
		t.Error("popped URL should no longer be pending")
	}
	if !f.Push(&QueueItem{URL: item.URL}) {
		t.Error("popped URL may be pushed again; visited filtering is the caller's job")
	}
}

func TestFrontier_InterleavedPushPop(t *testing.T) {
	f := NewFrontier()
	f.Push(&QueueItem{URL: "/"})

	var order []string
	children := map[string][]string{
		"/":  {"/a", "/b"},
		"/a": {"/a1", "/b"},
		"/b": {"/b1"},
	}

	for !f.IsEmpty() {
		item, err := f.Pop()
		if err != nil {
			t.Fatal(err)
		}
		order = append(order, item.URL)
		for _, c := range children[item.URL] {
			f.Push(&QueueItem{URL: c, Depth: item.Depth + 1})
		}
	}

	// "/b" is pushed twice while pending, so it is popped once here.
	want := []string{"/", "/a", "/b", "/a1", "/b1"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestFrontier_Compaction(t *testing.T) {
	f := NewFrontier()
	for i := 0; i < 5000; i++ {
		f.Push(&QueueItem{URL: fmt.Sprintf("https://example.com/%d", i)})
	}
	for i := 0; i < 4000; i++ {
		item, err := f.Pop()
		if err != nil {
			t.Fatal(err)
		}
		if want := fmt.Sprintf("https://example.com/%d", i); item.URL != want {
			t.Fatalf("Pop() = %s, want %s", item.URL, want)
		}
	}

	if f.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", f.Len())
	}
	urls := f.URLs()
	if len(urls) != 1000 || urls[0] != "https://example.com/4000" {
		t.Errorf("URLs() head = %v", urls[:1])
	}
}

func TestFrontier_Clear(t *testing.T) {
	f := NewFrontier()
	f.Push(&QueueItem{URL: "a"})
	f.Push(&QueueItem{URL: "b"})
	f.Clear()

	if !f.IsEmpty() || f.Contains("a") {
		t.Error("Clear() should drop everything")
	}
}
