package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func newTestDisplay(buf *bytes.Buffer) *Display {
	d := New(buf)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	d.clock = func() time.Time { return now }
	return d
}

// =============================================================================
// Display Tests
// =============================================================================

func TestDisplay_UpdateBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDisplay(&buf)

	d.Update(Snapshot{Pages: 3})

	if buf.Len() != 0 {
		t.Errorf("Update() before Start wrote %q", buf.String())
	}
	if d.Last().Pages != 3 {
		t.Errorf("Last().Pages = %d, want 3", d.Last().Pages)
	}
}

func TestDisplay_Update(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDisplay(&buf)
	d.Start("https://example.com/")

	d.Update(Snapshot{Pages: 2, Queued: 5, Assets: 7, Errors: 1, Bytes: 2048})

	out := buf.String()
	for _, want := range []string{"Pages: 2", "Queue: 5", "Assets: 7", "Errors: 1", "2.0 kB", "0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestDisplay_ClearsLongerLine(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDisplay(&buf)
	d.Start("https://example.com/")

	d.Update(Snapshot{Pages: 1000, Queued: 1000, Bytes: 1 << 30})
	first := buf.Len()
	d.Update(Snapshot{Pages: 1})

	if !strings.Contains(buf.String()[first:], "   ") {
		t.Error("shorter line should be preceded by blanking")
	}
}

func TestDisplay_Stop(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDisplay(&buf)

	d.Stop()
	if buf.Len() != 0 {
		t.Error("Stop() before Start should not write")
	}

	d.Start("https://example.com/")
	d.Stop()
	d.Stop()
	if buf.String() != "\n" {
		t.Errorf("Stop() wrote %q, want a single newline", buf.String())
	}

	d.Update(Snapshot{Pages: 1})
	if buf.String() != "\n" {
		t.Error("Update() after Stop should not write")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{1500 * time.Millisecond, "2s"},
		{65 * time.Second, "1m05s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h02m03s"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
