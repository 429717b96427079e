package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/PentesterFlow/OpenMirror/internal/state"
)

// TextWriter writes a human readable run summary.
type TextWriter struct {
	writer    io.Writer
	maxErrors int
}

// NewTextWriter creates a text writer listing at most maxErrors errors.
func NewTextWriter(w io.Writer, maxErrors int) *TextWriter {
	if maxErrors < 0 {
		maxErrors = 0
	}
	return &TextWriter{writer: w, maxErrors: maxErrors}
}

// WriteRecord writes the summary of record.
func (t *TextWriter) WriteRecord(record *state.RunRecord) error {
	var b strings.Builder
	stats := record.Stats

	fmt.Fprintf(&b, "Mirror %s: %s\n", record.Status, record.Target)
	fmt.Fprintf(&b, "  Output:      %s\n", record.OutputDir)
	fmt.Fprintf(&b, "  Started:     %s\n", humanize.Time(record.StartedAt))
	fmt.Fprintf(&b, "  Duration:    %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  Pages:       %s\n", humanize.Comma(int64(stats.PagesWritten)))
	fmt.Fprintf(&b, "  Assets:      %s\n", humanize.Comma(int64(stats.AssetsDownloaded)))
	fmt.Fprintf(&b, "  Written:     %s\n", humanize.Bytes(uint64(stats.BytesWritten)))
	fmt.Fprintf(&b, "  Errors:      %s\n", humanize.Comma(int64(stats.ErrorCount)))

	n := len(record.Errors)
	if n > t.maxErrors {
		n = t.maxErrors
	}
	for _, e := range record.Errors[:n] {
		fmt.Fprintf(&b, "    - [%s] %s %s: %s\n", e.Type, e.Operation, e.URL, e.Error)
	}
	if n < len(record.Errors) && n > 0 {
		fmt.Fprintf(&b, "    ... and %d more\n", len(record.Errors)-n)
	}

	_, err := io.WriteString(t.writer, b.String())
	return err
}
