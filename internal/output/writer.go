// Package output reports the result of a mirroring run.
package output

import (
	"io"

	"github.com/PentesterFlow/OpenMirror/internal/state"
)

// Writer defines the interface for run report writers.
type Writer interface {
	// WriteRecord writes the report for a finished run.
	WriteRecord(record *state.RunRecord) error
}

// Config holds output configuration.
type Config struct {
	Format string // "text" or "json"
	Pretty bool
	// Detailed includes per-page and per-asset entries in JSON output.
	Detailed bool
	// MaxErrors caps the errors listed in text output. Zero lists none.
	MaxErrors int
}

// NewWriter creates a writer for config.Format. Unknown formats fall back
// to text.
func NewWriter(w io.Writer, config Config) Writer {
	switch config.Format {
	case "json":
		return NewJSONWriter(w, config.Pretty, config.Detailed)
	default:
		return NewTextWriter(w, config.MaxErrors)
	}
}
