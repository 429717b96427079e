package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/PentesterFlow/OpenMirror/internal/state"
)

// JSONWriter writes run reports as a single JSON document.
type JSONWriter struct {
	writer   io.Writer
	pretty   bool
	detailed bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty, detailed bool) *JSONWriter {
	return &JSONWriter{writer: w, pretty: pretty, detailed: detailed}
}

// Report is the JSON form of a run. Pages and Assets are only present in
// detailed output.
type Report struct {
	Target      string              `json:"target"`
	Domain      string              `json:"domain"`
	OutputDir   string              `json:"output_dir"`
	Status      state.RunStatus     `json:"status"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at"`
	Duration    string              `json:"duration"`
	Stats       state.RunStats      `json:"stats"`
	Errors      []state.ErrorRecord `json:"errors,omitempty"`
	Pages       []state.PageRecord  `json:"pages,omitempty"`
	Assets      map[string]string   `json:"assets,omitempty"`
}

// NewReport builds a Report from record.
func NewReport(record *state.RunRecord, detailed bool) *Report {
	r := &Report{
		Target:      record.Target,
		Domain:      record.Domain,
		OutputDir:   record.OutputDir,
		Status:      record.Status,
		StartedAt:   record.StartedAt,
		CompletedAt: record.CompletedAt,
		Duration:    record.Stats.Duration.Round(time.Millisecond).String(),
		Stats:       record.Stats,
		Errors:      record.Errors,
	}
	if detailed {
		r.Pages = record.Pages
		r.Assets = record.Assets
	}
	return r
}

// WriteRecord writes the report followed by a newline.
func (j *JSONWriter) WriteRecord(record *state.RunRecord) error {
	report := NewReport(record, j.detailed)

	var data []byte
	var err error

	if j.pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return err
	}

	if _, err := j.writer.Write(data); err != nil {
		return err
	}
	_, err = j.writer.Write([]byte("\n"))
	return err
}
