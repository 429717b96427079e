// Package crawler archives a single website into a browsable static tree.
package crawler

import (
	"context"
	"time"

	"github.com/PentesterFlow/OpenMirror/internal/browser"
	"github.com/PentesterFlow/OpenMirror/internal/state"
)

// Renderer turns a page URL into its final markup and references.
type Renderer interface {
	Render(ctx context.Context, url string) (*browser.PageResult, error)
}

// Summary is the outcome of a mirroring run.
type Summary struct {
	Target           string          `json:"target"`
	OutputDir        string          `json:"output_dir"`
	Status           state.RunStatus `json:"status"`
	PagesVisited     int             `json:"pages_visited"`
	PagesWritten     int             `json:"pages_written"`
	AssetsDownloaded int             `json:"assets_downloaded"`
	Errors           int             `json:"errors"`
	Bytes            int64           `json:"bytes"`
	Duration         time.Duration   `json:"duration"`
}

func newSummary(record *state.RunRecord) *Summary {
	return &Summary{
		Target:           record.Target,
		OutputDir:        record.OutputDir,
		Status:           record.Status,
		PagesVisited:     record.Stats.PagesVisited,
		PagesWritten:     record.Stats.PagesWritten,
		AssetsDownloaded: record.Stats.AssetsDownloaded,
		Errors:           record.Stats.ErrorCount,
		Bytes:            record.Stats.BytesWritten,
		Duration:         record.Stats.Duration,
	}
}
