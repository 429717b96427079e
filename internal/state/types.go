package state

import (
	"time"
)

// RunStatus describes how a mirroring run ended.
type RunStatus string

const (
	StatusRunning     RunStatus = "running"
	StatusCompleted   RunStatus = "completed"
	StatusInterrupted RunStatus = "interrupted"
	StatusFailed      RunStatus = "failed"
)

// RunStats contains counters for a mirroring run.
type RunStats struct {
	PagesVisited     int           `json:"pages_visited"`
	PagesWritten     int           `json:"pages_written"`
	AssetsDownloaded int           `json:"assets_downloaded"`
	ErrorCount       int           `json:"error_count"`
	BytesWritten     int64         `json:"bytes_written"`
	Duration         time.Duration `json:"duration"`
}

// PageRecord is a page written to the output tree.
type PageRecord struct {
	URL       string `json:"url"`
	LocalPath string `json:"local_path"`
	Links     int    `json:"links"`
	Size      int    `json:"size"`
}

// ErrorRecord is a non-fatal failure recorded during the run.
type ErrorRecord struct {
	URL       string    `json:"url"`
	Operation string    `json:"operation"`
	Type      string    `json:"type"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// RunRecord is the persisted summary of one mirroring run.
type RunRecord struct {
	Target      string            `json:"target"`
	Domain      string            `json:"domain"`
	OutputDir   string            `json:"output_dir"`
	Status      RunStatus         `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at,omitempty"`
	Stats       RunStats          `json:"stats"`
	Pages       []PageRecord      `json:"pages"`
	Assets      map[string]string `json:"assets"`
	Errors      []ErrorRecord     `json:"errors"`
}
