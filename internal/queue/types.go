package queue

import "time"

// QueueItem is a canonical page URL waiting to be crawled.
type QueueItem struct {
	URL       string
	Depth     int
	ParentURL string
	Timestamp time.Time
}
