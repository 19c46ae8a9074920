package ingest

// EventType names a progress event.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventWarning  EventType = "warning"
	EventComplete EventType = "complete"
)

// progressEvery controls how often a progress event is emitted while files
// are processed. The first file always reports.
const progressEvery = 5

// Event reports the state of a reindex run.
type Event struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	RunID      string    `json:"run_id"`

	Total   int    `json:"total,omitempty"`
	Current int    `json:"current,omitempty"`
	Message string `json:"message,omitempty"`

	// Set on complete.
	TotalProcessed int `json:"total_processed,omitempty"`
	FilesProcessed int `json:"files_processed,omitempty"`
}

// EventCallback receives progress events. It is called synchronously from the
// ingesting goroutine and must not block.
type EventCallback func(Event)
