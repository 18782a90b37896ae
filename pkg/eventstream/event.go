package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRepositoryStatus is emitted on every repository status transition.
	EventTypeRepositoryStatus = "reposcope.repository.status"
)

// RepositoryStatusEvent is a transport-neutral event payload for a repository
// status transition.
type RepositoryStatusEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Repository    RepositoryRef `json:"repository"`
	Status        string        `json:"status"`
	FileCount     int           `json:"file_count"`
	Error         string        `json:"error,omitempty"`
}

// RepositoryRef identifies the repository the event is about.
type RepositoryRef struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

// NewRepositoryStatusEvent builds a v1 event with a fresh id and timestamp.
func NewRepositoryStatusEvent(id, fullName, status string, fileCount int, errMsg string) *RepositoryStatusEvent {
	return &RepositoryStatusEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeRepositoryStatus,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Repository:    RepositoryRef{ID: id, FullName: fullName},
		Status:        status,
		FileCount:     fileCount,
		Error:         errMsg,
	}
}
