package storage

import (
	"encoding/json"
	"time"
)

// RepositoryStatus is the ingestion state of a repository.
type RepositoryStatus string

const (
	StatusPending    RepositoryStatus = "pending"
	StatusProcessing RepositoryStatus = "processing"
	StatusReady      RepositoryStatus = "ready"
	StatusError      RepositoryStatus = "error"
)

// Valid reports whether s is a known status.
func (s RepositoryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReady, StatusError:
		return true
	}
	return false
}

// Source is where a repository's files come from.
type Source string

const (
	SourceGitHub Source = "github"
	SourceLocal  Source = "local"
)

// Repository is an indexed codebase.
type Repository struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	FullName    string           `json:"full_name"`
	Owner       string           `json:"owner"`
	Source      Source           `json:"source"`
	URL         string           `json:"url,omitempty"`
	Path        string           `json:"path,omitempty"`
	Language    string           `json:"language,omitempty"`
	Description string           `json:"description,omitempty"`
	Status      RepositoryStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	FileCount   int              `json:"file_count"`

	// Summary is the analysis overview; Analysis holds the full document.
	Summary  string          `json:"summary,omitempty"`
	Analysis json.RawMessage `json:"analysis,omitempty"`

	LastAnalyzed *time.Time `json:"last_analyzed,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// File is a persisted record of one ingested file.
type File struct {
	ID           string    `json:"id"`
	RepositoryID string    `json:"repository_id"`
	Path         string    `json:"path"`
	Language     string    `json:"language,omitempty"`
	Size         int64     `json:"size"`
	Chunks       int       `json:"chunks"`
	CreatedAt    time.Time `json:"created_at"`
}

// Commit is a persisted commit with its optional summary.
type Commit struct {
	ID           string    `json:"id"`
	RepositoryID string    `json:"repository_id"`
	SHA          string    `json:"sha"`
	Message      string    `json:"message"`
	Author       string    `json:"author"`
	AuthorEmail  string    `json:"author_email,omitempty"`
	Date         time.Time `json:"date"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	Summary      string    `json:"ai_summary,omitempty"`
	Impact       string    `json:"impact,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Query is one answered question.
type Query struct {
	ID           string    `json:"id"`
	RepositoryID string    `json:"repository_id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	Sources      []string  `json:"sources"`
	Confidence   float64   `json:"confidence"`
	CreatedAt    time.Time `json:"created_at"`
}

// MeetingStatus mirrors RepositoryStatus for transcripts.
type MeetingStatus = RepositoryStatus

// Meeting is an ingested transcript.
type Meeting struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Source      string        `json:"source"`
	Transcript  string        `json:"raw_transcript"`
	Summary     string        `json:"summary,omitempty"`
	Status      MeetingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
}

// MeetingSegment is one blank-line separated part of a transcript.
type MeetingSegment struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meeting_id"`
	Order     int       `json:"order"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
