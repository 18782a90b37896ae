// Package storage defines the durable entity store for repositories, files,
// commits, queries and meetings.
package storage

import "context"

// Driver persists reposcope entities. Implementations must be safe for
// concurrent use. Lookups of a missing entity return ErrNotFound.
type Driver interface {
	CreateRepository(ctx context.Context, repo *Repository) error
	GetRepository(ctx context.Context, id string) (*Repository, error)

	// ListRepositories returns every repository, newest first.
	ListRepositories(ctx context.Context) ([]*Repository, error)
	UpdateRepository(ctx context.Context, repo *Repository) error

	// DeleteRepository removes the repository with its files, commits and
	// queries.
	DeleteRepository(ctx context.Context, id string) error

	CreateFile(ctx context.Context, file *File) error

	// UpdateFileChunks records how many chunks of the file were indexed.
	UpdateFileChunks(ctx context.Context, id string, chunks int) error
	ListFiles(ctx context.Context, repositoryID string) ([]*File, error)
	DeleteFiles(ctx context.Context, repositoryID string) (int, error)

	// UpsertCommit inserts a commit or refreshes an existing one with the
	// same repository and SHA, keeping its ID and summary.
	UpsertCommit(ctx context.Context, commit *Commit) error
	GetCommit(ctx context.Context, id string) (*Commit, error)

	// ListCommits returns the repository's commits, newest first.
	ListCommits(ctx context.Context, repositoryID string) ([]*Commit, error)
	UpdateCommitSummary(ctx context.Context, id, summary, impact string) error

	CreateQuery(ctx context.Context, q *Query) error

	// ListQueries returns queries newest first. An empty repositoryID lists
	// all queries.
	ListQueries(ctx context.Context, repositoryID string) ([]*Query, error)

	CreateMeeting(ctx context.Context, m *Meeting) error
	GetMeeting(ctx context.Context, id string) (*Meeting, error)

	// ListMeetings returns every meeting, newest first.
	ListMeetings(ctx context.Context) ([]*Meeting, error)
	UpdateMeeting(ctx context.Context, m *Meeting) error
	CreateMeetingSegments(ctx context.Context, segments []*MeetingSegment) error
	ListMeetingSegments(ctx context.Context, meetingID string) ([]*MeetingSegment, error)

	// Close closes the store and releases any resources.
	Close() error
}
