package storage

import (
	"time"

	"github.com/google/uuid"
)

// Prepare fills the id and timestamps of a new repository.
func (r *Repository) Prepare(now time.Time) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

// Prepare fills the id and timestamp of a new file record.
func (f *File) Prepare(now time.Time) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
}

// Prepare fills the id and timestamp of a new commit.
func (c *Commit) Prepare(now time.Time) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
}

// Prepare fills the id and timestamp of a new query.
func (q *Query) Prepare(now time.Time) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Sources == nil {
		q.Sources = []string{}
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
}

// Prepare fills the id, status and timestamp of a new meeting.
func (m *Meeting) Prepare(now time.Time) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = StatusPending
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
}

// Prepare fills the id and timestamp of a new segment.
func (s *MeetingSegment) Prepare(now time.Time) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
}
