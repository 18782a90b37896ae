// Package inmemory provides a map-backed storage.Driver for tests and
// ephemeral servers.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/reposcope/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards every map below
	mu sync.RWMutex

	repos    map[string]*storage.Repository
	files    map[string][]*storage.File
	commits  map[string]*storage.Commit
	queries  []*storage.Query
	meetings map[string]*storage.Meeting
	segments map[string][]*storage.MeetingSegment

	// seq orders entities created within the same clock tick
	seq   int64
	order map[string]int64
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		repos:    make(map[string]*storage.Repository),
		files:    make(map[string][]*storage.File),
		commits:  make(map[string]*storage.Commit),
		meetings: make(map[string]*storage.Meeting),
		segments: make(map[string][]*storage.MeetingSegment),
		order:    make(map[string]int64),
	}
}

func (d *Driver) stamp(id string) {
	d.seq++
	d.order[id] = d.seq
}

// newer reports whether entity a sorts before b in newest-first order.
func (d *Driver) newer(aID string, aTime time.Time, bID string, bTime time.Time) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return d.order[aID] > d.order[bID]
}

func (d *Driver) CreateRepository(_ context.Context, repo *storage.Repository) error {
	if repo == nil {
		return errors.New("cannot store nil repository")
	}
	repo.Prepare(time.Now())

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.repos[repo.ID]; ok {
		return errors.New("repository already exists: " + repo.ID)
	}
	c := *repo
	d.repos[repo.ID] = &c
	d.stamp(repo.ID)
	return nil
}

func (d *Driver) GetRepository(_ context.Context, id string) (*storage.Repository, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	repo, ok := d.repos[id]
	if !ok {
		return nil, storage.ErrNotFound{Kind: "repository", ID: id}
	}
	c := *repo
	return &c, nil
}

func (d *Driver) ListRepositories(_ context.Context) ([]*storage.Repository, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Repository, 0, len(d.repos))
	for _, r := range d.repos {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return d.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out, nil
}

func (d *Driver) UpdateRepository(_ context.Context, repo *storage.Repository) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.repos[repo.ID]; !ok {
		return storage.ErrNotFound{Kind: "repository", ID: repo.ID}
	}
	repo.UpdatedAt = time.Now()
	c := *repo
	d.repos[repo.ID] = &c
	return nil
}

func (d *Driver) DeleteRepository(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.repos[id]; !ok {
		return storage.ErrNotFound{Kind: "repository", ID: id}
	}
	delete(d.repos, id)
	delete(d.files, id)
	for cid, c := range d.commits {
		if c.RepositoryID == id {
			delete(d.commits, cid)
		}
	}
	kept := d.queries[:0]
	for _, q := range d.queries {
		if q.RepositoryID != id {
			kept = append(kept, q)
		}
	}
	d.queries = kept
	return nil
}

func (d *Driver) CreateFile(_ context.Context, file *storage.File) error {
	file.Prepare(time.Now())

	d.mu.Lock()
	defer d.mu.Unlock()

	c := *file
	d.files[file.RepositoryID] = append(d.files[file.RepositoryID], &c)
	return nil
}

func (d *Driver) UpdateFileChunks(_ context.Context, id string, chunks int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, files := range d.files {
		for _, f := range files {
			if f.ID == id {
				f.Chunks = chunks
				return nil
			}
		}
	}
	return storage.ErrNotFound{Kind: "file", ID: id}
}

func (d *Driver) ListFiles(_ context.Context, repositoryID string) ([]*storage.File, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.File, 0, len(d.files[repositoryID]))
	for _, f := range d.files[repositoryID] {
		c := *f
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (d *Driver) DeleteFiles(_ context.Context, repositoryID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.files[repositoryID])
	delete(d.files, repositoryID)
	return n, nil
}

func (d *Driver) UpsertCommit(_ context.Context, commit *storage.Commit) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.commits {
		if existing.RepositoryID == commit.RepositoryID && existing.SHA == commit.SHA {
			commit.ID = existing.ID
			commit.CreatedAt = existing.CreatedAt
			if commit.Summary == "" {
				commit.Summary = existing.Summary
				commit.Impact = existing.Impact
			}
			c := *commit
			d.commits[commit.ID] = &c
			return nil
		}
	}

	commit.Prepare(time.Now())
	c := *commit
	d.commits[commit.ID] = &c
	d.stamp(commit.ID)
	return nil
}

func (d *Driver) GetCommit(_ context.Context, id string) (*storage.Commit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.commits[id]
	if !ok {
		return nil, storage.ErrNotFound{Kind: "commit", ID: id}
	}
	cp := *c
	return &cp, nil
}

func (d *Driver) ListCommits(_ context.Context, repositoryID string) ([]*storage.Commit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []*storage.Commit{}
	for _, c := range d.commits {
		if c.RepositoryID == repositoryID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return d.newer(out[i].ID, out[i].Date, out[j].ID, out[j].Date)
	})
	return out, nil
}

func (d *Driver) UpdateCommitSummary(_ context.Context, id, summary, impact string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.commits[id]
	if !ok {
		return storage.ErrNotFound{Kind: "commit", ID: id}
	}
	c.Summary = summary
	c.Impact = impact
	return nil
}

func (d *Driver) CreateQuery(_ context.Context, q *storage.Query) error {
	q.Prepare(time.Now())

	d.mu.Lock()
	defer d.mu.Unlock()

	c := *q
	c.Sources = append([]string(nil), q.Sources...)
	d.queries = append(d.queries, &c)
	d.stamp(q.ID)
	return nil
}

func (d *Driver) ListQueries(_ context.Context, repositoryID string) ([]*storage.Query, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []*storage.Query{}
	for _, q := range d.queries {
		if repositoryID == "" || q.RepositoryID == repositoryID {
			c := *q
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return d.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out, nil
}

func (d *Driver) CreateMeeting(_ context.Context, m *storage.Meeting) error {
	m.Prepare(time.Now())

	d.mu.Lock()
	defer d.mu.Unlock()

	c := *m
	d.meetings[m.ID] = &c
	d.stamp(m.ID)
	return nil
}

func (d *Driver) GetMeeting(_ context.Context, id string) (*storage.Meeting, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.meetings[id]
	if !ok {
		return nil, storage.ErrNotFound{Kind: "meeting", ID: id}
	}
	c := *m
	return &c, nil
}

func (d *Driver) ListMeetings(_ context.Context) ([]*storage.Meeting, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Meeting, 0, len(d.meetings))
	for _, m := range d.meetings {
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return d.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out, nil
}

func (d *Driver) UpdateMeeting(_ context.Context, m *storage.Meeting) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.meetings[m.ID]; !ok {
		return storage.ErrNotFound{Kind: "meeting", ID: m.ID}
	}
	c := *m
	d.meetings[m.ID] = &c
	return nil
}

func (d *Driver) CreateMeetingSegments(_ context.Context, segments []*storage.MeetingSegment) error {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range segments {
		s.Prepare(now)
		c := *s
		d.segments[s.MeetingID] = append(d.segments[s.MeetingID], &c)
	}
	return nil
}

func (d *Driver) ListMeetingSegments(_ context.Context, meetingID string) ([]*storage.MeetingSegment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.MeetingSegment, 0, len(d.segments[meetingID]))
	for _, s := range d.segments[meetingID] {
		c := *s
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
