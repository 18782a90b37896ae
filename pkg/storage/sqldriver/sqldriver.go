// Package sqldriver implements storage.Driver over database/sql with queries
// built by squirrel. The sqlite and postgres packages supply the connection,
// the placeholder format and the schema.
package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/papercomputeco/reposcope/pkg/storage"
)

const (
	tableRepositories = "repositories"
	tableFiles        = "repository_files"
	tableCommits      = "commits"
	tableQueries      = "queries"
	tableMeetings     = "meetings"
	tableSegments     = "meeting_segments"
)

var (
	repositoryColumns = []string{
		"id", "name", "full_name", "owner", "source", "url", "path", "language",
		"description", "status", "error", "file_count", "summary", "analysis",
		"last_analyzed", "created_at", "updated_at",
	}
	fileColumns    = []string{"id", "repository_id", "path", "language", "size", "chunks", "created_at"}
	commitColumns  = []string{"id", "repository_id", "sha", "message", "author", "author_email", "date", "additions", "deletions", "ai_summary", "impact", "created_at"}
	queryColumns   = []string{"id", "repository_id", "question", "answer", "sources", "confidence", "created_at"}
	meetingColumns = []string{"id", "title", "source", "raw_transcript", "summary", "status", "created_at", "processed_at"}
	segmentColumns = []string{"id", "meeting_id", "order_index", "content", "created_at"}
)

// Driver is the shared SQL implementation of storage.Driver.
type Driver struct {
	DB *sql.DB
	sb sq.StatementBuilderType
}

// New wraps db, creating the schema with the given DDL statements.
func New(ctx context.Context, db *sql.DB, placeholder sq.PlaceholderFormat, schema []string) (*Driver, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Driver{
		DB: db,
		sb: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func exec(ctx context.Context, db execer, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building query: %w", err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *Driver) queryRows(ctx context.Context, b sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return d.DB.QueryContext(ctx, query, args...)
}

func (d *Driver) queryRow(ctx context.Context, b sq.SelectBuilder) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return d.DB.QueryRowContext(ctx, query, args...), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Repositories

func repositoryValues(r *storage.Repository) []any {
	var analysis sql.NullString
	if len(r.Analysis) > 0 {
		analysis = sql.NullString{String: string(r.Analysis), Valid: true}
	}
	return []any{
		r.ID, r.Name, r.FullName, r.Owner, string(r.Source), r.URL, r.Path, r.Language,
		r.Description, string(r.Status), r.Error, r.FileCount, r.Summary, analysis,
		nullTime(r.LastAnalyzed), r.CreatedAt, r.UpdatedAt,
	}
}

func scanRepository(s scanner) (*storage.Repository, error) {
	var (
		r            storage.Repository
		source       string
		status       string
		analysis     sql.NullString
		lastAnalyzed sql.NullTime
	)
	err := s.Scan(&r.ID, &r.Name, &r.FullName, &r.Owner, &source, &r.URL, &r.Path, &r.Language,
		&r.Description, &status, &r.Error, &r.FileCount, &r.Summary, &analysis,
		&lastAnalyzed, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Source = storage.Source(source)
	r.Status = storage.RepositoryStatus(status)
	if analysis.Valid {
		r.Analysis = json.RawMessage(analysis.String)
	}
	r.LastAnalyzed = timePtr(lastAnalyzed)
	return &r, nil
}

func (d *Driver) CreateRepository(ctx context.Context, repo *storage.Repository) error {
	if repo == nil {
		return errors.New("cannot store nil repository")
	}
	repo.Prepare(time.Now().UTC())

	_, err := exec(ctx, d.DB, d.sb.Insert(tableRepositories).
		Columns(repositoryColumns...).
		Values(repositoryValues(repo)...))
	if err != nil {
		return fmt.Errorf("inserting repository: %w", err)
	}
	return nil
}

func (d *Driver) GetRepository(ctx context.Context, id string) (*storage.Repository, error) {
	row, err := d.queryRow(ctx, d.sb.Select(repositoryColumns...).
		From(tableRepositories).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}

	repo, err := scanRepository(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Kind: "repository", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning repository: %w", err)
	}
	return repo, nil
}

func (d *Driver) ListRepositories(ctx context.Context) ([]*storage.Repository, error) {
	rows, err := d.queryRows(ctx, d.sb.Select(repositoryColumns...).
		From(tableRepositories).
		OrderBy("created_at DESC", "id"))
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	defer rows.Close()

	out := []*storage.Repository{}
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning repository: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *Driver) UpdateRepository(ctx context.Context, repo *storage.Repository) error {
	repo.UpdatedAt = time.Now().UTC()
	values := repositoryValues(repo)

	b := d.sb.Update(tableRepositories).Where(sq.Eq{"id": repo.ID})
	// skip id and created_at
	for i, col := range repositoryColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		b = b.Set(col, values[i])
	}

	n, err := exec(ctx, d.DB, b)
	if err != nil {
		return fmt.Errorf("updating repository: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound{Kind: "repository", ID: repo.ID}
	}
	return nil
}

func (d *Driver) DeleteRepository(ctx context.Context, id string) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{tableFiles, tableCommits, tableQueries} {
		if _, err := exec(ctx, tx, d.sb.Delete(table).Where(sq.Eq{"repository_id": id})); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}

	n, err := exec(ctx, tx, d.sb.Delete(tableRepositories).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("deleting repository: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound{Kind: "repository", ID: id}
	}

	return tx.Commit()
}

// Files

func (d *Driver) CreateFile(ctx context.Context, file *storage.File) error {
	file.Prepare(time.Now().UTC())

	_, err := exec(ctx, d.DB, d.sb.Insert(tableFiles).
		Columns(fileColumns...).
		Values(file.ID, file.RepositoryID, file.Path, file.Language, file.Size, file.Chunks, file.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting file: %w", err)
	}
	return nil
}

func (d *Driver) UpdateFileChunks(ctx context.Context, id string, chunks int) error {
	n, err := exec(ctx, d.DB, d.sb.Update(tableFiles).
		Set("chunks", chunks).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("updating file chunks: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound{Kind: "file", ID: id}
	}
	return nil
}

func (d *Driver) ListFiles(ctx context.Context, repositoryID string) ([]*storage.File, error) {
	rows, err := d.queryRows(ctx, d.sb.Select(fileColumns...).
		From(tableFiles).
		Where(sq.Eq{"repository_id": repositoryID}).
		OrderBy("path"))
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	out := []*storage.File{}
	for rows.Next() {
		var f storage.File
		if err := rows.Scan(&f.ID, &f.RepositoryID, &f.Path, &f.Language, &f.Size, &f.Chunks, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (d *Driver) DeleteFiles(ctx context.Context, repositoryID string) (int, error) {
	n, err := exec(ctx, d.DB, d.sb.Delete(tableFiles).Where(sq.Eq{"repository_id": repositoryID}))
	if err != nil {
		return 0, fmt.Errorf("deleting files: %w", err)
	}
	return int(n), nil
}

// Commits

func scanCommit(s scanner) (*storage.Commit, error) {
	var c storage.Commit
	err := s.Scan(&c.ID, &c.RepositoryID, &c.SHA, &c.Message, &c.Author, &c.AuthorEmail,
		&c.Date, &c.Additions, &c.Deletions, &c.Summary, &c.Impact, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *Driver) UpsertCommit(ctx context.Context, commit *storage.Commit) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := d.sb.Select("id", "ai_summary", "impact", "created_at").
		From(tableCommits).
		Where(sq.Eq{"repository_id": commit.RepositoryID, "sha": commit.SHA}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}

	var (
		id, summary, impact string
		created             time.Time
	)
	err = tx.QueryRowContext(ctx, query, args...).Scan(&id, &summary, &impact, &created)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		commit.Prepare(time.Now().UTC())
		_, err = exec(ctx, tx, d.sb.Insert(tableCommits).
			Columns(commitColumns...).
			Values(commit.ID, commit.RepositoryID, commit.SHA, commit.Message, commit.Author, commit.AuthorEmail,
				commit.Date, commit.Additions, commit.Deletions, commit.Summary, commit.Impact, commit.CreatedAt))
		if err != nil {
			return fmt.Errorf("inserting commit: %w", err)
		}
	case err != nil:
		return fmt.Errorf("looking up commit: %w", err)
	default:
		commit.ID = id
		commit.CreatedAt = created
		if commit.Summary == "" {
			commit.Summary = summary
			commit.Impact = impact
		}
		_, err = exec(ctx, tx, d.sb.Update(tableCommits).
			Set("message", commit.Message).
			Set("author", commit.Author).
			Set("author_email", commit.AuthorEmail).
			Set("date", commit.Date).
			Set("additions", commit.Additions).
			Set("deletions", commit.Deletions).
			Set("ai_summary", commit.Summary).
			Set("impact", commit.Impact).
			Where(sq.Eq{"id": id}))
		if err != nil {
			return fmt.Errorf("updating commit: %w", err)
		}
	}

	return tx.Commit()
}

func (d *Driver) GetCommit(ctx context.Context, id string) (*storage.Commit, error) {
	row, err := d.queryRow(ctx, d.sb.Select(commitColumns...).From(tableCommits).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}

	c, err := scanCommit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Kind: "commit", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning commit: %w", err)
	}
	return c, nil
}

func (d *Driver) ListCommits(ctx context.Context, repositoryID string) ([]*storage.Commit, error) {
	rows, err := d.queryRows(ctx, d.sb.Select(commitColumns...).
		From(tableCommits).
		Where(sq.Eq{"repository_id": repositoryID}).
		OrderBy("date DESC", "created_at DESC"))
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	defer rows.Close()

	out := []*storage.Commit{}
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning commit: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *Driver) UpdateCommitSummary(ctx context.Context, id, summary, impact string) error {
	n, err := exec(ctx, d.DB, d.sb.Update(tableCommits).
		Set("ai_summary", summary).
		Set("impact", impact).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("updating commit summary: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound{Kind: "commit", ID: id}
	}
	return nil
}

// Queries

func (d *Driver) CreateQuery(ctx context.Context, q *storage.Query) error {
	q.Prepare(time.Now().UTC())

	sources, err := json.Marshal(q.Sources)
	if err != nil {
		return fmt.Errorf("encoding sources: %w", err)
	}

	_, err = exec(ctx, d.DB, d.sb.Insert(tableQueries).
		Columns(queryColumns...).
		Values(q.ID, q.RepositoryID, q.Question, q.Answer, string(sources), q.Confidence, q.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting query: %w", err)
	}
	return nil
}

func (d *Driver) ListQueries(ctx context.Context, repositoryID string) ([]*storage.Query, error) {
	b := d.sb.Select(queryColumns...).From(tableQueries).OrderBy("created_at DESC", "id")
	if repositoryID != "" {
		b = b.Where(sq.Eq{"repository_id": repositoryID})
	}

	rows, err := d.queryRows(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}
	defer rows.Close()

	out := []*storage.Query{}
	for rows.Next() {
		var (
			q       storage.Query
			sources string
		)
		if err := rows.Scan(&q.ID, &q.RepositoryID, &q.Question, &q.Answer, &sources, &q.Confidence, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning query: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &q.Sources); err != nil {
			return nil, fmt.Errorf("decoding sources: %w", err)
		}
		out = append(out, &q)
	}
	return out, rows.Err()
}

// Meetings

func scanMeeting(s scanner) (*storage.Meeting, error) {
	var (
		m         storage.Meeting
		status    string
		processed sql.NullTime
	)
	err := s.Scan(&m.ID, &m.Title, &m.Source, &m.Transcript, &m.Summary, &status, &m.CreatedAt, &processed)
	if err != nil {
		return nil, err
	}
	m.Status = storage.MeetingStatus(status)
	m.ProcessedAt = timePtr(processed)
	return &m, nil
}

func (d *Driver) CreateMeeting(ctx context.Context, m *storage.Meeting) error {
	m.Prepare(time.Now().UTC())

	_, err := exec(ctx, d.DB, d.sb.Insert(tableMeetings).
		Columns(meetingColumns...).
		Values(m.ID, m.Title, m.Source, m.Transcript, m.Summary, string(m.Status), m.CreatedAt, nullTime(m.ProcessedAt)))
	if err != nil {
		return fmt.Errorf("inserting meeting: %w", err)
	}
	return nil
}

func (d *Driver) GetMeeting(ctx context.Context, id string) (*storage.Meeting, error) {
	row, err := d.queryRow(ctx, d.sb.Select(meetingColumns...).From(tableMeetings).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}

	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Kind: "meeting", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning meeting: %w", err)
	}
	return m, nil
}

func (d *Driver) ListMeetings(ctx context.Context) ([]*storage.Meeting, error) {
	rows, err := d.queryRows(ctx, d.sb.Select(meetingColumns...).From(tableMeetings).OrderBy("created_at DESC", "id"))
	if err != nil {
		return nil, fmt.Errorf("listing meetings: %w", err)
	}
	defer rows.Close()

	out := []*storage.Meeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning meeting: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *Driver) UpdateMeeting(ctx context.Context, m *storage.Meeting) error {
	n, err := exec(ctx, d.DB, d.sb.Update(tableMeetings).
		Set("title", m.Title).
		Set("source", m.Source).
		Set("raw_transcript", m.Transcript).
		Set("summary", m.Summary).
		Set("status", string(m.Status)).
		Set("processed_at", nullTime(m.ProcessedAt)).
		Where(sq.Eq{"id": m.ID}))
	if err != nil {
		return fmt.Errorf("updating meeting: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound{Kind: "meeting", ID: m.ID}
	}
	return nil
}

func (d *Driver) CreateMeetingSegments(ctx context.Context, segments []*storage.MeetingSegment) error {
	if len(segments) == 0 {
		return nil
	}

	now := time.Now().UTC()
	b := d.sb.Insert(tableSegments).Columns(segmentColumns...)
	for _, s := range segments {
		s.Prepare(now)
		b = b.Values(s.ID, s.MeetingID, s.Order, s.Content, s.CreatedAt)
	}

	if _, err := exec(ctx, d.DB, b); err != nil {
		return fmt.Errorf("inserting meeting segments: %w", err)
	}
	return nil
}

func (d *Driver) ListMeetingSegments(ctx context.Context, meetingID string) ([]*storage.MeetingSegment, error) {
	rows, err := d.queryRows(ctx, d.sb.Select(segmentColumns...).
		From(tableSegments).
		Where(sq.Eq{"meeting_id": meetingID}).
		OrderBy("order_index"))
	if err != nil {
		return nil, fmt.Errorf("listing meeting segments: %w", err)
	}
	defer rows.Close()

	out := []*storage.MeetingSegment{}
	for rows.Next() {
		var s storage.MeetingSegment
		if err := rows.Scan(&s.ID, &s.MeetingID, &s.Order, &s.Content, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning meeting segment: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
