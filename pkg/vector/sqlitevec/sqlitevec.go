// Package sqlitevec stores chunk embeddings in SQLite through the sqlite-vec
// extension.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	sq "github.com/Masterminds/squirrel"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/reposcope/pkg/vector"
)

const (
	documentsTable  = "vec_documents"
	embeddingsTable = "vec_embeddings"
)

// SQLiteVecDriver implements vector.Driver. Chunk rows live in vec_documents
// and their embeddings in a vec0 table under the same rowid, so rowid order
// is insertion order.
type SQLiteVecDriver struct {
	db     *sql.DB
	logger *slog.Logger
}

type Config struct {
	// DBPath is the database file, or ":memory:".
	DBPath string

	// Dimensions must match the configured embedder.
	Dimensions uint
}

func NewSQLiteVecDriver(c Config, logger *slog.Logger) (*SQLiteVecDriver, error) {
	switch {
	case c.DBPath == "":
		return nil, errors.New("database path is required")
	case c.Dimensions == 0:
		return nil, errors.New("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	if err := migrate(db, c.Dimensions); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", version,
	)
	return &SQLiteVecDriver{db: db, logger: logger}, nil
}

func migrate(db *sql.DB, dimensions uint) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + documentsTable + ` (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			start_line INTEGER NOT NULL DEFAULT 0,
			end_line INTEGER NOT NULL DEFAULT 0
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d])`, embeddingsTable, dimensions),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating vector tables: %w", err)
		}
	}
	return nil
}

// Insert upserts docs by ID. A replaced document keeps its rowid and with it
// its position in tie order.
func (d *SQLiteVecDriver) Insert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if err := upsert(ctx, tx, doc); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added documents to sqlite-vec", "count", len(docs))
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, doc vector.Document) error {
	blob, err := sqlite_vec.SerializeFloat32(doc.Embedding)
	if err != nil {
		return fmt.Errorf("encoding embedding for doc %s: %w", doc.ID, err)
	}

	m := doc.Metadata
	query, args, err := sq.Insert(documentsTable).
		Columns("doc_id", "content", "path", "language", "start_line", "end_line").
		Values(doc.ID, doc.Content, m.Path, m.Language, m.StartLine, m.EndLine).
		Suffix(`ON CONFLICT(doc_id) DO UPDATE SET
			content = excluded.content,
			path = excluded.path,
			language = excluded.language,
			start_line = excluded.start_line,
			end_line = excluded.end_line
		RETURNING rowid`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}

	var rowID int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&rowID); err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}

	// vec0 has no UPDATE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+embeddingsTable+` WHERE rowid = ?`, rowID); err != nil {
		return fmt.Errorf("clearing embedding for doc %s: %w", doc.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+embeddingsTable+`(rowid, embedding) VALUES (?, ?)`, rowID, blob); err != nil {
		return fmt.Errorf("inserting embedding for doc %s: %w", doc.ID, err)
	}
	return nil
}

// prefixed matches doc ids starting with prefix. LIKE would treat "_" in ids
// as a wildcard.
func prefixed(column, prefix string) sq.Sqlizer {
	return sq.Expr("substr("+column+", 1, length(?)) = ?", prefix, prefix)
}

// Query scores every document under prefix with vector.Similarity. vec0 KNN
// search cannot be filtered by doc_id, so the scan happens here.
func (d *SQLiteVecDriver) Query(ctx context.Context, embedding []float32, topK int, prefix string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	query, args, err := sq.Select("d.doc_id", "d.content", "d.path", "d.language", "d.start_line", "d.end_line", "vec_to_json(e.embedding)").
		From(documentsTable + " d").
		Join(embeddingsTable + " e ON e.rowid = d.rowid").
		Where(prefixed("d.doc_id", prefix)).
		OrderBy("d.rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	results := []vector.QueryResult{}
	for rows.Next() {
		var (
			doc     vector.Document
			rawJSON string
		)
		m := &doc.Metadata
		if err := rows.Scan(&doc.ID, &doc.Content, &m.Path, &m.Language, &m.StartLine, &m.EndLine, &rawJSON); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		if err := json.Unmarshal([]byte(rawJSON), &doc.Embedding); err != nil {
			return nil, fmt.Errorf("decoding embedding for doc %s: %w", doc.ID, err)
		}

		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    vector.Similarity(embedding, doc.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	// Stable so equal scores stay in rowid order.
	slices.SortStableFunc(results, func(a, b vector.QueryResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(results) > topK {
		results = results[:topK]
	}

	d.logger.Debug("queried sqlite-vec", "prefix", prefix, "results", len(results))
	return results, nil
}

// DeleteByPrefix removes every document whose ID starts with prefix.
func (d *SQLiteVecDriver) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sq.Select("rowid").From(documentsTable).Where(prefixed("doc_id", prefix)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building delete: %w", err)
	}
	rowIDs, err := collectRowIDs(ctx, tx, query, args)
	if err != nil {
		return 0, err
	}

	// vec0 only deletes by exact rowid.
	for _, rowID := range rowIDs {
		for _, table := range []string{embeddingsTable, documentsTable} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE rowid = ?`, rowID); err != nil {
				return 0, fmt.Errorf("deleting rowid %d from %s: %w", rowID, table, err)
			}
		}
	}
	n := len(rowIDs)

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted documents from sqlite-vec", "prefix", prefix, "count", n)
	return n, nil
}

func collectRowIDs(ctx context.Context, tx *sql.Tx, query string, args []any) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rowids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning rowid: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (d *SQLiteVecDriver) Close() error {
	return d.db.Close()
}
