// Package store holds the document collections references are resolved
// against.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/agentic-research/dbref/internal/resolve"
	"github.com/agentic-research/dbref/internal/tree"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no document matches a lookup. It is the
// resolver's ErrReferenceNotFound so a missing reference aborts Resolve with
// an error callers can test for either way.
var ErrNotFound = resolve.ErrReferenceNotFound

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       JSON NOT NULL,
	PRIMARY KEY (collection, id)
)`

type openConfig struct {
	readOnly bool
	log      *logrus.Entry
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

// WithReadOnly opens an existing database with writes disabled.
func WithReadOnly() OpenOption {
	return func(c *openConfig) { c.readOnly = true }
}

// WithLogger sets the logger used by the store.
func WithLogger(l *logrus.Entry) OpenOption {
	return func(c *openConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// SQLiteStore keeps documents as JSON bodies in a single SQLite table keyed
// by (collection, id). It implements resolve.Fetcher.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	readOnly bool
	log      *logrus.Entry
}

// Open connects to the database at path, creating it and its schema unless
// WithReadOnly is given.
func Open(path string, opts ...OpenOption) (*SQLiteStore, error) {
	cfg := openConfig{log: logrus.NewEntry(logrus.StandardLogger()).WithField("component", "store")}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log.WithField("path", path)

	s, err := open(path, cfg.readOnly)
	if err != nil {
		log.WithError(err).Error("Could not connect to database")
		return nil, err
	}
	s.log = cfg.log
	log.WithField("read_only", cfg.readOnly).Info("Connected to database")
	return s, nil
}

// OpenReadOnly is Open with WithReadOnly.
func OpenReadOnly(path string, opts ...OpenOption) (*SQLiteStore, error) {
	return Open(path, append(opts, WithReadOnly())...)
}

func open(path string, readOnly bool) (*SQLiteStore, error) {
	if readOnly {
		// The driver would silently create an empty database.
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if readOnly {
		if _, err := db.Exec("PRAGMA query_only=ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set query_only: %w", err)
		}
	} else if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path, readOnly: readOnly}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertResult carries the ids assigned by an insert.
type InsertResult struct {
	ids []string
}

// IDs returns the inserted ids in insertion order.
func (r InsertResult) IDs() []string { return r.ids }

// ID returns the first inserted id, or "" when nothing was inserted.
func (r InsertResult) ID() string {
	if len(r.ids) == 0 {
		return ""
	}
	return r.ids[0]
}

// InsertOne stores doc in collection. See InsertMany.
func (s *SQLiteStore) InsertOne(ctx context.Context, collection string, doc any) (InsertResult, error) {
	return s.InsertMany(ctx, collection, []any{doc})
}

// InsertMany stores docs in collection in one transaction. Each document
// must be an object. A document without an "_id" gets a fresh UUID; the id
// is written into the stored body. The caller's documents are not modified.
func (s *SQLiteStore) InsertMany(ctx context.Context, collection string, docs []any) (InsertResult, error) {
	var res InsertResult
	if collection == "" {
		return res, errors.New("insert: empty collection name")
	}

	type row struct {
		id   string
		body []byte
	}
	rows := make([]row, 0, len(docs))
	for i, d := range docs {
		id, body, err := encodeDocument(d)
		if err != nil {
			return res, fmt.Errorf("insert %s[%d]: %w", collection, i, err)
		}
		rows = append(rows, row{id: id, body: body})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)")
	if err != nil {
		return res, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }() // safe to ignore

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, collection, r.id, string(r.body)); err != nil {
			return res, fmt.Errorf("insert %s/%s: %w", collection, r.id, err)
		}
		ids = append(ids, r.id)
	}
	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}

	s.log.WithFields(logrus.Fields{"collection": collection, "count": len(ids)}).Debug("inserted documents")
	res.ids = ids
	return res, nil
}

func encodeDocument(d any) (string, []byte, error) {
	obj, ok := d.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("%w: documents must be objects, got %T", tree.ErrInvalidDocument, d)
	}
	id, ok := tree.IdentityOf(obj)
	if !ok {
		id = uuid.NewString()
	}
	stored := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		stored[k] = v
	}
	stored[tree.IdentityField] = id

	body, err := json.Marshal(stored)
	if err != nil {
		return "", nil, fmt.Errorf("encode document %s: %w", id, err)
	}
	return id, body, nil
}

func decodeBody(raw string) (any, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse document json: %w", err)
	}
	return doc, nil
}

// Fetch implements resolve.Fetcher.
func (s *SQLiteStore) Fetch(ctx context.Context, collection, id string) (any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND id = ?", collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("referenced '%s' '%s' could not be resolved: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", collection, id, err)
	}
	return decodeBody(raw)
}

// FindOne returns the first document of collection in insertion order.
func (s *SQLiteStore) FindOne(ctx context.Context, collection string) (any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? ORDER BY rowid LIMIT 1", collection).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection '%s' is empty: %w", collection, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	return decodeBody(raw)
}

// Find returns every document of collection in insertion order.
func (s *SQLiteStore) Find(ctx context.Context, collection string) ([]any, error) {
	var docs []any
	err := s.Stream(ctx, collection, func(_ string, doc any) error {
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Stream calls fn for each document of collection in insertion order.
// Only one parsed document is alive at a time. An error from fn stops the
// iteration and is returned as-is.
func (s *SQLiteStore) Stream(ctx context.Context, collection string, fn func(id string, doc any) error) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, body FROM documents WHERE collection = ? ORDER BY rowid", collection)
	if err != nil {
		return fmt.Errorf("query %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		doc, err := decodeBody(raw)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", collection, id, err)
		}
		if err := fn(id, doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Collections lists the collection names present in the store, sorted.
func (s *SQLiteStore) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT collection FROM documents ORDER BY collection")
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
