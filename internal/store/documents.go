package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Document is one keyed JSON blob.
type Document struct {
	Key       string
	Value     []byte
	Revision  int64
	UpdatedAt time.Time
}

// ReadDocument returns the value stored under key.
// The bool is false when no document exists.
func (s *Store) ReadDocument(ctx context.Context, key string) ([]byte, bool, error) {
	doc, ok, err := s.Document(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return doc.Value, true, nil
}

// Document returns the full document row under key.
func (s *Store) Document(ctx context.Context, key string) (Document, bool, error) {
	var (
		doc     Document
		value   string
		updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT key, value, revision, updated_at FROM documents
		WHERE key = ?
	`, key).Scan(&doc.Key, &value, &doc.Revision, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("read document %q: %w", key, err)
	}

	doc.Value = []byte(value)
	doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return Document{}, false, fmt.Errorf("read document %q: parse updated_at: %w", key, err)
	}
	return doc, true, nil
}

// WriteDocument replaces the document under key and bumps its revision.
func (s *Store) WriteDocument(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, value, revision, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			revision = documents.revision + 1,
			updated_at = excluded.updated_at
	`,
		key,
		string(value),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write document %q: %w", key, err)
	}
	return nil
}

// DeleteDocument removes the document under key. Deleting a missing key is not an error.
func (s *Store) DeleteDocument(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete document %q: %w", key, err)
	}
	return nil
}

// ListDocuments returns every document ordered by key.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, revision, updated_at FROM documents
		ORDER BY key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc     Document
			value   string
			updated string
		)
		if err := rows.Scan(&doc.Key, &value, &doc.Revision, &updated); err != nil {
			return nil, fmt.Errorf("list documents: scan: %w", err)
		}
		doc.Value = []byte(value)
		if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("list documents: parse updated_at: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}
