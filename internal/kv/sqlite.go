package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SQLiteStore keeps documents in the nodes table. Every mutation is a single
// statement, so SQLite's writer lock makes each one atomic.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite wraps an open database whose schema has been ensured.
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get loads the document at path into dst.
func (s *SQLiteStore) Get(ctx context.Context, path string, dst any) (bool, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return false, err
	}

	var value string
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM nodes WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting %s: %w", path, err)
	}

	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

// List returns every child of a collection ordered by key.
func (s *SQLiteStore) List(ctx context.Context, collection string) ([]Entry, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM nodes WHERE collection = ? ORDER BY key`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", collection, err)
		}
		entries = append(entries, Entry{Key: key, Value: json.RawMessage(value)})
	}
	return entries, rows.Err()
}

// Set replaces the document at path.
func (s *SQLiteStore) Set(ctx context.Context, path string, value any) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO nodes (collection, key, value) VALUES (?, ?, json(?))
		 ON CONFLICT (collection, key) DO UPDATE
		 SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		collection, key, string(data),
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", path, err)
	}
	return nil
}

// Create stores value at path unless a document is already there.
func (s *SQLiteStore) Create(ctx context.Context, path string, value any) (bool, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return false, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", path, err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (collection, key, value) VALUES (?, ?, json(?))
		 ON CONFLICT (collection, key) DO NOTHING`,
		collection, key, string(data),
	)
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}
	return n == 1, nil
}

// Update merges top-level fields into the document at path.
func (s *SQLiteStore) Update(ctx context.Context, path string, fields map[string]any) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}

	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}
	setExpr, setArgs := jsonSetExpr("nodes.value", encoded)

	initial, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	args := append([]any{collection, key, string(initial)}, setArgs...)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO nodes (collection, key, value) VALUES (?, ?, json(?))
		 ON CONFLICT (collection, key) DO UPDATE
		 SET value = `+setExpr+`, updated_at = CURRENT_TIMESTAMP`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating %s: %w", path, err)
	}
	return nil
}

// Delete removes the document at path. Deleting a missing path is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM nodes WHERE collection = ? AND key = ?`,
		collection, key,
	)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// Push stores value under a newly generated key and returns the key.
func (s *SQLiteStore) Push(ctx context.Context, collection string, value any) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	key, err := NewKey()
	if err != nil {
		return "", err
	}
	if err := s.Set(ctx, Join(collection, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// CompareAndUpdate merges fields only while field still holds expected.
func (s *SQLiteStore) CompareAndUpdate(ctx context.Context, path, field, expected string, fields map[string]any) (bool, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return false, err
	}
	if err := checkField(field); err != nil {
		return false, err
	}

	encoded, err := encodeFields(fields)
	if err != nil {
		return false, err
	}
	setExpr, setArgs := jsonSetExpr("value", encoded)

	args := append(setArgs, collection, key, jsonPath(field), expected)
	result, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET value = `+setExpr+`, updated_at = CURRENT_TIMESTAMP
		 WHERE collection = ? AND key = ? AND json_extract(value, ?) = ?`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("conditionally updating %s: %w", path, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking update of %s: %w", path, err)
	}
	return n == 1, nil
}

// Increment adds delta to a numeric field and returns the new value.
func (s *SQLiteStore) Increment(ctx context.Context, path, field string, delta int64) (int64, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return 0, err
	}
	if err := checkField(field); err != nil {
		return 0, err
	}
	p := jsonPath(field)

	var value int64
	err = s.db.QueryRowContext(ctx,
		`UPDATE nodes
		 SET value = json_set(value, ?, CAST(COALESCE(json_extract(value, ?), 0) AS INTEGER) + ?),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE collection = ? AND key = ?
		 RETURNING json_extract(value, ?)`,
		p, p, delta, collection, key, p,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("incrementing %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("incrementing %s: %w", path, err)
	}
	return value, nil
}

// Ping checks that the database answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// jsonSetExpr builds json_set(target, path, json(value), ...) for a list of
// top-level fields.
func jsonSetExpr(target string, fields []encodedField) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(fields)*2)
	b.WriteString("json_set(")
	b.WriteString(target)
	for _, f := range fields {
		b.WriteString(", ?, json(?)")
		args = append(args, jsonPath(f.name), string(f.value))
	}
	b.WriteString(")")
	return b.String(), args
}
