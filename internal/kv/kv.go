// Package kv is the hierarchical document store every other package persists
// through. Paths have the form "collection/key"; each key holds one JSON
// document whose top-level fields can be merged individually.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by operations that need an existing document.
var ErrNotFound = errors.New("document not found")

// ErrInvalidPath is returned for malformed paths or field names.
var ErrInvalidPath = errors.New("invalid path")

// Store is the key-value store collaborator.
//
// Get reports false without error for a missing path. Create writes value
// only if nothing exists at path yet and reports whether it did. Update performs a
// shallow merge of top-level fields, creating the document if needed.
// CompareAndUpdate merges fields only if the string at field (dot-separated
// for nested values) equals expected, and reports whether it did. Increment
// adds delta to a numeric top-level field (missing counts as 0).
type Store interface {
	Get(ctx context.Context, path string, dst any) (bool, error)
	List(ctx context.Context, collection string) ([]Entry, error)
	Set(ctx context.Context, path string, value any) error
	Create(ctx context.Context, path string, value any) (bool, error)
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Push(ctx context.Context, collection string, value any) (string, error)
	CompareAndUpdate(ctx context.Context, path, field, expected string, fields map[string]any) (bool, error)
	Increment(ctx context.Context, path, field string, delta int64) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Entry is one child of a collection.
type Entry struct {
	Key   string
	Value json.RawMessage
}

// Decode unmarshals the entry's document into dst.
func (e Entry) Decode(dst any) error {
	if err := json.Unmarshal(e.Value, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", e.Key, err)
	}
	return nil
}

// Join builds a document path.
func Join(collection, key string) string {
	return collection + "/" + key
}

// NewKey returns a fresh time-ordered child key.
func NewKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return id.String(), nil
}

func splitPath(path string) (collection, key string, err error) {
	collection, key, ok := strings.Cut(path, "/")
	if !ok || collection == "" || key == "" || strings.Contains(key, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return collection, key, nil
}

func checkCollection(collection string) error {
	if collection == "" || strings.Contains(collection, "/") {
		return fmt.Errorf("%w: collection %q", ErrInvalidPath, collection)
	}
	return nil
}

func checkField(field string) error {
	if field == "" {
		return fmt.Errorf("%w: empty field", ErrInvalidPath)
	}
	for _, part := range strings.Split(field, ".") {
		if part == "" || strings.ContainsAny(part, `"/$[]`) {
			return fmt.Errorf("%w: field %q", ErrInvalidPath, field)
		}
	}
	return nil
}

// jsonPath converts a dotted field name into an SQLite JSON path.
func jsonPath(field string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, part := range strings.Split(field, ".") {
		b.WriteString(`."`)
		b.WriteString(part)
		b.WriteString(`"`)
	}
	return b.String()
}

type encodedField struct {
	name  string
	value json.RawMessage
}

// encodeFields marshals update values in a stable order.
func encodeFields(fields map[string]any) ([]encodedField, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidPath)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		if err := checkField(name); err != nil {
			return nil, err
		}
		if strings.Contains(name, ".") {
			return nil, fmt.Errorf("%w: update field %q must be top-level", ErrInvalidPath, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]encodedField, 0, len(names))
	for _, name := range names {
		raw, err := json.Marshal(fields[name])
		if err != nil {
			return nil, fmt.Errorf("encoding field %s: %w", name, err)
		}
		out = append(out, encodedField{name: name, value: raw})
	}
	return out, nil
}

// lookupString walks a dotted field through a decoded document and returns
// the string found there.
func lookupString(doc map[string]json.RawMessage, field string) (string, bool) {
	parts := strings.Split(field, ".")
	cur := doc
	for i, part := range parts {
		raw, ok := cur[part]
		if !ok {
			return "", false
		}
		if i == len(parts)-1 {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return "", false
			}
			return s, true
		}
		var next map[string]json.RawMessage
		if err := json.Unmarshal(raw, &next); err != nil {
			return "", false
		}
		cur = next
	}
	return "", false
}
