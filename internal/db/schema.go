package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Every collection of the document tree
// (users, items, settings, revoked_tokens) lives in the nodes table as one
// JSON document per child key.
const schema = `
CREATE TABLE IF NOT EXISTS nodes (
    collection TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      TEXT NOT NULL CHECK (json_valid(value)),
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection, key)
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
