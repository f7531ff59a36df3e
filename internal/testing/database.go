package testing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teranos/govpipe/db"
)

// CreateTestDB creates a migrated in-memory SQLite database.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	// Every pooled connection to :memory: would be a separate database
	conn.SetMaxOpenConns(1)

	t.Cleanup(func() {
		conn.Close()
	})

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	if err := db.Migrate(conn, nil); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return conn
}
