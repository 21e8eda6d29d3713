// Package sqlitetest builds SQLite images for tests.
package sqlitetest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// BuildImage runs statements against a fresh database file and returns the
// file's bytes.
func BuildImage(t testing.TB, statements ...string) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			_ = db.Close()
			t.Fatalf("Exec(%q) error = %v", statement, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	image, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return image
}

// People returns statements creating a "people" table with n rows whose
// last names are Name1..Name<n>, plus one row named Dupont when n > 2.
func People(n int) []string {
	statements := []string{
		`CREATE TABLE people ("Nom d'exercice" TEXT, "Prénom d'exercice" TEXT, city TEXT)`,
	}
	for i := 1; i <= n; i++ {
		last := fmt.Sprintf("Name%d", i)
		if n > 2 && i == 3 {
			last = "Dupont"
		}
		statements = append(statements, fmt.Sprintf(
			`INSERT INTO people VALUES ('%s', 'First%d', 'City%d')`, last, i, i%3))
	}
	return statements
}
