package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

var testDialect = Dialect{Name: "fake", TablesSQL: "SELECT name FROM tables", ReservedPrefix: "fake_"}

func TestSQLHandleQueryCollectsEveryResultSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	handle := NewSQLHandle(db, testDialect, nil)

	first := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(int64(1), []byte("Dupont")).
		AddRow(int64(2), nil)
	second := sqlmock.NewRows([]string{"total"}).AddRow(int64(2))
	mock.ExpectQuery("SELECT id, name FROM people").
		WithArgs(10).
		WillReturnRows(first, second)

	sets, err := handle.Query(context.Background(), "SELECT id, name FROM people WHERE id < ?; SELECT count(*) AS total FROM people", 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("len(sets) = %d, want 2", len(sets))
	}
	if sets[0].Columns[1] != "name" || len(sets[0].Rows) != 2 {
		t.Fatalf("first set = %#v", sets[0])
	}
	if got := sets[0].Rows[0][1]; got != "Dupont" {
		t.Fatalf("[]byte value = %#v, want string", got)
	}
	if sets[0].Rows[1][1] != nil {
		t.Fatalf("NULL value = %#v, want nil", sets[0].Rows[1][1])
	}
	if sets[1].Columns[0] != "total" || sets[1].Rows[0][0] != int64(2) {
		t.Fatalf("second set = %#v", sets[1])
	}

	mock.ExpectClose()
	if err := handle.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLHandleQueryReturnsEmptySetForNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	handle := NewSQLHandle(db, testDialect, nil)

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"a"}))
	sets, err := handle.Query(context.Background(), "SELECT a FROM empty")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(sets) != 1 || len(sets[0].Rows) != 0 || sets[0].Rows == nil {
		t.Fatalf("sets = %#v", sets)
	}
}

func TestSQLHandleQueryWrapsDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	handle := NewSQLHandle(db, testDialect, nil)

	driverErr := errors.New("no such table: nope")
	mock.ExpectQuery("SELECT").WillReturnError(driverErr)
	_, err = handle.Query(context.Background(), "SELECT * FROM nope")
	if !errors.Is(err, driverErr) {
		t.Fatalf("Query() error = %v, want wrapped driver error", err)
	}
	if !strings.Contains(err.Error(), "execute query") {
		t.Fatalf("Query() error = %q", err)
	}
}

func TestSQLHandleCloseRunsCleanupOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	calls := 0
	cleanupErr := errors.New("remove failed")
	handle := NewSQLHandle(db, testDialect, func() error {
		calls++
		return cleanupErr
	})

	mock.ExpectClose()
	if err := handle.Close(); !errors.Is(err, cleanupErr) {
		t.Fatalf("Close() error = %v, want cleanup error", err)
	}
	if err := handle.Close(); !errors.Is(err, cleanupErr) {
		t.Fatalf("second Close() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("cleanup calls = %d, want 1", calls)
	}
	if handle.Dialect().Name != "fake" {
		t.Fatalf("Dialect() = %#v", handle.Dialect())
	}
}
