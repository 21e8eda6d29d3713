package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/litelens/litelens/internal/engine"
	"github.com/litelens/litelens/internal/observability"
)

type countingHandle struct {
	calls int
	sets  []engine.ResultSet
	err   error
	last  string
	args  []any
}

func (h *countingHandle) Dialect() engine.Dialect { return engine.Dialect{Name: "fake"} }

func (h *countingHandle) Query(_ context.Context, sqlText string, args ...any) ([]engine.ResultSet, error) {
	h.calls++
	h.last = sqlText
	h.args = args
	return h.sets, h.err
}

func (h *countingHandle) Close() error { return nil }

func TestSelectSkipsBlankSQLAndNilHandle(t *testing.T) {
	handle := &countingHandle{}
	executor := Executor{}
	for _, sqlText := range []string{"", "   ", "\n\t"} {
		if got := executor.Select(context.Background(), handle, sqlText); got != nil {
			t.Fatalf("Select(%q) = %#v, want nil", sqlText, got)
		}
	}
	if handle.calls != 0 {
		t.Fatalf("calls = %d, want 0", handle.calls)
	}
	if got := executor.Select(context.Background(), nil, "SELECT 1"); got != nil {
		t.Fatalf("Select(nil handle) = %#v", got)
	}
}

func TestSelectKeepsFirstResultSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	handle := engine.NewSQLHandle(db, engine.Dialect{Name: "sqlite"}, nil)

	mock.ExpectQuery("SELECT 1").WillReturnRows(
		sqlmock.NewRows([]string{"a"}).AddRow(int64(1)),
		sqlmock.NewRows([]string{"b"}).AddRow(int64(2)),
	)
	set := Executor{}.Select(context.Background(), handle, "SELECT 1 AS a; SELECT 2 AS b")
	if set == nil {
		t.Fatal("Select() = nil")
	}
	if len(set.Columns) != 1 || set.Columns[0] != "a" || set.Rows[0][0] != int64(1) {
		t.Fatalf("Select() = %#v", set)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSelectLogsFailureAndReturnsNil(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	handle := &countingHandle{err: errors.New("near \"SELEC\": syntax error")}

	ctx := observability.ContextWithTraceID(context.Background(), "trace-1")
	got := Executor{Logger: logger}.Select(ctx, handle, "SELEC * FROM t")
	if got != nil {
		t.Fatalf("Select() = %#v, want nil", got)
	}

	var entry map[string]any
	if err := json.Unmarshal(logs.Bytes(), &entry); err != nil {
		t.Fatalf("log entry is not JSON: %v (%q)", err, logs.String())
	}
	if entry["level"] != "WARN" || entry["sql"] != "SELEC * FROM t" || entry["trace_id"] != "trace-1" {
		t.Fatalf("log entry = %#v", entry)
	}
}

func TestSelectPassesArgs(t *testing.T) {
	handle := &countingHandle{sets: []engine.ResultSet{{Columns: []string{"x"}}}}
	Executor{}.Select(context.Background(), handle, "SELECT x FROM t LIMIT ? OFFSET ?", 10, 20)
	if len(handle.args) != 2 || handle.args[0] != 10 || handle.args[1] != 20 {
		t.Fatalf("args = %#v", handle.args)
	}
}

func TestStripTrailingSemicolons(t *testing.T) {
	tests := map[string]string{
		"SELECT 1":             "SELECT 1",
		"SELECT 1;":            "SELECT 1",
		" SELECT 1 ; ;\n":      "SELECT 1",
		"SELECT ';' FROM t ;;": "SELECT ';' FROM t",
		"":                     "",
	}
	for input, want := range tests {
		if got := StripTrailingSemicolons(input); got != want {
			t.Fatalf("StripTrailingSemicolons(%q) = %q, want %q", input, got, want)
		}
	}
}
