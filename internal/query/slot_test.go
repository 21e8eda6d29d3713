package query

import (
	"context"
	"testing"

	"github.com/litelens/litelens/internal/engine"
)

func TestSlotReusesResultUntilInputsChange(t *testing.T) {
	handle := &countingHandle{sets: []engine.ResultSet{{Columns: []string{"n"}, Rows: [][]any{{int64(1)}}}}}
	var slot Slot

	first := slot.Run(context.Background(), handle, "SELECT n FROM t LIMIT ?", 10)
	second := slot.Run(context.Background(), handle, "SELECT n FROM t LIMIT ?", 10)
	if first == nil || second == nil {
		t.Fatal("Run() returned nil")
	}
	if handle.calls != 1 {
		t.Fatalf("calls = %d, want 1", handle.calls)
	}

	slot.Run(context.Background(), handle, "SELECT n FROM t LIMIT ?", 20)
	if handle.calls != 2 {
		t.Fatalf("calls after args change = %d, want 2", handle.calls)
	}
	slot.Run(context.Background(), handle, "SELECT n, m FROM t LIMIT ?", 20)
	if handle.calls != 3 {
		t.Fatalf("calls after sql change = %d, want 3", handle.calls)
	}

	other := &countingHandle{}
	if got := slot.Run(context.Background(), other, "SELECT n, m FROM t LIMIT ?", 20); got != nil {
		t.Fatalf("Run() on new handle = %#v, want stale result discarded", got)
	}
	if other.calls != 1 {
		t.Fatalf("new handle calls = %d, want 1", other.calls)
	}
}

func TestSlotCachesBlankQuery(t *testing.T) {
	var slot Slot
	if got := slot.Run(context.Background(), &countingHandle{}, ""); got != nil {
		t.Fatalf("Run(\"\") = %#v", got)
	}
	if sets := slot.RunAll(context.Background(), nil, ""); len(sets) != 0 {
		t.Fatalf("RunAll() = %#v", sets)
	}
}

func TestSlotResetForcesExecution(t *testing.T) {
	handle := &countingHandle{sets: []engine.ResultSet{{}, {}}}
	var slot Slot
	if sets := slot.RunAll(context.Background(), handle, "SELECT 1; SELECT 2"); len(sets) != 2 {
		t.Fatalf("RunAll() returned %d sets, want 2", len(sets))
	}
	slot.Reset()
	slot.Run(context.Background(), handle, "SELECT 1; SELECT 2")
	if handle.calls != 2 {
		t.Fatalf("calls = %d, want 2", handle.calls)
	}
}

func TestSlotRunAllReturnsStableSnapshot(t *testing.T) {
	handle := &countingHandle{sets: []engine.ResultSet{{Columns: []string{"a"}}, {Columns: []string{"b"}}}}
	var slot Slot
	first := slot.RunAll(context.Background(), handle, "SELECT a; SELECT b")

	other := &countingHandle{sets: []engine.ResultSet{{Columns: []string{"z"}}}}
	slot.RunAll(context.Background(), other, "SELECT z")

	if len(first) != 2 || first[0].Columns[0] != "a" || first[1].Columns[0] != "b" {
		t.Fatalf("first run changed after a later run: %#v", first)
	}
}
