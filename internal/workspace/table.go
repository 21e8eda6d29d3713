package workspace

import (
	"context"
	"strings"
	"sync"

	"github.com/litelens/litelens/internal/engine"
	"github.com/litelens/litelens/internal/pagination"
	"github.com/litelens/litelens/internal/query"
)

// TableView pages through one table and filters it by a search term.
type TableView struct {
	Name string

	handle        engine.Handle
	executor      query.Executor
	limit         int
	searchColumns []string
	coordinator   *pagination.Coordinator

	mu      sync.Mutex
	term    string
	columns []string
}

// TablePage is a page of a table together with the search that produced it.
type TablePage struct {
	Table  string `json:"table"`
	Search string `json:"search"`
	pagination.View
}

func newTableView(name string, handle engine.Handle, cfg Config) *TableView {
	params := pagination.TableQuery(name, pagination.Filter{})
	params.Handle = handle
	params.Limit = cfg.PageLimit
	return &TableView{
		Name:          name,
		handle:        handle,
		executor:      cfg.Executor,
		limit:         cfg.PageLimit,
		searchColumns: cfg.SearchColumns,
		coordinator:   pagination.New(cfg.Executor, params),
	}
}

func (v *TableView) Page(ctx context.Context) TablePage {
	return v.step(func() pagination.View { return v.coordinator.View(ctx) })
}

func (v *TableView) Next(ctx context.Context) TablePage {
	return v.step(func() pagination.View { return v.coordinator.Next(ctx) })
}

func (v *TableView) Prev(ctx context.Context) TablePage {
	return v.step(func() pagination.View { return v.coordinator.Prev(ctx) })
}

func (v *TableView) SetOffset(ctx context.Context, offset int) TablePage {
	return v.step(func() pagination.View { return v.coordinator.SetOffset(ctx, offset) })
}

// Search filters the table to rows where a search column contains term. A
// blank term clears the filter, as does a term that cannot be applied because
// the table's columns are unknown. Changing the term returns to the first page.
func (v *TableView) Search(ctx context.Context, term string) TablePage {
	term = strings.TrimSpace(term)
	v.mu.Lock()
	defer v.mu.Unlock()
	var columns []string
	if term != "" && term != v.term {
		// Without columns no predicate can be built. The term is dropped and
		// the probe runs again on the next search.
		if columns = v.filterColumnsLocked(ctx); len(columns) == 0 {
			term = ""
		}
	}
	if term != v.term {
		params := pagination.TableQuery(v.Name, pagination.Filter{Columns: columns, Term: term})
		params.Handle = v.handle
		params.Limit = v.limit
		v.coordinator.Update(params)
		v.term = term
	}
	return TablePage{Table: v.Name, Search: v.term, View: v.coordinator.View(ctx)}
}

// SearchColumns returns the columns a search on this table matches against.
func (v *TableView) SearchColumns(ctx context.Context) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.filterColumnsLocked(ctx)...)
}

// step runs move under the view's lock so the page and the search term it
// reports belong together.
func (v *TableView) step(move func() pagination.View) TablePage {
	v.mu.Lock()
	defer v.mu.Unlock()
	return TablePage{Table: v.Name, Search: v.term, View: move()}
}

func (v *TableView) filterColumnsLocked(ctx context.Context) []string {
	if v.columns == nil {
		set := v.executor.Select(ctx, v.handle, "SELECT * FROM "+pagination.QuoteIdent(v.Name)+" LIMIT 0")
		if set == nil {
			return nil
		}
		v.columns = set.Columns
	}
	return pickColumns(v.columns, v.searchColumns)
}

// pickColumns keeps the configured columns present in the table, matching
// names case-insensitively, and falls back to every column.
func pickColumns(tableColumns, configured []string) []string {
	picked := make([]string, 0, len(configured))
	for _, want := range configured {
		for _, have := range tableColumns {
			if strings.EqualFold(strings.TrimSpace(want), have) {
				picked = append(picked, have)
				break
			}
		}
	}
	if len(picked) == 0 {
		return append([]string(nil), tableColumns...)
	}
	return picked
}
