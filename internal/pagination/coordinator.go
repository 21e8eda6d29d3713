// Package pagination derives a windowed view over a SELECT statement from
// three executions: a one-row column probe, a count, and the current page.
package pagination

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/litelens/litelens/internal/engine"
	"github.com/litelens/litelens/internal/query"
)

const DefaultLimit = 10

// fallbackCountSQL stands in for the count when no table is known. Its zero
// result makes the total fall back to the size of the last page.
const fallbackCountSQL = "SELECT 0"

type Params struct {
	Handle engine.Handle
	// Table selects the default count statement. Empty for free-form SQL.
	Table string
	// BaseQuery is a SELECT without LIMIT or OFFSET.
	BaseQuery string
	Args      []any
	// CountQuery overrides SELECT count(*) FROM Table.
	CountQuery string
	CountArgs  []any
	Limit      int
}

type Pagination struct {
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
}

type View struct {
	Columns    []string   `json:"columns"`
	Rows       [][]any    `json:"rows"`
	Pagination Pagination `json:"pagination"`
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	mu     sync.Mutex
	params Params
	offset int

	probe query.Slot
	count query.Slot
	page  query.Slot
}

func New(executor query.Executor, params Params) *Coordinator {
	c := &Coordinator{
		probe: query.Slot{Executor: executor},
		count: query.Slot{Executor: executor},
		page:  query.Slot{Executor: executor},
	}
	c.params = normalize(params)
	return c
}

func (c *Coordinator) View(ctx context.Context) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view(ctx)
}

// Next advances by the number of rows on the current page. It does nothing
// when there is no next page.
func (c *Coordinator) Next(ctx context.Context) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.view(ctx)
	if !current.Pagination.HasNext || len(current.Rows) == 0 {
		return current
	}
	c.offset += len(current.Rows)
	return c.view(ctx)
}

func (c *Coordinator) Prev(ctx context.Context) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = max(0, c.offset-c.params.Limit)
	return c.view(ctx)
}

// SetOffset moves the window to offset, clamped at zero.
func (c *Coordinator) SetOffset(ctx context.Context, offset int) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = max(0, offset)
	return c.view(ctx)
}

// Update replaces the inputs. The offset returns to zero when the base
// statement or its arguments change.
func (c *Coordinator) Update(params Params) {
	params = normalize(params)
	c.mu.Lock()
	defer c.mu.Unlock()
	if params.BaseQuery != c.params.BaseQuery || !reflect.DeepEqual(params.Args, c.params.Args) {
		c.offset = 0
	}
	c.params = params
}

// Window replaces the inputs and moves to offset in one step, so callers
// sharing the coordinator always get the page of their own statement.
func (c *Coordinator) Window(ctx context.Context, params Params, offset int) View {
	params = normalize(params)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = params
	c.offset = max(0, offset)
	return c.view(ctx)
}

func (c *Coordinator) view(ctx context.Context) View {
	params := c.params
	view := View{
		Columns: []string{},
		Rows:    [][]any{},
		Pagination: Pagination{
			Offset: c.offset,
			Limit:  params.Limit,
		},
	}
	if params.BaseQuery == "" {
		view.Pagination.HasPrev = c.offset > 0
		return view
	}

	if probe := c.probe.Run(ctx, params.Handle, params.BaseQuery+" LIMIT 1 OFFSET 0", params.Args...); probe != nil {
		view.Columns = probe.Columns
	}

	countSQL, countArgs := params.CountQuery, params.CountArgs
	if countSQL == "" {
		countSQL, countArgs = fallbackCountSQL, nil
	}
	count := c.count.Run(ctx, params.Handle, countSQL, countArgs...)

	pageArgs := make([]any, 0, len(params.Args)+2)
	pageArgs = append(pageArgs, params.Args...)
	pageArgs = append(pageArgs, params.Limit, c.offset)
	if page := c.page.Run(ctx, params.Handle, params.BaseQuery+" LIMIT ? OFFSET ?", pageArgs...); page != nil {
		view.Rows = page.Rows
		if len(view.Columns) == 0 {
			view.Columns = page.Columns
		}
	}

	total := countValue(count)
	if total == 0 {
		total = len(view.Rows)
	}
	view.Pagination.Total = total
	view.Pagination.HasPrev = c.offset > 0
	view.Pagination.HasNext = c.offset <= total-params.Limit
	return view
}

func normalize(params Params) Params {
	params.BaseQuery = query.StripTrailingSemicolons(params.BaseQuery)
	params.CountQuery = query.StripTrailingSemicolons(params.CountQuery)
	if params.CountQuery == "" && params.Table != "" {
		params.CountQuery = "SELECT count(*) FROM " + QuoteIdent(params.Table)
		params.CountArgs = nil
	}
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	return params
}

func countValue(set *engine.ResultSet) int {
	if set == nil || len(set.Rows) == 0 || len(set.Rows[0]) == 0 {
		return 0
	}
	switch value := set.Rows[0][0].(type) {
	case int64:
		return int(value)
	case int:
		return value
	case int32:
		return int(value)
	case uint64:
		return int(value)
	case float64:
		return int(value)
	case string:
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		return parsed
	case nil:
		return 0
	default:
		parsed, err := strconv.Atoi(fmt.Sprint(value))
		if err != nil {
			return 0
		}
		return parsed
	}
}
