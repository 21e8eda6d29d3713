package pagination

import (
	"strings"
)

// Filter narrows a table to rows where any of Columns contains Term.
type Filter struct {
	Columns []string
	Term    string
}

// TableQuery returns the base and count statements for browsing table. The
// search term is bound as a parameter, never spliced into the SQL text.
// Handle and Limit are left for the caller.
func TableQuery(table string, filter Filter) Params {
	from := "FROM " + QuoteIdent(table)
	params := Params{
		Table:      table,
		BaseQuery:  "SELECT * " + from,
		CountQuery: "SELECT count(*) " + from,
	}

	predicate, args := likePredicate(filter)
	if predicate == "" {
		return params
	}
	params.BaseQuery += " WHERE " + predicate
	params.Args = args
	params.CountQuery += " WHERE " + predicate
	params.CountArgs = append([]any(nil), args...)
	return params
}

// QuoteIdent quotes name as an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func likePredicate(filter Filter) (string, []any) {
	term := strings.TrimSpace(filter.Term)
	if term == "" || len(filter.Columns) == 0 {
		return "", nil
	}
	pattern := "%" + term + "%"
	clauses := make([]string, 0, len(filter.Columns))
	args := make([]any, 0, len(filter.Columns))
	for _, column := range filter.Columns {
		// The cast lets non-text columns take part in the search on DuckDB,
		// which has no implicit cast for LIKE.
		clauses = append(clauses, "CAST("+QuoteIdent(column)+" AS TEXT) LIKE ?")
		args = append(args, pattern)
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}
