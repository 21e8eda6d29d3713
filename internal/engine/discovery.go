package engine

import (
	"context"
	"fmt"
	"strings"
)

// DiscoverTables lists user tables of the image behind handle, leaving out
// names that carry the dialect's reserved prefix. A nil handle yields an
// empty list; a failing listing query yields an empty list and the error.
func DiscoverTables(ctx context.Context, handle Handle) ([]string, error) {
	tables := make([]string, 0)
	if handle == nil {
		return tables, nil
	}
	dialect := handle.Dialect()
	sets, err := handle.Query(ctx, dialect.TablesSQL)
	if err != nil {
		return tables, fmt.Errorf("list %s tables: %w", dialect.Name, err)
	}
	for _, set := range sets {
		for _, row := range set.Rows {
			if len(row) == 0 || row[0] == nil {
				continue
			}
			name := fmt.Sprint(row[0])
			if dialect.ReservedPrefix != "" && strings.HasPrefix(strings.ToLower(name), dialect.ReservedPrefix) {
				continue
			}
			tables = append(tables, name)
		}
	}
	return tables, nil
}
