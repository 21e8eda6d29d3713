package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

// WriteParquet writes rows as a Parquet file in which every column is an
// optional UTF-8 string. Blank column names become column_<n>; repeated
// names get a _<n> suffix.
func WriteParquet(w io.Writer, columns []string, rows [][]any) error {
	if len(columns) == 0 {
		return fmt.Errorf("parquet export needs at least one column")
	}
	names := uniqueNames(columns)

	group := make(parquet.Group, len(names))
	for _, name := range names {
		group[name] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("result", group)

	// Leaf columns follow the schema's sorted field order.
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	leafIndex := make(map[string]int, len(sorted))
	for i, name := range sorted {
		leafIndex[name] = i
	}

	writer := parquet.NewWriter(w, schema)
	batch := make([]parquet.Row, 0, len(rows))
	for _, row := range rows {
		values := make(parquet.Row, len(names))
		for i, name := range names {
			index := leafIndex[name]
			var value any
			if i < len(row) {
				value = row[i]
			}
			if value == nil {
				values[index] = parquet.NullValue().Level(0, 0, index)
				continue
			}
			values[index] = parquet.ByteArrayValue([]byte(FormatValue(value))).Level(0, 1, index)
		}
		batch = append(batch, values)
	}
	if _, err := writer.WriteRows(batch); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func uniqueNames(columns []string) []string {
	names := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, column := range columns {
		name := column
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		base := name
		for seen[name] > 0 {
			seen[base]++
			name = base + "_" + strconv.Itoa(seen[base])
		}
		seen[name]++
		names[i] = name
	}
	return names
}
