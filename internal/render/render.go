// Package render writes result grids in the formats offered for download and
// terminal output.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatHTML     Format = "html"
	FormatParquet  Format = "parquet"
)

var ErrUnknownFormat = errors.New("unknown render format")

// ParseFormat accepts a format name case-insensitively. Blank selects JSON.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return FormatJSON, nil
	case "text", "table":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "html":
		return FormatHTML, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/json"
	}
}

// Extension is the file suffix used for downloads.
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return "txt"
	case FormatMarkdown:
		return "md"
	default:
		return string(f)
	}
}

// Write renders columns and rows to w.
func Write(w io.Writer, format Format, columns []string, rows [][]any) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, columns, rows)
	case FormatParquet:
		return WriteParquet(w, columns, rows)
	case FormatText, FormatMarkdown, FormatCSV, FormatHTML:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(columns))
	for i, column := range columns {
		header[i] = column
	}
	t.AppendHeader(header)
	for _, row := range rows {
		cells := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				cells[i] = FormatValue(row[i])
			} else {
				cells[i] = FormatValue(nil)
			}
		}
		t.AppendRow(cells)
	}

	switch format {
	case FormatMarkdown:
		t.RenderMarkdown()
	case FormatCSV:
		t.RenderCSV()
	case FormatHTML:
		t.RenderHTML()
	default:
		t.Render()
		if _, err := fmt.Fprintf(w, "(%d rows)\n", len(rows)); err != nil {
			return fmt.Errorf("write row count: %w", err)
		}
	}
	return nil
}

// FormatValue renders one cell. NULL stands for a missing value.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return typed
	case []byte:
		return string(typed)
	case time.Time:
		return typed.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(typed)
	}
}

func writeJSON(w io.Writer, columns []string, rows [][]any) error {
	if columns == nil {
		columns = []string{}
	}
	if rows == nil {
		rows = [][]any{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(map[string]any{"columns": columns, "rows": rows}); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
