package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/litelens/litelens/internal/auth"
	"github.com/litelens/litelens/internal/render"
	"github.com/litelens/litelens/internal/workspace"
)

// handleTablePage serves the current page of a table. A search parameter
// replaces the table's filter and an offset parameter moves the window;
// without them the view is served as it stands.
func handleTablePage(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	view, ok := lookupTable(deps, w, r)
	if !ok {
		return
	}
	values := r.URL.Query()
	format, err := render.ParseFormat(values.Get("format"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), false, nil)
		return
	}
	offset, hasOffset, err := parseNonNegative(values.Get("offset"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_OFFSET", err.Error(), false, nil)
		return
	}

	var page workspace.TablePage
	if values.Has("search") {
		page = view.Search(r.Context(), values.Get("search"))
	}
	if hasOffset {
		page = view.SetOffset(r.Context(), offset)
	} else if !values.Has("search") {
		page = view.Page(r.Context())
	}

	if format == render.FormatJSON {
		writeJSON(w, http.StatusOK, page)
		return
	}
	filename := fmt.Sprintf("%s-%d.%s", view.Name, page.Pagination.Offset, format.Extension())
	writeGrid(w, r, format, filename, page.Columns, page.Rows)
}

func handleTableStep(deps Dependencies, w http.ResponseWriter, r *http.Request, forward bool) {
	view, ok := lookupTable(deps, w, r)
	if !ok {
		return
	}
	if forward {
		writeJSON(w, http.StatusOK, view.Next(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, view.Prev(r.Context()))
}

func lookupTable(deps Dependencies, w http.ResponseWriter, r *http.Request) (*workspace.TableView, bool) {
	db, ok := lookupSource(deps, w, r, auth.RoleQueryReader)
	if !ok {
		return nil, false
	}
	view, err := db.Table(strings.TrimSpace(r.PathValue("table")))
	if err != nil {
		writeSourceError(w, r, db, err)
		return nil, false
	}
	return view, true
}

// writeGrid renders a non-JSON download. Headers are already sent when a
// render error occurs, so it can only be logged by the caller's middleware.
func writeGrid(w http.ResponseWriter, r *http.Request, format render.Format, filename string, columns []string, rows [][]any) {
	if format == render.FormatParquet && len(columns) == 0 {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "EMPTY_RESULT", "nothing to export", false, nil)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if format == render.FormatParquet || format == render.FormatCSV {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	_ = render.Write(w, format, columns, rows)
}

func parseNonNegative(raw string) (int, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, false, fmt.Errorf("expected a non-negative integer, got %q", raw)
	}
	return value, true, nil
}
