package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/litelens/litelens/internal/auth"
	"github.com/litelens/litelens/internal/engine"
	"github.com/litelens/litelens/internal/render"
)

type queryRequest struct {
	SQL      string `json:"sql"`
	Paginate bool   `json:"paginate"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
	Format   string `json:"format"`
}

// handleQuery runs the query box. A statement that fails to execute is not
// an error: the response carries a null result.
func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	db, ok := lookupSource(deps, w, r, auth.RoleQueryReader)
	if !ok {
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	format, err := render.ParseFormat(request.Format)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), false, nil)
		return
	}
	if request.Offset < 0 || request.Limit < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_PAGINATION", "offset and limit must be non-negative", false, nil)
		return
	}
	if strings.TrimSpace(request.SQL) != "" && !isAllowedSQL(request.SQL) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only read-only SELECT/WITH/PRAGMA/EXPLAIN/DESCRIBE/SHOW statements are allowed", false, nil)
		return
	}

	if request.Paginate {
		view, err := db.QueryPage(r.Context(), request.SQL, request.Offset, request.Limit)
		if err != nil {
			writeSourceError(w, r, db, err)
			return
		}
		if format != render.FormatJSON {
			writeGrid(w, r, format, "query."+format.Extension(), view.Columns, view.Rows)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	result, err := db.Query(r.Context(), request.SQL)
	if err != nil {
		writeSourceError(w, r, db, err)
		return
	}
	if format != render.FormatJSON {
		set := result.Result
		if set == nil {
			set = &engine.ResultSet{}
		}
		writeGrid(w, r, format, "query."+format.Extension(), set.Columns, set.Rows)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

var allowedStatementPrefixes = []string{"select", "with", "pragma", "explain", "describe", "show"}

func isAllowedSQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	for _, prefix := range allowedStatementPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}
