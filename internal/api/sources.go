package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/litelens/litelens/internal/auth"
	"github.com/litelens/litelens/internal/engine"
	"github.com/litelens/litelens/internal/observability"
	"github.com/litelens/litelens/internal/source"
	"github.com/litelens/litelens/internal/workspace"
)

func handleUpload(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireWorkspace(deps, w, r) {
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleSourceLoader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	if deps.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "uploaded file exceeds the size limit", false, map[string]any{"limit_bytes": tooLarge.Limit})
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			writeError(r.Context(), w, http.StatusBadRequest, "NO_FILE", "Aucun fichier détecté", false, nil)
		default:
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_UPLOAD", "invalid multipart upload", false, map[string]any{"details": err.Error()})
		}
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_UPLOAD", "failed to read uploaded file", false, map[string]any{"details": err.Error()})
		return
	}
	name := strings.TrimSpace(header.Filename)
	if name == "" {
		name = "upload"
	}
	addSource(deps, w, r, source.FromBytes(name, source.OriginUpload, data))
}

func handleLoadExample(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireWorkspace(deps, w, r) {
		return
	}
	if deps.Example == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXAMPLE_NOT_CONFIGURED", "no example database is configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleSourceLoader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	src, err := deps.Example()
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXAMPLE_UNAVAILABLE", "failed to prepare the example database", true, map[string]any{"details": err.Error()})
		return
	}
	addSource(deps, w, r, src)
}

func addSource(deps Dependencies, w http.ResponseWriter, r *http.Request, src *source.Source) {
	src.Owner = auth.SubjectFromContext(r.Context())
	db, err := deps.Workspace.Add(src)
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "WORKSPACE_CLOSED", err.Error(), true, nil)
		return
	}
	if deps.Logger != nil {
		deps.Logger.InfoContext(r.Context(), "source added",
			observability.TraceAttr(r.Context()),
			slog.String("source_id", src.ID),
			slog.String("origin", string(src.Origin)),
		)
	}
	w.Header().Set("Location", "/v1/sources/"+src.ID)
	writeJSON(w, http.StatusAccepted, db.Summary())
}

func handleListSources(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireWorkspace(deps, w, r) {
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleQueryReader, auth.RoleSourceLoader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	owner := auth.SubjectFromContext(r.Context())
	items := make([]workspace.Summary, 0)
	for _, db := range deps.Workspace.List() {
		if visibleTo(db, owner) {
			items = append(items, db.Summary())
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": items})
}

func handleGetSource(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	db, ok := lookupSource(deps, w, r, auth.RoleQueryReader, auth.RoleSourceLoader)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, db.Summary())
}

func handleDeleteSource(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	db, ok := lookupSource(deps, w, r, auth.RoleSourceLoader)
	if !ok {
		return
	}
	if err := deps.Workspace.Remove(db.ID()); err != nil && !errors.Is(err, workspace.ErrNotFound) {
		writeError(r.Context(), w, http.StatusInternalServerError, "RELEASE_FAILED", "failed to release source", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "source_id": db.ID()})
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	db, ok := lookupSource(deps, w, r, auth.RoleQueryReader)
	if !ok {
		return
	}
	tables, err := db.Tables()
	if err != nil {
		writeSourceError(w, r, db, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source_id": db.ID(), "tables": tables})
}

// lookupSource resolves the {source} path value, enforcing roles and
// ownership. It writes the error response itself and reports false then.
func lookupSource(deps Dependencies, w http.ResponseWriter, r *http.Request, roles ...string) (*workspace.Database, bool) {
	if !requireWorkspace(deps, w, r) {
		return nil, false
	}
	if err := auth.RequireAnyRole(r.Context(), roles...); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return nil, false
	}
	id := strings.TrimSpace(r.PathValue("source"))
	db, err := deps.Workspace.Get(id)
	if err != nil || !visibleTo(db, auth.SubjectFromContext(r.Context())) {
		writeError(r.Context(), w, http.StatusNotFound, "SOURCE_NOT_FOUND", "source was not found", false, map[string]any{"source_id": id})
		return nil, false
	}
	return db, true
}

func visibleTo(db *workspace.Database, owner string) bool {
	return owner == "" || db.Source.Owner == owner
}

// writeSourceError maps errors from a database that is not serving yet.
func writeSourceError(w http.ResponseWriter, r *http.Request, db *workspace.Database, err error) {
	switch {
	case errors.Is(err, workspace.ErrNotReady):
		writeError(r.Context(), w, http.StatusConflict, "SOURCE_NOT_READY", "source is still loading", true, map[string]any{"source_id": db.ID()})
	case errors.Is(err, workspace.ErrTableNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table was not found", false, map[string]any{"source_id": db.ID(), "table": r.PathValue("table")})
	case errors.Is(err, engine.ErrReleased):
		writeError(r.Context(), w, http.StatusNotFound, "SOURCE_NOT_FOUND", "source was released", false, map[string]any{"source_id": db.ID()})
	default:
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "SOURCE_LOAD_FAILED", db.Status().Message, false, map[string]any{"source_id": db.ID(), "details": err.Error()})
	}
}

func requireWorkspace(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Workspace == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "WORKSPACE_NOT_CONFIGURED", "workspace dependency is not configured", false, nil)
		return false
	}
	return true
}
