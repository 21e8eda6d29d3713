package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/litelens/litelens/internal/auth"
	"github.com/litelens/litelens/internal/config"
	"github.com/litelens/litelens/internal/engine/sqlite/sqlitetest"
	"github.com/litelens/litelens/internal/source"
)

func TestUploadWithoutFileReturnsNoFile(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sources", strings.NewReader("{}")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "NO_FILE" || body["message"] != "Aucun fichier détecté" {
		t.Fatalf("body = %#v", body)
	}
}

func TestUploadLoadsSourceAndListsTables(t *testing.T) {
	h, ws := newTestHandler(t, nil)
	id := uploadReady(t, h, ws, sqlitetest.BuildImage(t, sqlitetest.People(25)...))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sources/"+id, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	summary := decodeBody(t, rr)
	status, _ := summary["status"].(map[string]any)
	if summary["name"] != "people.sqlite" || summary["origin"] != "upload" || status["state"] != "ready" || summary["engine"] != "sqlite" {
		t.Fatalf("summary = %#v", summary)
	}

	tables := httptest.NewRecorder()
	h.ServeHTTP(tables, httptest.NewRequest(http.MethodGet, "/v1/sources/"+id+"/tables", nil))
	if tables.Code != http.StatusOK {
		t.Fatalf("tables status = %d", tables.Code)
	}
	list, _ := decodeBody(t, tables)["tables"].([]any)
	if len(list) != 1 || list[0] != "people" {
		t.Fatalf("tables = %#v", list)
	}

	all := httptest.NewRecorder()
	h.ServeHTTP(all, httptest.NewRequest(http.MethodGet, "/v1/sources", nil))
	sources, _ := decodeBody(t, all)["sources"].([]any)
	if len(sources) != 1 {
		t.Fatalf("sources = %#v", sources)
	}
}

func TestUploadOfInvalidImageReportsLoadFailure(t *testing.T) {
	h, ws := newTestHandler(t, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, uploadRequest(t, "notes.txt", []byte("definitely not a database")))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rr.Code)
	}
	id, _ := decodeBody(t, rr)["id"].(string)
	db, err := ws.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_ = db.Wait(context.Background())

	tables := httptest.NewRecorder()
	h.ServeHTTP(tables, httptest.NewRequest(http.MethodGet, "/v1/sources/"+id+"/tables", nil))
	if tables.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", tables.Code)
	}
	body := decodeBody(t, tables)
	if body["error_code"] != "SOURCE_LOAD_FAILED" || body["message"] != "not a SQLite or DuckDB database file" {
		t.Fatalf("body = %#v", body)
	}
}

func TestTablesWhileLoadingReturnsConflict(t *testing.T) {
	h, _ := newTestHandler(t, func(deps *Dependencies) {
		deps.Example = func() (*source.Source, error) {
			return source.New("slow.sqlite", source.OriginExample, func(ctx context.Context) (io.ReadCloser, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}), nil
		}
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sources/example", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Location") == "" {
		t.Fatal("expected Location header")
	}
	id, _ := decodeBody(t, rr)["id"].(string)

	tables := httptest.NewRecorder()
	h.ServeHTTP(tables, httptest.NewRequest(http.MethodGet, "/v1/sources/"+id+"/tables", nil))
	if tables.Code != http.StatusConflict {
		t.Fatalf("status = %d", tables.Code)
	}
	if body := decodeBody(t, tables); body["error_code"] != "SOURCE_NOT_READY" || body["retryable"] != true {
		t.Fatalf("body = %#v", body)
	}

	del := httptest.NewRecorder()
	h.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/v1/sources/"+id, nil))
	if del.Code != http.StatusOK {
		t.Fatalf("delete status = %d", del.Code)
	}
	missing := httptest.NewRecorder()
	h.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/v1/sources/"+id, nil))
	if missing.Code != http.StatusNotFound {
		t.Fatalf("status after delete = %d", missing.Code)
	}
}

func TestExampleNotConfigured(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sources/example", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	h, _ := newTestHandler(t, func(deps *Dependencies) { deps.MaxUploadBytes = 256 })
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, uploadRequest(t, "big.sqlite", make([]byte, 4096)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSourcesAreScopedToSubject(t *testing.T) {
	cfg, err := config.Load("litelens", mapLookup(map[string]string{"LITELENS_AUTH_REQUIRED": "true"}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	validator, err := auth.NewStaticAPIKeyValidator("ka:alice:source_loader|query_reader,kb:bob:source_loader|query_reader")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	ws := newTestWorkspace(t)
	h := NewHandler(cfg, Dependencies{AuthMiddleware: auth.Middleware(nil, validator), Workspace: ws})

	req := uploadRequest(t, "people.sqlite", sqlitetest.BuildImage(t, sqlitetest.People(3)...))
	req.Header.Set("X-API-Key", "ka")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d", rr.Code)
	}
	id, _ := decodeBody(t, rr)["id"].(string)
	db, _ := ws.Get(id)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = db.Wait(ctx)

	for key, want := range map[string]int{"ka": http.StatusOK, "kb": http.StatusNotFound} {
		get := httptest.NewRequest(http.MethodGet, "/v1/sources/"+id+"/tables", nil)
		get.Header.Set("X-API-Key", key)
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, get)
		if resp.Code != want {
			t.Fatalf("key %s status = %d, want %d", key, resp.Code, want)
		}
	}

	list := httptest.NewRequest(http.MethodGet, "/v1/sources", nil)
	list.Header.Set("Authorization", "Bearer kb")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, list)
	if sources, _ := decodeBody(t, resp)["sources"].([]any); len(sources) != 0 {
		t.Fatalf("bob sees %d sources", len(sources))
	}
}
