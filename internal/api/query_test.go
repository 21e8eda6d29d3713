package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/litelens/litelens/internal/engine/sqlite/sqlitetest"
)

func postQuery(t *testing.T, h http.Handler, id, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/sources/"+id+"/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestQueryReturnsFirstResultSet(t *testing.T) {
	h, ws := newTestHandler(t, nil)
	id := uploadReady(t, h, ws, sqlitetest.BuildImage(t, sqlitetest.People(25)...))

	rr := postQuery(t, h, id, `{"sql":"SELECT count(*) AS n FROM people"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		Result *struct {
			Columns []string `json:"columns"`
			Values  [][]any  `json:"values"`
		} `json:"result"`
		ResultCount int `json:"result_count"`
	}
	decodeInto(t, rr, &body)
	if body.Result == nil || body.Result.Columns[0] != "n" || body.Result.Values[0][0] != float64(25) || body.ResultCount != 1 {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestQueryFailureReturnsNullResult(t *testing.T) {
	h, ws := newTestHandler(t, nil)
	id := uploadReady(t, h, ws, sqlitetest.BuildImage(t, sqlitetest.People(3)...))

	for _, sql := range []string{`SELECT * FROM missing_table`, `   `} {
		payload, _ := json.Marshal(map[string]any{"sql": sql})
		rr := postQuery(t, h, id, string(payload))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
		}
		body := decodeBody(t, rr)
		if body["result"] != nil {
			t.Fatalf("result = %#v, want null", body["result"])
		}
	}
}

func TestQueryRejectsWrites(t *testing.T) {
	h, ws := newTestHandler(t, nil)
	id := uploadReady(t, h, ws, sqlitetest.BuildImage(t, sqlitetest.People(3)...))

	tests := []struct {
		body string
		code string
	}{
		{body: `{"sql":"DELETE FROM people"}`, code: "SQL_NOT_ALLOWED"},
		{body: `{"sql":"DROP TABLE people"}`, code: "SQL_NOT_ALLOWED"},
		{body: `{"sql":"SELECT 1","unknown":true}`, code: "INVALID_JSON"},
		{body: `{"sql":"SELECT 1","paginate":true,"offset":-1}`, code: "INVALID_PAGINATION"},
		{body: `{"sql":"SELECT 1","format":"xlsx"}`, code: "INVALID_FORMAT"},
	}
	for _, tc := range tests {
		rr := postQuery(t, h, id, tc.body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d", tc.body, rr.Code)
		}
		if body := decodeBody(t, rr); body["error_code"] != tc.code {
			t.Fatalf("%s error_code = %v, want %s", tc.body, body["error_code"], tc.code)
		}
	}
}

func TestQueryPaginated(t *testing.T) {
	h, ws := newTestHandler(t, nil)
	id := uploadReady(t, h, ws, sqlitetest.BuildImage(t, sqlitetest.People(25)...))

	rr := postQuery(t, h, id, `{"sql":"SELECT * FROM people ORDER BY rowid;","paginate":true,"offset":10,"limit":10}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var page pageBody
	decodeInto(t, rr, &page)
	if page.Pagination.Offset != 10 || len(page.Rows) != 10 || page.Pagination.Total != 10 {
		t.Fatalf("page = %#v", page.Pagination)
	}
	if !page.Pagination.HasPrev || !page.Pagination.HasNext {
		t.Fatalf("pagination = %#v", page.Pagination)
	}
}

func TestQueryAsText(t *testing.T) {
	h, ws := newTestHandler(t, nil)
	id := uploadReady(t, h, ws, sqlitetest.BuildImage(t, sqlitetest.People(3)...))

	rr := postQuery(t, h, id, `{"sql":"SELECT city FROM people ORDER BY rowid","format":"markdown"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "City1") || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/markdown") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestIsAllowedSQL(t *testing.T) {
	allowed := []string{"select 1", "  WITH x AS (SELECT 1) SELECT * FROM x", "PRAGMA table_info(people)", "explain select 1", "DESCRIBE people", "show tables"}
	for _, sql := range allowed {
		if !isAllowedSQL(sql) {
			t.Fatalf("isAllowedSQL(%q) = false", sql)
		}
	}
	for _, sql := range []string{"", "insert into t values (1)", "update t set a = 1", "attach 'x' as y"} {
		if isAllowedSQL(sql) {
			t.Fatalf("isAllowedSQL(%q) = true", sql)
		}
	}
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("json decode failed: %v (body=%s)", err, rr.Body.String())
	}
}
