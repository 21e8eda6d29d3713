package litelensctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/litelens/litelens/internal/render"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	// print renders a successful response; nil prints the JSON body.
	print func(w io.Writer, body []byte) error
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("litelensctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "litelens API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 10s)")
	search := fs.String("search", "", "search term applied by the page command")
	raw := fs.Bool("json", false, "print raw JSON instead of tables")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	req, err := buildRequest(fs.Args(), *search)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}
	if *raw {
		req.print = nil
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req, endpoint, *apiKey)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if req.print != nil {
		if err := req.print(stdout, responseBody); err != nil {
			_, _ = fmt.Fprintf(stderr, "decode response: %v\n", err)
			return 1
		}
		return 0
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(args []string, search string) (request, error) {
	command := strings.TrimSpace(args[0])
	operands := args[1:]
	need := func(n int) error {
		if len(operands) < n {
			return fmt.Errorf("%s: expected %d argument(s), got %d", command, n, len(operands))
		}
		return nil
	}

	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "sources":
		return request{method: http.MethodGet, path: "/v1/sources", print: printSources}, nil
	case "example":
		return request{method: http.MethodPost, path: "/v1/sources/example", print: printLoaded}, nil
	case "load":
		if err := need(1); err != nil {
			return request{}, err
		}
		body, contentType, err := multipartFile(operands[0])
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/sources", body: body, contentType: contentType, print: printLoaded}, nil
	case "tables":
		if err := need(1); err != nil {
			return request{}, err
		}
		return request{method: http.MethodGet, path: sourcePath(operands[0]) + "/tables", print: printTables}, nil
	case "page":
		if err := need(2); err != nil {
			return request{}, err
		}
		query := url.Values{}
		if len(operands) > 2 {
			offset, err := strconv.Atoi(operands[2])
			if err != nil || offset < 0 {
				return request{}, fmt.Errorf("page: invalid offset %q", operands[2])
			}
			query.Set("offset", strconv.Itoa(offset))
		}
		if search != "" {
			query.Set("search", search)
		}
		path := sourcePath(operands[0]) + "/tables/" + url.PathEscape(operands[1])
		if encoded := query.Encode(); encoded != "" {
			path += "?" + encoded
		}
		return request{method: http.MethodGet, path: path, print: printPage}, nil
	case "query":
		if err := need(2); err != nil {
			return request{}, err
		}
		payload, err := json.Marshal(map[string]any{"sql": strings.Join(operands[1:], " ")})
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: sourcePath(operands[0]) + "/query", body: bytes.NewReader(payload), contentType: "application/json", print: printQuery}, nil
	case "drop":
		if err := need(1); err != nil {
			return request{}, err
		}
		return request{method: http.MethodDelete, path: sourcePath(operands[0])}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func sourcePath(id string) string {
	return "/v1/sources/" + url.PathEscape(strings.TrimSpace(id))
}

func multipartFile(path string) (io.Reader, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}

func doRequest(ctx context.Context, client *http.Client, r request, url, apiKey string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, url, r.body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

type sourceSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Origin    string `json:"origin"`
	SizeBytes int64  `json:"size_bytes"`
	Status    struct {
		State   string `json:"state"`
		Message string `json:"message"`
	} `json:"status"`
	Engine string   `json:"engine"`
	Tables []string `json:"tables"`
}

func printSources(w io.Writer, body []byte) error {
	var payload struct {
		Sources []sourceSummary `json:"sources"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}
	rows := make([][]any, 0, len(payload.Sources))
	for _, s := range payload.Sources {
		state := s.Status.State
		if s.Status.Message != "" {
			state += ": " + s.Status.Message
		}
		rows = append(rows, []any{s.ID, s.Name, s.Origin, s.SizeBytes, s.Engine, state, len(s.Tables)})
	}
	return render.Write(w, render.FormatText, []string{"id", "name", "origin", "bytes", "engine", "status", "tables"}, rows)
}

func printLoaded(w io.Writer, body []byte) error {
	var summary sourceSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s\t%s\t%s\n", summary.ID, summary.Name, summary.Status.State)
	return err
}

func printTables(w io.Writer, body []byte) error {
	var payload struct {
		Tables []string `json:"tables"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}
	for _, table := range payload.Tables {
		if _, err := fmt.Fprintln(w, table); err != nil {
			return err
		}
	}
	return nil
}

func printPage(w io.Writer, body []byte) error {
	var page struct {
		Columns    []string `json:"columns"`
		Rows       [][]any  `json:"rows"`
		Pagination struct {
			Total  int `json:"total"`
			Offset int `json:"offset"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return err
	}
	if err := render.Write(w, render.FormatText, page.Columns, page.Rows); err != nil {
		return err
	}
	first := page.Pagination.Offset + 1
	if len(page.Rows) == 0 {
		first = page.Pagination.Offset
	}
	_, err := fmt.Fprintf(w, "rows %d-%d of %d\n", first, page.Pagination.Offset+len(page.Rows), page.Pagination.Total)
	return err
}

func printQuery(w io.Writer, body []byte) error {
	var payload struct {
		Result *struct {
			Columns []string `json:"columns"`
			Values  [][]any  `json:"values"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}
	if payload.Result == nil {
		_, err := fmt.Fprintln(w, "no result")
		return err
	}
	return render.Write(w, render.FormatText, payload.Result.Columns, payload.Result.Values)
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: litelensctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                          GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                           GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  sources                         list loaded sources")
	_, _ = fmt.Fprintln(w, "  load <file>                     upload a SQLite or DuckDB file")
	_, _ = fmt.Fprintln(w, "  example                         load the bundled example database")
	_, _ = fmt.Fprintln(w, "  tables <source>                 list the tables of a source")
	_, _ = fmt.Fprintln(w, "  page <source> <table> [offset]  print one page of a table (see -search)")
	_, _ = fmt.Fprintln(w, "  query <source> <sql>            run a read-only statement")
	_, _ = fmt.Fprintln(w, "  drop <source>                   release a source")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
