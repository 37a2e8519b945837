package runner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/env"
	"github.com/abdul-hamid-achik/apicheck/packages/core/parser"
	apihttp "github.com/abdul-hamid-achik/apicheck/packages/http"
)

const userJSON = `{"id": 1, "name": "Jane Smith", "email": "jane@example.com", "phone": "123-456-7890", "dob": "01/15/90"}`

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runYAML(t *testing.T, r *Runner, content string) *RunResult {
	t.Helper()
	path := writeTestFile(t, t.TempDir(), "cases.yaml", content)
	result, err := r.RunFile(context.Background(), path)
	require.NoError(t, err)
	return result
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func closedServerURL() string {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()
	return url
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		r := NewRunner(nil)
		assert.NotNil(t, r)
		assert.NotNil(t, r.client)
		assert.NotNil(t, r.resolver)
		assert.NotNil(t, r.logger)
	})

	t.Run("seeds bindings", func(t *testing.T) {
		r := NewRunner(&Config{Variables: map[string]any{"token": "abc"}})
		v, ok := r.Bindings().Lookup("token")
		assert.True(t, ok)
		assert.Equal(t, "abc", v)
	})
}

func TestRunner_UserRecordPasses(t *testing.T) {
	server := httptest.NewServer(jsonHandler(http.StatusOK, userJSON))
	defer server.Close()

	result := runYAML(t, NewRunner(nil), `
base_url: `+server.URL+`
test_cases:
  - name: Get user
    description: Fetch Jane
    url: users/1
    expected_status: 200
    expected_response:
      id: pattern:integer
      name: pattern:name
      email: pattern:email
      phone: 123-456-7890
      dob: pattern:date_mm_dd_yy
`)

	require.Len(t, result.Results, 1)
	cr := result.Results[0]
	assert.Equal(t, StatusPass, cr.Status, "mismatches: %v, err: %v", cr.Mismatches, cr.Error)
	assert.Equal(t, StateDone, cr.State)
	assert.Equal(t, StateCompared, cr.Reached)
	assert.Empty(t, cr.Mismatches)
	assert.Equal(t, "Fetch Jane", cr.Description)
	assert.Equal(t, "GET", cr.Request.Method)
	assert.Equal(t, server.URL+"/users/1", cr.Request.URL)
	assert.Equal(t, 200, cr.Response.StatusCode)
	assert.Equal(t, 1, result.Passed)
	assert.True(t, result.OK())
	assert.Equal(t, int64(1), result.Latency.Count)
}

func TestRunner_StatusAndBodyMismatchesBothReported(t *testing.T) {
	server := httptest.NewServer(jsonHandler(http.StatusCreated, `{"name": "Jane", "role": "user"}`))
	defer server.Close()

	result := runYAML(t, NewRunner(nil), `
base_url: `+server.URL+`
test_cases:
  - name: mismatch
    url: /users/1
    expected_status: 200
    expected_response:
      name: Jane
      role: admin
`)

	cr := result.Results[0]
	assert.Equal(t, StatusFail, cr.Status)
	assert.Equal(t, StateDone, cr.State)
	require.Len(t, cr.Mismatches, 2)
	assert.Equal(t, "status", cr.Mismatches[0].Path)
	assert.Equal(t, 200, cr.Mismatches[0].Expected)
	assert.Equal(t, 201, cr.Mismatches[0].Actual)
	assert.Equal(t, "$.role", cr.Mismatches[1].Path)
	assert.Equal(t, 1, result.Failed)
}

func TestRunner_TransportErrorDoesNotStopRun(t *testing.T) {
	server := httptest.NewServer(jsonHandler(http.StatusOK, `{"ok": true}`))
	defer server.Close()
	dead := closedServerURL()

	result := runYAML(t, NewRunner(nil), `
base_url: `+server.URL+`
test_cases:
  - name: unreachable
    url: `+dead+`/users/1
    expected_status: 200
  - name: reachable
    url: /health
    expected_status: 200
    expected_response: {ok: true}
`)

	require.Len(t, result.Results, 2)

	failed := result.Results[0]
	assert.Equal(t, StatusError, failed.Status)
	assert.Equal(t, StateDone, failed.State)
	var transportErr *apihttp.TransportError
	assert.ErrorAs(t, failed.Error, &transportErr)
	assert.Equal(t, StateResolved, failed.Reached)
	assert.Nil(t, failed.Response)

	assert.Equal(t, StatusPass, result.Results[1].Status)
	assert.Equal(t, 1, result.Errored)
	assert.Equal(t, 1, result.Passed)
	assert.False(t, result.OK())
	assert.Equal(t, int64(1), result.Latency.Failures)
}

func TestRunner_DefinitionProblemsAreErrors(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		jsonHandler(http.StatusOK, `{"code": "X1"}`)(w, r)
	}))
	defer server.Close()

	result := runYAML(t, NewRunner(nil), `
base_url: `+server.URL+`
test_cases:
  - name: unbound
    url: /items/${missing_id}
  - name: unknown pattern
    url: /items/1
    expected_response:
      code: pattern:postcode
  - name: bad method
    method: TRACE
    url: /items/1
  - name: fine
    url: /items/1
    expected_response:
      code: regex:[A-Z]\d
`)

	require.Len(t, result.Results, 4)

	var unbound *env.UnboundVariableError
	assert.Equal(t, StatusError, result.Results[0].Status)
	assert.ErrorAs(t, result.Results[0].Error, &unbound)
	assert.Equal(t, "missing_id", unbound.Name)

	var unknown *assertions.UnknownPatternError
	assert.Equal(t, StatusError, result.Results[1].Status)
	assert.ErrorAs(t, result.Results[1].Error, &unknown)

	var defErr *parser.DefinitionError
	assert.Equal(t, StatusError, result.Results[2].Status)
	assert.ErrorAs(t, result.Results[2].Error, &defErr)
	assert.Equal(t, StateDone, result.Results[2].State)

	assert.Equal(t, StatusPass, result.Results[3].Status)
	assert.Equal(t, 3, result.Errored)
	assert.Equal(t, 2, hits, "only cases that resolve send a request")
}

func TestRunner_UnboundExpectationStopsBeforeSending(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		jsonHandler(http.StatusOK, `{"id": 1}`)(w, r)
	}))
	defer server.Close()

	result := runYAML(t, NewRunner(nil), `
base_url: `+server.URL+`
test_cases:
  - name: unbound expectation
    url: /users/1
    expected_response:
      id: ${user_id}
`)

	require.Len(t, result.Results, 1)
	got := result.Results[0]

	var unbound *env.UnboundVariableError
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, Classify(got.Error), got.Status)
	assert.ErrorAs(t, got.Error, &unbound)
	assert.Equal(t, StateLoaded, got.Reached)
	assert.NotNil(t, got.Request, "the resolved request is still reported")
	assert.Nil(t, got.Response)
	assert.Equal(t, 0, hits)
	assert.Equal(t, int64(0), result.Latency.Failures)
}

func TestRunner_ExtractVariablesFeedLaterCases(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		jsonHandler(http.StatusCreated, `{"id": 42, "state": "new"}`)(w, r)
	})
	mux.HandleFunc("/orders/42", jsonHandler(http.StatusOK, `{"id": 42, "state": "paid"}`))
	server := httptest.NewServer(mux)
	defer server.Close()

	r := NewRunner(nil)
	result := runYAML(t, r, `
base_url: `+server.URL+`
test_cases:
  - name: create
    method: POST
    url: /orders
    data: {sku: A-1}
    expected_status: 201
    extract_variables:
      order_id: id
  - name: fetch
    url: /orders/${order_id}
    expected_status: 200
    expected_response:
      id: ${order_id}
      state: paid
`)

	for _, cr := range result.Results {
		assert.Equal(t, StatusPass, cr.Status, "%s: %v %v", cr.Name, cr.Mismatches, cr.Error)
	}
	assert.Equal(t, map[string]any{"order_id": int64(42)}, result.Results[0].Captured)
	assert.Equal(t, server.URL+"/orders/42", result.Results[1].Request.URL)

	v, ok := r.Bindings().Lookup("order_id")
	require.True(t, ok)
	assert.Equal(t, int64(42), v)
}

func TestRunner_ExpectationsMayUseOwnExtractedValues(t *testing.T) {
	server := httptest.NewServer(jsonHandler(http.StatusOK, `{"id": "a-9", "self": "a-9"}`))
	defer server.Close()

	result := runYAML(t, NewRunner(nil), `
base_url: `+server.URL+`
test_cases:
  - name: self reference
    url: /things/latest
    extract_variables:
      thing: id
    expected_response:
      self: ${thing}
`)

	assert.Equal(t, StatusPass, result.Results[0].Status, "%v", result.Results[0].Error)
}

func TestRunner_HTTPPrecondition(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "jane", body["user"])
		jsonHandler(http.StatusOK, `{"auth": {"token": "t-123"}}`)(w, r)
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		jsonHandler(http.StatusOK, `{"user": "jane"}`)(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result := runYAML(t, NewRunner(&Config{Variables: map[string]any{"username": "jane"}}), `
base_url: `+server.URL+`
test_cases:
  - name: me
    url: /me
    headers:
      Authorization: Bearer ${token}
    preconditions:
      - method: POST
        url: /login
        data: {user: "${username}"}
        extract_variables:
          token: auth.token
    expected_status: 200
    expected_response: {user: jane}
`)

	cr := result.Results[0]
	assert.Equal(t, StatusPass, cr.Status, "%v %v", cr.Mismatches, cr.Error)
	assert.Equal(t, "Bearer t-123", cr.Request.Headers["Authorization"])
}

func TestRunner_ScriptPrecondition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonHandler(http.StatusOK, fmt.Sprintf(`{"q": %q}`, r.URL.Query().Get("q")))(w, r)
	}))
	defer server.Close()

	dir := t.TempDir()
	script := writeTestFile(t, dir, "seed.sh", `#!/bin/sh
printf '{"seed": "%s", "count": %s, "base": "%s"}' "$1" "$2" "$API_BASE_URL"
`)
	require.NoError(t, os.Chmod(script, 0755))
	writeTestFile(t, dir, "fail.sh", "#!/bin/sh\necho boom >&2\nexit 3\n")
	require.NoError(t, os.Chmod(filepath.Join(dir, "fail.sh"), 0755))

	path := writeTestFile(t, dir, "cases.yaml", `
base_url: `+server.URL+`
test_cases:
  - name: seeded
    url: /search
    params:
      q: ${seed}
    preconditions:
      - script: seed.sh
        args: [hello world, "7"]
    expected_response:
      q: hello world
  - name: broken script
    url: /search
    preconditions:
      - script: fail.sh
`)

	r := NewRunner(nil)
	result, err := r.RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, StatusPass, result.Results[0].Status, "%v", result.Results[0].Error)
	count, _ := r.Bindings().Lookup("count")
	assert.Equal(t, int64(7), count)
	base, _ := r.Bindings().Lookup("base")
	assert.Equal(t, server.URL, base)

	broken := result.Results[1]
	assert.Equal(t, StatusError, broken.Status)
	assert.Equal(t, StateLoaded, broken.Reached)
	var scriptErr *ScriptError
	require.ErrorAs(t, broken.Error, &scriptErr)
	assert.Equal(t, "boom", scriptErr.Stderr)
}

func TestRunner_SQLPrecondition(t *testing.T) {
	dir := t.TempDir()
	conn, err := sql.Open("sqlite3", filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	_, err = conn.Exec(`CREATE TABLE customers (id INTEGER, email TEXT); INSERT INTO customers VALUES (7, 'jane@example.com');`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/7", r.URL.Path)
		jsonHandler(http.StatusOK, `{"email": "jane@example.com"}`)(w, r)
	}))
	defer server.Close()

	path := writeTestFile(t, dir, "cases.yaml", `
base_url: `+server.URL+`
test_cases:
  - name: customer
    url: /customers/${customer}
    preconditions:
      - database: sqlite:app.db
        query: SELECT id, email FROM customers LIMIT 1
        extract:
          customer: ID
      - database: sqlite:app.db
        query: SELECT email AS expected_email FROM customers
    expected_response:
      email: ${expected_email}
  - name: empty query
    url: /customers/7
    preconditions:
      - database: sqlite:app.db
        query: SELECT id FROM customers WHERE id = 0
`)

	result, err := NewRunner(nil).RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, StatusPass, result.Results[0].Status, "%v", result.Results[0].Error)
	assert.Equal(t, StatusError, result.Results[1].Status)
	assert.Contains(t, result.Results[1].Error.Error(), "no rows")
}

func TestRunner_ValidationModes(t *testing.T) {
	body := `{"users": [{"id": 1, "name": "Ann"}, {"id": 2, "name": "Bob"}], "contact": {"phone": "(555) 123-4567"}}`
	server := httptest.NewServer(jsonHandler(http.StatusOK, body))
	defer server.Close()

	result := runYAML(t, NewRunner(nil), `
base_url: `+server.URL+`
test_cases:
  - name: partial
    url: /users
    validation_mode: partial
    expected_response:
      users:
        - name: Bob
  - name: specific
    url: /users
    validation_mode: specific
    validation_path: [contact, phone]
    expected_response: pattern:phone_us
  - name: specific missing path
    url: /users
    validation_mode: specific
    validation_path: [contact, fax]
    expected_response: pattern:phone_us
  - name: rules
    url: /users
    validation_rules:
      - field: users.0.id
        expected_value: 1
        comparison: equals
      - field: $.users[1].name
        expected_value: Bo
        comparison: contains
      - field: users
        comparison: expression
        expected_value: len(value) == 2
`)

	require.Len(t, result.Results, 4)
	assert.Equal(t, StatusPass, result.Results[0].Status, "%v", result.Results[0].Mismatches)
	assert.Equal(t, StatusPass, result.Results[1].Status, "%v", result.Results[1].Mismatches)

	missing := result.Results[2]
	assert.Equal(t, StatusFail, missing.Status)
	require.Len(t, missing.Mismatches, 1)
	var pathErr *assertions.PathNotFoundError
	assert.ErrorAs(t, missing.Mismatches[0].Cause, &pathErr)

	assert.Equal(t, StatusPass, result.Results[3].Status, "%v %v", result.Results[3].Mismatches, result.Results[3].Error)
}

func TestRunner_SchemaFile(t *testing.T) {
	server := httptest.NewServer(jsonHandler(http.StatusOK, `{"id": "not-a-number"}`))
	defer server.Close()

	dir := t.TempDir()
	writeTestFile(t, dir, "user.schema.yaml", `
type: object
required: [id, name]
properties:
  id: {type: integer}
`)
	path := writeTestFile(t, dir, "cases.yaml", `
base_url: `+server.URL+`
test_cases:
  - name: schema
    url: /users/1
    schema: user.schema.yaml
`)

	result, err := NewRunner(nil).RunFile(context.Background(), path)
	require.NoError(t, err)

	cr := result.Results[0]
	assert.Equal(t, StatusFail, cr.Status)
	assert.Len(t, cr.Mismatches, 2)
	for _, m := range cr.Mismatches {
		assert.True(t, strings.HasPrefix(m.Reason, "schema: "), m.Reason)
	}
}

func TestRunner_CookieAndDefaultHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "session=xyz", r.Header.Get("Cookie"))
		assert.Equal(t, "apicheck", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	r := NewRunner(&Config{
		BaseURL: server.URL,
		Cookie:  "session=xyz",
		Headers: map[string]string{"User-Agent": "apicheck"},
	})
	result := runYAML(t, r, `
base_url: http://ignored.invalid
test_cases:
  - name: delete
    method: DELETE
    url: /users/1
    expected_status: 204
    expected_response: {}
`)

	cr := result.Results[0]
	assert.Equal(t, StatusPass, cr.Status, "%v %v", cr.Mismatches, cr.Error)
	assert.Equal(t, server.URL, result.BaseURL)
	assert.Equal(t, "session=xyz", cr.Request.Headers["Cookie"])
}

func TestRunner_Filters(t *testing.T) {
	server := httptest.NewServer(jsonHandler(http.StatusOK, `{}`))
	defer server.Close()

	content := `
base_url: ` + server.URL + `
tags: [users]
test_cases:
  - name: list users
    url: /users
    tags: [smoke]
  - name: create user
    url: /users
    tags: [write]
  - name: delete user
    url: /users/1
`

	t.Run("tags", func(t *testing.T) {
		result := runYAML(t, NewRunner(&Config{TagsFilter: []string{"smoke", "write"}}), content)
		assert.Equal(t, 2, result.Passed)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, StatusSkipped, result.Results[2].Status)
		assert.Equal(t, "tag filter", result.Results[2].SkipReason)
	})

	t.Run("file tags apply to every case", func(t *testing.T) {
		result := runYAML(t, NewRunner(&Config{TagsFilter: []string{"users"}}), content)
		assert.Equal(t, 3, result.Passed)
		assert.Equal(t, []string{"users", "smoke"}, result.Results[0].Tags)
	})

	t.Run("name", func(t *testing.T) {
		result := runYAML(t, NewRunner(&Config{NameFilter: "*user*"}), content)
		assert.Equal(t, 3, result.Passed)

		result = runYAML(t, NewRunner(&Config{NameFilter: "create*"}), content)
		assert.Equal(t, 1, result.Passed)
		assert.Equal(t, 2, result.Skipped)
	})
}

type fakeDoer struct {
	requests []*apihttp.Request
	resp     *apihttp.Response
	err      error
}

func (f *fakeDoer) Do(_ context.Context, req *apihttp.Request) (*apihttp.Response, error) {
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func TestRunner_InjectedClient(t *testing.T) {
	fake := &fakeDoer{resp: &apihttp.Response{StatusCode: 200, Body: []byte(`Not JSON`)}}
	r := NewRunner(&Config{Client: fake, BaseURL: "http://api.test"})

	file, err := parser.Parse([]byte(`
- endpoint: /ping
  params: {verbose: true}
`), "inline.yaml")
	require.NoError(t, err)

	result := r.Run(context.Background(), file)
	require.Len(t, fake.requests, 1)
	assert.Equal(t, "http://api.test/ping?verbose=true", fake.requests[0].BuildURL())
	assert.Equal(t, "Not JSON", result.Results[0].Response.Body)
	assert.Equal(t, StatusPass, result.Results[0].Status)
}

func TestRunner_ParseErrorAbortsFile(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "broken.yaml", "test_cases: [unclosed")
	_, err := NewRunner(nil).RunFile(context.Background(), path)

	var parseErr *parser.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestRunner_BindingsSharedAcrossFiles(t *testing.T) {
	server := httptest.NewServer(jsonHandler(http.StatusOK, `{"token": "abc"}`))
	defer server.Close()

	r := NewRunner(nil)
	first := runYAML(t, r, `
base_url: `+server.URL+`
test_cases:
  - url: /login
    extract_variables: {token: token}
`)
	second := runYAML(t, r, `
base_url: `+server.URL+`
test_cases:
  - url: /profile
    headers: {X-Token: "${token}"}
`)

	assert.Equal(t, StatusPass, first.Results[0].Status)
	assert.Equal(t, "abc", second.Results[0].Request.Headers["X-Token"])
	assert.Equal(t, int64(2), r.Latency().Summary().Count)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusPass},
		{"unbound", &env.UnboundVariableError{Name: "x"}, StatusError},
		{"unknown pattern", &assertions.UnknownPatternError{Name: "zip"}, StatusError},
		{"definition", &parser.DefinitionError{Err: errors.New("bad")}, StatusError},
		{"transport", &apihttp.TransportError{Err: errors.New("refused")}, StatusError},
		{"path not found", &assertions.PathNotFoundError{Reason: "missing key"}, StatusFail},
		{"schema", fmt.Errorf("check: %w", &assertions.SchemaError{}), StatusFail},
		{"other", errors.New("boom"), StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"Get user", "", true},
		{"Get user", "*", true},
		{"Get user", "Get user", true},
		{"Get user", "Get*", true},
		{"Get user", "*user", true},
		{"Get user", "*t u*", true},
		{"Get user", "Post*", false},
		{"Get user", "Get", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesPattern(tt.name, tt.pattern), "%q ~ %q", tt.name, tt.pattern)
	}
}

func TestHasAnyTag(t *testing.T) {
	assert.True(t, hasAnyTag([]string{"a", "b"}, []string{"b"}))
	assert.False(t, hasAnyTag([]string{"a"}, []string{"c"}))
	assert.False(t, hasAnyTag(nil, []string{"c"}))
}
