package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/test", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "hello"}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Do(context.Background(), NewRequest("GET", server.URL+"/test"))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header("Content-Type"))
	assert.Equal(t, map[string]any{"message": "hello"}, resp.Decode())
	assert.Equal(t, server.URL+"/test", resp.URL)
}

func TestClient_PostJSONData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "test", got["name"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	req := NewRequest("POST", server.URL).SetData(map[string]any{"name": "test"})
	resp, err := NewClient().Do(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": json.Number("123")}, resp.Decode())
	assert.Equal(t, "application/json", resp.SentHeaders["Content-Type"])
}

func TestClient_StringDataKeepsContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "a=1&b=2", string(body))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	req := NewRequest("POST", server.URL).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetData("a=1&b=2")
	resp, err := NewClient().Do(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
	assert.Equal(t, map[string]any{}, resp.Decode())
}

func TestClient_QueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "true", q.Get("active"))
		assert.Equal(t, []string{"a", "b"}, q["tag"])
		assert.Equal(t, "x", q.Get("keep"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL+"/items?keep=x").
		SetQueryParam("limit", 10).
		SetQueryParam("active", true).
		SetQueryParam("tag", []any{"a", "b"})
	_, err := NewClient().Do(context.Background(), req)
	require.NoError(t, err)
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	_, err := client.Do(context.Background(), NewRequest("GET", server.URL))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, transportErr.Timeout())
}

func TestClient_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL).SetTimeout(30 * time.Millisecond)
	_, err := NewClient().Do(context.Background(), req)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	_, err := NewClient().Do(context.Background(), NewRequest("GET", addr+"/users/1"))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "GET", transportErr.Method)
	assert.Equal(t, addr+"/users/1", transportErr.URL)
	assert.False(t, transportErr.Timeout())
}

func TestClient_InvalidURL(t *testing.T) {
	tests := []string{
		"ftp://example.com/file",
		"/relative/only",
		"http://",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := NewClient().Do(context.Background(), NewRequest("GET", raw))
			var transportErr *TransportError
			assert.ErrorAs(t, err, &transportErr)
		})
	}
}

func TestClient_DefaultHeadersAndCookie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "session=abc", r.Header.Get("Cookie"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "override", r.Header.Get("X-Trace"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(
		WithCookie("session=abc"),
		WithDefaultHeaders(map[string]string{
			"User-Agent": "custom-agent",
			"X-Trace":    "default",
		}),
	)
	req := NewRequest("GET", server.URL).SetHeader("X-Trace", "override")
	resp, err := client.Do(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "session=abc", resp.SentHeaders["Cookie"])
	assert.Equal(t, "session=abc", client.DefaultHeaders()["Cookie"])
}

func TestClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithRateLimit(10))
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Do(context.Background(), NewRequest("GET", server.URL))
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	client := NewClient(WithRateLimit(0.001))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Do(ctx, NewRequest("GET", "http://127.0.0.1:1"))
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestClient_FollowRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`final`))
			return
		}
		redirectCount++
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(true))
	resp, err := client.Do(context.Background(), NewRequest("GET", server.URL+"/redirect"))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "final", resp.BodyString())
	assert.Equal(t, 1, redirectCount)
}

func TestClient_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(false))
	resp, err := client.Do(context.Background(), NewRequest("GET", server.URL))

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
}

func TestClient_MaxRedirects(t *testing.T) {
	hops := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", hops), http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithMaxRedirects(2))
	resp, err := client.Do(context.Background(), NewRequest("GET", server.URL))

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
	assert.Equal(t, 3, hops)
}

func TestClient_ValidateSSL(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`secure`))
	}))
	defer server.Close()

	_, err := NewClient().Do(context.Background(), NewRequest("GET", server.URL))
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)

	resp, err := NewClient(WithValidateSSL(false)).Do(context.Background(), NewRequest("GET", server.URL))
	require.NoError(t, err)
	assert.Equal(t, "secure", resp.BodyString())
}

func TestClient_Proxy(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("via proxy: " + r.URL.Host))
	}))
	defer proxy.Close()

	client := NewClient(WithProxy(proxy.URL))
	resp, err := client.Do(context.Background(), NewRequest("GET", "http://api.internal.test/users"))

	require.NoError(t, err)
	assert.Equal(t, "via proxy: api.internal.test", resp.BodyString())
}

func TestResponse_Decode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{"empty", "", map[string]any{}},
		{"whitespace", " \n", map[string]any{}},
		{"object", `{"a": 1.5}`, map[string]any{"a": json.Number("1.5")}},
		{"array", `[1, "x"]`, []any{json.Number("1"), "x"}},
		{"scalar", `"ok"`, "ok"},
		{"plain text", "Not Found", "Not Found"},
		{"trailing garbage", `{"a": 1} extra`, `{"a": 1} extra`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &Response{Body: []byte(tt.body)}
			assert.Equal(t, tt.want, resp.Decode())
		})
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://api.test", "/users", "http://api.test/users"},
		{"http://api.test/", "users", "http://api.test/users"},
		{"http://api.test/v1", "/users/1", "http://api.test/v1/users/1"},
		{"http://api.test", "https://other.test/x", "https://other.test/x"},
		{"", "/users", "/users"},
		{"http://api.test", "", "http://api.test"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinURL(tt.base, tt.path), "%s + %s", tt.base, tt.path)
	}
}
