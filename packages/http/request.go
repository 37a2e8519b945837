package http

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Request is a fully resolved request ready to send. Data is encoded as JSON
// unless it is already a string or byte slice.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Params  map[string]any
	Data    any
	Timeout time.Duration
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
		Params:  make(map[string]any),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetData(data any) *Request {
	r.Data = data
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) SetQueryParam(key string, value any) *Request {
	if r.Params == nil {
		r.Params = make(map[string]any)
	}
	r.Params[key] = value
	return r
}

// Header looks up a request header case-insensitively.
func (r *Request) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// BuildURL returns URL with Params merged into its query string. Sequence
// values repeat the key; other scalars are stringified.
func (r *Request) BuildURL() string {
	if len(r.Params) == 0 {
		return r.URL
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}

	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := u.Query()
	for _, k := range keys {
		q.Del(k)
		switch v := r.Params[k].(type) {
		case []any:
			for _, item := range v {
				q.Add(k, paramString(item))
			}
		case []string:
			for _, item := range v {
				q.Add(k, item)
			}
		default:
			q.Set(k, paramString(v))
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// EncodeBody serializes Data. JSON bodies get an application/json
// Content-Type unless one is already set.
func (r *Request) EncodeBody() ([]byte, error) {
	switch v := r.Data.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}

	body, err := json.Marshal(r.Data)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	if r.Header("Content-Type") == "" {
		r.SetHeader("Content-Type", "application/json")
	}
	return body, nil
}

// JoinURL joins path onto base. Absolute paths are returned unchanged and a
// missing leading slash is added.
func JoinURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if base == "" {
		return path
	}
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(base, "/") + path
}

func paramString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool, int, int64, float64, json.Number:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
