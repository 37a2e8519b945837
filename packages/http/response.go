package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"
)

type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration

	// URL and SentHeaders record what actually went over the wire, default
	// headers included.
	URL         string
	SentHeaders map[string]string
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// Decode returns the body as JSON-like data with numbers kept as
// json.Number. An empty body decodes to an empty mapping and a body that is
// not JSON is returned as a string.
func (r *Response) Decode() any {
	trimmed := bytes.TrimSpace(r.Body)
	if len(trimmed) == 0 {
		return map[string]any{}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var result any
	if err := dec.Decode(&result); err != nil {
		return string(r.Body)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return string(r.Body)
	}
	return result
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
