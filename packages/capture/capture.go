package capture

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/http"
)

// HeaderPrefix selects a response header instead of a body path.
const HeaderPrefix = "header:"

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
	isJSON   bool
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
		e.isJSON = true
	}
	return e
}

// Extract looks up one path. Body paths are dotted, with numeric parts
// indexing into arrays: data.items.0.id. A header:Name path reads a header.
func (e *Extractor) Extract(path string) (any, bool) {
	if name, ok := strings.CutPrefix(path, HeaderPrefix); ok {
		return e.extractFromHeader(strings.TrimSpace(name))
	}
	return e.extractFromBody(path)
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.isJSON {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return valueOf(e.bodyJSON), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return valueOf(result), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.response.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// ExtractAll resolves every name to path pair against resp. Names whose path
// is absent are returned, sorted, in missing.
func ExtractAll(resp *http.Response, paths map[string]string) (values map[string]any, missing []string) {
	extractor := NewExtractor(resp)
	values = make(map[string]any, len(paths))

	for name, path := range paths {
		if value, ok := extractor.Extract(path); ok {
			values[name] = value
			continue
		}
		missing = append(missing, name)
	}
	sort.Strings(missing)

	return values, missing
}

// valueOf keeps integers as int64 so extracted ids render without a
// fractional part when substituted into later requests.
func valueOf(r gjson.Result) any {
	switch r.Type {
	case gjson.Number:
		return assertions.PlainNumbers(json.Number(r.Raw))
	case gjson.JSON:
		dec := json.NewDecoder(bytes.NewReader([]byte(r.Raw)))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return r.Value()
		}
		return assertions.PlainNumbers(v)
	default:
		return r.Value()
	}
}
