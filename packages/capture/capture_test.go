package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abdul-hamid-achik/apicheck/packages/http"
)

func TestExtractAll(t *testing.T) {
	resp := &http.Response{
		StatusCode: 201,
		Headers:    map[string]string{"Location": "/orders/42"},
		Body: []byte(`{
			"id": 42,
			"total": 19.5,
			"customer": {"email": "jane@example.com"},
			"items": [{"sku": "A-1"}, {"sku": "B-2"}],
			"meta": {"page": 1}
		}`),
	}

	values, missing := ExtractAll(resp, map[string]string{
		"order_id": "id",
		"total":    "total",
		"email":    "customer.email",
		"sku":      "items.1.sku",
		"meta":     "meta",
		"location": "header:Location",
		"ghost":    "nope.deeper",
		"absent":   "header:X-Missing",
	})

	assert.Equal(t, int64(42), values["order_id"])
	assert.Equal(t, 19.5, values["total"])
	assert.Equal(t, "jane@example.com", values["email"])
	assert.Equal(t, "B-2", values["sku"])
	assert.Equal(t, map[string]any{"page": int64(1)}, values["meta"])
	assert.Equal(t, "/orders/42", values["location"])
	assert.Equal(t, []string{"absent", "ghost"}, missing)
}

func TestExtract_NonJSONBody(t *testing.T) {
	resp := &http.Response{Body: []byte("plain text")}
	e := NewExtractor(resp)

	v, ok := e.Extract("")
	assert.True(t, ok)
	assert.Equal(t, "plain text", v)

	_, ok = e.Extract("id")
	assert.False(t, ok)
}

func TestExtract_WholeBody(t *testing.T) {
	resp := &http.Response{Body: []byte(`[1, 2]`)}
	v, ok := NewExtractor(resp).Extract("")
	assert.True(t, ok)
	assert.Equal(t, []any{int64(1), int64(2)}, v)
}
