package assertions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateRule(t *testing.T) {
	body := decodeJSON(t, `{
		"status": "active",
		"user": {"id": 42, "email": "jane@example.com", "roles": ["admin", "viewer"]},
		"items": [{"sku": "A-1", "price": 9.5}, {"sku": "B-2", "price": 20}],
		"message": "created successfully"
	}`)

	tests := []struct {
		name       string
		field      string
		expected   any
		comparison string
		status     Status
	}{
		{"equals default", "status", "active", "", StatusPass},
		{"equals mismatch", "status", "inactive", "equals", StatusFail},
		{"equals pattern", "user.id", "pattern:integer", "equals", StatusPass},
		{"equals index path", "items.1.sku", "B-2", "equals", StatusPass},
		{"equals bracket path", "items[0].price", 9.5, "equals", StatusPass},
		{"not_equals", "status", "deleted", "not_equals", StatusPass},
		{"not_equals same", "status", "active", "not_equals", StatusFail},
		{"contains substring", "message", "success", "contains", StatusPass},
		{"contains element", "user.roles", "viewer", "contains", StatusPass},
		{"contains key", "user", "email", "contains", StatusPass},
		{"not_contains", "user.roles", "owner", "not_contains", StatusPass},
		{"exists", "user.email", nil, "exists", StatusPass},
		{"exists missing", "user.phone", nil, "exists", StatusFail},
		{"not_exists", "user.phone", nil, "not_exists", StatusPass},
		{"matches", "items.0.sku", `[A-Z]-\d`, "matches", StatusPass},
		{"matches with prefix", "items.0.sku", `regex:[a-z]+`, "matches", StatusFail},
		{"greater_than", "items.1.price", 10, "greater_than", StatusPass},
		{"less_than", "items.0.price", 5, "less_than", StatusFail},
		{"greater_or_equal", "user.id", 42, "greater_or_equal", StatusPass},
		{"less_than not a number", "status", 5, "less_than", StatusFail},
		{"missing path", "user.address.city", "Austin", "equals", StatusFail},
		{"jsonpath", "$.user.email", "pattern:email", "equals", StatusPass},
		{"jsonpath filter", "$.items[?(@.sku == 'B-2')].price", 20, "equals", StatusPass},
		{"jsonpath no results", "$.user.phone", "x", "equals", StatusFail},
		{"expression", "items", "len(value) == 2", "expression", StatusPass},
		{"expression arithmetic", "user.id", "value * 2 == 84", "expression", StatusPass},
		{"expression false", "user.id", "value < 10", "expression", StatusFail},
		{"unknown pattern", "status", "pattern:nope", "equals", StatusError},
		{"pattern", "user.email", "email", "pattern", StatusPass},
		{"pattern with prefix", "items.0.sku", "pattern:integer", "pattern", StatusFail},
		{"type string", "status", "string", "type", StatusPass},
		{"type array", "user.roles", "array", "type", StatusPass},
		{"type integer", "user.id", "integer", "type", StatusPass},
		{"type integer fractional", "items.0.price", "integer", "type", StatusFail},
		{"type number", "items.0.price", "number", "type", StatusPass},
		{"type mismatch", "user", "array", "type", StatusFail},
	}

	c := NewComparator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := NewRule(tt.field, tt.expected, tt.comparison)
			require.NoError(t, err)

			v := c.EvaluateRule(rule, body)
			assert.Equal(t, tt.status, v.Status, "mismatches: %v", v.Mismatches)
		})
	}
}

func TestNewRule_Errors(t *testing.T) {
	_, err := NewRule("a", 1, "roughly")
	assert.ErrorContains(t, err, "unknown comparison")

	_, err = NewRule("a", "value >", "expression")
	assert.Error(t, err)

	_, err = NewRule("$[", 1, "equals")
	assert.Error(t, err)

	_, err = NewRule("a", 5, "matches")
	assert.Error(t, err)

	_, err = NewRule("a", "pattern:", "pattern")
	assert.Error(t, err)

	_, err = NewRule("a", "decimal", "type")
	assert.ErrorContains(t, err, "type must be one of")
}

func TestEvaluateRule_LargeIntegerOrdering(t *testing.T) {
	body := decodeJSON(t, `{"id": 9007199254740993, "big": 123456789012345678901234567890}`)
	c := NewComparator()

	tests := []struct {
		field      string
		expected   any
		comparison string
		status     Status
	}{
		{"id", int64(9007199254740992), "greater_than", StatusPass},
		{"id", int64(9007199254740993), "greater_than", StatusFail},
		{"id", int64(9007199254740993), "greater_or_equal", StatusPass},
		{"id", "9007199254740994", "less_than", StatusPass},
		{"big", "123456789012345678901234567889", "greater_than", StatusPass},
		{"id", int64(9007199254740992), "not_equals", StatusPass},
	}
	for _, tt := range tests {
		rule, err := NewRule(tt.field, tt.expected, tt.comparison)
		require.NoError(t, err)
		v := c.EvaluateRule(rule, body)
		assert.Equal(t, tt.status, v.Status, "%s %s %v", tt.field, tt.comparison, tt.expected)
	}
}

func TestEvaluateRule_MismatchPath(t *testing.T) {
	rule, err := NewRule("data.user.phone", "pattern:phone_us", "equals")
	require.NoError(t, err)

	v := NewComparator().EvaluateRule(rule, map[string]any{"data": map[string]any{"user": map[string]any{"phone": "nope"}}})
	require.Len(t, v.Mismatches, 1)
	assert.Equal(t, "$.data.user.phone", v.Mismatches[0].Path)
}

func TestRule_Resolve(t *testing.T) {
	rule, err := NewRule("id", "${created_id}", "equals")
	require.NoError(t, err)

	resolved, err := rule.Resolve(mapResolver{"${created_id}": 17})
	require.NoError(t, err)

	v := NewComparator().EvaluateRule(resolved, map[string]any{"id": 17})
	assert.True(t, v.Passed())
}
