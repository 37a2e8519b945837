package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{
			name:     "simple key-value",
			content:  "API_KEY=secret123",
			expected: map[string]string{"API_KEY": "secret123"},
		},
		{
			name:     "export prefix",
			content:  "export BASE_URL=http://localhost:8080",
			expected: map[string]string{"BASE_URL": "http://localhost:8080"},
		},
		{
			name:     "double quoted with escapes",
			content:  `GREETING="hello\nworld"`,
			expected: map[string]string{"GREETING": "hello\nworld"},
		},
		{
			name:     "single quoted is literal",
			content:  `PATTERN='a\nb # not a comment'`,
			expected: map[string]string{"PATTERN": `a\nb # not a comment`},
		},
		{
			name:     "inline comment on unquoted value",
			content:  "API_KEY=secret # rotated monthly",
			expected: map[string]string{"API_KEY": "secret"},
		},
		{
			name:     "value with equals sign",
			content:  "DSN=sqlite://./app.db?mode=ro",
			expected: map[string]string{"DSN": "sqlite://./app.db?mode=ro"},
		},
		{
			name:     "comments and blank lines",
			content:  "# header\n\nKEY1=value1\n  KEY2 = value2  \n",
			expected: map[string]string{"KEY1": "value1", "KEY2": "value2"},
		},
		{
			name:     "empty file",
			content:  "",
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := LoadDotEnv(writeFile(t, ".env", tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadDotEnv_Errors(t *testing.T) {
	_, err := LoadDotEnv("/nonexistent/path/.env")
	assert.Error(t, err)

	_, err = LoadDotEnv(writeFile(t, ".env", "KEY=ok\nnot a pair\n"))
	assert.ErrorContains(t, err, ":2:")
}

func TestLoadAndExportDotEnv(t *testing.T) {
	t.Setenv("APICHECK_TEST_PRESET", "from-env")
	path := writeFile(t, ".env", "APICHECK_TEST_PRESET=from-file\nAPICHECK_TEST_EXPORTED=yes\n")
	t.Cleanup(func() { os.Unsetenv("APICHECK_TEST_EXPORTED") })

	vars, err := LoadAndExportDotEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", vars["APICHECK_TEST_PRESET"])
	assert.Equal(t, "from-env", os.Getenv("APICHECK_TEST_PRESET"))
	assert.Equal(t, "yes", os.Getenv("APICHECK_TEST_EXPORTED"))
}
