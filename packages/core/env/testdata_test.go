package env

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commonData = `{
	"testdata": {
		"admin_email": {"dev": "admin@dev.io", "QA": "admin@qa.io", "default": "admin@example.com"},
		"page_size": 20,
		"prod_only": {"prod": "x"},
		"user": {"name": "Jane", "email": "jane@example.com"},
		"disabled": {"dev": null}
	}
}`

func TestLoadTestData(t *testing.T) {
	path := writeFile(t, "test_data.json", commonData)

	dev, err := LoadTestData(path, "dev")
	require.NoError(t, err)
	assert.Equal(t, "admin@dev.io", dev["admin_email"])
	assert.Equal(t, json.Number("20"), dev["page_size"])
	assert.Equal(t, map[string]any{"name": "Jane", "email": "jane@example.com"}, dev["user"])
	assert.NotContains(t, dev, "prod_only")
	assert.NotContains(t, dev, "disabled")

	qa, err := LoadTestData(path, "qa")
	require.NoError(t, err)
	assert.Equal(t, "admin@qa.io", qa["admin_email"])

	staging, err := LoadTestData(path, "staging")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", staging["admin_email"])
}

func TestLoadTestData_Missing(t *testing.T) {
	vars, err := LoadTestData("/nonexistent/test_data.json", "dev")
	require.NoError(t, err)
	assert.Empty(t, vars)

	_, err = LoadTestData(writeFile(t, "bad.json", "{"), "dev")
	assert.Error(t, err)
}

func TestLoad_Precedence(t *testing.T) {
	data := writeFile(t, "test_data.json", `{"token": "from-data", "host": "data-host"}`)
	dotenv := writeFile(t, ".env", "token=from-dotenv\n")
	t.Setenv("APICHECK_VAR_host", "from-system")
	t.Cleanup(func() { os.Unsetenv("token") })

	vars, err := Load(Sources{
		TestDataFile: data,
		Environment:  "dev",
		DotEnvFile:   dotenv,
		SystemPrefix: SystemPrefix,
	})
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", vars["token"])
	assert.Equal(t, "from-system", vars["host"])
}
