package env

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// LoadTestData reads a common test data file. Each top-level entry may be
// layered per environment:
//
//	{"admin_email": {"dev": "a@dev.io", "default": "a@example.com"}}
//
// The value for envName (matched as written, lower or upper case) wins,
// then "default". Objects without any such key are plain values. Entries
// whose selected value is null are skipped. The whole document may be
// wrapped in a "testdata" key. A missing file yields no variables.
func LoadTestData(path, envName string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("cannot read test data: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid test data %s: %w", path, err)
	}

	if wrapped, ok := raw["testdata"].(map[string]any); ok {
		raw = wrapped
	}

	result := make(map[string]any, len(raw))
	for name, value := range raw {
		chosen, ok := selectLayer(value, envName)
		if !ok || chosen == nil {
			continue
		}
		result[name] = chosen
	}
	return result, nil
}

func selectLayer(value any, envName string) (any, bool) {
	layers, ok := value.(map[string]any)
	if !ok {
		return value, true
	}
	candidates := []string{envName, strings.ToLower(envName), strings.ToUpper(envName), "default"}
	layered := false
	for _, key := range candidates {
		if key == "" {
			continue
		}
		v, found := layers[key]
		if !found {
			continue
		}
		layered = true
		if v != nil {
			return v, true
		}
	}
	if layered {
		return nil, false
	}
	if envName != "" && looksLayered(layers) {
		return nil, false
	}
	return value, true
}

// looksLayered reports whether every key of m is a known environment name,
// meaning the entry simply has no layer for the selected environment.
func looksLayered(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		switch strings.ToLower(k) {
		case "dev", "development", "qa", "test", "staging", "stage", "uat", "prod", "production", "local":
		default:
			return false
		}
	}
	return true
}
