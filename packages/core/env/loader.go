package env

import (
	"os"
	"strings"
)

// SystemPrefix marks process environment variables that become bindings,
// e.g. APICHECK_VAR_token=abc binds token.
const SystemPrefix = "APICHECK_VAR_"

// Sources lists the run-level variable sources. Later sources override
// earlier ones: test data, then the .env file, then prefixed system
// variables.
type Sources struct {
	TestDataFile string
	Environment  string
	DotEnvFile   string
	SystemPrefix string
}

// Load reads every configured source and merges them.
func Load(src Sources) (map[string]any, error) {
	var layers []map[string]any

	if src.TestDataFile != "" {
		data, err := LoadTestData(src.TestDataFile, src.Environment)
		if err != nil {
			return nil, err
		}
		layers = append(layers, data)
	}

	if src.DotEnvFile != "" {
		vars, err := LoadAndExportDotEnv(src.DotEnvFile)
		if err != nil {
			return nil, err
		}
		layers = append(layers, vars)
	}

	if src.SystemPrefix != "" {
		layers = append(layers, LoadSystemEnv(src.SystemPrefix))
	}

	return MergeVariables(layers...), nil
}

func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns process environment variables starting with prefix,
// keyed by the remainder of their name.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
			continue
		}
		if name, found := strings.CutPrefix(key, prefix); found && name != "" {
			result[name] = value
		}
	}
	return result
}
