package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// SchemaValidator checks response bodies against JSON Schema documents.
// Schema references are resolved relative to baseDir and must stay inside
// rootDir.
type SchemaValidator struct {
	baseDir string
	rootDir string
}

// NewSchemaValidator returns a validator resolving relative schema paths
// against baseDir. rootDir bounds where schema files may live; an empty
// rootDir means baseDir.
func NewSchemaValidator(baseDir, rootDir string) *SchemaValidator {
	if rootDir == "" {
		rootDir = baseDir
	}
	return &SchemaValidator{baseDir: baseDir, rootDir: rootDir}
}

// Validate checks actual against schema, which is either a path to a YAML or
// JSON file or an inline schema mapping.
func (s *SchemaValidator) Validate(actual any, schema any) *Verdict {
	var doc []byte
	switch v := schema.(type) {
	case nil:
		return Pass()
	case string:
		data, err := s.LoadSchema(v)
		if err != nil {
			return Errored(err)
		}
		doc = data
	case map[string]any, map[any]any:
		data, err := json.Marshal(Normalize(v))
		if err != nil {
			return Errored(fmt.Errorf("failed to encode inline schema: %w", err))
		}
		doc = data
	default:
		return Errored(fmt.Errorf("schema must be a file path or a mapping, got %T", schema))
	}
	return ValidateSchema(actual, doc)
}

// LoadSchema reads a schema file and returns it as JSON.
func (s *SchemaValidator) LoadSchema(ref string) ([]byte, error) {
	schemaPath := ref
	if !filepath.IsAbs(schemaPath) && s.baseDir != "" {
		schemaPath = filepath.Join(s.baseDir, schemaPath)
	}

	if err := validatePathWithinBase(schemaPath, s.rootDir); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(schemaPath)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse schema %s: %w", ref, err)
		}
		out, err := json.Marshal(Normalize(v))
		if err != nil {
			return nil, fmt.Errorf("failed to convert schema %s to JSON: %w", ref, err)
		}
		return out, nil
	default:
		return data, nil
	}
}

// ValidateSchema validates actual against a JSON schema document. Each
// violation becomes a mismatch whose reason is the library's message.
func ValidateSchema(actual any, doc []byte) *Verdict {
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		return Errored(fmt.Errorf("failed to marshal actual value: %w", err))
	}

	schemaLoader := gojsonschema.NewBytesLoader(doc)
	documentLoader := gojsonschema.NewBytesLoader(actualJSON)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return Errored(fmt.Errorf("schema validation error: %w", err))
	}

	verdict := Pass()
	if result.Valid() {
		return verdict
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	cause := &SchemaError{Violations: violations}
	for i, desc := range result.Errors() {
		verdict.addMismatch(Mismatch{
			Path:   schemaFieldPath(desc.Field()),
			Actual: desc.Value(),
			Reason: "schema: " + violations[i],
			Cause:  cause,
		})
	}
	return verdict
}

func schemaFieldPath(field string) string {
	if field == "" || field == "(root)" {
		return "$"
	}
	return ParseDottedPath(field).String()
}

// validatePathWithinBase checks that the resolved path stays within the base
// directory.
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}
