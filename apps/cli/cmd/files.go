package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/apicheck/packages/core/parser"
)

// testDataDir holds an application's shared test data, never test files.
const testDataDir = "testdata"

// collectFiles expands file and directory arguments into test files.
// Files named explicitly are taken as they are; directories are searched
// with discoverTests.
func collectFiles(args []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			if isTestFile(arg) {
				add(arg)
			}
			continue
		}

		found, err := discoverTests(arg)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}

	return files, nil
}

// discoverTests walks root for YAML and JSON test files. testdata
// directories, hidden directories and schema documents are left out: a
// file is a schema document when its name ends in .schema.<ext> or when a
// case of another discovered file references it as its schema.
func discoverTests(root string) ([]string, error) {
	var candidates []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (d.Name() == testDataDir || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if isTestFile(path) && !isSchemaName(path) {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	schemas := referencedSchemas(candidates)
	files := candidates[:0]
	for _, path := range candidates {
		if !schemas[absPath(path)] {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

// referencedSchemas returns the absolute paths of schema files named by
// cases in files. Files that do not parse reference nothing.
func referencedSchemas(files []string) map[string]bool {
	refs := make(map[string]bool)
	for _, path := range files {
		file, err := parser.ParseFile(path)
		if err != nil {
			continue
		}
		dir := filepath.Dir(path)
		for _, tc := range file.TestCases {
			ref, ok := tc.Schema.(string)
			if !ok || ref == "" {
				continue
			}
			if !filepath.IsAbs(ref) {
				ref = filepath.Join(dir, ref)
			}
			refs[absPath(ref)] = true
		}
	}
	return refs
}

func isTestFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

func isSchemaName(path string) bool {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.HasSuffix(strings.ToLower(base), ".schema")
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
