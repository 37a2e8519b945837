package parser

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
)

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

type fileDTO struct {
	BaseURL   string         `yaml:"base_url"`
	Tags      []string       `yaml:"tags"`
	Variables map[string]any `yaml:"variables"`
	TestData  map[string]any `yaml:"testData"`
	TestCases *yaml.Node     `yaml:"test_cases"`
}

type caseDTO struct {
	Name             string            `yaml:"name"`
	Description      string            `yaml:"description"`
	Method           string            `yaml:"method"`
	URL              string            `yaml:"url"`
	Endpoint         string            `yaml:"endpoint"`
	Headers          map[string]any    `yaml:"headers"`
	Params           map[string]any    `yaml:"params"`
	Data             any               `yaml:"data"`
	Body             any               `yaml:"body"`
	ExpectedStatus   *int              `yaml:"expected_status"`
	ExpectedResponse any               `yaml:"expected_response"`
	Schema           any               `yaml:"schema"`
	ValidationMode   string            `yaml:"validation_mode"`
	ValidationPath   any               `yaml:"validation_path"`
	ValidationRules  []ruleDTO         `yaml:"validation_rules"`
	Tags             []string          `yaml:"tags"`
	Preconditions    []preconditionDTO `yaml:"preconditions"`
	ExtractVariables map[string]string `yaml:"extract_variables"`
	Timeout          int               `yaml:"timeout"`
}

type ruleDTO struct {
	Field         string `yaml:"field"`
	ExpectedValue any    `yaml:"expected_value"`
	Comparison    string `yaml:"comparison"`
}

type preconditionDTO struct {
	Type             string            `yaml:"type"`
	Method           string            `yaml:"method"`
	URL              string            `yaml:"url"`
	Headers          map[string]any    `yaml:"headers"`
	Params           map[string]any    `yaml:"params"`
	Data             any               `yaml:"data"`
	ExtractVariables map[string]string `yaml:"extract_variables"`
	Script           string            `yaml:"script"`
	Args             []string          `yaml:"args"`
	Database         string            `yaml:"database"`
	Query            string            `yaml:"query"`
	Extract          map[string]string `yaml:"extract"`
}

func ParseFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{File: path, Message: "cannot read file", Err: err}
	}
	return Parse(content, path)
}

// Parse loads a YAML or JSON test definition. The input is either a mapping
// with a test_cases list or a bare list of cases. Anchors, aliases and merge
// keys are expanded while decoding. Problems with the document as a whole
// return a ParseError; problems with a single case are recorded on that
// case as a DefinitionError.
func Parse(data []byte, path string) (*File, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{File: path, Line: yamlErrorLine(err), Message: err.Error(), Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &ParseError{File: path, Message: "empty test file"}
	}
	root := doc.Content[0]

	file := &File{Path: path, Variables: make(map[string]any)}

	var items []*yaml.Node
	switch root.Kind {
	case yaml.MappingNode:
		var header fileDTO
		if err := root.Decode(&header); err != nil {
			return nil, &ParseError{File: path, Line: root.Line, Message: err.Error(), Err: err}
		}
		if header.TestCases == nil {
			return nil, &ParseError{File: path, Line: root.Line, Message: "missing test_cases"}
		}
		cases := resolveAlias(header.TestCases)
		if cases.Kind != yaml.SequenceNode {
			return nil, &ParseError{File: path, Line: cases.Line, Message: "test_cases must be a list"}
		}
		file.BaseURL = header.BaseURL
		file.Tags = header.Tags
		for name, value := range header.TestData {
			file.Variables[name] = assertions.Normalize(value)
			if nested, ok := value.(map[string]any); ok {
				for sub, subValue := range nested {
					file.Variables[joinCamel(name, sub)] = assertions.Normalize(subValue)
				}
			}
		}
		for name, value := range header.Variables {
			file.Variables[name] = assertions.Normalize(value)
		}
		items = cases.Content
	case yaml.SequenceNode:
		file.Flat = true
		items = root.Content
	default:
		return nil, &ParseError{File: path, Line: root.Line, Message: "expected a mapping with test_cases or a list of test cases"}
	}

	for i, item := range items {
		file.TestCases = append(file.TestCases, parseCase(resolveAlias(item), i, path, file.Flat))
	}
	return file, nil
}

func parseCase(node *yaml.Node, index int, path string, flat bool) *TestCase {
	tc := &TestCase{Index: index, Line: node.Line}

	var dto caseDTO
	if err := node.Decode(&dto); err != nil {
		tc.Name = fmt.Sprintf("case %d", index+1)
		tc.Err = &DefinitionError{File: path, Case: tc.Name, Line: node.Line, Err: err}
		return tc
	}

	if err := buildCase(tc, &dto, flat); err != nil {
		tc.Err = &DefinitionError{File: path, Case: tc.Name, Line: node.Line, Err: err}
	}
	return tc
}

func buildCase(tc *TestCase, dto *caseDTO, flat bool) error {
	tc.Method = strings.ToUpper(strings.TrimSpace(dto.Method))
	if tc.Method == "" {
		tc.Method = "GET"
	}
	tc.URL = dto.URL
	if tc.URL == "" {
		tc.URL = dto.Endpoint
	}
	tc.Name = dto.Name
	if tc.Name == "" {
		tc.Name = strings.TrimSpace(tc.Method + " " + tc.URL)
	}
	tc.Description = dto.Description
	tc.Tags = dto.Tags
	tc.Headers = stringifyMap(dto.Headers)
	tc.Params = normalizeMap(dto.Params)
	tc.Data = assertions.Normalize(dto.Data)
	if tc.Data == nil {
		tc.Data = assertions.Normalize(dto.Body)
	}
	tc.Schema = assertions.Normalize(dto.Schema)
	tc.ExtractVariables = dto.ExtractVariables
	if dto.Timeout > 0 {
		tc.Timeout = time.Duration(dto.Timeout) * time.Millisecond
	}

	if !validMethods[tc.Method] {
		return fmt.Errorf("unsupported method %q", dto.Method)
	}
	if tc.URL == "" {
		return errors.New("missing url")
	}

	switch {
	case dto.ExpectedStatus != nil:
		tc.ExpectedStatus = *dto.ExpectedStatus
		if tc.ExpectedStatus < 100 || tc.ExpectedStatus > 599 {
			return fmt.Errorf("expected_status %d is not an HTTP status code", tc.ExpectedStatus)
		}
	case flat:
		tc.ExpectedStatus = 200
	}

	mode, err := assertions.ParseMode(dto.ValidationMode)
	if err != nil {
		return err
	}
	tc.ValidationMode = mode

	if dto.ValidationPath != nil {
		p, err := assertions.ParsePath(assertions.Normalize(dto.ValidationPath))
		if err != nil {
			return fmt.Errorf("validation_path: %w", err)
		}
		tc.ValidationPath = p
	}
	if mode == assertions.ModeSpecific && dto.ValidationPath == nil {
		return errors.New("validation_mode specific requires validation_path")
	}

	if dto.ExpectedResponse != nil {
		tc.ExpectedResponse = assertions.Compile(dto.ExpectedResponse)
	}

	for i, r := range dto.ValidationRules {
		if r.Field == "" {
			return fmt.Errorf("validation_rules[%d]: missing field", i)
		}
		rule, err := assertions.NewRule(r.Field, assertions.Normalize(r.ExpectedValue), r.Comparison)
		if err != nil {
			return fmt.Errorf("validation_rules[%d]: %w", i, err)
		}
		tc.ValidationRules = append(tc.ValidationRules, rule)
	}

	for i := range dto.Preconditions {
		pre, err := buildPrecondition(&dto.Preconditions[i])
		if err != nil {
			return fmt.Errorf("preconditions[%d]: %w", i, err)
		}
		tc.Preconditions = append(tc.Preconditions, pre)
	}

	return nil
}

func buildPrecondition(dto *preconditionDTO) (*Precondition, error) {
	kind := PreconditionKind(strings.ToLower(dto.Type))
	if kind == "" {
		switch {
		case dto.Script != "":
			kind = PreconditionScript
		case dto.Query != "":
			kind = PreconditionSQL
		default:
			kind = PreconditionHTTP
		}
	}

	pre := &Precondition{Kind: kind}
	switch kind {
	case PreconditionHTTP:
		pre.Method = strings.ToUpper(dto.Method)
		if pre.Method == "" {
			pre.Method = "GET"
		}
		if !validMethods[pre.Method] {
			return nil, fmt.Errorf("unsupported method %q", dto.Method)
		}
		if dto.URL == "" {
			return nil, errors.New("http precondition needs a url")
		}
		pre.URL = dto.URL
		pre.Headers = stringifyMap(dto.Headers)
		pre.Params = normalizeMap(dto.Params)
		pre.Data = assertions.Normalize(dto.Data)
		pre.ExtractVariables = dto.ExtractVariables
	case PreconditionScript:
		if dto.Script == "" {
			return nil, errors.New("script precondition needs a script")
		}
		pre.Script = dto.Script
		pre.Args = dto.Args
	case PreconditionSQL:
		if dto.Query == "" || dto.Database == "" {
			return nil, errors.New("sql precondition needs database and query")
		}
		pre.Database = dto.Database
		pre.Query = dto.Query
		pre.Extract = dto.Extract
	default:
		return nil, fmt.Errorf("unknown precondition type %q", dto.Type)
	}
	return pre, nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func stringifyMap(m map[string]any) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = ""
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return assertions.Normalize(m).(map[string]any)
}

// joinCamel builds the alias testData nested keys are also bound under:
// user + email gives userEmail.
func joinCamel(prefix, name string) string {
	if name == "" {
		return prefix
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return prefix + string(r)
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

func yamlErrorLine(err error) int {
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
