package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/manifest.schema.json
var schemaJSON []byte

const schemaURL = "manifest.schema.json"

// compiled is the embedded schema, built on first use.
var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("decoding manifest schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("registering manifest schema: %w", err)
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling manifest schema: %w", err)
	}
	return s, nil
})

var printer = message.NewPrinter(language.English)

// ValidationResult is the outcome of checking a manifest document.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// ValidationIssue is one problem found in a manifest.
type ValidationIssue struct {
	Path    string // JSON pointer into the document, e.g. "/packages/0/version"
	Message string
	Keyword string // failing schema keyword, or "semver" for version checks
}

// Validate checks raw manifest YAML against the embedded schema. The error
// is reserved for unreadable input; schema violations land in the result.
func Validate(data []byte) (*ValidationResult, error) {
	schema, err := compiled()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	// The validator wants JSON values (json.Number, string keys).
	encoded, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding JSON instance: %w", err)
	}

	var ve *jsonschema.ValidationError
	switch err := schema.Validate(inst); {
	case err == nil:
		return &ValidationResult{Valid: true}, nil
	case !errors.As(err, &ve):
		return nil, fmt.Errorf("validating manifest: %w", err)
	}

	issues := leafIssues(ve, nil, make(map[ValidationIssue]bool))
	if len(issues) == 0 {
		issues = []ValidationIssue{{Message: ve.Error()}}
	}
	return &ValidationResult{Issues: issues}, nil
}

// ValidateFile validates the manifest at path.
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return Validate(data)
}

// leafIssues flattens the error tree into its leaves, skipping the
// structural keywords that only wrap other failures.
func leafIssues(ve *jsonschema.ValidationError, out []ValidationIssue, seen map[ValidationIssue]bool) []ValidationIssue {
	for _, cause := range ve.Causes {
		out = leafIssues(cause, out, seen)
	}
	if len(ve.Causes) > 0 || ve.ErrorKind == nil {
		return out
	}

	kw := ve.ErrorKind.KeywordPath()
	if len(kw) == 0 {
		return out
	}
	switch last := kw[len(kw)-1]; last {
	case "allOf", "$ref":
		return out
	default:
		issue := ValidationIssue{Keyword: last, Message: ve.ErrorKind.LocalizedString(printer)}
		if len(ve.InstanceLocation) > 0 {
			issue.Path = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		if !seen[issue] {
			seen[issue] = true
			out = append(out, issue)
		}
	}
	return out
}

// jsonCompatible rewrites decoded YAML so it marshals as JSON: non-string
// mapping keys such as "1: x" become strings.
func jsonCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = jsonCompatible(item)
		}
		return val
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = jsonCompatible(item)
		}
		return m
	case []any:
		for i, item := range val {
			val[i] = jsonCompatible(item)
		}
		return val
	}
	return v
}
