// Package jsonschema validates JSON documents against JSON Schemas and
// reports violations with dotted field paths.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationErrors represents a collection of schema violations
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Validate validates a JSON string against a JSON Schema.
// Returns true if the JSON conforms to the schema.
// Schema or JSON parsing problems are returned as an error.
func Validate(jsonStr, schemaStr string) (bool, error) {
	schema, err := compile(schemaStr)
	if err != nil {
		return false, err
	}

	var jsonData interface{}
	if err := json.Unmarshal([]byte(jsonStr), &jsonData); err != nil {
		return false, fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(jsonData); err != nil {
		return false, nil
	}
	return true, nil
}

// ValidateWithErrors validates a JSON string against a JSON Schema and
// returns every violation, each naming the offending field with a dotted
// path (e.g. train.optimizer.lr).
func ValidateWithErrors(jsonStr, schemaStr string) (bool, ValidationErrors) {
	schema, err := compile(schemaStr)
	if err != nil {
		return false, ValidationErrors{err}
	}

	var jsonData interface{}
	if err := json.Unmarshal([]byte(jsonStr), &jsonData); err != nil {
		return false, ValidationErrors{fmt.Errorf("invalid JSON: %w", err)}
	}

	err = schema.Validate(jsonData)
	if err == nil {
		return true, nil
	}

	if ve, ok := err.(*jsonschema.ValidationError); ok {
		return false, flatten(ve)
	}
	return false, ValidationErrors{err}
}

func compile(schemaStr string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("schema.json", strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return schema, nil
}

// flatten walks the cause tree and keeps only the leaf violations, which
// carry the most specific instance locations.
func flatten(ve *jsonschema.ValidationError) ValidationErrors {
	if len(ve.Causes) == 0 {
		path := dottedPath(ve.InstanceLocation)
		if path == "" {
			return ValidationErrors{fmt.Errorf("%s", ve.Message)}
		}
		return ValidationErrors{fmt.Errorf("%s: %s", path, ve.Message)}
	}

	var out ValidationErrors
	for _, cause := range ve.Causes {
		out = append(out, flatten(cause)...)
	}
	return out
}

// dottedPath converts a JSON pointer ("/train/optimizer/lr") to the dotted
// form used everywhere else in diagnostics ("train.optimizer.lr").
func dottedPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}
