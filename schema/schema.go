// Package schema validates serialized MMIF against the MMIF JSON Schema.
//
// Validation reports findings instead of failing on them, so callers can
// decide how severe a violation is:
//
//	findings, err := schema.Default().Validate(data)
//	if err != nil {
//	    return err // not JSON at all
//	}
//	for _, f := range findings {
//	    log.Println(f)
//	}
package schema

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/mmif/errors"
)

//go:embed mmif-schema.json
var mmifSchema []byte

// Source returns the embedded MMIF JSON Schema.
func Source() []byte {
	return append([]byte(nil), mmifSchema...)
}

// Error is one schema finding.
type Error struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

func (e Error) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// Validator checks serialized MMIF. Findings are returned, not raised; the
// error is reserved for input that cannot be checked at all.
type Validator interface {
	Validate(data []byte) ([]Error, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(data []byte) ([]Error, error)

// Validate implements Validator.
func (f ValidatorFunc) Validate(data []byte) ([]Error, error) { return f(data) }

// JSONSchema is a Validator backed by a compiled JSON Schema.
type JSONSchema struct {
	schema *gojsonschema.Schema
}

// New compiles a JSON Schema document.
func New(schemaJSON []byte) (*JSONSchema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"schema", "New", "compile schema")
	}
	return &JSONSchema{schema: s}, nil
}

var (
	defaultOnce sync.Once
	defaultV    *JSONSchema
)

// Default returns the validator for the embedded MMIF schema.
func Default() *JSONSchema {
	defaultOnce.Do(func() {
		v, err := New(mmifSchema)
		if err != nil {
			panic(fmt.Sprintf("schema: embedded MMIF schema: %v", err))
		}
		defaultV = v
	})
	return defaultV
}

// Validate implements Validator.
func (v *JSONSchema) Validate(data []byte) ([]Error, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrStructural, err),
			"schema", "Validate", "load document")
	}
	if result.Valid() {
		return nil, nil
	}

	findings := make([]Error, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		findings = append(findings, Error{Field: desc.Field(), Description: desc.Description()})
	}
	return findings, nil
}

// Violation turns findings into an errors.ErrSchemaViolation error, or nil
// when there are none.
func Violation(findings []Error) error {
	if len(findings) == 0 {
		return nil
	}
	msg := findings[0].String()
	if len(findings) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(findings)-1)
	}
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrSchemaViolation, msg),
		"schema", "Validate", "check document")
}
