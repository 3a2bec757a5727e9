package mmif

import (
	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/schema"
)

// SanitizeOption configures Sanitize.
type SanitizeOption func(*sanitizeConfig)

type sanitizeConfig struct {
	inPlace  bool
	validate bool
	strict   bool
}

// InPlace sanitizes the receiver instead of a copy.
func InPlace() SanitizeOption {
	return func(c *sanitizeConfig) { c.inPlace = true }
}

// WithoutValidation skips the schema check after cleaning.
func WithoutValidation() SanitizeOption {
	return func(c *sanitizeConfig) { c.validate = false }
}

// FailOnFindings makes remaining schema findings an
// errors.ErrSchemaViolation error.
func FailOnFindings() SanitizeOption {
	return func(c *sanitizeConfig) { c.strict = true }
}

// Sanitize drops contains entries for types a view no longer holds any
// annotation of, then validates the result. By default a cleaned copy is
// returned and m is left alone. Sanitizing twice changes nothing more.
func (m *Mmif) Sanitize(opts ...SanitizeOption) (*Mmif, []schema.Error, error) {
	cfg := sanitizeConfig{validate: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	target := m
	if !cfg.inPlace {
		target = m.Clone()
	}
	for _, v := range target.views.All() {
		v.dropStaleContains()
	}
	if !cfg.validate {
		return target, nil, nil
	}
	findings, err := target.Validate()
	if err != nil {
		return nil, nil, errors.Wrap(err, "Mmif", "Sanitize", "validate")
	}
	if cfg.strict {
		if err := schema.Violation(findings); err != nil {
			return target, findings, err
		}
	}
	return target, findings, nil
}

// dropStaleContains removes the contains entries with no annotation of that
// type.
func (v *View) dropStaleContains() {
	var stale []string
	for uri, c := range v.Metadata.Contains.entries.All() {
		if !v.HasAnnotationOf(c.Type) {
			stale = append(stale, uri)
		}
	}
	for _, uri := range stale {
		v.Metadata.Contains.entries.Delete(uri)
	}
}

// Validate checks the serialized form against the schema. Findings are
// returned, not raised.
func (m *Mmif) Validate() ([]schema.Error, error) {
	data, err := m.Serialize(false)
	if err != nil {
		return nil, err
	}
	findings, err := m.validator.Validate(data)
	if err != nil {
		return nil, err
	}
	m.observeFindings(len(findings))
	return findings, nil
}
