package mmif

import (
	"bytes"
	"fmt"
	"time"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/model"
)

// SpecVersion is the MMIF version written by this package.
const SpecVersion = "http://mmif.clams.ai/1.0.0"

var (
	rootMetadataShape = model.Shape{Entity: "Metadata", Required: []string{"mmif"}, Open: true}

	viewMetadataShape = model.Shape{
		Entity:   "ViewMetadata",
		Known:    []string{"document", "timestamp", "contains", "parameters", "appConfiguration", "error", "warnings"},
		Required: []string{"app"},
		Open:     true,
	}

	errorInfoShape = model.Shape{Entity: "ErrorInfo", Known: []string{"message", "stackTrace"}, Open: true}
)

// timestampLayouts are tried in order when parsing a view timestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Metadata is the root metadata block.
type Metadata struct {
	Mmif   string
	Extras *model.Map
}

// MarshalJSON implements json.Marshaler.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	return model.EncodeObject([]model.Field{{Name: "mmif", Value: m.Mmif, Required: true}}, m.Extras)
}

// SetAdditional sets a root metadata key other than mmif.
func (m *Metadata) SetAdditional(key string, value any) error {
	return rootMetadataShape.SetAdditional(m.Extras, key, value)
}

func decodeMetadata(data []byte) (*Metadata, error) {
	d, err := model.DecodeObject(data, rootMetadataShape)
	if err != nil {
		return nil, err
	}
	v, err := d.String("mmif")
	if err != nil {
		return nil, err
	}
	return &Metadata{Mmif: v, Extras: d.Extras}, nil
}

// ErrorInfo records why a view failed.
type ErrorInfo struct {
	Message    string
	StackTrace string
	Extras     *model.Map
}

// MarshalJSON implements json.Marshaler.
func (e *ErrorInfo) MarshalJSON() ([]byte, error) {
	return model.EncodeObject([]model.Field{
		{Name: "message", Value: e.Message, Required: true},
		{Name: "stackTrace", Value: e.StackTrace},
	}, e.Extras)
}

// SetAdditional records extra error details, e.g. an exception class.
func (e *ErrorInfo) SetAdditional(key string, value any) error {
	return errorInfoShape.SetAdditional(e.Extras, key, value)
}

func decodeErrorInfo(data []byte) (*ErrorInfo, error) {
	d, err := model.DecodeObject(data, errorInfoShape)
	if err != nil {
		return nil, err
	}
	msg, err := d.String("message")
	if err != nil {
		return nil, err
	}
	trace, err := d.String("stackTrace")
	if err != nil {
		return nil, err
	}
	return &ErrorInfo{Message: msg, StackTrace: trace, Extras: d.Extras}, nil
}

// ViewMetadata describes how a view was produced.
type ViewMetadata struct {
	// Document is the id of the document the view was computed from.
	Document string
	// App identifies the producing app.
	App string
	// RawTimestamp is the timestamp exactly as read or written.
	RawTimestamp string

	Contains         *Contains
	Parameters       *model.Map
	AppConfiguration *model.Map
	Error            *ErrorInfo
	Warnings         []string
	Extras           *model.Map
}

// NewViewMetadata creates empty view metadata.
func NewViewMetadata() *ViewMetadata {
	return &ViewMetadata{
		Contains:         NewContains(),
		Parameters:       model.NewMap(),
		AppConfiguration: model.NewMap(),
		Extras:           model.NewMap(),
	}
}

// SetAdditional sets an app-specific metadata key.
func (m *ViewMetadata) SetAdditional(key string, value any) error {
	return viewMetadataShape.SetAdditional(m.Extras, key, value)
}

// Timestamp parses RawTimestamp.
func (m *ViewMetadata) Timestamp() (time.Time, error) {
	if m.RawTimestamp == "" {
		return time.Time{}, errors.WrapInvalid(fmt.Errorf("%w: no timestamp", errors.ErrInvalidValue),
			"ViewMetadata", "Timestamp", "parse timestamp")
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, m.RawTimestamp)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidValue, lastErr),
		"ViewMetadata", "Timestamp", "parse timestamp")
}

// SetTimestamp records t in RFC 3339 form.
func (m *ViewMetadata) SetTimestamp(t time.Time) {
	m.RawTimestamp = t.Format(time.RFC3339Nano)
}

// MarshalJSON implements json.Marshaler. Without contains, error and
// warnings an empty contains is written so the view stays schema valid.
func (m *ViewMetadata) MarshalJSON() ([]byte, error) {
	var contains any = m.Contains
	if m.Contains.IsEmpty() && m.Error == nil && len(m.Warnings) == 0 {
		contains = rawEmptyObject{}
	}
	return model.EncodeObject([]model.Field{
		{Name: "document", Value: m.Document},
		{Name: "timestamp", Value: m.RawTimestamp},
		{Name: "app", Value: m.App, Required: true},
		{Name: "contains", Value: contains},
		{Name: "parameters", Value: m.Parameters},
		{Name: "appConfiguration", Value: m.AppConfiguration},
		{Name: "error", Value: m.Error},
		{Name: "warnings", Value: m.Warnings},
	}, m.Extras)
}

type rawEmptyObject struct{}

func (rawEmptyObject) MarshalJSON() ([]byte, error) { return []byte("{}"), nil }

// Equal reports strict equality of the metadata.
func (m *ViewMetadata) Equal(other *ViewMetadata) bool {
	a, errA := model.Marshal(m)
	b, errB := model.Marshal(other)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func (m *ViewMetadata) clone() *ViewMetadata {
	out := &ViewMetadata{
		Document:         m.Document,
		App:              m.App,
		RawTimestamp:     m.RawTimestamp,
		Contains:         m.Contains.clone(),
		Parameters:       m.Parameters.Clone(),
		AppConfiguration: m.AppConfiguration.Clone(),
		Warnings:         append([]string(nil), m.Warnings...),
		Extras:           m.Extras.Clone(),
	}
	if m.Error != nil {
		out.Error = &ErrorInfo{Message: m.Error.Message, StackTrace: m.Error.StackTrace, Extras: m.Error.Extras.Clone()}
	}
	return out
}

func decodeViewMetadata(data []byte) (*ViewMetadata, error) {
	d, err := model.DecodeObject(data, viewMetadataShape)
	if err != nil {
		return nil, err
	}
	m := NewViewMetadata()
	m.Extras = d.Extras
	if m.Document, err = d.String("document"); err != nil {
		return nil, err
	}
	if m.RawTimestamp, err = d.String("timestamp"); err != nil {
		return nil, err
	}
	if m.App, err = d.String("app"); err != nil {
		return nil, err
	}
	if raw, ok := d.Raw("contains"); ok && d.Has("contains") {
		if m.Contains, err = decodeContains(raw); err != nil {
			return nil, err
		}
	}
	if m.Parameters, err = d.Map("parameters"); err != nil {
		return nil, err
	}
	if m.AppConfiguration, err = d.Map("appConfiguration"); err != nil {
		return nil, err
	}
	if raw, ok := d.Raw("error"); ok && d.Has("error") {
		if m.Error, err = decodeErrorInfo(raw); err != nil {
			return nil, err
		}
	}
	if m.Warnings, err = d.Strings("warnings"); err != nil {
		return nil, err
	}
	return m, nil
}
