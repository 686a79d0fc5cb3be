package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// applicationSchema describes one persisted/remote application record.
const applicationSchema = `{
  "type": "object",
  "required": ["id", "jobTitle", "company", "location", "appliedDate", "status", "lastUpdated"],
  "properties": {
    "id":            {"type": "string", "minLength": 1},
    "jobTitle":      {"type": "string"},
    "company":       {"type": "string"},
    "location":      {"type": "string"},
    "appliedDate":   {"type": "string", "format": "date-time"},
    "lastUpdated":   {"type": "string", "format": "date-time"},
    "status":        {"type": "string", "enum": ["applied", "reviewing", "interview", "offer", "rejected", "withdrawn"]},
    "jobUrl":        {"type": "string"},
    "notes":         {"type": "string"},
    "followUpDate":  {"type": "string", "format": "date-time"},
    "interviewDate": {"type": "string", "format": "date-time"},
    "salary": {
      "type": "object",
      "properties": {
        "min":      {"type": "number"},
        "max":      {"type": "number"},
        "currency": {"type": "string"}
      }
    }
  }
}`

// envelopeSchema is the `{ "applications": [...] }` blob shared by durable
// storage and GET /applications.
var envelopeSchema = `{
  "type": "object",
  "required": ["applications"],
  "properties": {
    "applications": {"type": ["array", "null"], "items": ` + applicationSchema + `}
  }
}`

// newApplicationSchema guards the add command input.
const newApplicationSchema = `{
  "type": "object",
  "required": ["jobTitle", "company", "location"],
  "properties": {
    "jobTitle": {"type": "string", "minLength": 1},
    "company":  {"type": "string", "minLength": 1},
    "location": {"type": "string", "minLength": 1},
    "jobUrl":   {"type": "string", "pattern": "^(https?://.+)?$"}
  }
}`

// applicationPatchSchema guards the fields an update may set. Absent fields are
// left alone; present required fields may not be blank.
const applicationPatchSchema = `{
  "type": "object",
  "properties": {
    "jobTitle": {"type": "string", "minLength": 1},
    "company":  {"type": "string", "minLength": 1},
    "location": {"type": "string", "minLength": 1},
    "jobUrl":   {"type": "string", "pattern": "^(https?://.+)?$"}
  }
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var (
	compileOnce    sync.Once
	envelope       *gojsonschema.Schema
	newApplication *gojsonschema.Schema
	patch          *gojsonschema.Schema
	compileErr     error
)

func compile() error {
	compileOnce.Do(func() {
		envelope, compileErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
		if compileErr != nil {
			return
		}
		newApplication, compileErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(newApplicationSchema))
		if compileErr != nil {
			return
		}
		patch, compileErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(applicationPatchSchema))
	})
	return compileErr
}

// ValidateEnvelope checks a raw `{applications: [...]}` JSON document.
func ValidateEnvelope(raw []byte) (*ValidationResult, error) {
	if err := compile(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	result, err := envelope.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return toResult(result), nil
}

// ValidateNewApplication checks the caller-supplied fields of an add.
func ValidateNewApplication(fields map[string]interface{}) (*ValidationResult, error) {
	if err := compile(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	for k, v := range fields {
		if s, ok := v.(string); ok {
			fields[k] = strings.TrimSpace(s)
		}
	}
	result, err := newApplication.Validate(gojsonschema.NewGoLoader(fields))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return toResult(result), nil
}

// ValidateApplicationPatch checks the fields set by an update. Values are
// expected to be trimmed already.
func ValidateApplicationPatch(fields map[string]interface{}) (*ValidationResult, error) {
	if err := compile(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	result, err := patch.Validate(gojsonschema.NewGoLoader(fields))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return toResult(result), nil
}

func toResult(result *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// GetErrorMessages flattens the errors into "field: message" strings.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, e := range vr.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}
