package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var scalar = map[string]interface{}{
	"type": []interface{}{"string", "number", "integer", "boolean", "null"},
}

// ScoreRequestSchema accepts {"data": [row, ...]} where a row is either an
// array of scalars or an object of scalars. Row length is checked against
// the column schema later, not here.
var ScoreRequestSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"data"},
	"properties": map[string]interface{}{
		"data": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"oneOf": []interface{}{
					map[string]interface{}{"type": "array", "items": scalar},
					map[string]interface{}{"type": "object", "additionalProperties": scalar},
				},
			},
		},
	},
}

// WorkerInputSchema extends the score request with an optional request id.
var WorkerInputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"data"},
	"properties": map[string]interface{}{
		"data":      ScoreRequestSchema["properties"].(map[string]interface{})["data"],
		"requestId": map[string]interface{}{"type": "string"},
	},
}

var (
	scoreRequestSchema = mustCompile(ScoreRequestSchema)
	workerInputSchema  = mustCompile(WorkerInputSchema)
)

func mustCompile(schema map[string]interface{}) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return s
}

// ValidateScoreRequest validates a decoded request document.
func ValidateScoreRequest(doc interface{}) *ValidationResult {
	return validateWith(scoreRequestSchema, doc)
}

// ValidateWorkerInput validates decoded job variables.
func ValidateWorkerInput(doc interface{}) *ValidationResult {
	return validateWith(workerInputSchema, doc)
}

func validateWith(s *gojsonschema.Schema, doc interface{}) *ValidationResult {
	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "INVALID_DOCUMENT"}},
		}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return &ValidationResult{Valid: result.Valid(), Errors: errs}
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}
