package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docufill/internal/llm"
	"github.com/docufill/internal/skill"
	"github.com/docufill/pkg/models"
)

// ValidateInput is the caller input for field validation.
type ValidateInput struct {
	FieldName string           `json:"fieldName"`
	FieldType models.FieldType `json:"fieldType"`
	Value     string           `json:"value"`
}

// ValidationResult is the validator's normalized output.
type ValidationResult struct {
	Valid           bool     `json:"valid"`
	Issues          []string `json:"issues"`
	NormalizedValue string   `json:"normalizedValue"`
}

// NewFieldValidator builds the field-validation skill. Fallback: valid with
// no issues and the value untouched, so a validator outage never blocks the
// fill flow.
func NewFieldValidator(opts Options) skill.Skill {
	config := skill.Config{
		Name:     FieldValidator,
		Category: skill.CategoryValidator,
		Model:    opts.Model,
		Instructions: "You validate a user-supplied value against its declared field type. " +
			"Respond with a single JSON object only.",
		Temperature: temperature(opts, 0.0),
		MaxTokens:   opts.MaxTokens,
	}

	return skill.New(config, buildValidatePrompt, parseValidationResult,
		func(input ValidateInput) ValidationResult {
			return ValidationResult{Valid: true, Issues: []string{}, NormalizedValue: input.Value}
		})
}

func buildValidatePrompt(input ValidateInput) (string, error) {
	if strings.TrimSpace(input.FieldName) == "" {
		return "", errors.New("field name is required")
	}
	if strings.TrimSpace(input.Value) == "" {
		return "", errors.New("value is required")
	}

	return fmt.Sprintf(
		"Validate the value %q for field %q of type %q.\n"+
			"Return a JSON object with keys: valid (boolean), issues (array of strings, empty when valid), "+
			"normalizedValue (the value in canonical form for its type).",
		input.Value, input.FieldName, input.FieldType,
	), nil
}

func parseValidationResult(raw string) (ValidationResult, error) {
	var resp struct {
		Valid           *bool    `json:"valid"`
		Issues          []string `json:"issues"`
		NormalizedValue string   `json:"normalizedValue"`
	}
	if _, err := llm.ProcessResponse(raw, &resp); err != nil {
		return ValidationResult{}, err
	}
	if resp.Valid == nil {
		return ValidationResult{}, errors.New("missing required field valid")
	}

	issues := resp.Issues
	if issues == nil {
		issues = []string{}
	}

	return ValidationResult{
		Valid:           *resp.Valid,
		Issues:          issues,
		NormalizedValue: resp.NormalizedValue,
	}, nil
}

// FormatInput is the caller input for value formatting.
type FormatInput struct {
	FieldType models.FieldType `json:"fieldType"`
	Value     string           `json:"value"`
}

// FormatResult is the formatter's normalized output.
type FormatResult struct {
	FormattedValue string `json:"formattedValue"`
	Changed        bool   `json:"changed"`
}

// NewValueFormatter builds the value-formatting skill. Fallback: the input
// value echoed unchanged.
func NewValueFormatter(opts Options) skill.Skill {
	config := skill.Config{
		Name:     ValueFormatter,
		Category: skill.CategoryValidator,
		Model:    opts.Model,
		Instructions: "You format field values into the canonical presentation for legal documents. " +
			"Respond with a single JSON object only.",
		Temperature: temperature(opts, 0.0),
		MaxTokens:   opts.MaxTokens,
	}

	return skill.New(config, buildFormatPrompt, parseFormatResult,
		func(input FormatInput) FormatResult {
			return FormatResult{FormattedValue: input.Value, Changed: false}
		})
}

func buildFormatPrompt(input FormatInput) (string, error) {
	if strings.TrimSpace(input.Value) == "" {
		return "", errors.New("value is required")
	}

	return fmt.Sprintf(
		"Format the value %q for a field of type %q (dates as YYYY-MM-DD, currency with symbol and "+
			"thousands separators, emails lowercased).\n"+
			"Return a JSON object with keys: formattedValue (string), changed (boolean).",
		input.Value, input.FieldType,
	), nil
}

func parseFormatResult(raw string) (FormatResult, error) {
	var resp struct {
		FormattedValue *string `json:"formattedValue"`
		Changed        bool    `json:"changed"`
	}
	if _, err := llm.ProcessResponse(raw, &resp); err != nil {
		return FormatResult{}, err
	}
	if resp.FormattedValue == nil {
		return FormatResult{}, errors.New("missing required field formattedValue")
	}

	return FormatResult{FormattedValue: *resp.FormattedValue, Changed: resp.Changed}, nil
}
