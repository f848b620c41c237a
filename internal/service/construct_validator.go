package service

import (
	"fmt"
	"regexp"

	"github.com/aperturehq/aperture/internal/models"
)

// snakeCaseName matches lowercase snake_case identifiers.
var snakeCaseName = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// ValidateConstruct checks a construct schema, generated or user-submitted.
// Issues make the schema invalid; warnings flag quality problems (such as a
// missing extraction hint) without rejecting it.
func ValidateConstruct(schema models.ConstructSchema) models.ValidationResult {
	var result models.ValidationResult

	if schema.Name == "" {
		result.Issues = append(result.Issues, "construct name is required")
	} else if !snakeCaseName.MatchString(schema.Name) {
		result.Issues = append(result.Issues, fmt.Sprintf("construct name %q must be snake_case alphanumeric", schema.Name))
	}

	if schema.Description == "" {
		result.Issues = append(result.Issues, "construct description is required")
	}

	if len(schema.Elements) == 0 {
		result.Issues = append(result.Issues, "construct needs at least one element")
	}

	seen := make(map[string]bool, len(schema.Elements))

	for _, el := range schema.Elements {
		switch {
		case el.Name == "":
			result.Issues = append(result.Issues, "element name is required")
		case !snakeCaseName.MatchString(el.Name):
			result.Issues = append(result.Issues, fmt.Sprintf("element name %q must be snake_case alphanumeric", el.Name))
		case seen[el.Name]:
			result.Issues = append(result.Issues, fmt.Sprintf("element name %q is duplicated", el.Name))
		default:
			seen[el.Name] = true
		}

		if !el.ValueType.Valid() {
			result.Issues = append(result.Issues, fmt.Sprintf("element %q has unknown value_type %q", el.Name, el.ValueType))
		}

		if el.ExtractionHint == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("element %q has no extraction hint; extraction quality will suffer", el.Name))
		}

		if el.ValueType == models.ValueTypeRange && len(el.PossibleValues) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("range element %q lists no possible values", el.Name))
		}
	}

	result.Valid = len(result.Issues) == 0

	return result
}
