package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aperturehq/aperture/internal/models"
)

func TestValidateConstruct(t *testing.T) {
	valid := models.ConstructSchema{
		Name:        "onboarding_readiness",
		Description: "How ready a new user is to finish onboarding",
		Elements: []models.ConstructElement{
			{
				Name:           "setup_progress",
				Description:    "how far setup has come",
				ValueType:      models.ValueTypeScore,
				ExtractionHint: "steps mentioned as done",
			},
		},
	}

	tests := []struct {
		name         string
		mutate       func(s *models.ConstructSchema)
		wantValid    bool
		wantIssue    string
		wantWarnings int
	}{
		{
			name:      "valid schema passes",
			mutate:    func(_ *models.ConstructSchema) {},
			wantValid: true,
		},
		{
			name:      "missing name",
			mutate:    func(s *models.ConstructSchema) { s.Name = "" },
			wantValid: false,
			wantIssue: "construct name is required",
		},
		{
			name:      "name not snake_case",
			mutate:    func(s *models.ConstructSchema) { s.Name = "Onboarding Readiness!" },
			wantValid: false,
			wantIssue: "snake_case",
		},
		{
			name:      "missing description",
			mutate:    func(s *models.ConstructSchema) { s.Description = "" },
			wantValid: false,
			wantIssue: "description is required",
		},
		{
			name:      "no elements",
			mutate:    func(s *models.ConstructSchema) { s.Elements = nil },
			wantValid: false,
			wantIssue: "at least one element",
		},
		{
			name: "duplicate element names",
			mutate: func(s *models.ConstructSchema) {
				s.Elements = append(s.Elements, s.Elements[0])
			},
			wantValid: false,
			wantIssue: "duplicated",
		},
		{
			name: "unknown value type",
			mutate: func(s *models.ConstructSchema) {
				s.Elements[0].ValueType = "mood"
			},
			wantValid: false,
			wantIssue: "unknown value_type",
		},
		{
			name: "missing extraction hint warns without rejecting",
			mutate: func(s *models.ConstructSchema) {
				s.Elements[0].ExtractionHint = ""
			},
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name: "range without possible values warns",
			mutate: func(s *models.ConstructSchema) {
				s.Elements[0].ValueType = models.ValueTypeRange
				s.Elements[0].PossibleValues = nil
			},
			wantValid:    true,
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := valid
			schema.Elements = append([]models.ConstructElement(nil), valid.Elements...)
			tt.mutate(&schema)

			result := ValidateConstruct(schema)
			assert.Equal(t, tt.wantValid, result.Valid)

			if tt.wantIssue != "" {
				assert.Contains(t, strings.Join(result.Issues, "\n"), tt.wantIssue)
			}

			if tt.wantWarnings > 0 {
				assert.Len(t, result.Warnings, tt.wantWarnings)
			}
		})
	}
}
