package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aperturehq/aperture/internal/apperrors"
)

// ValueType identifies the shape of an assessment value.
type ValueType string

const (
	ValueTypeScore ValueType = "score"
	ValueTypeTag   ValueType = "tag"
	ValueTypeRange ValueType = "range"
	ValueTypeText  ValueType = "text"
)

// Valid reports whether the value type is one of the supported kinds.
func (v ValueType) Valid() bool {
	switch v {
	case ValueTypeScore, ValueTypeTag, ValueTypeRange, ValueTypeText:
		return true
	}

	return false
}

// ValueData is a tagged variant holding exactly one payload matching its type.
// Construct values through the New*Value constructors so that invalid
// combinations cannot be represented.
type ValueData struct {
	Type  ValueType
	Score float64 // set when Type == ValueTypeScore
	Label string  // set when Type == ValueTypeTag or ValueTypeRange
	Text  string  // set when Type == ValueTypeText
}

// NewScoreValue builds a score value. Scores are normalized to [0, 1].
func NewScoreValue(score float64) (ValueData, error) {
	if score < 0 || score > 1 {
		return ValueData{}, apperrors.NewValidationError("value", fmt.Sprintf("score %v outside [0, 1]", score))
	}

	return ValueData{Type: ValueTypeScore, Score: score}, nil
}

// NewTagValue builds a tag value (a single categorical label).
func NewTagValue(label string) (ValueData, error) {
	if label == "" {
		return ValueData{}, apperrors.NewValidationError("value", "tag label must not be empty")
	}

	return ValueData{Type: ValueTypeTag, Label: label}, nil
}

// NewRangeValue builds a range value (an ordered bucket label such as
// "beginner" or "advanced").
func NewRangeValue(label string) (ValueData, error) {
	if label == "" {
		return ValueData{}, apperrors.NewValidationError("value", "range label must not be empty")
	}

	return ValueData{Type: ValueTypeRange, Label: label}, nil
}

// NewTextValue builds a free-text value.
func NewTextValue(text string) (ValueData, error) {
	if text == "" {
		return ValueData{}, apperrors.NewValidationError("value", "text value must not be empty")
	}

	return ValueData{Type: ValueTypeText, Text: text}, nil
}

// MarshalJSON encodes the value as a single-key object, e.g. {"score": 0.72}
// or {"tag": "frustrated"}.
func (v ValueData) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case ValueTypeScore:
		return json.Marshal(map[string]float64{"score": v.Score})
	case ValueTypeTag:
		return json.Marshal(map[string]string{"tag": v.Label})
	case ValueTypeRange:
		return json.Marshal(map[string]string{"range": v.Label})
	case ValueTypeText:
		return json.Marshal(map[string]string{"text": v.Text})
	}

	return nil, fmt.Errorf("cannot marshal value with unknown type %q", v.Type)
}

// UnmarshalJSON decodes the single-key object form produced by MarshalJSON.
func (v *ValueData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if len(raw) != 1 {
		return fmt.Errorf("value data must contain exactly one key, got %d", len(raw))
	}

	for key, payload := range raw {
		switch ValueType(key) {
		case ValueTypeScore:
			var score float64
			if err := json.Unmarshal(payload, &score); err != nil {
				return fmt.Errorf("decoding score value: %w", err)
			}
			parsed, err := NewScoreValue(score)
			if err != nil {
				return err
			}
			*v = parsed
		case ValueTypeTag, ValueTypeRange, ValueTypeText:
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				return fmt.Errorf("decoding %s value: %w", key, err)
			}
			var (
				parsed ValueData
				err    error
			)
			switch ValueType(key) {
			case ValueTypeTag:
				parsed, err = NewTagValue(s)
			case ValueTypeRange:
				parsed, err = NewRangeValue(s)
			default:
				parsed, err = NewTextValue(s)
			}
			if err != nil {
				return err
			}
			*v = parsed
		default:
			return fmt.Errorf("unknown value type %q", key)
		}
	}

	return nil
}

// String renders the payload for prompts and logs.
func (v ValueData) String() string {
	switch v.Type {
	case ValueTypeScore:
		return fmt.Sprintf("%.2f", v.Score)
	case ValueTypeTag, ValueTypeRange:
		return v.Label
	case ValueTypeText:
		return v.Text
	}

	return ""
}

// Assessment is the live understanding of one element for one user. There is
// at most one row per (user_id, element); merges overwrite it in place.
type Assessment struct {
	ID               uuid.UUID         `json:"id"`
	UserID           string            `json:"user_id"`
	Element          string            `json:"element"`
	Value            ValueData         `json:"value"`
	Reasoning        string            `json:"reasoning"`
	Confidence       float64           `json:"confidence"`
	ObservationCount int               `json:"observation_count"`
	UserCorrected    bool              `json:"user_corrected"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Evidence is an append-only record of one observation that contributed to an
// assessment. Rows are never updated or deleted.
type Evidence struct {
	ID                     uuid.UUID `json:"id"`
	AssessmentID           uuid.UUID `json:"assessment_id"`
	UserMessage            string    `json:"user_message"`
	Context                string    `json:"context,omitempty"`
	ConfidenceContribution float64   `json:"confidence_contribution"`
	CreatedAt              time.Time `json:"created_at"`
}

// AssessmentWithEvidence bundles an assessment with its full evidence trail.
type AssessmentWithEvidence struct {
	Assessment
	Evidence []Evidence `json:"evidence"`
}

// AssessmentDraft is one candidate produced by the extraction engine, before
// it is merged into the live assessment table.
type AssessmentDraft struct {
	Element         string
	Value           ValueData
	Reasoning       string
	Confidence      float64
	EvidenceExcerpt string
	Metadata        map[string]string
}

// AssessmentUpdate carries the fields a merge or correction may change.
// Nil pointers leave the stored field untouched.
type AssessmentUpdate struct {
	Value            *ValueData
	Reasoning        *string
	Confidence       *float64
	ObservationCount *int
	UserCorrected    *bool
	Metadata         map[string]string
}

// ListAssessmentsFilters narrows an assessment listing.
type ListAssessmentsFilters struct {
	Element       *string
	MinConfidence *float64
	MaxConfidence *float64
	UserCorrected *bool
	Limit         int
}

// CorrectionKind classifies what the user says is wrong.
type CorrectionKind string

const (
	CorrectionWrongValue          CorrectionKind = "wrong_value"
	CorrectionWrongInterpretation CorrectionKind = "wrong_interpretation"
	CorrectionNotApplicable       CorrectionKind = "not_applicable"
	CorrectionOther               CorrectionKind = "other"
)

// Valid reports whether the kind is one of the supported correction kinds.
func (k CorrectionKind) Valid() bool {
	switch k {
	case CorrectionWrongValue, CorrectionWrongInterpretation, CorrectionNotApplicable, CorrectionOther:
		return true
	}

	return false
}

// Correction is user feedback about an existing assessment.
type Correction struct {
	Kind           CorrectionKind `json:"kind"`
	CorrectedValue *ValueData     `json:"corrected_value,omitempty"`
	Explanation    string         `json:"explanation,omitempty"`
}
