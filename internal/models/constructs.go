package models

// ConstructElement describes one element a construct tracks per user.
type ConstructElement struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	ValueType      ValueType `json:"value_type"`
	ExtractionHint string    `json:"extraction_hint,omitempty"`
	PossibleValues []string  `json:"possible_values,omitempty"`
}

// ConstructSchema is the shape shared by catalog templates, generated
// constructs and user-submitted constructs. The validator operates on this.
type ConstructSchema struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	UseCases    []string           `json:"use_cases,omitempty"`
	Elements    []ConstructElement `json:"elements"`
}

// ConstructTemplate is a pre-built catalog entry.
type ConstructTemplate struct {
	ConstructSchema
}

// CustomConstruct is an LLM-synthesized construct for a description no
// template covers.
type CustomConstruct struct {
	ConstructSchema
	GeneratedFrom string  `json:"generated_from"`
	Confidence    float64 `json:"confidence"`
}

// TemplateScore is a catalog template with its similarity to a request.
type TemplateScore struct {
	Template   ConstructTemplate `json:"template"`
	Similarity float64           `json:"similarity"`
}

// MatchType distinguishes catalog matches from synthesized constructs.
type MatchType string

const (
	MatchTypeTemplate MatchType = "template"
	MatchTypeCustom   MatchType = "custom"
)

// ConstructMatch is the result of matching a natural-language description
// against the catalog.
type ConstructMatch struct {
	MatchType MatchType        `json:"match_type"`
	Templates []TemplateScore  `json:"templates,omitempty"`
	Custom    *CustomConstruct `json:"custom,omitempty"`
	Message   string           `json:"message"`
}

// ValidationResult reports schema problems found by the construct validator.
// Issues make the schema invalid; warnings do not.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Issues   []string `json:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ElementStats summarizes one element across the user population. Produced by
// the operator's analytics query and fed to pattern discovery.
type ElementStats struct {
	Element              string   `json:"element"`
	DistinctUserCount    int      `json:"distinct_user_count"`
	TotalObservations    int      `json:"total_observations"`
	MeanConfidence       float64  `json:"mean_confidence"`
	RepresentativeValues []string `json:"representative_values,omitempty"`
}

// ConstructSuggestion is one discovered-pattern proposal for a new construct.
type ConstructSuggestion struct {
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	ValueProposition  string             `json:"value_proposition,omitempty"`
	Elements          []ConstructElement `json:"elements"`
	ExampleUseCases   []string           `json:"example_use_cases,omitempty"`
	SourceElement     string             `json:"source_element"`
	RelatedElements   []string           `json:"related_elements,omitempty"`
	DistinctUserCount int                `json:"distinct_user_count"`
	OccurrenceRate    float64            `json:"occurrence_rate"`
	Confidence        float64            `json:"confidence"`
}
