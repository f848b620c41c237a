package service

import "github.com/aperturehq/aperture/internal/models"

// DefaultTemplates returns the built-in construct catalog. The catalog is
// static; the matcher caches its embeddings per model.
func DefaultTemplates() []models.ConstructTemplate {
	return []models.ConstructTemplate{
		{
			ConstructSchema: models.ConstructSchema{
				Name:        "customer_support_tier",
				Description: "Track how much support a customer needs, how frustrated they are, and whether they are at risk of churning",
				UseCases:    []string{"customer support", "customer success", "escalation routing"},
				Elements: []models.ConstructElement{
					{
						Name:           "frustration_level",
						Description:    "How frustrated the customer currently is",
						ValueType:      models.ValueTypeScore,
						ExtractionHint: "Tone, repeated issues, exclamation, explicit complaints",
					},
					{
						Name:           "issue_complexity",
						Description:    "How complex the customer's problem is",
						ValueType:      models.ValueTypeRange,
						ExtractionHint: "Number of systems involved, error depth, back-and-forth needed",
						PossibleValues: []string{"simple", "moderate", "complex"},
					},
					{
						Name:           "churn_risk",
						Description:    "Likelihood the customer abandons the product",
						ValueType:      models.ValueTypeScore,
						ExtractionHint: "Mentions of alternatives, cancellation, unmet expectations",
					},
					{
						Name:           "product_knowledge",
						Description:    "How well the customer knows the product",
						ValueType:      models.ValueTypeRange,
						ExtractionHint: "Correct terminology, feature awareness, setup depth",
						PossibleValues: []string{"novice", "intermediate", "expert"},
					},
				},
			},
		},
		{
			ConstructSchema: models.ConstructSchema{
				Name:        "purchase_intent",
				Description: "Track how close a prospect is to buying and what stands in the way",
				UseCases:    []string{"sales", "lead qualification", "e-commerce"},
				Elements: []models.ConstructElement{
					{
						Name:           "purchase_readiness",
						Description:    "How ready the prospect is to buy now",
						ValueType:      models.ValueTypeScore,
						ExtractionHint: "Pricing questions, timeline mentions, comparison shopping",
					},
					{
						Name:           "budget_signal",
						Description:    "What the prospect reveals about budget",
						ValueType:      models.ValueTypeTag,
						ExtractionHint: "Price sensitivity, budget approval mentions, tier interest",
					},
					{
						Name:           "decision_stage",
						Description:    "Where the prospect is in the buying journey",
						ValueType:      models.ValueTypeRange,
						ExtractionHint: "Research questions vs. implementation questions",
						PossibleValues: []string{"awareness", "consideration", "decision"},
					},
					{
						Name:           "objection_type",
						Description:    "The main objection holding the prospect back",
						ValueType:      models.ValueTypeTag,
						ExtractionHint: "Price, features, trust, timing, integration concerns",
					},
				},
			},
		},
		{
			ConstructSchema: models.ConstructSchema{
				Name:        "student_knowledge_tracker",
				Description: "Track what a student has mastered, how they learn, and where they hold misconceptions",
				UseCases:    []string{"education", "tutoring", "training"},
				Elements: []models.ConstructElement{
					{
						Name:           "concept_mastery",
						Description:    "How well the student has mastered the current concept",
						ValueType:      models.ValueTypeScore,
						ExtractionHint: "Correct application, self-correction, question depth",
					},
					{
						Name:           "learning_style",
						Description:    "How the student prefers to learn",
						ValueType:      models.ValueTypeTag,
						ExtractionHint: "Requests for examples, theory, practice problems, analogies",
					},
					{
						Name:           "engagement_level",
						Description:    "How engaged the student is with the material",
						ValueType:      models.ValueTypeScore,
						ExtractionHint: "Follow-up questions, elaboration, session length",
					},
					{
						Name:           "misconception_flag",
						Description:    "A specific misconception the student holds",
						ValueType:      models.ValueTypeText,
						ExtractionHint: "Confidently stated incorrect reasoning",
					},
				},
			},
		},
		{
			ConstructSchema: models.ConstructSchema{
				Name:        "developer_skill_profiler",
				Description: "Track a developer's proficiency, debugging habits and architectural maturity",
				UseCases:    []string{"developer tools", "technical documentation", "devrel"},
				Elements: []models.ConstructElement{
					{
						Name:           "language_proficiency",
						Description:    "Proficiency with the language or framework in use",
						ValueType:      models.ValueTypeRange,
						ExtractionHint: "Idiomatic usage, API familiarity, error interpretation",
						PossibleValues: []string{"beginner", "intermediate", "advanced", "expert"},
					},
					{
						Name:           "debugging_approach",
						Description:    "How the developer approaches debugging",
						ValueType:      models.ValueTypeTag,
						ExtractionHint: "Systematic narrowing, trial and error, reading source, logging",
					},
					{
						Name:           "architecture_thinking",
						Description:    "How much the developer reasons about structure beyond the immediate fix",
						ValueType:      models.ValueTypeScore,
						ExtractionHint: "Trade-off discussion, pattern references, scaling concerns",
					},
					{
						Name:           "documentation_reliance",
						Description:    "How heavily the developer leans on documentation versus exploration",
						ValueType:      models.ValueTypeScore,
						ExtractionHint: "Doc quotes, link requests, spec citations",
					},
				},
			},
		},
	}
}
