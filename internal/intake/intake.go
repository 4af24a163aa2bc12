package intake

import (
	"fmt"
)

// Category is the request category driving plan shape.
type Category string

const (
	// CategoryAdvice answers from evidence without side effects.
	CategoryAdvice Category = "advice"

	// CategorySingleTask is one bounded change in the workspace.
	CategorySingleTask Category = "single-task"

	// CategoryEpic is a multi-goal effort decomposed into a full plan.
	CategoryEpic Category = "epic"

	// CategoryGenerative produces new content or code from scratch.
	CategoryGenerative Category = "generative"
)

// IsValid checks if the category is a known value.
func (c Category) IsValid() bool {
	switch c {
	case CategoryAdvice, CategorySingleTask, CategoryEpic, CategoryGenerative:
		return true
	default:
		return false
	}
}

// Complexity is the classifier's effort estimate for the request.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Classification is the intake result for one request.
type Classification struct {
	Category       Category   `json:"category"`
	RequiredAction string     `json:"required_action"`
	References     []string   `json:"references,omitempty"`
	Complexity     Complexity `json:"complexity"`

	// ClarificationQuestions non-empty means the request is ambiguous and
	// the workflow must suspend before evidence gathering. Ambiguity is a
	// suspension, never an error.
	ClarificationQuestions []string `json:"clarification_questions,omitempty"`
}

// NeedsClarification reports whether the workflow must suspend for the
// caller to disambiguate.
func (c *Classification) NeedsClarification() bool {
	return len(c.ClarificationQuestions) > 0
}

// Validate normalizes and checks a decoded classification.
func (c *Classification) Validate() error {
	if !c.Category.IsValid() {
		return fmt.Errorf("unknown category %q", c.Category)
	}
	switch c.Complexity {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
	case "":
		c.Complexity = ComplexityMedium
	default:
		return fmt.Errorf("unknown complexity %q", c.Complexity)
	}
	return nil
}
