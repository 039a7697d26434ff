package nodegraph

import (
	"fmt"
	"strings"
)

// QuestionNode is one entry of a template's evaluation form.
type QuestionNode struct {
	ID       string   `json:"id" yaml:"id"`
	Type     Type     `json:"type" yaml:"type"`
	Prompt   string   `json:"prompt" yaml:"prompt"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	Required bool     `json:"required" yaml:"required"`
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step     *float64 `json:"step,omitempty" yaml:"step,omitempty"`
}

// FieldError names the offending field of an invalid question.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

// ValidateQuestions checks the shape of an evaluation form. Question ids must
// be unique; an empty id is filled from the position.
func ValidateQuestions(questions []QuestionNode) error {
	seen := make(map[string]bool, len(questions))
	for i := range questions {
		q := &questions[i]
		field := fmt.Sprintf("question_nodes[%d]", i)
		if strings.TrimSpace(q.ID) == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		if seen[q.ID] {
			return &FieldError{Field: field + ".id", Message: "duplicate id " + q.ID}
		}
		seen[q.ID] = true
		if !q.Type.IsQuestion() {
			return &FieldError{Field: field + ".type", Message: fmt.Sprintf("%q is not a question type", q.Type)}
		}
		if strings.TrimSpace(q.Prompt) == "" {
			return &FieldError{Field: field + ".prompt", Message: "is required"}
		}
		if q.Type.HasChoices() && len(q.Options) < 2 {
			return &FieldError{Field: field + ".options", Message: "choice questions need at least two options"}
		}
		if q.Type == ScaleQuestion {
			if err := validateScale(field, q.Min, q.Max, q.Step); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateScale(field string, min, max, step *float64) error {
	if min == nil || max == nil {
		return &FieldError{Field: field + ".min", Message: "scale questions need min and max"}
	}
	if *min >= *max {
		return &FieldError{Field: field + ".max", Message: "must be greater than min"}
	}
	if step != nil && *step <= 0 {
		return &FieldError{Field: field + ".step", Message: "must be positive"}
	}
	return nil
}

// ProfessionalSchema is the fixed form filled by clinicians on
// PROFESSIONAL templates, regardless of the stored form.
func ProfessionalSchema() []QuestionNode {
	return []QuestionNode{
		{ID: "observations", Type: TextQuestion, Prompt: "Observations", Required: true},
		{ID: "diagnosis", Type: TextQuestion, Prompt: "Diagnosis", Required: true},
	}
}
