package models

import (
	"encoding/json"
	"time"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/nodegraph"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Evaluation types of a template.
const (
	EvaluationSelf         = "SELF"
	EvaluationProfessional = "PROFESSIONAL"
	EvaluationBoth         = "BOTH"
)

var evaluationLabels = map[string]string{
	EvaluationSelf:         "Self evaluation",
	EvaluationProfessional: "Professional evaluation",
	EvaluationBoth:         "Self and professional evaluation",
}

func ValidEvaluationType(t string) bool {
	_, ok := evaluationLabels[t]
	return ok
}

func EvaluationLabel(t string) string {
	return evaluationLabels[t]
}

// CategoryTemplate is the reusable configuration of a health category.
type CategoryTemplate struct {
	ID                     uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name                   string         `gorm:"size:150;not null;uniqueIndex" json:"name"`
	Icon                   []byte         `json:"-"`
	IconMime               string         `gorm:"size:50" json:"-"`
	Description            string         `gorm:"type:text" json:"description"`
	IsActive               bool           `gorm:"not null;index" json:"is_active"`
	EvaluationType         string         `gorm:"size:20;not null" json:"evaluation_type"`
	EvaluationForm         datatypes.JSON `gorm:"type:jsonb" json:"evaluation_form"`
	RootNodeID             *uuid.UUID     `gorm:"type:uuid" json:"root_node_id"`
	DefaultRecommendations datatypes.JSON `gorm:"type:jsonb" json:"default_recommendations"`
	AllowedEditorRoles     datatypes.JSON `gorm:"type:jsonb" json:"allowed_editor_roles"`
	IsReadonly             bool           `gorm:"not null" json:"is_readonly"`
	Version                int            `gorm:"not null" json:"version"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

func (t *CategoryTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// EvaluationFormData is the stored shape of CategoryTemplate.EvaluationForm.
type EvaluationFormData struct {
	QuestionNodes []nodegraph.QuestionNode `json:"question_nodes"`
}

// Questions decodes the stored evaluation form. Malformed data yields no questions.
func (t *CategoryTemplate) Questions() []nodegraph.QuestionNode {
	var form EvaluationFormData
	if len(t.EvaluationForm) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.EvaluationForm, &form); err != nil {
		return nil
	}
	return form.QuestionNodes
}

// EditorRoles decodes AllowedEditorRoles, silently dropping unknown entries.
// Writes are validated, so unknown entries only come from manual edits.
func (t *CategoryTemplate) EditorRoles() []roles.Role {
	var raw []string
	if len(t.AllowedEditorRoles) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.AllowedEditorRoles, &raw); err != nil {
		return nil
	}
	out := make([]roles.Role, 0, len(raw))
	for _, s := range raw {
		if r, err := roles.Parse(s); err == nil {
			out = append(out, r)
		}
	}
	return out
}

// Defaults decodes DefaultRecommendations (no_risk/prev_risk/risk/pending -> text).
func (t *CategoryTemplate) Defaults() map[string]string {
	out := map[string]string{}
	if len(t.DefaultRecommendations) == 0 {
		return out
	}
	_ = json.Unmarshal(t.DefaultRecommendations, &out)
	return out
}
