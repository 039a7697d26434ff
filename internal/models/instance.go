package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status colors of an instance and its recommendation.
const (
	StatusGreen  = "green"
	StatusYellow = "yellow"
	StatusRed    = "red"
	StatusGray   = "gray"
)

var statusLabels = map[string]string{
	StatusGreen:  "No risk",
	StatusYellow: "Preventive risk",
	StatusRed:    "Risk",
	StatusGray:   "Pending",
}

// defaultKeys maps a status color to its key in a template's default recommendations.
var defaultKeys = map[string]string{
	StatusGreen:  "no_risk",
	StatusYellow: "prev_risk",
	StatusRed:    "risk",
	StatusGray:   "pending",
}

func ValidStatusColor(c string) bool {
	_, ok := statusLabels[c]
	return ok
}

func StatusLabel(c string) string { return statusLabels[c] }

// DefaultRecommendationKey returns the default-recommendations key for a color.
func DefaultRecommendationKey(c string) string { return defaultKeys[c] }

// DefaultRecommendationKeys lists the accepted keys of a template's default map.
func DefaultRecommendationKeys() []string {
	return []string{"no_risk", "prev_risk", "risk", "pending"}
}

// Evaluation lifecycle states, derived from the evaluation form.
const (
	StateNotStarted = "NOT_STARTED"
	StateDraft      = "DRAFT"
	StateCompleted  = "COMPLETED"
)

// CategoryInstance binds one user to one template.
type CategoryInstance struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_instances_user_template" json:"user_id"`
	TemplateID     uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_instances_user_template;index" json:"template_id"`
	Responses      datatypes.JSON    `gorm:"type:jsonb" json:"responses"`
	CompletionDate *time.Time        `json:"completion_date"`
	StatusColor    string            `gorm:"size:10;not null" json:"status_color"`
	IsDraft        bool              `gorm:"not null" json:"is_draft"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Template       *CategoryTemplate `gorm:"foreignKey:TemplateID" json:"-"`
	User           *User             `gorm:"foreignKey:UserID" json:"-"`
}

func (i *CategoryInstance) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.StatusColor == "" {
		i.StatusColor = StatusGray
	}
	return nil
}

// InstanceEditor records which users may edit an instance. Rows are rebuilt
// wholesale whenever a template's editor roles or a user's role change.
type InstanceEditor struct {
	InstanceID uuid.UUID `gorm:"type:uuid;primaryKey" json:"instance_id"`
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
}

// EvaluationForm holds patient and clinician answers of one instance.
type EvaluationForm struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	InstanceID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"instance_id"`
	Responses             datatypes.JSON `gorm:"type:jsonb" json:"responses"`
	ProfessionalResponses datatypes.JSON `gorm:"type:jsonb" json:"professional_responses"`
	CompletedDate         *time.Time     `json:"completed_date"`
	IsDraft               bool           `gorm:"not null" json:"is_draft"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func (f *EvaluationForm) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// State derives the evaluation lifecycle state.
func (f *EvaluationForm) State() string {
	if !f.IsDraft && f.CompletedDate != nil {
		return StateCompleted
	}
	if jsonEmpty(f.Responses) && jsonEmpty(f.ProfessionalResponses) {
		return StateNotStarted
	}
	return StateDraft
}

// IsComplete applies the completion rule of the given evaluation type.
func (f *EvaluationForm) HasResponses() bool { return !jsonEmpty(f.Responses) }

func (f *EvaluationForm) HasProfessionalResponses() bool { return !jsonEmpty(f.ProfessionalResponses) }

func (f *EvaluationForm) IsComplete(evaluationType string) bool {
	self := f.HasResponses()
	professional := f.HasProfessionalResponses()
	switch evaluationType {
	case EvaluationSelf:
		return self
	case EvaluationProfessional:
		return professional
	case EvaluationBoth:
		return self && professional
	}
	return false
}

func jsonEmpty(raw datatypes.JSON) bool {
	if len(raw) == 0 {
		return true
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return true
	}
	return len(m) == 0
}

// Recommendation is the clinician advisory attached to an instance.
type Recommendation struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	InstanceID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"instance_id"`
	Text        string     `gorm:"type:text" json:"text"`
	StatusColor string     `gorm:"size:10;not null" json:"status_color"`
	VideoPath   string     `gorm:"size:500" json:"-"`
	IsDraft     bool       `gorm:"not null" json:"is_draft"`
	IsSigned    bool       `gorm:"not null" json:"is_signed"`
	UseDefault  bool       `gorm:"not null" json:"use_default"`
	UpdatedByID *uuid.UUID `gorm:"type:uuid" json:"updated_by"`
	SignedByID  *uuid.UUID `gorm:"type:uuid" json:"signed_by"`
	SignedAt    *time.Time `json:"signed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	UpdatedBy   *User      `gorm:"foreignKey:UpdatedByID" json:"-"`
}

func (r *Recommendation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
