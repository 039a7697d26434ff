package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SaveResponsesRequest struct {
	Responses map[string]any `json:"responses"`
	Complete  bool           `json:"complete"`
}

type ProfessionalEvaluationRequest struct {
	ProfessionalResponses map[string]any `json:"professional_responses"`
	Complete              bool           `json:"complete"`
}

// RecommendationRequest updates a recommendation. Sign forces the
// draft->final transition even when IsDraft is omitted.
type RecommendationRequest struct {
	Text        string `json:"text" form:"text"`
	StatusColor string `json:"status_color" form:"status_color"`
	IsDraft     *bool  `json:"is_draft,omitempty" form:"is_draft"`
	Sign        bool   `json:"sign,omitempty" form:"sign"`
	UseDefault  bool   `json:"use_default,omitempty" form:"use_default"`
}

type StatusInfo struct {
	Color     string `json:"color"`
	Label     string `json:"label"`
	IsDraft   bool   `json:"is_draft"`
	Published bool   `json:"published"`
}

type ProfessionalInfo struct {
	Name string     `json:"name"`
	Date *time.Time `json:"date"`
	Text string     `json:"text"`
}

type EvaluationResults struct {
	Responses             json.RawMessage `json:"responses"`
	ProfessionalResponses json.RawMessage `json:"professional_responses"`
	CompletedDate         *time.Time      `json:"completed_date"`
	IsDraft               bool            `json:"is_draft"`
}

type InstanceResponse struct {
	ID                  uuid.UUID             `json:"id"`
	TemplateID          uuid.UUID             `json:"template_id"`
	UserID              uuid.UUID             `json:"user_id"`
	Name                string                `json:"name"`
	Icon                *string               `json:"icon"`
	Description         string                `json:"description"`
	EvaluationType      string                `json:"evaluation_type"`
	EvaluationTypeLabel string                `json:"evaluation_type_label"`
	EvaluationForm      EvaluationFormPayload `json:"evaluation_form"`
	EvaluationResults   *EvaluationResults    `json:"evaluation_results"`
	TrainingForm        TrainingForm          `json:"training_form"`
	CompletionDate      *time.Time            `json:"completion_date"`
	Status              StatusInfo            `json:"status"`
	ProfessionalInfo    *ProfessionalInfo     `json:"professional_info"`
	IsDraft             bool                  `json:"is_draft"`
	State               string                `json:"state"`
	ReadonlyFields      []string              `json:"readonly_fields"`
}

type RecommendationResponse struct {
	ID          uuid.UUID  `json:"id"`
	InstanceID  uuid.UUID  `json:"instance_id"`
	Text        string     `json:"text"`
	StatusColor string     `json:"status_color"`
	StatusLabel string     `json:"status_label"`
	VideoURL    *string    `json:"video_url"`
	IsDraft     bool       `json:"is_draft"`
	IsSigned    bool       `json:"is_signed"`
	UseDefault  bool       `json:"use_default"`
	UpdatedBy   *uuid.UUID `json:"updated_by"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SignedBy    *uuid.UUID `json:"signed_by"`
	SignedAt    *time.Time `json:"signed_at"`
}

// ActionLogEntry is one client-submitted timestamped action.
type ActionLogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Action    string          `json:"action"`
	NodeID    *uuid.UUID      `json:"node_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type ActivityResponse struct {
	ID         uuid.UUID       `json:"id"`
	UserID     *uuid.UUID      `json:"user_id"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type,omitempty"`
	TargetID   string          `json:"target_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Details    json.RawMessage `json:"details,omitempty"`
}
