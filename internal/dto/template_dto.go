package dto

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/nodegraph"
	"github.com/google/uuid"
)

// TemplateRequest creates or replaces a template. It doubles as the entry
// format of the YAML seed catalog.
type TemplateRequest struct {
	Name                   string                 `json:"name" yaml:"name"`
	Icon                   string                 `json:"icon,omitempty" yaml:"icon,omitempty"`
	Description            string                 `json:"description" yaml:"description"`
	IsActive               *bool                  `json:"is_active,omitempty" yaml:"is_active,omitempty"`
	EvaluationType         string                 `json:"evaluation_type" yaml:"evaluation_type"`
	EvaluationForm         *EvaluationFormPayload `json:"evaluation_form,omitempty" yaml:"evaluation_form,omitempty"`
	DefaultRecommendations map[string]string      `json:"default_recommendations,omitempty" yaml:"default_recommendations,omitempty"`
	AllowedEditorRoles     []string               `json:"allowed_editor_roles" yaml:"allowed_editor_roles"`
	IsReadonly             bool                   `json:"is_readonly" yaml:"is_readonly"`
	TrainingNodes          []TrainingNodeInput    `json:"training_nodes,omitempty" yaml:"training_nodes,omitempty"`
}

type EvaluationFormPayload struct {
	QuestionNodes []nodegraph.QuestionNode `json:"question_nodes" yaml:"question_nodes"`
}

// TrainingFormRequest replaces the training sequence of a template.
// MediaNodeIndex selects the node receiving an uploaded file. AltNextIndex
// gives the description node a second button jumping to that node.
type TrainingFormRequest struct {
	TrainingNodes   []TrainingNodeInput `json:"training_nodes" form:"-"`
	MediaNodeIndex  *int                `json:"media_node_index,omitempty"`
	AltNextIndex    *int                `json:"alt_next_index,omitempty"`
	NextButtonLabel string              `json:"next_button_label,omitempty"`
	AltButtonLabel  string              `json:"alt_button_label,omitempty"`
}

// TrainingNodeInput is one node as sent by clients. Sequence is array order;
// Order is accepted for compatibility and ignored.
type TrainingNodeInput struct {
	ID       NodeRef  `json:"id,omitempty" yaml:"id,omitempty"`
	Type     string   `json:"type" yaml:"type"`
	Order    *int     `json:"order,omitempty" yaml:"order,omitempty"`
	Title    string   `json:"title,omitempty" yaml:"title,omitempty"`
	Content  string   `json:"content,omitempty" yaml:"content,omitempty"`
	Question string   `json:"question,omitempty" yaml:"question,omitempty"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step     *float64 `json:"step,omitempty" yaml:"step,omitempty"`
}

// NodeRef is a client supplied node id. Stored nodes are addressed by uuid;
// freshly authored nodes often carry a number or a temporary string.
type NodeRef string

func (r *NodeRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = NodeRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = NodeRef(n.String())
	return nil
}

// UUID returns the reference as a uuid when it is one.
func (r NodeRef) UUID() (uuid.UUID, bool) {
	id, err := uuid.Parse(string(r))
	return id, err == nil
}

type NodeResponse struct {
	ID              uuid.UUID      `json:"id"`
	Type            nodegraph.Type `json:"type"`
	Order           int            `json:"order"`
	NextNodeID      *uuid.UUID     `json:"next_node_id"`
	AltNextNodeID   *uuid.UUID     `json:"alt_next_node_id,omitempty"`
	NextButtonLabel string         `json:"next_button_label,omitempty"`
	AltButtonLabel  string         `json:"alt_button_label,omitempty"`
	Title           string         `json:"title,omitempty"`
	Content         string         `json:"content,omitempty"`
	Question        string         `json:"question,omitempty"`
	Options         []string       `json:"options,omitempty"`
	Required        bool           `json:"required"`
	Min             *float64       `json:"min,omitempty"`
	Max             *float64       `json:"max,omitempty"`
	Step            *float64       `json:"step,omitempty"`
	MediaURL        *string        `json:"media_url"`
}

type TrainingForm struct {
	RootNode      *NodeResponse  `json:"root_node"`
	TrainingNodes []NodeResponse `json:"training_nodes"`
}

type TemplateResponse struct {
	ID                     uuid.UUID             `json:"id"`
	Name                   string                `json:"name"`
	Icon                   *string               `json:"icon"`
	Description            string                `json:"description"`
	EvaluationType         string                `json:"evaluation_type"`
	EvaluationTypeLabel    string                `json:"evaluation_type_label"`
	EvaluationForm         EvaluationFormPayload `json:"evaluation_form"`
	TrainingForm           TrainingForm          `json:"training_form"`
	DefaultRecommendations map[string]string     `json:"default_recommendations"`
	AllowedEditorRoles     []string              `json:"allowed_editor_roles"`
	IsReadonly             bool                  `json:"is_readonly"`
	IsActive               bool                  `json:"is_active"`
	Version                int                   `json:"version"`
}
