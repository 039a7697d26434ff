package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"gorm.io/gorm"
)

// Renderer builds the read contracts of templates, instances and
// recommendations. Media URLs depend on the request passed in.
type Renderer struct {
	db      *gorm.DB
	storage Storage
}

func NewRenderer(db *gorm.DB, storage Storage) *Renderer {
	return &Renderer{db: db, storage: storage}
}

func UserView(u *models.User) dto.UserResponse {
	role := u.Role()
	return dto.UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        role.String(),
		RoleLabel:   role.Label(),
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
	}
}

func ActivityView(l *models.ActivityLog) dto.ActivityResponse {
	return dto.ActivityResponse{
		ID:         l.ID,
		UserID:     l.UserID,
		Action:     l.Action,
		TargetType: l.TargetType,
		TargetID:   l.TargetID,
		OccurredAt: l.OccurredAt,
		Details:    json.RawMessage(l.Details),
	}
}

func (r *Renderer) node(n *models.Node, req *RequestInfo) dto.NodeResponse {
	out := dto.NodeResponse{
		ID:              n.ID,
		Type:            n.Type,
		Order:           n.Position,
		NextNodeID:      n.NextNodeID,
		AltNextNodeID:   n.AltNextNodeID,
		NextButtonLabel: n.NextButtonLabel,
		AltButtonLabel:  n.AltButtonLabel,
		Title:           n.Title,
		Content:         n.Content,
		Question:        n.Question,
		Options:         n.OptionList(),
		Required:        n.Required,
		Min:             n.ScaleMin,
		Max:             n.ScaleMax,
		Step:            n.ScaleStep,
	}
	if n.Type.HasMedia() {
		out.MediaURL = r.storage.URL(n.MediaPath, req)
	}
	return out
}

// TrainingForm walks the template graph and renders it. next_node_id of
// every training node is taken from the walked chain, so the last one is
// always null.
func (r *Renderer) TrainingForm(ctx context.Context, tmpl *models.CategoryTemplate, req *RequestInfo) (dto.TrainingForm, error) {
	root, nodes, err := loadTrainingNodes(r.db.WithContext(ctx), tmpl)
	if err != nil {
		return dto.TrainingForm{}, err
	}
	form := dto.TrainingForm{TrainingNodes: make([]dto.NodeResponse, 0, len(nodes))}
	if root != nil {
		v := r.node(root, req)
		form.RootNode = &v
	}
	for i := range nodes {
		v := r.node(&nodes[i], req)
		v.NextNodeID = nil
		if i+1 < len(nodes) {
			next := nodes[i+1].ID
			v.NextNodeID = &next
		}
		form.TrainingNodes = append(form.TrainingNodes, v)
	}
	return form, nil
}

func (r *Renderer) Template(ctx context.Context, tmpl *models.CategoryTemplate, req *RequestInfo) (*dto.TemplateResponse, error) {
	training, err := r.TrainingForm(ctx, tmpl, req)
	if err != nil {
		return nil, fmt.Errorf("render template %s: %w", tmpl.Name, err)
	}
	editorRoles := []string{}
	for _, role := range tmpl.EditorRoles() {
		editorRoles = append(editorRoles, role.String())
	}
	return &dto.TemplateResponse{
		ID:                     tmpl.ID,
		Name:                   tmpl.Name,
		Icon:                   IconDataURI(tmpl),
		Description:            tmpl.Description,
		EvaluationType:         tmpl.EvaluationType,
		EvaluationTypeLabel:    models.EvaluationLabel(tmpl.EvaluationType),
		EvaluationForm:         dto.EvaluationFormPayload{QuestionNodes: QuestionNodes(tmpl)},
		TrainingForm:           training,
		DefaultRecommendations: tmpl.Defaults(),
		AllowedEditorRoles:     editorRoles,
		IsReadonly:             tmpl.IsReadonly,
		IsActive:               tmpl.IsActive,
		Version:                tmpl.Version,
	}, nil
}

func (r *Renderer) Recommendation(rec *models.Recommendation, tmpl *models.CategoryTemplate, req *RequestInfo) dto.RecommendationResponse {
	return dto.RecommendationResponse{
		ID:          rec.ID,
		InstanceID:  rec.InstanceID,
		Text:        DisplayText(rec, tmpl),
		StatusColor: rec.StatusColor,
		StatusLabel: models.StatusLabel(rec.StatusColor),
		VideoURL:    r.storage.URL(rec.VideoPath, req),
		IsDraft:     rec.IsDraft,
		IsSigned:    rec.IsSigned,
		UseDefault:  rec.UseDefault,
		UpdatedBy:   rec.UpdatedByID,
		UpdatedAt:   rec.UpdatedAt,
		SignedBy:    rec.SignedByID,
		SignedAt:    rec.SignedAt,
	}
}

// Instance renders an instance for actor. The evaluation form and the
// recommendation must have been ensured by the caller.
func (r *Renderer) Instance(ctx context.Context, actor *Actor, inst *models.CategoryInstance, form *models.EvaluationForm, rec *models.Recommendation, req *RequestInfo) (*dto.InstanceResponse, error) {
	tmpl := inst.Template
	training, err := r.TrainingForm(ctx, tmpl, req)
	if err != nil {
		return nil, fmt.Errorf("render instance %s: %w", inst.ID, err)
	}

	out := &dto.InstanceResponse{
		ID:                  inst.ID,
		TemplateID:          tmpl.ID,
		UserID:              inst.UserID,
		Name:                tmpl.Name,
		Icon:                IconDataURI(tmpl),
		Description:         tmpl.Description,
		EvaluationType:      tmpl.EvaluationType,
		EvaluationTypeLabel: models.EvaluationLabel(tmpl.EvaluationType),
		EvaluationForm:      dto.EvaluationFormPayload{QuestionNodes: QuestionNodes(tmpl)},
		TrainingForm:        training,
		CompletionDate:      inst.CompletionDate,
		Status: dto.StatusInfo{
			Color: inst.StatusColor,
			Label: models.StatusLabel(inst.StatusColor),
		},
		IsDraft:        inst.IsDraft,
		State:          models.StateNotStarted,
		ReadonlyFields: ReadonlyFields(actor, inst),
	}

	if form != nil {
		out.State = form.State()
		out.EvaluationResults = &dto.EvaluationResults{
			Responses:             rawOrEmpty(form.Responses),
			ProfessionalResponses: rawOrEmpty(form.ProfessionalResponses),
			CompletedDate:         form.CompletedDate,
			IsDraft:               form.IsDraft,
		}
	}

	if rec != nil {
		out.Status.IsDraft = rec.IsDraft
		out.Status.Published = rec.IsSigned && !rec.IsDraft
		if rec.UpdatedByID != nil {
			info := &dto.ProfessionalInfo{Date: &rec.UpdatedAt, Text: DisplayText(rec, tmpl)}
			var editor models.User
			if err := r.db.WithContext(ctx).First(&editor, "id = ?", *rec.UpdatedByID).Error; err == nil {
				info.Name = editor.FullName()
			}
			out.ProfessionalInfo = info
		}
	}
	return out, nil
}

func rawOrEmpty(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(raw)
}
