package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/nodegraph"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxIconBytes = 512 * 1024

type TemplateService struct {
	db      *gorm.DB
	perms   *PermissionService
	storage Storage
}

func NewTemplateService(db *gorm.DB, perms *PermissionService, storage Storage) *TemplateService {
	return &TemplateService{db: db, perms: perms, storage: storage}
}

// templateFields is a validated TemplateRequest.
type templateFields struct {
	name        string
	icon        []byte
	iconMime    string
	description string
	isActive    bool
	evalType    string
	form        datatypes.JSON
	defaults    datatypes.JSON
	editorRoles datatypes.JSON
	readonly    bool
}

func validateTemplate(req *dto.TemplateRequest) (*templateFields, error) {
	f := &templateFields{
		name:        strings.TrimSpace(req.Name),
		description: strings.TrimSpace(req.Description),
		isActive:    true,
		evalType:    strings.ToUpper(strings.TrimSpace(req.EvaluationType)),
		readonly:    req.IsReadonly,
	}
	if req.IsActive != nil {
		f.isActive = *req.IsActive
	}
	if f.name == "" {
		return nil, invalid("name", "is required")
	}
	if len(f.name) > 150 {
		return nil, invalid("name", "must be at most 150 characters")
	}
	if f.evalType == "" {
		f.evalType = models.EvaluationSelf
	}
	if !models.ValidEvaluationType(f.evalType) {
		return nil, invalid("evaluation_type", "must be one of SELF, PROFESSIONAL, BOTH")
	}

	editorRoles, err := roles.ParseAll(req.AllowedEditorRoles)
	if err != nil {
		return nil, &ValidationError{Field: "allowed_editor_roles", Message: err.Error(), Err: err}
	}
	names := make([]string, 0, len(editorRoles))
	for _, r := range editorRoles {
		names = append(names, r.String())
	}
	if f.editorRoles, err = json.Marshal(names); err != nil {
		return nil, err
	}

	form := dto.EvaluationFormPayload{QuestionNodes: []nodegraph.QuestionNode{}}
	if req.EvaluationForm != nil && req.EvaluationForm.QuestionNodes != nil {
		form.QuestionNodes = req.EvaluationForm.QuestionNodes
	}
	if err := validateQuestions(form.QuestionNodes); err != nil {
		return nil, err
	}
	if f.form, err = json.Marshal(form); err != nil {
		return nil, err
	}

	defaults := map[string]string{}
	for k, v := range req.DefaultRecommendations {
		if !validDefaultKey(k) {
			return nil, invalid("default_recommendations", "unknown key %q, expected one of %s", k, strings.Join(models.DefaultRecommendationKeys(), ", "))
		}
		defaults[k] = v
	}
	if f.defaults, err = json.Marshal(defaults); err != nil {
		return nil, err
	}

	if req.Icon != "" {
		if f.icon, f.iconMime, err = decodeIcon(req.Icon); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func validateQuestions(questions []nodegraph.QuestionNode) error {
	if err := nodegraph.ValidateQuestions(questions); err != nil {
		var fe *nodegraph.FieldError
		if errors.As(err, &fe) {
			return invalid("evaluation_form."+fe.Field, "%s", fe.Message)
		}
		return invalid("evaluation_form", "%v", err)
	}
	return nil
}

func validDefaultKey(k string) bool {
	for _, valid := range models.DefaultRecommendationKeys() {
		if k == valid {
			return true
		}
	}
	return false
}

// decodeIcon accepts a data URI or bare base64.
func decodeIcon(s string) ([]byte, string, error) {
	mime := ""
	payload := s
	if strings.HasPrefix(s, "data:") {
		header, data, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", invalid("icon", "must be a base64 data URI")
		}
		mime = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		payload = data
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", invalid("icon", "is not valid base64")
	}
	if len(raw) > maxIconBytes {
		return nil, "", invalid("icon", "must be at most %d KB", maxIconBytes/1024)
	}
	if mime == "" {
		mime = http.DetectContentType(raw)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, "", invalid("icon", "must be an image")
	}
	return raw, mime, nil
}

// IconDataURI renders a stored icon, or nil when the template has none.
func IconDataURI(t *models.CategoryTemplate) *string {
	if len(t.Icon) == 0 {
		return nil
	}
	mime := t.IconMime
	if mime == "" {
		mime = http.DetectContentType(t.Icon)
	}
	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(t.Icon)
	return &uri
}

func (s *TemplateService) nameTaken(tx *gorm.DB, name string, except uuid.UUID) (bool, error) {
	var count int64
	q := tx.Model(&models.CategoryTemplate{}).Where("LOWER(name) = LOWER(?)", name)
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create stores a template with its description root node and binds it to
// every active user.
func (s *TemplateService) Create(ctx context.Context, actor *Actor, req *dto.TemplateRequest) (*models.CategoryTemplate, error) {
	if err := s.perms.Require(ctx, actor, models.PermChangeTemplate); err != nil {
		return nil, err
	}
	f, err := validateTemplate(req)
	if err != nil {
		return nil, err
	}
	inputs, err := validateTrainingInputs(req.TrainingNodes)
	if err != nil {
		return nil, err
	}

	tmpl := models.CategoryTemplate{
		Name:                   f.name,
		Icon:                   f.icon,
		IconMime:               f.iconMime,
		Description:            f.description,
		IsActive:               f.isActive,
		EvaluationType:         f.evalType,
		EvaluationForm:         f.form,
		DefaultRecommendations: f.defaults,
		AllowedEditorRoles:     f.editorRoles,
		IsReadonly:             f.readonly,
		Version:                1,
	}

	var fanned int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.nameTaken(tx, f.name, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return ErrTemplateExists
		}
		if err := tx.Create(&tmpl).Error; err != nil {
			return fmt.Errorf("create template: %w", err)
		}

		root := models.Node{
			TemplateID: tmpl.ID,
			Type:       nodegraph.CategoryDescription,
			Title:      tmpl.Name,
			Content:    tmpl.Description,
		}
		if err := tx.Create(&root).Error; err != nil {
			return fmt.Errorf("create root node: %w", err)
		}
		tmpl.RootNodeID = &root.ID
		if err := tx.Model(&tmpl).Update("root_node_id", root.ID).Error; err != nil {
			return err
		}

		if len(inputs) > 0 {
			if _, err := writeTrainingNodes(tx, &tmpl, &dto.TrainingFormRequest{TrainingNodes: inputs}, ""); err != nil {
				return err
			}
		}

		if tmpl.IsActive {
			if fanned, err = createInstancesForTemplate(tx, &tmpl); err != nil {
				return err
			}
		}
		return recordActivity(tx, actor, ActionTemplateCreated, "template", tmpl.ID, map[string]any{"name": tmpl.Name})
	})
	if err != nil {
		return nil, err
	}
	slog.Info("template created", "template_id", tmpl.ID.String(), "name", tmpl.Name, "instances", fanned)
	return &tmpl, nil
}

// Update replaces a template's configuration, bumps its version and
// recomputes the editor set of every bound instance.
func (s *TemplateService) Update(ctx context.Context, actor *Actor, id uuid.UUID, req *dto.TemplateRequest) (*models.CategoryTemplate, error) {
	if err := s.perms.Require(ctx, actor, models.PermChangeTemplate); err != nil {
		return nil, err
	}
	f, err := validateTemplate(req)
	if err != nil {
		return nil, err
	}
	inputs, err := validateTrainingInputs(req.TrainingNodes)
	if err != nil {
		return nil, err
	}

	var tmpl models.CategoryTemplate
	var removedMedia []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tmpl, "id = ?", id).Error; err != nil {
			return notFound(err, ErrTemplateNotFound)
		}
		taken, err := s.nameTaken(tx, f.name, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrTemplateExists
		}

		activated := f.isActive && !tmpl.IsActive
		tmpl.Name = f.name
		tmpl.Description = f.description
		tmpl.IsActive = f.isActive
		tmpl.EvaluationType = f.evalType
		tmpl.EvaluationForm = f.form
		tmpl.DefaultRecommendations = f.defaults
		tmpl.AllowedEditorRoles = f.editorRoles
		tmpl.IsReadonly = f.readonly
		tmpl.Version++
		if f.icon != nil {
			tmpl.Icon = f.icon
			tmpl.IconMime = f.iconMime
		}
		if err := tx.Save(&tmpl).Error; err != nil {
			return fmt.Errorf("update template: %w", err)
		}

		root, err := ensureRootNode(tx, &tmpl)
		if err != nil {
			return err
		}
		if err := tx.Model(root).Updates(map[string]any{"title": tmpl.Name, "content": tmpl.Description}).Error; err != nil {
			return err
		}

		if req.TrainingNodes != nil {
			if removedMedia, err = writeTrainingNodes(tx, &tmpl, &dto.TrainingFormRequest{TrainingNodes: inputs}, ""); err != nil {
				return err
			}
		}

		if activated {
			if _, err := createInstancesForTemplate(tx, &tmpl); err != nil {
				return err
			}
		} else if err := rebuildEditorsForTemplate(tx, &tmpl); err != nil {
			return err
		}
		return recordActivity(tx, actor, ActionTemplateUpdated, "template", tmpl.ID, map[string]any{"version": tmpl.Version})
	})
	if err != nil {
		return nil, err
	}
	deleteMedia(ctx, s.storage, removedMedia...)
	return &tmpl, nil
}

// Delete removes a template with its nodes, instances, evaluation forms,
// recommendations and editor bindings.
func (s *TemplateService) Delete(ctx context.Context, actor *Actor, id uuid.UUID) error {
	if err := s.perms.Require(ctx, actor, models.PermChangeTemplate); err != nil {
		return err
	}

	var media []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tmpl models.CategoryTemplate
		if err := tx.First(&tmpl, "id = ?", id).Error; err != nil {
			return notFound(err, ErrTemplateNotFound)
		}

		var nodeMedia, videos []string
		if err := tx.Model(&models.Node{}).Where("template_id = ? AND media_path <> ''", id).Pluck("media_path", &nodeMedia).Error; err != nil {
			return err
		}
		instanceIDs := tx.Model(&models.CategoryInstance{}).Select("id").Where("template_id = ?", id)
		if err := tx.Model(&models.Recommendation{}).Where("instance_id IN (?) AND video_path <> ''", instanceIDs).Pluck("video_path", &videos).Error; err != nil {
			return err
		}
		media = append(nodeMedia, videos...)

		for _, model := range []any{&models.Recommendation{}, &models.EvaluationForm{}, &models.InstanceEditor{}} {
			if err := tx.Where("instance_id IN (?)", instanceIDs).Delete(model).Error; err != nil {
				return fmt.Errorf("delete instance children: %w", err)
			}
		}
		if err := tx.Where("template_id = ?", id).Delete(&models.CategoryInstance{}).Error; err != nil {
			return fmt.Errorf("delete instances: %w", err)
		}
		if err := tx.Where("template_id = ?", id).Delete(&models.Node{}).Error; err != nil {
			return fmt.Errorf("delete nodes: %w", err)
		}
		if err := tx.Delete(&tmpl).Error; err != nil {
			return fmt.Errorf("delete template: %w", err)
		}
		return recordActivity(tx, actor, ActionTemplateDeleted, "template", id, map[string]any{"name": tmpl.Name})
	})
	if err != nil {
		return err
	}
	deleteMedia(ctx, s.storage, media...)
	return nil
}

func (s *TemplateService) Get(ctx context.Context, id uuid.UUID) (*models.CategoryTemplate, error) {
	var tmpl models.CategoryTemplate
	if err := s.db.WithContext(ctx).First(&tmpl, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrTemplateNotFound)
	}
	return &tmpl, nil
}

func (s *TemplateService) List(ctx context.Context, activeOnly bool) ([]models.CategoryTemplate, error) {
	var out []models.CategoryTemplate
	q := s.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// QuestionNodes returns the evaluation questions of a template. PROFESSIONAL
// templates always use the fixed clinician schema.
func QuestionNodes(t *models.CategoryTemplate) []nodegraph.QuestionNode {
	if t.EvaluationType == models.EvaluationProfessional {
		return nodegraph.ProfessionalSchema()
	}
	q := t.Questions()
	if q == nil {
		return []nodegraph.QuestionNode{}
	}
	return q
}

// UpdateEvaluationForm replaces the stored question nodes.
func (s *TemplateService) UpdateEvaluationForm(ctx context.Context, actor *Actor, id uuid.UUID, form *dto.EvaluationFormPayload) (*models.CategoryTemplate, error) {
	if err := s.perms.Require(ctx, actor, models.PermChangeTemplate); err != nil {
		return nil, err
	}
	if form == nil || form.QuestionNodes == nil {
		return nil, invalid("question_nodes", "is required")
	}
	if err := validateQuestions(form.QuestionNodes); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}

	var tmpl models.CategoryTemplate
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tmpl, "id = ?", id).Error; err != nil {
			return notFound(err, ErrTemplateNotFound)
		}
		tmpl.EvaluationForm = raw
		tmpl.Version++
		if err := tx.Model(&tmpl).Updates(map[string]any{"evaluation_form": tmpl.EvaluationForm, "version": tmpl.Version}).Error; err != nil {
			return err
		}
		return recordActivity(tx, actor, ActionEvaluationFormUpdated, "template", tmpl.ID, map[string]any{"questions": len(form.QuestionNodes)})
	})
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// UpdateTrainingForm replaces the training sequence. The optional media file
// is stored before the transaction and removed again if it fails; files of
// replaced or deleted nodes are removed after commit.
func (s *TemplateService) UpdateTrainingForm(ctx context.Context, actor *Actor, id uuid.UUID, req *dto.TrainingFormRequest, media *Upload) (*models.CategoryTemplate, error) {
	if err := s.perms.Require(ctx, actor, models.PermChangeTemplate); err != nil {
		return nil, err
	}
	if req == nil || req.TrainingNodes == nil {
		return nil, invalid("training_nodes", "is required")
	}
	inputs, err := validateTrainingInputs(req.TrainingNodes)
	if err != nil {
		return nil, err
	}
	req.TrainingNodes = inputs
	if err := validateTrainingExtras(req, media != nil); err != nil {
		return nil, err
	}

	mediaKeyPath := ""
	if media != nil {
		mediaKeyPath = mediaKey("training/"+id.String(), media.Filename)
		if err := s.storage.Save(ctx, mediaKeyPath, media.Body, media.ContentType); err != nil {
			return nil, fmt.Errorf("store training media: %w", err)
		}
	}

	var tmpl models.CategoryTemplate
	var removed []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tmpl, "id = ?", id).Error; err != nil {
			return notFound(err, ErrTemplateNotFound)
		}
		var err error
		if removed, err = writeTrainingNodes(tx, &tmpl, req, mediaKeyPath); err != nil {
			return err
		}
		tmpl.Version++
		if err := tx.Model(&tmpl).Update("version", tmpl.Version).Error; err != nil {
			return err
		}
		return recordActivity(tx, actor, ActionTrainingFormUpdated, "template", tmpl.ID, map[string]any{"nodes": len(inputs)})
	})
	if err != nil {
		deleteMedia(ctx, s.storage, mediaKeyPath)
		return nil, err
	}
	deleteMedia(ctx, s.storage, removed...)
	return &tmpl, nil
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
