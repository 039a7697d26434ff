package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrEvaluationCompleted is returned when a patient edits a finished evaluation.
var ErrEvaluationCompleted = errors.New("evaluation already completed")

type InstanceService struct {
	db    *gorm.DB
	perms *PermissionService
	retry database.Retrier
}

func NewInstanceService(db *gorm.DB, perms *PermissionService, retry database.Retrier) *InstanceService {
	return &InstanceService{db: db, perms: perms, retry: retry}
}

func (s *InstanceService) load(tx *gorm.DB, id uuid.UUID) (*models.CategoryInstance, error) {
	var inst models.CategoryInstance
	if err := tx.Preload("Template").Preload("User").First(&inst, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrInstanceNotFound)
	}
	if inst.Template == nil {
		return nil, ErrTemplateNotFound
	}
	return &inst, nil
}

// Get loads an instance the actor may view.
func (s *InstanceService) Get(ctx context.Context, actor *Actor, id uuid.UUID) (*models.CategoryInstance, error) {
	inst, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	ok, err := s.perms.CanView(ctx, actor, inst)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	return inst, nil
}

// ListForUser lists the instances of active templates bound to userID.
// Reading someone else's list needs view_categoryinstance.
func (s *InstanceService) ListForUser(ctx context.Context, actor *Actor, userID uuid.UUID) ([]models.CategoryInstance, error) {
	if userID != actor.ID() {
		if err := s.perms.Require(ctx, actor, models.PermViewInstance); err != nil {
			return nil, err
		}
	}
	var out []models.CategoryInstance
	err := s.db.WithContext(ctx).
		Preload("Template").
		Joins("JOIN category_templates ON category_templates.id = category_instances.template_id").
		Where("category_instances.user_id = ? AND category_templates.is_active = ?", userID, true).
		Order("category_templates.name ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListEditable lists instances the actor may edit: every instance of a
// writable template for staff, the editor bindings for everybody else.
func (s *InstanceService) ListEditable(ctx context.Context, actor *Actor) ([]models.CategoryInstance, error) {
	q := s.db.WithContext(ctx).
		Preload("Template").
		Preload("User").
		Joins("JOIN category_templates ON category_templates.id = category_instances.template_id").
		Where("category_templates.is_readonly = ?", false)
	if !actor.IsStaff() {
		q = q.Where("category_instances.id IN (?)",
			s.db.Model(&models.InstanceEditor{}).Select("instance_id").Where("user_id = ?", actor.ID()))
	}
	var out []models.CategoryInstance
	if err := q.Order("category_instances.updated_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func ensureEvaluationFormTx(tx *gorm.DB, instanceID uuid.UUID) (*models.EvaluationForm, error) {
	var form models.EvaluationForm
	fresh := models.EvaluationForm{InstanceID: instanceID, IsDraft: true}
	if err := loadOrCreate(tx, &form, fresh, "instance_id", instanceID); err != nil {
		return nil, fmt.Errorf("ensure evaluation form: %w", err)
	}
	return &form, nil
}

// EnsureEvaluationForm returns the evaluation form of an instance, creating
// an empty draft one when missing.
func (s *InstanceService) EnsureEvaluationForm(ctx context.Context, instanceID uuid.UUID) (*models.EvaluationForm, error) {
	return ensureEvaluationFormTx(s.db.WithContext(ctx), instanceID)
}

// completeForm moves the form to COMPLETED and finalizes the recommendation
// in the same transaction. It fails when a part the evaluation type requires
// is still missing. Clinicians sign the recommendation; a patient completing
// their own part only clears its draft flag.
func completeForm(tx *gorm.DB, actor *Actor, inst *models.CategoryInstance, form *models.EvaluationForm, now time.Time) error {
	if !form.IsComplete(inst.Template.EvaluationType) {
		if !form.HasResponses() {
			return invalid("responses", "patient part missing")
		}
		return invalid("professional_responses", "professional part missing")
	}
	form.IsDraft = false
	form.CompletedDate = &now
	if err := tx.Save(form).Error; err != nil {
		return err
	}
	err := tx.Model(&models.CategoryInstance{}).Where("id = ?", inst.ID).
		Updates(map[string]any{"completion_date": now, "is_draft": false}).Error
	if err != nil {
		return err
	}
	inst.CompletionDate = &now
	inst.IsDraft = false

	rec, err := ensureRecommendationTx(tx, inst.ID)
	if err != nil {
		return err
	}
	return finalizeRecommendation(tx, rec, actor, CanEdit(actor, inst.Template), now)
}

// SaveResponses stores the patient's own answers. Only the owner may write
// them, and not after the evaluation completed.
func (s *InstanceService) SaveResponses(ctx context.Context, actor *Actor, instanceID uuid.UUID, req *dto.SaveResponsesRequest) (*models.EvaluationForm, error) {
	if req.Responses == nil {
		return nil, invalid("responses", "is required")
	}
	if req.Complete && len(req.Responses) == 0 {
		return nil, invalid("responses", "cannot complete an empty evaluation")
	}
	raw, err := json.Marshal(req.Responses)
	if err != nil {
		return nil, invalid("responses", "must be a JSON object")
	}

	inst, err := s.load(s.db.WithContext(ctx), instanceID)
	if err != nil {
		return nil, err
	}
	if inst.UserID != actor.ID() {
		return nil, fmt.Errorf("%w: only the patient may answer", ErrPermissionDenied)
	}
	if inst.Template.EvaluationType == models.EvaluationProfessional {
		return nil, invalid("responses", "template has no self evaluation")
	}

	var form *models.EvaluationForm
	err = s.retry.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if form, err = ensureEvaluationFormTx(tx, instanceID); err != nil {
			return err
		}
		if form.State() == models.StateCompleted {
			return ErrEvaluationCompleted
		}
		form.Responses = datatypes.JSON(raw)
		form.IsDraft = true
		if err := tx.Save(form).Error; err != nil {
			return err
		}
		if req.Complete {
			if err := completeForm(tx, actor, inst, form, time.Now().UTC()); err != nil {
				return err
			}
		}
		return recordActivity(tx, actor, ActionResponsesSaved, "instance", instanceID, map[string]any{"complete": req.Complete})
	})
	if err != nil {
		return nil, err
	}
	return form, nil
}

// SaveTrainingResponses stores the owner's answers to training nodes on the
// instance itself.
func (s *InstanceService) SaveTrainingResponses(ctx context.Context, actor *Actor, instanceID uuid.UUID, responses map[string]any) (*models.CategoryInstance, error) {
	if responses == nil {
		return nil, invalid("responses", "is required")
	}
	raw, err := json.Marshal(responses)
	if err != nil {
		return nil, invalid("responses", "must be a JSON object")
	}
	inst, err := s.load(s.db.WithContext(ctx), instanceID)
	if err != nil {
		return nil, err
	}
	if inst.UserID != actor.ID() {
		return nil, fmt.Errorf("%w: only the patient may answer", ErrPermissionDenied)
	}
	inst.Responses = datatypes.JSON(raw)
	if err := s.db.WithContext(ctx).Model(&models.CategoryInstance{}).Where("id = ?", instanceID).
		Update("responses", inst.Responses).Error; err != nil {
		return nil, err
	}
	return inst, nil
}

// SaveProfessionalEvaluation stores clinician answers. Completing it also
// finalizes the recommendation; both happen in one retried transaction.
func (s *InstanceService) SaveProfessionalEvaluation(ctx context.Context, actor *Actor, instanceID uuid.UUID, req *dto.ProfessionalEvaluationRequest) (*models.EvaluationForm, error) {
	if req.ProfessionalResponses == nil {
		return nil, invalid("professional_responses", "is required")
	}
	if req.Complete && len(req.ProfessionalResponses) == 0 {
		return nil, invalid("professional_responses", "cannot complete an empty evaluation")
	}
	raw, err := json.Marshal(req.ProfessionalResponses)
	if err != nil {
		return nil, invalid("professional_responses", "must be a JSON object")
	}

	inst, err := s.load(s.db.WithContext(ctx), instanceID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.RequireEdit(ctx, actor, models.PermChangeEvaluation, inst.Template); err != nil {
		return nil, err
	}
	if inst.Template.EvaluationType == models.EvaluationSelf {
		return nil, invalid("professional_responses", "template has no professional evaluation")
	}

	var form *models.EvaluationForm
	err = s.retry.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if form, err = ensureEvaluationFormTx(tx, instanceID); err != nil {
			return err
		}
		form.ProfessionalResponses = datatypes.JSON(raw)
		if form.State() != models.StateCompleted {
			form.IsDraft = true
		}
		if err := tx.Save(form).Error; err != nil {
			return err
		}

		completed := false
		if req.Complete && form.State() != models.StateCompleted {
			if err := completeForm(tx, actor, inst, form, time.Now().UTC()); err != nil {
				return err
			}
			completed = true
		}
		return recordActivity(tx, actor, ActionProfessionalSaved, "instance", instanceID, map[string]any{"completed": completed})
	})
	if err != nil {
		return nil, err
	}
	return form, nil
}

// EnsureDetails ensures the evaluation form and the recommendation of an
// instance exist before it is rendered.
func (s *InstanceService) EnsureDetails(ctx context.Context, instanceID uuid.UUID) (*models.EvaluationForm, *models.Recommendation, error) {
	form, err := s.EnsureEvaluationForm(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	rec, err := ensureRecommendationTx(s.db.WithContext(ctx), instanceID)
	if err != nil {
		return nil, nil, err
	}
	return form, rec, nil
}
