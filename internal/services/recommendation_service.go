package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/session"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecommendationService struct {
	db      *gorm.DB
	perms   *PermissionService
	storage Storage
	recent  session.Store
	retry   database.Retrier
}

func NewRecommendationService(db *gorm.DB, perms *PermissionService, storage Storage, recent session.Store, retry database.Retrier) *RecommendationService {
	return &RecommendationService{db: db, perms: perms, storage: storage, recent: recent, retry: retry}
}

// ensureRecommendationTx returns the recommendation of an instance, creating
// a gray draft one when missing.
func ensureRecommendationTx(tx *gorm.DB, instanceID uuid.UUID) (*models.Recommendation, error) {
	var rec models.Recommendation
	fresh := models.Recommendation{InstanceID: instanceID, StatusColor: models.StatusGray, IsDraft: true, UseDefault: false}
	if err := loadOrCreate(tx, &rec, fresh, "instance_id", instanceID); err != nil {
		return nil, fmt.Errorf("ensure recommendation: %w", err)
	}
	return &rec, nil
}

// signRecommendation publishes a recommendation. The first signer and time
// are kept across later drafts and re-signs.
func signRecommendation(rec *models.Recommendation, actor *Actor, now time.Time) {
	rec.IsSigned = true
	if rec.SignedAt == nil {
		rec.SignedByID = actor.UserID()
		rec.SignedAt = &now
	}
}

// finalizeRecommendation clears the draft flag and stamps updated_by. Only
// actors allowed to edit the recommendation sign it.
func finalizeRecommendation(tx *gorm.DB, rec *models.Recommendation, actor *Actor, sign bool, now time.Time) error {
	rec.IsDraft = false
	rec.UpdatedByID = actor.UserID()
	if sign {
		signRecommendation(rec, actor, now)
	}
	if err := tx.Save(rec).Error; err != nil {
		return fmt.Errorf("finalize recommendation: %w", err)
	}
	return nil
}

// EnsureRecommendation is idempotent: repeated calls return the same row.
func (s *RecommendationService) EnsureRecommendation(ctx context.Context, instanceID uuid.UUID) (*models.Recommendation, error) {
	return ensureRecommendationTx(s.db.WithContext(ctx), instanceID)
}

// DefaultRecommendation picks the template default matching a status color.
func DefaultRecommendation(t *models.CategoryTemplate, color string) string {
	if t == nil {
		return ""
	}
	return t.Defaults()[models.DefaultRecommendationKey(color)]
}

// DisplayText is the text shown to the patient: the custom text, or the
// template default when requested or when no custom text exists.
func DisplayText(rec *models.Recommendation, t *models.CategoryTemplate) string {
	if rec == nil {
		return DefaultRecommendation(t, models.StatusGray)
	}
	if rec.UseDefault || strings.TrimSpace(rec.Text) == "" {
		return DefaultRecommendation(t, rec.StatusColor)
	}
	return rec.Text
}

func (s *RecommendationService) loadInstance(ctx context.Context, instanceID uuid.UUID) (*models.CategoryInstance, error) {
	var inst models.CategoryInstance
	err := s.db.WithContext(ctx).Preload("Template").First(&inst, "id = ?", instanceID).Error
	if err != nil {
		return nil, notFound(err, ErrInstanceNotFound)
	}
	if inst.Template == nil {
		return nil, ErrTemplateNotFound
	}
	return &inst, nil
}

// Get ensures and returns the recommendation of an instance the actor may view.
func (s *RecommendationService) Get(ctx context.Context, actor *Actor, instanceID uuid.UUID) (*models.Recommendation, *models.CategoryInstance, error) {
	inst, err := s.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := s.perms.CanView(ctx, actor, inst)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrPermissionDenied
	}
	rec, err := s.EnsureRecommendation(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	return rec, inst, nil
}

// Save updates text, color, draft state and optionally the video of a
// recommendation together with the instance status color. The transaction is
// retried on lock contention and surfaces ErrBusy when it keeps failing.
func (s *RecommendationService) Save(ctx context.Context, actor *Actor, instanceID uuid.UUID, req *dto.RecommendationRequest, video *Upload) (*models.Recommendation, error) {
	color := strings.ToLower(strings.TrimSpace(req.StatusColor))
	if !models.ValidStatusColor(color) {
		return nil, invalid("status_color", "must be one of green, yellow, red, gray")
	}
	if video != nil && !strings.HasPrefix(video.ContentType, "video/") {
		return nil, invalid("video", "must be a video file")
	}

	inst, err := s.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.RequireEdit(ctx, actor, models.PermChangeRecommendation, inst.Template); err != nil {
		return nil, err
	}

	newVideo := ""
	if video != nil {
		newVideo = mediaKey("recommendations/"+instanceID.String(), video.Filename)
		if err := s.storage.Save(ctx, newVideo, video.Body, video.ContentType); err != nil {
			return nil, fmt.Errorf("store recommendation video: %w", err)
		}
	}

	var rec *models.Recommendation
	var oldVideo string
	err = s.retry.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if rec, err = ensureRecommendationTx(tx, instanceID); err != nil {
			return err
		}
		oldVideo = ""
		wasDraft := rec.IsDraft
		draft := wasDraft
		if req.IsDraft != nil {
			draft = *req.IsDraft
		}
		if req.Sign {
			draft = false
		}

		now := time.Now().UTC()
		rec.Text = req.Text
		rec.StatusColor = color
		rec.UseDefault = req.UseDefault
		rec.IsDraft = draft
		rec.UpdatedByID = actor.UserID()
		if draft {
			rec.IsSigned = false
		}
		if newVideo != "" {
			oldVideo = rec.VideoPath
			rec.VideoPath = newVideo
		}
		if wasDraft && !draft {
			signRecommendation(rec, actor, now)
		}
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.CategoryInstance{}).Where("id = ?", instanceID).Update("status_color", color).Error; err != nil {
			return err
		}

		action := ActionRecommendationSaved
		if wasDraft && !draft {
			action = ActionRecommendationSigned
		}
		return recordActivity(tx, actor, action, "instance", instanceID, map[string]any{"status_color": color, "is_draft": draft})
	})
	if err != nil {
		deleteMedia(ctx, s.storage, newVideo)
		return nil, err
	}
	if oldVideo != "" && oldVideo != newVideo {
		deleteMedia(ctx, s.storage, oldVideo)
	}
	return rec, nil
}

// Unseen returns the actor's signed recommendations that were not shown
// recently and records them as shown.
func (s *RecommendationService) Unseen(ctx context.Context, actor *Actor) ([]models.Recommendation, error) {
	var recs []models.Recommendation
	err := s.db.WithContext(ctx).
		Joins("JOIN category_instances ON category_instances.id = recommendations.instance_id").
		Where("category_instances.user_id = ? AND recommendations.is_signed = ?", actor.ID(), true).
		Order("recommendations.signed_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	recent, err := s.recent.Recent(ctx, actor.ID())
	if err != nil {
		slog.Warn("recent recommendations unavailable", "error", err, "user_id", actor.ID().String())
		recent = nil
	}
	out := make([]models.Recommendation, 0, len(recs))
	ids := make([]uuid.UUID, 0, len(recs))
	for _, r := range recs {
		if session.Contains(recent, r.ID) {
			continue
		}
		out = append(out, r)
		ids = append(ids, r.ID)
	}
	if len(ids) > 0 {
		if err := s.recent.Push(ctx, actor.ID(), ids...); err != nil {
			slog.Warn("recording shown recommendations failed", "error", err, "user_id", actor.ID().String())
		}
	}
	return out, nil
}
