package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxActionLength   = 100
	maxActionLogBatch = 500
)

// Actions recorded by the services themselves.
const (
	ActionTemplateCreated       = "template.created"
	ActionTemplateUpdated       = "template.updated"
	ActionTemplateDeleted       = "template.deleted"
	ActionEvaluationFormUpdated = "template.evaluation_form_updated"
	ActionTrainingFormUpdated   = "template.training_form_updated"
	ActionResponsesSaved        = "instance.responses_saved"
	ActionProfessionalSaved     = "instance.professional_evaluation_saved"
	ActionRecommendationSaved   = "recommendation.saved"
	ActionRecommendationSigned  = "recommendation.signed"
	ActionRoleAssigned          = "user.role_assigned"
)

// ActivityPublisher forwards committed activity rows to an event stream.
type ActivityPublisher interface {
	Publish(ctx context.Context, logs []models.ActivityLog) error
	Close() error
}

// KafkaPublisher writes one message per activity row keyed by user id.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  brokers,
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		}),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, logs []models.ActivityLog) error {
	msgs := make([]kafka.Message, 0, len(logs))
	for _, l := range logs {
		value, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("marshal activity %s: %w", l.ID, err)
		}
		var k []byte
		if l.UserID != nil {
			k = []byte(l.UserID.String())
		}
		msgs = append(msgs, kafka.Message{Key: k, Value: value, Time: l.OccurredAt})
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// recordActivity inserts an activity row on tx so it commits or rolls back
// with the mutation it describes.
func recordActivity(tx *gorm.DB, actor *Actor, action, targetType string, targetID uuid.UUID, details map[string]any) error {
	row := models.ActivityLog{
		UserID:     actor.UserID(),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID.String(),
		OccurredAt: time.Now().UTC(),
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal activity details: %w", err)
		}
		row.Details = datatypes.JSON(raw)
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// ValidateActionLog checks a client-submitted action log: a JSON array of
// {timestamp, action, node_id?, payload?} objects. Timestamps are RFC 3339,
// payload must be an object and unknown keys are rejected.
func ValidateActionLog(raw []byte) ([]dto.ActionLogEntry, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalid("log", "must be a JSON array")
	}
	if len(items) == 0 {
		return nil, invalid("log", "must contain at least one entry")
	}
	if len(items) > maxActionLogBatch {
		return nil, invalid("log", "at most %d entries per request", maxActionLogBatch)
	}

	out := make([]dto.ActionLogEntry, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("log[%d]", i)

		var keys map[string]json.RawMessage
		if err := json.Unmarshal(item, &keys); err != nil {
			return nil, invalid(field, "must be an object")
		}
		for _, required := range []string{"timestamp", "action"} {
			if _, ok := keys[required]; !ok {
				return nil, invalid(field+"."+required, "is required")
			}
		}
		var ts string
		if err := json.Unmarshal(keys["timestamp"], &ts); err != nil {
			return nil, invalid(field+".timestamp", "must be an RFC 3339 timestamp")
		}
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			return nil, invalid(field+".timestamp", "must be an RFC 3339 timestamp")
		}

		var entry dto.ActionLogEntry
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&entry); err != nil {
			switch {
			case strings.HasPrefix(err.Error(), "json: unknown field"):
				return nil, invalid(field, "%s", strings.TrimPrefix(err.Error(), "json: "))
			default:
				return nil, invalid(field, "malformed entry: %v", err)
			}
		}

		if entry.Timestamp.IsZero() {
			return nil, invalid(field+".timestamp", "is required")
		}
		entry.Action = strings.TrimSpace(entry.Action)
		if entry.Action == "" {
			return nil, invalid(field+".action", "is required")
		}
		if len(entry.Action) > maxActionLength {
			return nil, invalid(field+".action", "must be at most %d characters", maxActionLength)
		}
		if len(entry.Payload) > 0 && !bytes.Equal(entry.Payload, []byte("null")) {
			var obj map[string]any
			if err := json.Unmarshal(entry.Payload, &obj); err != nil {
				return nil, invalid(field+".payload", "must be an object")
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

type ActivityService struct {
	db        *gorm.DB
	perms     *PermissionService
	publisher ActivityPublisher
}

// NewActivityService wires the activity log. publisher may be nil.
func NewActivityService(db *gorm.DB, perms *PermissionService, publisher ActivityPublisher) *ActivityService {
	return &ActivityService{db: db, perms: perms, publisher: publisher}
}

// SubmitLog validates and stores a client action log, then forwards it to the
// event stream. A publish failure does not fail the request.
func (s *ActivityService) SubmitLog(ctx context.Context, actor *Actor, raw []byte) (int, error) {
	entries, err := ValidateActionLog(raw)
	if err != nil {
		return 0, err
	}

	rows := make([]models.ActivityLog, 0, len(entries))
	for _, e := range entries {
		row := models.ActivityLog{
			UserID:     actor.UserID(),
			Action:     e.Action,
			OccurredAt: e.Timestamp.UTC(),
		}
		if e.NodeID != nil {
			row.TargetType = "node"
			row.TargetID = e.NodeID.String()
		}
		if len(e.Payload) > 0 && !bytes.Equal(e.Payload, []byte("null")) {
			row.Details = datatypes.JSON(e.Payload)
		}
		rows = append(rows, row)
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("store action log: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, rows); err != nil {
			slog.Error("activity publish failed", "error", err, "user_id", actor.ID().String(), "count", len(rows))
		}
	}
	return len(rows), nil
}

type ActivityFilter struct {
	UserID *uuid.UUID
	Action string
	Limit  int
	Offset int
}

// List returns activity rows newest first. Requires view_activitylog.
func (s *ActivityService) List(ctx context.Context, actor *Actor, f ActivityFilter) ([]models.ActivityLog, int64, error) {
	if err := s.perms.Require(ctx, actor, models.PermViewActivity); err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}

	q := s.db.WithContext(ctx).Model(&models.ActivityLog{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []models.ActivityLog
	if err := q.Order("occurred_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
