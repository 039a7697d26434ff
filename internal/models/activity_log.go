package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityLog is one timestamped user action: either recorded by the services
// on mutations or submitted by clients while going through a training sequence.
type ActivityLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"`
	Action     string         `gorm:"size:100;not null;index" json:"action"`
	TargetType string         `gorm:"size:50" json:"target_type,omitempty"`
	TargetID   string         `gorm:"size:36;index" json:"target_id,omitempty"`
	OccurredAt time.Time      `gorm:"not null;index" json:"occurred_at"`
	Details    datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (l *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
