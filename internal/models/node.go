package models

import (
	"encoding/json"
	"time"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/nodegraph"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Node stores every node variant of a template graph in one table.
// Type decides which payload columns are meaningful.
type Node struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"template_id"`
	Type            nodegraph.Type `gorm:"size:40;not null" json:"type"`
	Position        int            `gorm:"not null" json:"position"`
	NextNodeID      *uuid.UUID     `gorm:"type:uuid" json:"next_node_id"`
	AltNextNodeID   *uuid.UUID     `gorm:"type:uuid" json:"alt_next_node_id,omitempty"`
	NextButtonLabel string         `gorm:"size:100" json:"next_button_label,omitempty"`
	AltButtonLabel  string         `gorm:"size:100" json:"alt_button_label,omitempty"`
	Title           string         `gorm:"size:255" json:"title,omitempty"`
	Content         string         `gorm:"type:text" json:"content,omitempty"`
	Question        string         `gorm:"type:text" json:"question,omitempty"`
	Options         datatypes.JSON `gorm:"type:jsonb" json:"options,omitempty"`
	Required        bool           `gorm:"not null" json:"required"`
	ScaleMin        *float64       `json:"min,omitempty"`
	ScaleMax        *float64       `json:"max,omitempty"`
	ScaleStep       *float64       `json:"step,omitempty"`
	MediaPath       string         `gorm:"size:500" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (n *Node) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

func (n *Node) Link() nodegraph.Link {
	return nodegraph.Link{ID: n.ID, Next: n.NextNodeID, AltNext: n.AltNextNodeID}
}

func (n *Node) OptionList() []string {
	var out []string
	if len(n.Options) == 0 {
		return nil
	}
	_ = json.Unmarshal(n.Options, &out)
	return out
}
