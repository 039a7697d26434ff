package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/nodegraph"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxTrainingNodes = 200

// validateTrainingInputs normalizes node types and checks each node's
// payload. Array order is the sequence; any order field is ignored.
func validateTrainingInputs(nodes []dto.TrainingNodeInput) ([]dto.TrainingNodeInput, error) {
	if nodes == nil {
		return nil, nil
	}
	if len(nodes) > maxTrainingNodes {
		return nil, invalid("training_nodes", "at most %d nodes", maxTrainingNodes)
	}
	out := make([]dto.TrainingNodeInput, len(nodes))
	for i, n := range nodes {
		field := fmt.Sprintf("training_nodes[%d]", i)
		t, ok := nodegraph.ParseType(n.Type)
		if !ok || !t.Trainable() {
			return nil, invalid(field+".type", "%q is not a training node type", n.Type)
		}
		n.Type = string(t)
		if t.IsQuestion() {
			q := nodegraph.QuestionNode{
				ID:       "q",
				Type:     t,
				Prompt:   n.Question,
				Options:  n.Options,
				Required: n.Required,
				Min:      n.Min,
				Max:      n.Max,
				Step:     n.Step,
			}
			if strings.TrimSpace(q.Prompt) == "" {
				q.Prompt = n.Title
			}
			if err := nodegraph.ValidateQuestions([]nodegraph.QuestionNode{q}); err != nil {
				var fe *nodegraph.FieldError
				if errors.As(err, &fe) {
					return nil, invalid(field, "%s", fe.Message)
				}
				return nil, invalid(field, "%v", err)
			}
		}
		out[i] = n
	}
	return out, nil
}

func validateTrainingExtras(req *dto.TrainingFormRequest, hasMedia bool) error {
	n := len(req.TrainingNodes)
	if req.MediaNodeIndex != nil {
		i := *req.MediaNodeIndex
		if i < 0 || i >= n {
			return invalid("media_node_index", "out of range")
		}
		if t := nodegraph.Type(req.TrainingNodes[i].Type); !t.HasMedia() {
			return invalid("media_node_index", "node type %s does not take media", t)
		}
	}
	if hasMedia && req.MediaNodeIndex == nil {
		return invalid("media_node_index", "is required with a media file")
	}
	if req.AltNextIndex != nil {
		if i := *req.AltNextIndex; i < 0 || i >= n {
			return invalid("alt_next_index", "out of range")
		}
	}
	return nil
}

// ensureRootNode loads the description root of tmpl, creating one for
// templates stored without a root.
func ensureRootNode(tx *gorm.DB, tmpl *models.CategoryTemplate) (*models.Node, error) {
	if tmpl.RootNodeID != nil {
		var root models.Node
		err := tx.First(&root, "id = ? AND template_id = ?", *tmpl.RootNodeID, tmpl.ID).Error
		if err == nil {
			return &root, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	root := models.Node{
		TemplateID: tmpl.ID,
		Type:       nodegraph.CategoryDescription,
		Title:      tmpl.Name,
		Content:    tmpl.Description,
	}
	if err := tx.Create(&root).Error; err != nil {
		return nil, fmt.Errorf("create root node: %w", err)
	}
	tmpl.RootNodeID = &root.ID
	if err := tx.Model(tmpl).Update("root_node_id", root.ID).Error; err != nil {
		return nil, err
	}
	return &root, nil
}

// writeTrainingNodes replaces the training sequence of tmpl: the root points
// at the first node and each node at the next one in array order. Nodes whose
// ids already belong to the template are updated in place, the rest are
// created, and nodes missing from the list are deleted. It returns media keys
// that are no longer referenced.
func writeTrainingNodes(tx *gorm.DB, tmpl *models.CategoryTemplate, req *dto.TrainingFormRequest, mediaKeyPath string) ([]string, error) {
	root, err := ensureRootNode(tx, tmpl)
	if err != nil {
		return nil, err
	}

	var existing []models.Node
	if err := tx.Where("template_id = ? AND id <> ?", tmpl.ID, root.ID).Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	byID := make(map[uuid.UUID]models.Node, len(existing))
	for _, n := range existing {
		byID[n.ID] = n
	}

	var removed []string
	nodes := make([]models.Node, len(req.TrainingNodes))
	isNew := make([]bool, len(req.TrainingNodes))
	ids := make([]uuid.UUID, len(req.TrainingNodes))
	used := make(map[uuid.UUID]bool, len(req.TrainingNodes))
	for i, in := range req.TrainingNodes {
		node := models.Node{ID: uuid.New(), TemplateID: tmpl.ID}
		isNew[i] = true
		if id, ok := in.ID.UUID(); ok {
			if prev, found := byID[id]; found {
				if used[id] {
					return nil, invalid(fmt.Sprintf("training_nodes[%d].id", i), "duplicate node %s", id)
				}
				node = prev
				isNew[i] = false
			}
		}
		used[node.ID] = true

		t := nodegraph.Type(in.Type)
		prevType := node.Type
		node.Type = t
		node.Position = i + 1
		node.Title = in.Title
		node.Content = in.Content
		node.Question = in.Question
		node.Required = in.Required
		node.ScaleMin, node.ScaleMax, node.ScaleStep = nil, nil, nil
		node.Options = nil
		if t.HasChoices() {
			raw, err := json.Marshal(in.Options)
			if err != nil {
				return nil, err
			}
			node.Options = datatypes.JSON(raw)
		}
		if t == nodegraph.ScaleQuestion {
			node.ScaleMin, node.ScaleMax, node.ScaleStep = in.Min, in.Max, in.Step
		}
		// media of one kind never carries over to another
		if node.MediaPath != "" && (!t.HasMedia() || t != prevType) {
			removed = append(removed, node.MediaPath)
			node.MediaPath = ""
		}
		if mediaKeyPath != "" && req.MediaNodeIndex != nil && *req.MediaNodeIndex == i {
			if node.MediaPath != "" {
				removed = append(removed, node.MediaPath)
			}
			node.MediaPath = mediaKeyPath
		}
		nodes[i] = node
		ids[i] = node.ID
	}

	chain := nodegraph.Chain(ids)
	for i := range nodes {
		nodes[i].NextNodeID = chain[nodes[i].ID]
		nodes[i].AltNextNodeID = nil
	}
	root.NextNodeID = nil
	if len(ids) > 0 {
		first := ids[0]
		root.NextNodeID = &first
	}
	root.AltNextNodeID = nil
	root.NextButtonLabel = req.NextButtonLabel
	root.AltButtonLabel = ""
	if req.AltNextIndex != nil {
		alt := ids[*req.AltNextIndex]
		root.AltNextNodeID = &alt
		root.AltButtonLabel = req.AltButtonLabel
	}

	links := make([]nodegraph.Link, 0, len(nodes)+1)
	links = append(links, root.Link())
	for i := range nodes {
		links = append(links, nodes[i].Link())
	}
	if err := nodegraph.Validate(links); err != nil {
		return nil, invalid("training_nodes", "%v", err)
	}

	for _, n := range existing {
		if used[n.ID] {
			continue
		}
		if n.MediaPath != "" {
			removed = append(removed, n.MediaPath)
		}
		if err := tx.Delete(&models.Node{}, "id = ?", n.ID).Error; err != nil {
			return nil, fmt.Errorf("delete node: %w", err)
		}
	}
	for i := range nodes {
		if isNew[i] {
			err = tx.Create(&nodes[i]).Error
		} else {
			err = tx.Save(&nodes[i]).Error
		}
		if err != nil {
			return nil, fmt.Errorf("save node %d: %w", i, err)
		}
	}
	if err := tx.Save(root).Error; err != nil {
		return nil, fmt.Errorf("save root node: %w", err)
	}
	return removed, nil
}

// TrainingNodes walks the template graph from its root and returns the root
// and the ordered training nodes. A corrupted chain yields ErrCycle or
// ErrDanglingPointer instead of looping.
func (s *TemplateService) TrainingNodes(ctx context.Context, tmpl *models.CategoryTemplate) (*models.Node, []models.Node, error) {
	return loadTrainingNodes(s.db.WithContext(ctx), tmpl)
}

func loadTrainingNodes(db *gorm.DB, tmpl *models.CategoryTemplate) (*models.Node, []models.Node, error) {
	if tmpl.RootNodeID == nil {
		return nil, []models.Node{}, nil
	}
	var all []models.Node
	if err := db.Where("template_id = ?", tmpl.ID).Find(&all).Error; err != nil {
		return nil, nil, fmt.Errorf("load nodes: %w", err)
	}
	byID := make(map[uuid.UUID]models.Node, len(all))
	links := make(map[uuid.UUID]nodegraph.Link, len(all))
	for _, n := range all {
		byID[n.ID] = n
		links[n.ID] = n.Link()
	}
	root, ok := byID[*tmpl.RootNodeID]
	if !ok {
		return nil, nil, fmt.Errorf("template %s: %w", tmpl.ID, nodegraph.ErrDanglingPointer)
	}

	order, err := nodegraph.Walk(&root.ID, links)
	if err != nil {
		return nil, nil, fmt.Errorf("template %s: %w", tmpl.ID, err)
	}
	out := make([]models.Node, 0, len(order)-1)
	for i, id := range order[1:] {
		n := byID[id]
		n.Position = i + 1
		out = append(out, n)
	}
	return &root, out, nil
}
