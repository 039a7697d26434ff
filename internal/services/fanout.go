package services

import (
	"fmt"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const fanOutBatch = 500

// createInstancesForTemplate binds tmpl to every active user that has no
// instance of it yet, then rebuilds the template's editor bindings.
func createInstancesForTemplate(tx *gorm.DB, tmpl *models.CategoryTemplate) (int, error) {
	var userIDs []uuid.UUID
	err := tx.Model(&models.User{}).
		Where("is_active = ?", true).
		Where("id NOT IN (?)", tx.Model(&models.CategoryInstance{}).Select("user_id").Where("template_id = ?", tmpl.ID)).
		Pluck("id", &userIDs).Error
	if err != nil {
		return 0, fmt.Errorf("select users for fan-out: %w", err)
	}

	instances := make([]models.CategoryInstance, 0, len(userIDs))
	for _, uid := range userIDs {
		instances = append(instances, models.CategoryInstance{
			UserID:      uid,
			TemplateID:  tmpl.ID,
			StatusColor: models.StatusGray,
			IsDraft:     true,
		})
	}
	if len(instances) > 0 {
		if err := tx.CreateInBatches(&instances, fanOutBatch).Error; err != nil {
			return 0, fmt.Errorf("create instances: %w", err)
		}
	}
	if err := rebuildEditorsForTemplate(tx, tmpl); err != nil {
		return 0, err
	}
	return len(instances), nil
}

// createInstancesForUser binds a new user to every active template and
// grants the user editor rights matching its role.
func createInstancesForUser(tx *gorm.DB, userID uuid.UUID, role roles.Role) (int, error) {
	var templates []models.CategoryTemplate
	err := tx.Where("is_active = ?", true).
		Where("id NOT IN (?)", tx.Model(&models.CategoryInstance{}).Select("template_id").Where("user_id = ?", userID)).
		Find(&templates).Error
	if err != nil {
		return 0, fmt.Errorf("select templates for fan-out: %w", err)
	}

	for i := range templates {
		tmpl := &templates[i]
		instance := models.CategoryInstance{
			UserID:      userID,
			TemplateID:  tmpl.ID,
			StatusColor: models.StatusGray,
			IsDraft:     true,
		}
		if err := tx.Create(&instance).Error; err != nil {
			return 0, fmt.Errorf("create instance of %s: %w", tmpl.Name, err)
		}
		editors, err := editorUserIDs(tx, tmpl)
		if err != nil {
			return 0, err
		}
		if err := insertEditors(tx, []uuid.UUID{instance.ID}, editors); err != nil {
			return 0, err
		}
	}
	if err := rebuildEditorsForUser(tx, userID, role); err != nil {
		return 0, err
	}
	return len(templates), nil
}

// rebuildEditorsForTemplate replaces the editor set of every instance of
// tmpl with the active users whose role is in its allowed editor roles.
func rebuildEditorsForTemplate(tx *gorm.DB, tmpl *models.CategoryTemplate) error {
	instanceIDs := tx.Model(&models.CategoryInstance{}).Select("id").Where("template_id = ?", tmpl.ID)
	if err := tx.Where("instance_id IN (?)", instanceIDs).Delete(&models.InstanceEditor{}).Error; err != nil {
		return fmt.Errorf("clear editors: %w", err)
	}

	editors, err := editorUserIDs(tx, tmpl)
	if err != nil || len(editors) == 0 {
		return err
	}
	var ids []uuid.UUID
	if err := tx.Model(&models.CategoryInstance{}).Where("template_id = ?", tmpl.ID).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("list instances: %w", err)
	}
	return insertEditors(tx, ids, editors)
}

// rebuildEditorsForUser replaces the instances a user may edit after its
// role changed.
func rebuildEditorsForUser(tx *gorm.DB, userID uuid.UUID, role roles.Role) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.InstanceEditor{}).Error; err != nil {
		return fmt.Errorf("clear user editors: %w", err)
	}

	var templates []models.CategoryTemplate
	if err := tx.Where("is_readonly = ?", false).Find(&templates).Error; err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	var templateIDs []uuid.UUID
	for _, t := range templates {
		if roles.Contains(t.EditorRoles(), role) {
			templateIDs = append(templateIDs, t.ID)
		}
	}
	if len(templateIDs) == 0 {
		return nil
	}

	var instanceIDs []uuid.UUID
	if err := tx.Model(&models.CategoryInstance{}).Where("template_id IN ?", templateIDs).Pluck("id", &instanceIDs).Error; err != nil {
		return fmt.Errorf("list instances: %w", err)
	}
	return insertEditors(tx, instanceIDs, []uuid.UUID{userID})
}

// editorUserIDs lists the active users whose role may edit tmpl's instances.
// Readonly templates have no editors.
func editorUserIDs(tx *gorm.DB, tmpl *models.CategoryTemplate) ([]uuid.UUID, error) {
	allowed := tmpl.EditorRoles()
	if tmpl.IsReadonly || len(allowed) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := tx.Model(&models.UserRole{}).
		Joins("JOIN users ON users.id = user_roles.user_id").
		Where("user_roles.role IN ? AND users.is_active = ?", allowed, true).
		Distinct().
		Pluck("user_roles.user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list editor users: %w", err)
	}
	return ids, nil
}

func insertEditors(tx *gorm.DB, instanceIDs, userIDs []uuid.UUID) error {
	rows := make([]models.InstanceEditor, 0, len(instanceIDs)*len(userIDs))
	for _, iid := range instanceIDs {
		for _, uid := range userIDs {
			rows = append(rows, models.InstanceEditor{InstanceID: iid, UserID: uid})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(&rows, fanOutBatch).Error; err != nil {
		return fmt.Errorf("insert editors: %w", err)
	}
	return nil
}
