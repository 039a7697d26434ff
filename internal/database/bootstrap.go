package database

import (
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"gorm.io/gorm"
)

// BootstrapGroups seeds the permission set of every role group. It only adds
// missing rows, so permissions granted by hand survive restarts.
func BootstrapGroups(db *gorm.DB) error {
	created := 0
	for group, codenames := range models.DefaultGroupPermissions() {
		for _, code := range codenames {
			perm := models.GroupPermission{Group: group, Codename: code}
			result := db.Where("group_role = ? AND codename = ?", group, code).FirstOrCreate(&perm)
			if result.Error != nil {
				return fmt.Errorf("seed %s/%s: %w", group, code, result.Error)
			}
			created += int(result.RowsAffected)
		}
	}
	if created > 0 {
		slog.Info("role groups bootstrapped", "permissions_created", created)
	}
	return nil
}
