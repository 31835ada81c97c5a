package services

import (
	"context"

	"tripwise-backend/models"

	"github.com/juju/errors"
	"gorm.io/gorm"
)

// SettingsService reads the admin-maintained global settings row.
type SettingsService struct {
	DB *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// Get returns the settings with defaults applied to missing or non-positive values.
func (s *SettingsService) Get(ctx context.Context) (models.GlobalSetting, error) {
	var gs models.GlobalSetting
	err := s.DB.WithContext(ctx).Where("id = ?", 1).Take(&gs).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return gs, errors.Annotate(err, "load global settings")
	}
	if gs.AttendanceRadiusMeters <= 0 {
		gs.AttendanceRadiusMeters = models.DefaultAttendanceRadiusMeters
	}
	if gs.ReminderRadiusMeters <= 0 {
		gs.ReminderRadiusMeters = models.DefaultReminderRadiusMeters
	}
	if gs.AttendanceGraceMinutes <= 0 {
		gs.AttendanceGraceMinutes = models.DefaultAttendanceGraceMinutes
	}
	return gs, nil
}
