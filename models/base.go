package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// newID fills an empty string primary key before insert.
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All lists every model owned by this service, in migration order.
func All() []interface{} {
	return []interface{}{
		&Trip{},
		&Session{},
		&Participant{},
		&AttendanceRecord{},
		&BadgeDefinition{},
		&ParticipantBadge{},
		&OutboundMessage{},
		&MessageTemplate{},
		&GlobalSetting{},
		&GalleryPhoto{},
	}
}

// AutoMigrate creates or updates every table in All.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
