package models

import (
	"time"

	"gorm.io/gorm"
)

// Badge unlock conditions
const (
	BadgeCheckinSession       = "CHECKIN_SESSION"        // present at one session
	BadgeGalleryUploadSession = "GALLERY_UPLOAD_SESSION" // >= TargetValue approved photos at one session
	BadgeCompleteAllSessions  = "COMPLETE_ALL_SESSIONS"  // present at every session of the trip
)

// BadgeDefinition: admin-authored, read-only here
type BadgeDefinition struct {
	ID            string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TripID        string  `json:"trip_id" gorm:"type:varchar(36);not null;index"`
	Name          string  `json:"name" gorm:"not null"`
	Description   string  `json:"description"`
	IconURL       string  `json:"icon_url" gorm:"type:text"`
	ConditionType string  `json:"condition_type" gorm:"type:varchar(32);not null;index"`
	SessionID     *string `json:"session_id,omitempty" gorm:"type:varchar(36);index"`
	TargetValue   int     `json:"target_value"` // <= 0 means 1
	IsActive      bool    `json:"is_active"`

	Timestamps
}

func (b *BadgeDefinition) BeforeCreate(tx *gorm.DB) error {
	newID(&b.ID)
	return nil
}

// Target returns the effective threshold for count-based conditions.
func (b *BadgeDefinition) Target() int {
	if b.TargetValue <= 0 {
		return 1
	}
	return b.TargetValue
}

// ParticipantBadge: unlocked instance, unique per (participant, badge)
type ParticipantBadge struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TripID        string    `json:"trip_id" gorm:"type:varchar(36);not null;index"`
	ParticipantID string    `json:"participant_id" gorm:"type:varchar(36);not null;uniqueIndex:ux_participant_badge,priority:1"`
	BadgeID       string    `json:"badge_id" gorm:"type:varchar(36);not null;uniqueIndex:ux_participant_badge,priority:2"`
	UnlockedAt    time.Time `json:"unlocked_at" gorm:"not null"`
}

func (p *ParticipantBadge) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}
