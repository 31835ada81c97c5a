package models

import (
	"time"

	"gorm.io/gorm"
)

// Participant is a member of one trip's roster.
type Participant struct {
	ID     string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TripID string `json:"trip_id" gorm:"type:varchar(36);not null;index;uniqueIndex:ux_participant_trip_checkin_token,priority:1"`
	Name   string `json:"name" gorm:"not null"`
	Phone  string `json:"phone"`

	// LoginUsername links the participant to an authenticated account.
	LoginUsername *string `json:"login_username,omitempty" gorm:"index"`
	// CheckinToken is printed on the participant's physical card.
	CheckinToken *string `json:"-" gorm:"uniqueIndex:ux_participant_trip_checkin_token,priority:2"`

	// Display caches of the attendance ledger.
	TotalCheckIns int        `json:"total_check_ins" gorm:"not null;default:0"`
	LastCheckIn   string     `json:"last_check_in"`
	LastCheckInAt *time.Time `json:"last_check_in_at,omitempty"`

	Timestamps
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}
