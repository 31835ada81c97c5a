package models

import (
	"time"

	"gorm.io/gorm"
)

// Check-in methods
const (
	MethodQR    = "QR"
	MethodGeo   = "GEO"
	MethodCard  = "CARD"
	MethodAdmin = "ADMIN"
)

// AttendanceRecord is the ledger row: one per (participant, session),
// whichever channel confirmed it.
type AttendanceRecord struct {
	ID            string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TripID        string `json:"trip_id" gorm:"type:varchar(36);not null;index"`
	ParticipantID string `json:"participant_id" gorm:"type:varchar(36);not null;uniqueIndex:ux_attendance_participant_session,priority:1"`
	SessionID     string `json:"session_id" gorm:"type:varchar(36);not null;uniqueIndex:ux_attendance_participant_session,priority:2;index"`
	Method        string `json:"method" gorm:"type:varchar(8);not null"`

	// CheckedAt is written on first insert only.
	CheckedAt time.Time `json:"checked_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *AttendanceRecord) BeforeCreate(tx *gorm.DB) error {
	newID(&a.ID)
	return nil
}
