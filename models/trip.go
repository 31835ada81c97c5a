package models

import "gorm.io/gorm"

const (
	TripStatusOngoing   = "ongoing"
	TripStatusCompleted = "completed"
)

type Trip struct {
	ID     string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name   string `json:"name" gorm:"not null"`
	Status string `json:"status" gorm:"type:varchar(16);not null;index"` // ongoing | completed

	Timestamps
}

func (t *Trip) BeforeCreate(tx *gorm.DB) error {
	newID(&t.ID)
	if t.Status == "" {
		t.Status = TripStatusOngoing
	}
	return nil
}

// Session is one scheduled activity within a trip. Table name keeps it apart
// from any auth "sessions" table living in the same database.
type Session struct {
	ID       string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TripID   string `json:"trip_id" gorm:"type:varchar(36);not null;index"`
	Title    string `json:"title" gorm:"not null"`
	Day      int    `json:"day"`
	Date     string `json:"date"` // e.g. "2026-10-19"
	Time     string `json:"time"` // e.g. "08:00 - 10:00"
	Location string `json:"location"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// Admin bookkeeping only; completion counts every session regardless.
	IsChanged    bool `json:"is_changed"`
	IsAdditional bool `json:"is_additional"`

	Timestamps
}

func (Session) TableName() string { return "trip_sessions" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	newID(&s.ID)
	return nil
}

// HasCoordinate reports whether both latitude and longitude are configured.
func (s *Session) HasCoordinate() bool {
	return s.Latitude != nil && s.Longitude != nil
}
