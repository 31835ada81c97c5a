package models

const (
	DefaultAttendanceRadiusMeters = 200
	DefaultReminderRadiusMeters   = 1000
	DefaultAttendanceGraceMinutes = 15
)

// GlobalSetting is a singleton row (ID 1) maintained by the admin settings screen.
type GlobalSetting struct {
	ID                     uint `json:"id" gorm:"primaryKey"`
	AttendanceRadiusMeters int  `json:"attendance_radius_meters"`
	ReminderRadiusMeters   int  `json:"reminder_radius_meters"`
	AttendanceGraceMinutes int  `json:"attendance_grace_minutes"` // advisory

	Timestamps
}

// GalleryPhoto mirrors the gallery subsystem's table. Read-only here: only
// approved counts per (participant, session) are consumed.
type GalleryPhoto struct {
	ID            string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TripID        string `json:"trip_id" gorm:"type:varchar(36);index"`
	SessionID     string `json:"session_id" gorm:"type:varchar(36);index:idx_gallery_participant_session,priority:2"`
	ParticipantID string `json:"participant_id" gorm:"type:varchar(36);index:idx_gallery_participant_session,priority:1"`
	Status        string `json:"status" gorm:"type:varchar(16)"` // PENDING | APPROVED | REJECTED
	URL           string `json:"url" gorm:"type:text"`

	Timestamps
}

const GalleryApproved = "APPROVED"
