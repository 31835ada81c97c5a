package models

import (
	"time"

	"gorm.io/gorm"
)

// OutboundMessage status lifecycle: PENDING -> SENDING -> SUCCESS | FAILED
const (
	MessagePending = "PENDING"
	MessageSending = "SENDING"
	MessageSuccess = "SUCCESS"
	MessageFailed  = "FAILED"
)

// OutboundMessage is one queued WhatsApp message for one recipient.
type OutboundMessage struct {
	ID            string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TripID        *string `json:"trip_id,omitempty" gorm:"type:varchar(36);index"`
	ParticipantID *string `json:"participant_id,omitempty" gorm:"type:varchar(36);index:idx_outbound_participant_template,priority:1"`
	TemplateType  string  `json:"template_type" gorm:"type:varchar(64);not null;index:idx_outbound_participant_template,priority:2"`

	Recipient     string `json:"recipient" gorm:"not null"`
	RecipientName string `json:"recipient_name"`
	Content       string `json:"content" gorm:"type:text;not null"`

	Status    string     `json:"status" gorm:"type:varchar(16);not null;index:idx_outbound_status_created,priority:1"`
	Error     *string    `json:"error,omitempty" gorm:"type:text"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_outbound_status_created,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *OutboundMessage) BeforeCreate(tx *gorm.DB) error {
	newID(&m.ID)
	if m.Status == "" {
		m.Status = MessagePending
	}
	return nil
}

// Message template types
const (
	TemplateSchedule     = "schedule"
	TemplateAnnouncement = "announcement"
	TemplateCredential   = "credential"
)

// MessageTemplate overrides the built-in body for one trip and type.
type MessageTemplate struct {
	ID      string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TripID  string `json:"trip_id" gorm:"type:varchar(36);not null;uniqueIndex:ux_template_trip_type,priority:1"`
	Type    string `json:"type" gorm:"type:varchar(64);not null;uniqueIndex:ux_template_trip_type,priority:2"`
	Name    string `json:"name"`
	Content string `json:"content" gorm:"type:text;not null"`

	Timestamps
}

func (t *MessageTemplate) BeforeCreate(tx *gorm.DB) error {
	newID(&t.ID)
	return nil
}
