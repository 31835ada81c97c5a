package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"tripwise-backend/metrics"
	"tripwise-backend/models"
	"tripwise-backend/utils"

	"github.com/gosimple/slug"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

// Trigger starts a dispatch pass.
type Trigger interface {
	Trigger(ctx context.Context) error
}

// TriggerFunc adapts a function to Trigger.
type TriggerFunc func(ctx context.Context) error

func (f TriggerFunc) Trigger(ctx context.Context) error { return f(ctx) }

var defaultTemplates = map[string]string{
	models.TemplateSchedule: "Halo {{name}},\n\n" +
		"Jadwal {{trip}}:\n" +
		"📌 {{title}}\n" +
		"📅 Hari {{day}}, {{date}}\n" +
		"🕒 {{time}}\n" +
		"📍 {{location}}\n\n" +
		"Sampai jumpa!",
	models.TemplateAnnouncement: "📢 {{title}}\n\n" +
		"Halo {{name}},\n" +
		"{{body}}\n\n" +
		"- Tim {{trip}}",
	models.TemplateCredential: "Halo {{name}},\n\n" +
		"Akun peserta {{trip}} sudah aktif.\n" +
		"Username: {{username}}\n" +
		"Password: {{password}}\n" +
		"Login: {{login_url}}\n\n" +
		"Mohon jaga kerahasiaan akun Anda.",
}

// NotificationQueue appends rendered messages to outbound_messages. Delivery
// happens elsewhere.
type NotificationQueue struct {
	DB      *gorm.DB
	Trigger Trigger
	Metrics *metrics.Collector

	// triggerTimeout bounds a fire-and-forget dispatch pass.
	triggerTimeout time.Duration
}

func NewNotificationQueue(db *gorm.DB, trigger Trigger, m *metrics.Collector) *NotificationQueue {
	return &NotificationQueue{DB: db, Trigger: trigger, Metrics: m, triggerTimeout: 5 * time.Minute}
}

// EnqueueResult summarizes a broadcast.
type EnqueueResult struct {
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"` // participants without a phone number
}

const (
	CredentialQueued      = "queued"
	CredentialAlreadySent = "already_sent"
)

type CredentialResult struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
}

// normalizeTemplateType maps "Schedule", " schedule " etc. to the stored key.
func normalizeTemplateType(t string) string {
	return slug.Make(strings.TrimSpace(t))
}

// templateContent returns the trip's template for type t, or the built-in default.
func (q *NotificationQueue) templateContent(ctx context.Context, tripID, t string) (string, error) {
	t = normalizeTemplateType(t)
	var tpl models.MessageTemplate
	err := q.DB.WithContext(ctx).Where("trip_id = ? AND type = ?", tripID, t).Take(&tpl).Error
	if err == nil && strings.TrimSpace(tpl.Content) != "" {
		return tpl.Content, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.Annotatef(err, "load %s template", t)
	}
	content, ok := defaultTemplates[t]
	if !ok {
		return "", errors.NotFoundf("message template %q", t)
	}
	return content, nil
}

func (q *NotificationQueue) loadTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	var trip models.Trip
	if err := q.DB.WithContext(ctx).Where("id = ?", tripID).Take(&trip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFoundf("trip %q", tripID)
		}
		return nil, errors.Annotate(err, "load trip")
	}
	return &trip, nil
}

// broadcast renders content for each participant with a phone and appends the messages.
func (q *NotificationQueue) broadcast(ctx context.Context, trip *models.Trip, templateType string, vars map[string]string) (*EnqueueResult, error) {
	content, err := q.templateContent(ctx, trip.ID, templateType)
	if err != nil {
		return nil, err
	}
	var participants []models.Participant
	if err := q.DB.WithContext(ctx).Where("trip_id = ?", trip.ID).Order("name ASC").Find(&participants).Error; err != nil {
		return nil, errors.Annotate(err, "load participants")
	}

	result := &EnqueueResult{}
	var msgs []models.OutboundMessage
	for _, p := range participants {
		if strings.TrimSpace(p.Phone) == "" {
			result.Skipped++
			continue
		}
		pv := make(map[string]string, len(vars)+2)
		for k, v := range vars {
			pv[k] = v
		}
		pv["name"] = p.Name
		pv["trip"] = trip.Name
		tripID, participantID := trip.ID, p.ID
		msgs = append(msgs, models.OutboundMessage{
			TripID:        &tripID,
			ParticipantID: &participantID,
			TemplateType:  templateType,
			Recipient:     p.Phone,
			RecipientName: p.Name,
			Content:       utils.RenderTemplate(content, pv),
			Status:        models.MessagePending,
		})
	}
	if len(msgs) > 0 {
		if err := q.DB.WithContext(ctx).CreateInBatches(&msgs, 100).Error; err != nil {
			return nil, errors.Annotatef(err, "enqueue %s messages", templateType)
		}
	}
	result.Queued = len(msgs)
	q.Metrics.MessagesEnqueued(templateType, result.Queued)
	log.Printf("📨 [QUEUE] %s for trip %s: %d queued, %d skipped (no phone)", templateType, trip.ID, result.Queued, result.Skipped)
	q.fire(result.Queued)
	return result, nil
}

// BroadcastSchedule queues a schedule message for one session to every participant of the trip.
func (q *NotificationQueue) BroadcastSchedule(ctx context.Context, id Identity, tripID, sessionID string) (*EnqueueResult, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	trip, err := q.loadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	var session models.Session
	if err := q.DB.WithContext(ctx).Where("id = ? AND trip_id = ?", sessionID, tripID).Take(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFoundf("session %q in trip %q", sessionID, tripID)
		}
		return nil, errors.Annotate(err, "load session")
	}
	return q.broadcast(ctx, trip, models.TemplateSchedule, map[string]string{
		"title":    session.Title,
		"day":      fmt.Sprint(session.Day),
		"date":     session.Date,
		"time":     session.Time,
		"location": session.Location,
	})
}

// BroadcastAnnouncement queues a free-form announcement to every participant of the trip.
func (q *NotificationQueue) BroadcastAnnouncement(ctx context.Context, id Identity, tripID, title, body string) (*EnqueueResult, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, errors.NotValidf("empty announcement body")
	}
	trip, err := q.loadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return q.broadcast(ctx, trip, models.TemplateAnnouncement, map[string]string{
		"title": title,
		"body":  body,
	})
}

// IssueCredential queues login credentials for one participant, at most once.
// A repeat call reports already_sent instead of queueing again.
func (q *NotificationQueue) IssueCredential(ctx context.Context, id Identity, tripID, participantID, username, password, loginURL string) (*CredentialResult, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	trip, err := q.loadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	db := q.DB.WithContext(ctx)
	var p models.Participant
	if err := db.Where("id = ? AND trip_id = ?", participantID, tripID).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFoundf("participant %q in trip %q", participantID, tripID)
		}
		return nil, errors.Annotate(err, "load participant")
	}
	if strings.TrimSpace(p.Phone) == "" {
		return nil, errors.NotValidf("participant %q phone (empty)", p.ID)
	}

	var prior int64
	if err := db.Model(&models.OutboundMessage{}).
		Where("participant_id = ? AND template_type = ?", p.ID, models.TemplateCredential).
		Count(&prior).Error; err != nil {
		return nil, errors.Annotate(err, "check prior credential")
	}
	if prior > 0 {
		log.Printf("ℹ️ [QUEUE] Credential for participant %s already queued, skipping", p.ID)
		return &CredentialResult{Status: CredentialAlreadySent}, nil
	}

	content, err := q.templateContent(ctx, trip.ID, models.TemplateCredential)
	if err != nil {
		return nil, err
	}
	msg := models.OutboundMessage{
		TripID:        &trip.ID,
		ParticipantID: &p.ID,
		TemplateType:  models.TemplateCredential,
		Recipient:     p.Phone,
		RecipientName: p.Name,
		Content: utils.RenderTemplate(content, map[string]string{
			"name":      p.Name,
			"trip":      trip.Name,
			"username":  username,
			"password":  password,
			"login_url": loginURL,
		}),
		Status: models.MessagePending,
	}
	if err := db.Create(&msg).Error; err != nil {
		return nil, errors.Annotate(err, "enqueue credential")
	}
	q.Metrics.MessagesEnqueued(models.TemplateCredential, 1)
	log.Printf("🔑 [QUEUE] Credential queued for participant %s (message %s)", p.ID, msg.ID)
	q.fire(1)
	return &CredentialResult{Status: CredentialQueued, MessageID: msg.ID}, nil
}

// fire starts a dispatch pass in the background. Failures are logged only;
// the periodic scheduler picks up anything left pending.
func (q *NotificationQueue) fire(queued int) {
	if queued == 0 || q.Trigger == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), q.triggerTimeout)
		defer cancel()
		if err := q.Trigger.Trigger(ctx); err != nil {
			log.Printf("⚠️ [QUEUE] Dispatch trigger failed: %v", err)
		}
	}()
}

// ListMessages returns queued messages for operators, newest first.
func (q *NotificationQueue) ListMessages(ctx context.Context, id Identity, status, tripID string, limit int) ([]models.OutboundMessage, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	db := q.DB.WithContext(ctx).Model(&models.OutboundMessage{})
	if status != "" {
		status = strings.ToUpper(status)
		switch status {
		case models.MessagePending, models.MessageSending, models.MessageSuccess, models.MessageFailed:
		default:
			return nil, errors.NotValidf("status %q", status)
		}
		db = db.Where("status = ?", status)
	}
	if tripID != "" {
		db = db.Where("trip_id = ?", tripID)
	}
	var msgs []models.OutboundMessage
	if err := db.Order("created_at DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, errors.Annotate(err, "list messages")
	}
	return msgs, nil
}
