package services

import (
	"context"
	"log"
	"time"

	"tripwise-backend/metrics"
	"tripwise-backend/models"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GalleryCounter reports approved photo uploads. The gallery subsystem owns the data.
type GalleryCounter interface {
	ApprovedCount(ctx context.Context, participantID, sessionID string) (int64, error)
}

// DBGalleryCounter counts approved rows in gallery_photos.
type DBGalleryCounter struct {
	DB *gorm.DB
}

func (g DBGalleryCounter) ApprovedCount(ctx context.Context, participantID, sessionID string) (int64, error) {
	var n int64
	err := g.DB.WithContext(ctx).Model(&models.GalleryPhoto{}).
		Where("participant_id = ? AND session_id = ? AND status = ?", participantID, sessionID, models.GalleryApproved).
		Count(&n).Error
	return n, errors.Annotate(err, "count approved photos")
}

type BadgeService struct {
	DB      *gorm.DB
	Clock   clock.Clock
	Gallery GalleryCounter
	Metrics *metrics.Collector

	ledger AttendanceLedger
}

func NewBadgeService(db *gorm.DB, clk clock.Clock, gallery GalleryCounter, m *metrics.Collector) *BadgeService {
	if gallery == nil {
		gallery = DBGalleryCounter{DB: db}
	}
	return &BadgeService{DB: db, Clock: clk, Gallery: gallery, Metrics: m}
}

func (s *BadgeService) activeDefinitions(ctx context.Context, tripID, condition string, sessionID *string) ([]models.BadgeDefinition, error) {
	q := s.DB.WithContext(ctx).
		Where("trip_id = ? AND condition_type = ? AND is_active = ?", tripID, condition, true)
	if sessionID != nil {
		q = q.Where("session_id = ?", *sessionID)
	}
	var defs []models.BadgeDefinition
	if err := q.Order("created_at ASC").Find(&defs).Error; err != nil {
		return nil, errors.Annotatef(err, "load %s badges", condition)
	}
	return defs, nil
}

// unlock inserts the participant badge unless it already exists. It reports
// true only for the call that actually created the row.
func (s *BadgeService) unlock(ctx context.Context, def models.BadgeDefinition, participantID string) (bool, error) {
	pb := models.ParticipantBadge{
		TripID:        def.TripID,
		ParticipantID: participantID,
		BadgeID:       def.ID,
		UnlockedAt:    s.Clock.Now(),
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "participant_id"}, {Name: "badge_id"}},
		DoNothing: true,
	}).Create(&pb)
	if res.Error != nil {
		return false, errors.Annotatef(res.Error, "unlock badge %s", def.ID)
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	s.Metrics.BadgeUnlocked(def.ConditionType)
	log.Printf("🎖️ [BADGE] Unlocked %q (%s) for participant %s", def.Name, def.ConditionType, participantID)
	return true, nil
}

func (s *BadgeService) unlockAll(ctx context.Context, defs []models.BadgeDefinition, participantID string) ([]models.BadgeDefinition, error) {
	var unlocked []models.BadgeDefinition
	for _, def := range defs {
		created, err := s.unlock(ctx, def, participantID)
		if err != nil {
			return unlocked, err
		}
		if created {
			unlocked = append(unlocked, def)
		}
	}
	return unlocked, nil
}

// EvaluateSessionBadges unlocks active CHECKIN_SESSION badges bound to
// sessionID when the participant has attended it.
func (s *BadgeService) EvaluateSessionBadges(ctx context.Context, tripID, sessionID, participantID string) ([]models.BadgeDefinition, error) {
	defs, err := s.activeDefinitions(ctx, tripID, models.BadgeCheckinSession, &sessionID)
	if err != nil || len(defs) == 0 {
		return nil, err
	}
	attended, err := s.ledger.Attended(s.DB.WithContext(ctx), participantID, sessionID)
	if err != nil || !attended {
		return nil, err
	}
	return s.unlockAll(ctx, defs, participantID)
}

// EvaluateGalleryBadges unlocks active GALLERY_UPLOAD_SESSION badges whose
// target count of approved photos at sessionID is met.
func (s *BadgeService) EvaluateGalleryBadges(ctx context.Context, tripID, sessionID, participantID string) ([]models.BadgeDefinition, error) {
	defs, err := s.activeDefinitions(ctx, tripID, models.BadgeGalleryUploadSession, &sessionID)
	if err != nil || len(defs) == 0 {
		return nil, err
	}
	approved, err := s.Gallery.ApprovedCount(ctx, participantID, sessionID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var eligible []models.BadgeDefinition
	for _, def := range defs {
		if approved >= int64(def.Target()) {
			eligible = append(eligible, def)
		}
	}
	return s.unlockAll(ctx, eligible, participantID)
}

// EvaluateCompletionBadges unlocks active COMPLETE_ALL_SESSIONS badges once the
// participant attended every session of a trip with at least one session.
func (s *BadgeService) EvaluateCompletionBadges(ctx context.Context, tripID, participantID string) ([]models.BadgeDefinition, error) {
	defs, err := s.activeDefinitions(ctx, tripID, models.BadgeCompleteAllSessions, nil)
	if err != nil || len(defs) == 0 {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Session{}).Where("trip_id = ?", tripID).Count(&total).Error; err != nil {
		return nil, errors.Annotate(err, "count sessions")
	}
	if total == 0 {
		return nil, nil
	}
	attended, err := s.ledger.AttendedSessions(db, tripID, participantID)
	if err != nil {
		return nil, err
	}
	if attended < total {
		return nil, nil
	}
	return s.unlockAll(ctx, defs, participantID)
}

// MergeUnlocked concatenates badge lists, keeping the first occurrence of each badge.
func MergeUnlocked(lists ...[]models.BadgeDefinition) []models.BadgeDefinition {
	seen := make(map[string]bool)
	merged := []models.BadgeDefinition{}
	for _, list := range lists {
		for _, b := range list {
			if seen[b.ID] {
				continue
			}
			seen[b.ID] = true
			merged = append(merged, b)
		}
	}
	return merged
}

// UnlockedBadge is a participant's badge as shown on their shelf.
type UnlockedBadge struct {
	BadgeID       string    `json:"badge_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	IconURL       string    `json:"icon_url"`
	ConditionType string    `json:"condition_type"`
	SessionID     *string   `json:"session_id,omitempty"`
	IsActive      bool      `json:"is_active"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// ListParticipantBadges returns every badge the participant unlocked in
// tripID, newest first. Badges deactivated after unlocking stay listed.
func (s *BadgeService) ListParticipantBadges(ctx context.Context, tripID, participantID string) ([]UnlockedBadge, error) {
	out := []UnlockedBadge{}
	err := s.DB.WithContext(ctx).Raw(`
		SELECT b.id AS badge_id, b.name, b.description, b.icon_url, b.condition_type,
		       b.session_id, b.is_active, pb.unlocked_at
		FROM participant_badges pb
		INNER JOIN badge_definitions b ON b.id = pb.badge_id
		WHERE pb.trip_id = ? AND pb.participant_id = ?
		ORDER BY pb.unlocked_at DESC`, tripID, participantID).
		Scan(&out).Error
	if err != nil {
		return nil, errors.Annotate(err, "list participant badges")
	}
	return out, nil
}
