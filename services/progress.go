package services

import (
	"context"
	"log"

	"tripwise-backend/metrics"
	"tripwise-backend/models"

	"github.com/juju/errors"
	"gorm.io/gorm"
)

// ProgressService moves a trip to completed once every participant attended every session.
type ProgressService struct {
	DB      *gorm.DB
	Metrics *metrics.Collector

	ledger AttendanceLedger
}

func NewProgressService(db *gorm.DB, m *metrics.Collector) *ProgressService {
	return &ProgressService{DB: db, Metrics: m}
}

// CheckTripCompletion reports whether this call moved the trip to completed.
// Trips with no participants or no sessions are never completed. Completion
// is one-way.
func (s *ProgressService) CheckTripCompletion(ctx context.Context, tripID string) (bool, error) {
	db := s.DB.WithContext(ctx)

	var trip models.Trip
	if err := db.Where("id = ?", tripID).Take(&trip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, errors.NotFoundf("trip %q", tripID)
		}
		return false, errors.Annotate(err, "load trip")
	}
	if trip.Status == models.TripStatusCompleted {
		return false, nil
	}

	var participants, sessions int64
	if err := db.Model(&models.Participant{}).Where("trip_id = ?", tripID).Count(&participants).Error; err != nil {
		return false, errors.Annotate(err, "count participants")
	}
	if err := db.Model(&models.Session{}).Where("trip_id = ?", tripID).Count(&sessions).Error; err != nil {
		return false, errors.Annotate(err, "count sessions")
	}
	if participants == 0 || sessions == 0 {
		return false, nil
	}

	done, err := s.ledger.ParticipantsAttendedAll(db, tripID, sessions)
	if err != nil {
		return false, err
	}
	if done < participants {
		return false, nil
	}

	res := db.Model(&models.Trip{}).
		Where("id = ? AND status <> ?", tripID, models.TripStatusCompleted).
		Update("status", models.TripStatusCompleted)
	if res.Error != nil {
		return false, errors.Annotate(res.Error, "complete trip")
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	s.Metrics.TripCompleted()
	log.Printf("🏁 [PROGRESS] Trip %s completed: %d participant(s) attended all %d session(s)", tripID, participants, sessions)
	return true, nil
}
