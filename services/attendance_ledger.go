package services

import (
	"time"

	"tripwise-backend/models"

	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttendanceLedger owns attendance_records. Every method takes the handle to
// run on so callers can compose it inside their own transaction.
type AttendanceLedger struct{}

// Entry is one confirmation to record.
type Entry struct {
	TripID        string
	SessionID     string
	ParticipantID string
	Method        string
	At            time.Time
}

// Record inserts the (participant, session) row or, if it exists, updates only
// method and updated_at. checked_at keeps its first value. The bool result
// reports whether a row already existed. Only the insert that wins the unique
// key sees false.
func (AttendanceLedger) Record(db *gorm.DB, e Entry) (*models.AttendanceRecord, bool, error) {
	row := models.AttendanceRecord{
		TripID:        e.TripID,
		SessionID:     e.SessionID,
		ParticipantID: e.ParticipantID,
		Method:        e.Method,
		CheckedAt:     e.At,
		UpdatedAt:     e.At,
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "participant_id"}, {Name: "session_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return nil, false, errors.Annotate(res.Error, "insert attendance")
	}
	already := res.RowsAffected != 1
	if already {
		if err := db.Model(&models.AttendanceRecord{}).
			Where("participant_id = ? AND session_id = ?", e.ParticipantID, e.SessionID).
			Updates(map[string]interface{}{"method": e.Method, "updated_at": e.At}).Error; err != nil {
			return nil, false, errors.Annotate(err, "update attendance")
		}
	}

	var stored models.AttendanceRecord
	if err := db.Where("participant_id = ? AND session_id = ?", e.ParticipantID, e.SessionID).
		Take(&stored).Error; err != nil {
		return nil, false, errors.Annotate(err, "reload attendance")
	}
	return &stored, already, nil
}

// Attended reports whether the participant has a record for the session.
func (AttendanceLedger) Attended(db *gorm.DB, participantID, sessionID string) (bool, error) {
	var n int64
	err := db.Model(&models.AttendanceRecord{}).
		Where("participant_id = ? AND session_id = ?", participantID, sessionID).
		Count(&n).Error
	if err != nil {
		return false, errors.Annotate(err, "check attendance")
	}
	return n > 0, nil
}

// AttendedSessions counts distinct sessions of tripID the participant attended.
// Records pointing at sessions no longer in the trip are ignored.
func (AttendanceLedger) AttendedSessions(db *gorm.DB, tripID, participantID string) (int64, error) {
	var n int64
	err := db.Raw(`
		SELECT COUNT(DISTINCT ar.session_id)
		FROM attendance_records ar
		INNER JOIN trip_sessions s ON s.id = ar.session_id
		WHERE ar.participant_id = ? AND s.trip_id = ?`, participantID, tripID).
		Scan(&n).Error
	if err != nil {
		return 0, errors.Annotate(err, "count attended sessions")
	}
	return n, nil
}

// ParticipantsAttendedAll counts participants of tripID with at least
// totalSessions distinct attended sessions.
func (AttendanceLedger) ParticipantsAttendedAll(db *gorm.DB, tripID string, totalSessions int64) (int64, error) {
	var n int64
	err := db.Raw(`
		SELECT COUNT(*) FROM (
			SELECT ar.participant_id
			FROM attendance_records ar
			INNER JOIN trip_sessions s ON s.id = ar.session_id
			INNER JOIN participants p ON p.id = ar.participant_id
			WHERE s.trip_id = ? AND p.trip_id = ?
			GROUP BY ar.participant_id
			HAVING COUNT(DISTINCT ar.session_id) >= ?
		) done`, tripID, tripID, totalSessions).
		Scan(&n).Error
	if err != nil {
		return 0, errors.Annotate(err, "count completed participants")
	}
	return n, nil
}
