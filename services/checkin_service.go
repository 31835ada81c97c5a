package services

import (
	"context"
	"log"
	"time"

	"tripwise-backend/metrics"
	"tripwise-backend/models"
	"tripwise-backend/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

const qrPurpose = "attendance-qr"

type CheckInConfig struct {
	QRSecret   []byte
	QRTTL      time.Duration
	CardPrefix string
	Location   *time.Location // zone for last_check_in display
	Locale     string         // number formatting in user-facing messages
}

// CheckInService turns attendance proofs into ledger entries and runs the
// badge and trip-completion follow-ups.
type CheckInService struct {
	DB       *gorm.DB
	Clock    clock.Clock
	Members  *MembershipService
	Settings *SettingsService
	Badges   *BadgeService
	Progress *ProgressService
	Metrics  *metrics.Collector

	cfg     CheckInConfig
	printer *message.Printer
	ledger  AttendanceLedger
}

func NewCheckInService(
	db *gorm.DB,
	clk clock.Clock,
	members *MembershipService,
	settings *SettingsService,
	badges *BadgeService,
	progress *ProgressService,
	m *metrics.Collector,
	cfg CheckInConfig,
) *CheckInService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.Indonesian
	}
	return &CheckInService{
		DB:       db,
		Clock:    clk,
		Members:  members,
		Settings: settings,
		Badges:   badges,
		Progress: progress,
		Metrics:  m,
		cfg:      cfg,
		printer:  message.NewPrinter(tag),
	}
}

// CheckInResult is returned to the confirming client.
type CheckInResult struct {
	Record           *models.AttendanceRecord `json:"record"`
	Participant      *models.Participant      `json:"participant"`
	Session          *models.Session          `json:"session"`
	AlreadyCheckedIn bool                     `json:"already_checked_in"`
	NewBadges        []models.BadgeDefinition `json:"new_badges"`
	TripCompleted    bool                     `json:"trip_completed"`
	Distance         *float64                 `json:"distance,omitempty"`
}

// Confirm validates the proof and records attendance. Nothing is written
// unless every precondition holds. The ledger row and the participant's
// counters commit together. Badge and completion evaluation run afterwards
// and do not undo a recorded attendance if they fail.
func (s *CheckInService) Confirm(ctx context.Context, proof Proof) (*CheckInResult, error) {
	target, err := proof.resolve(ctx, s)
	if err != nil {
		s.Metrics.CheckInRejected(proof.Method(), rejectionReason(err))
		return nil, errors.Trace(err)
	}

	now := s.Clock.Now()
	participant := target.participant
	var (
		record  *models.AttendanceRecord
		already bool
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		record, already, err = s.ledger.Record(tx, Entry{
			TripID:        target.trip.ID,
			SessionID:     target.session.ID,
			ParticipantID: participant.ID,
			Method:        target.method,
			At:            now,
		})
		if err != nil {
			return err
		}

		total, err := s.ledger.AttendedSessions(tx, target.trip.ID, participant.ID)
		if err != nil {
			return err
		}
		participant.TotalCheckIns = int(total)
		participant.LastCheckIn = utils.FormatCheckInDisplay(now, s.cfg.Location)
		participant.LastCheckInAt = &now
		return errors.Annotate(tx.Model(&models.Participant{}).
			Where("id = ?", participant.ID).
			Updates(map[string]interface{}{
				"total_check_ins":  participant.TotalCheckIns,
				"last_check_in":    participant.LastCheckIn,
				"last_check_in_at": participant.LastCheckInAt,
			}).Error, "update participant counters")
	})
	if err != nil {
		return nil, errors.Annotatef(err, "confirm %s check-in", target.method)
	}
	s.Metrics.CheckIn(target.method)
	log.Printf("✅ [CHECKIN] %s participant=%s session=%s trip=%s (already=%t, total=%d)",
		target.method, participant.ID, target.session.ID, target.trip.ID, already, participant.TotalCheckIns)

	result := &CheckInResult{
		Record:           record,
		Participant:      &participant,
		Session:          &target.session,
		AlreadyCheckedIn: already,
		Distance:         target.distance,
	}
	result.NewBadges = s.evaluateBadges(ctx, target.trip.ID, target.session.ID, participant.ID)

	completed, err := s.Progress.CheckTripCompletion(ctx, target.trip.ID)
	if err != nil {
		log.Printf("⚠️ [CHECKIN] Trip completion check failed for trip %s: %v", target.trip.ID, err)
	}
	result.TripCompleted = completed
	return result, nil
}

// evaluateBadges runs the session and completion families. Gallery badges
// are evaluated by the gallery flow through its own hook.
func (s *CheckInService) evaluateBadges(ctx context.Context, tripID, sessionID, participantID string) []models.BadgeDefinition {
	session, err := s.Badges.EvaluateSessionBadges(ctx, tripID, sessionID, participantID)
	if err != nil {
		log.Printf("⚠️ [CHECKIN] Session badge evaluation failed for %s: %v", participantID, err)
	}
	completion, err := s.Badges.EvaluateCompletionBadges(ctx, tripID, participantID)
	if err != nil {
		log.Printf("⚠️ [CHECKIN] Completion badge evaluation failed for %s: %v", participantID, err)
	}
	return MergeUnlocked(session, completion)
}

func (s *CheckInService) loadSession(ctx context.Context, tripID, sessionID string) (*models.Trip, *models.Session, error) {
	if tripID == "" || sessionID == "" {
		return nil, nil, errors.NotValidf("empty trip or session id")
	}
	db := s.DB.WithContext(ctx)
	var trip models.Trip
	if err := db.Where("id = ?", tripID).Take(&trip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.NotFoundf("trip %q", tripID)
		}
		return nil, nil, errors.Annotate(err, "load trip")
	}
	var session models.Session
	if err := db.Where("id = ? AND trip_id = ?", sessionID, tripID).Take(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.NotFoundf("session %q in trip %q", sessionID, tripID)
		}
		return nil, nil, errors.Annotate(err, "load session")
	}
	return &trip, &session, nil
}

func rejectionReason(err error) string {
	var geo *GeofenceError
	switch {
	case errors.As(err, &geo):
		return "geofence"
	case errors.Is(err, errors.Unauthorized):
		return "unauthorized"
	case errors.Is(err, errors.Forbidden):
		return "forbidden"
	case errors.Is(err, errors.NotFound):
		return "not_found"
	case errors.Is(err, errors.NotValid):
		return "invalid"
	}
	return "error"
}

// QRToken is a short-lived bearer token shown as a QR code at a session.
type QRToken struct {
	Token     string    `json:"token"`
	TripID    string    `json:"trip_id"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type QRClaims struct {
	TripID    string `json:"trip_id"`
	SessionID string `json:"session_id"`
	Purpose   string `json:"purpose"`
	jwt.RegisteredClaims
}

// IssueQRToken signs a token binding tripID and sessionID. Admin only.
func (s *CheckInService) IssueQRToken(ctx context.Context, id Identity, tripID, sessionID string) (*QRToken, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if _, _, err := s.loadSession(ctx, tripID, sessionID); err != nil {
		return nil, err
	}
	return s.signQRToken(tripID, sessionID)
}

func (s *CheckInService) signQRToken(tripID, sessionID string) (*QRToken, error) {
	now := s.Clock.Now()
	expires := now.Add(s.cfg.QRTTL)
	claims := QRClaims{
		TripID:    tripID,
		SessionID: sessionID,
		Purpose:   qrPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.QRSecret)
	if err != nil {
		return nil, errors.Annotate(err, "sign QR token")
	}
	return &QRToken{Token: signed, TripID: tripID, SessionID: sessionID, ExpiresAt: expires}, nil
}

// VerifyQRToken checks signature, expiry and purpose.
func (s *CheckInService) VerifyQRToken(token string) (*QRClaims, error) {
	if token == "" {
		return nil, errors.NotValidf("empty QR token")
	}
	claims := &QRClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.cfg.QRSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.Clock.Now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, errors.NotValidf("QR token (expired)")
	}
	if err != nil {
		return nil, errors.NotValidf("QR token (%v)", err)
	}
	if claims.Purpose != qrPurpose || claims.TripID == "" || claims.SessionID == "" {
		return nil, errors.NotValidf("QR token purpose %q", claims.Purpose)
	}
	return claims, nil
}

// ProximityResult tells a participant how far they are from a session.
type ProximityResult struct {
	Distance           float64 `json:"distance"`
	AttendanceRadius   int     `json:"attendance_radius"`
	ReminderRadius     int     `json:"reminder_radius"`
	WithinAttendance   bool    `json:"within_attendance"`
	WithinReminder     bool    `json:"within_reminder"`
	LocationConfigured bool    `json:"location_configured"`
}

// Proximity measures the caller's distance to a session without recording anything.
func (s *CheckInService) Proximity(ctx context.Context, id Identity, tripID, sessionID string, lat, lon float64) (*ProximityResult, error) {
	if err := requireAuthenticated(id); err != nil {
		return nil, err
	}
	if !utils.ValidCoordinate(lat, lon) {
		return nil, errors.NotValidf("coordinate (%f, %f)", lat, lon)
	}
	trip, session, err := s.loadSession(ctx, tripID, sessionID)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() {
		if _, err := s.Members.ResolveParticipant(ctx, trip.ID, id); err != nil {
			if errors.Is(err, errors.NotFound) {
				return nil, errors.Forbiddenf("user %q is not a member of trip %q: proximity", id.UserID, trip.ID)
			}
			return nil, errors.Trace(err)
		}
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	result := &ProximityResult{
		AttendanceRadius: settings.AttendanceRadiusMeters,
		ReminderRadius:   settings.ReminderRadiusMeters,
	}
	if !session.HasCoordinate() {
		return result, nil
	}
	result.LocationConfigured = true
	result.Distance = utils.HaversineMeters(lat, lon, *session.Latitude, *session.Longitude)
	result.WithinAttendance = utils.WithinRadius(result.Distance, float64(settings.AttendanceRadiusMeters))
	result.WithinReminder = utils.WithinRadius(result.Distance, float64(settings.ReminderRadiusMeters))
	return result, nil
}
