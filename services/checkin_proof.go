package services

import (
	"context"
	"strings"

	"tripwise-backend/models"
	"tripwise-backend/utils"

	"github.com/juju/errors"
	"gorm.io/gorm"
)

// Proof is evidence that a participant is present at a session. The set of
// implementations is closed: QRProof, GeoProof, CardProof and AdminProof.
type Proof interface {
	Method() string
	resolve(ctx context.Context, s *CheckInService) (*checkInTarget, error)
}

type checkInTarget struct {
	trip        models.Trip
	session     models.Session
	participant models.Participant
	method      string
	distance    *float64
}

// QRProof is a participant presenting a rotating session token.
type QRProof struct {
	Identity Identity
	Token    string
}

func (QRProof) Method() string { return models.MethodQR }

func (p QRProof) resolve(ctx context.Context, s *CheckInService) (*checkInTarget, error) {
	if err := requireAuthenticated(p.Identity); err != nil {
		return nil, err
	}
	claims, err := s.VerifyQRToken(p.Token)
	if err != nil {
		return nil, err
	}
	trip, session, err := s.loadSession(ctx, claims.TripID, claims.SessionID)
	if err != nil {
		return nil, err
	}
	participant, err := s.Members.ResolveParticipant(ctx, trip.ID, p.Identity)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &checkInTarget{trip: *trip, session: *session, participant: *participant, method: models.MethodQR}, nil
}

// GeoProof is a participant reporting their own coordinates.
type GeoProof struct {
	Identity  Identity
	TripID    string
	SessionID string
	Latitude  float64
	Longitude float64
}

func (GeoProof) Method() string { return models.MethodGeo }

func (p GeoProof) resolve(ctx context.Context, s *CheckInService) (*checkInTarget, error) {
	if err := requireAuthenticated(p.Identity); err != nil {
		return nil, err
	}
	if !utils.ValidCoordinate(p.Latitude, p.Longitude) {
		return nil, errors.NotValidf("coordinate (%f, %f)", p.Latitude, p.Longitude)
	}
	trip, session, err := s.loadSession(ctx, p.TripID, p.SessionID)
	if err != nil {
		return nil, err
	}
	participant, err := s.Members.ResolveParticipant(ctx, trip.ID, p.Identity)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.Forbiddenf("user %q is not a member of trip %q: geo check-in", p.Identity.UserID, trip.ID)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !session.HasCoordinate() {
		return nil, errors.NotValidf("session %q location (not configured, contact admin)", session.ID)
	}

	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	distance := utils.HaversineMeters(p.Latitude, p.Longitude, *session.Latitude, *session.Longitude)
	radius := float64(settings.AttendanceRadiusMeters)
	if !utils.WithinRadius(distance, radius) {
		return nil, &GeofenceError{
			Distance:    distance,
			MaxDistance: radius,
			Message:     s.printer.Sprintf("you are %.0f m from %s, check-in is allowed within %d m", distance, session.Location, settings.AttendanceRadiusMeters),
		}
	}
	return &checkInTarget{trip: *trip, session: *session, participant: *participant, method: models.MethodGeo, distance: &distance}, nil
}

// CardProof is an admin scanning a participant's printed card.
type CardProof struct {
	Identity  Identity
	TripID    string
	SessionID string
	ScanText  string
}

func (CardProof) Method() string { return models.MethodCard }

func (p CardProof) resolve(ctx context.Context, s *CheckInService) (*checkInTarget, error) {
	if err := requireAdmin(p.Identity); err != nil {
		return nil, err
	}
	token, err := s.parseCardScan(p.ScanText)
	if err != nil {
		return nil, err
	}
	trip, session, err := s.loadSession(ctx, p.TripID, p.SessionID)
	if err != nil {
		return nil, err
	}
	var participant models.Participant
	err = s.DB.WithContext(ctx).Where("trip_id = ? AND checkin_token = ?", trip.ID, token).Take(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFoundf("participant with card token in trip %q", trip.ID)
	}
	if err != nil {
		return nil, errors.Annotate(err, "lookup card token")
	}
	return &checkInTarget{trip: *trip, session: *session, participant: participant, method: models.MethodCard}, nil
}

// parseCardScan extracts the token from "<prefix><token>".
func (s *CheckInService) parseCardScan(scan string) (string, error) {
	scan = strings.TrimSpace(scan)
	if !strings.HasPrefix(scan, s.cfg.CardPrefix) {
		return "", errors.NotValidf("card scan (missing %q prefix)", s.cfg.CardPrefix)
	}
	token := strings.TrimSpace(strings.TrimPrefix(scan, s.cfg.CardPrefix))
	if token == "" {
		return "", errors.NotValidf("card scan (empty token)")
	}
	return token, nil
}

// AdminProof is an admin confirming a participant directly.
type AdminProof struct {
	Identity      Identity
	TripID        string
	SessionID     string
	ParticipantID string
}

func (AdminProof) Method() string { return models.MethodAdmin }

func (p AdminProof) resolve(ctx context.Context, s *CheckInService) (*checkInTarget, error) {
	if err := requireAdmin(p.Identity); err != nil {
		return nil, err
	}
	trip, session, err := s.loadSession(ctx, p.TripID, p.SessionID)
	if err != nil {
		return nil, err
	}
	var participant models.Participant
	err = s.DB.WithContext(ctx).Where("id = ? AND trip_id = ?", p.ParticipantID, trip.ID).Take(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFoundf("participant %q in trip %q", p.ParticipantID, trip.ID)
	}
	if err != nil {
		return nil, errors.Annotate(err, "load participant")
	}
	return &checkInTarget{trip: *trip, session: *session, participant: participant, method: models.MethodAdmin}, nil
}
