package services

import (
	"context"
	"strings"

	"tripwise-backend/models"
	"tripwise-backend/utils"

	"github.com/juju/errors"
	"gorm.io/gorm"
)

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Identity is the authenticated caller as forwarded by the gateway.
type Identity struct {
	UserID   string
	Role     string
	Username string
	Phone    string
}

func (i Identity) IsAdmin() bool {
	switch strings.ToLower(i.Role) {
	case RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func requireAuthenticated(id Identity) error {
	if id.UserID == "" {
		return errors.Unauthorizedf("caller identity")
	}
	return nil
}

func requireAdmin(id Identity) error {
	if err := requireAuthenticated(id); err != nil {
		return err
	}
	if !id.IsAdmin() {
		return errors.Forbiddenf("role %q for admin operation", id.Role)
	}
	return nil
}

// MembershipService bridges gateway identities to trip participants.
type MembershipService struct {
	DB          *gorm.DB
	CountryCode string
}

func NewMembershipService(db *gorm.DB, countryCode string) *MembershipService {
	return &MembershipService{DB: db, CountryCode: countryCode}
}

// ResolveParticipant finds the caller's participant row in tripID, by login
// username first and then by normalized phone number.
func (s *MembershipService) ResolveParticipant(ctx context.Context, tripID string, id Identity) (*models.Participant, error) {
	if err := requireAuthenticated(id); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	if id.Username != "" {
		var p models.Participant
		err := db.Where("trip_id = ? AND login_username = ?", tripID, id.Username).Take(&p).Error
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Annotatef(err, "lookup participant by username")
		}
	}

	if id.Phone != "" {
		var candidates []models.Participant
		if err := db.Where("trip_id = ? AND phone <> ''", tripID).Find(&candidates).Error; err != nil {
			return nil, errors.Annotatef(err, "lookup participants by phone")
		}
		for i := range candidates {
			if utils.SamePhone(candidates[i].Phone, id.Phone, s.CountryCode) {
				return &candidates[i], nil
			}
		}
	}

	return nil, errors.NotFoundf("participant for user %q in trip %q", id.UserID, tripID)
}
