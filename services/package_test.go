package services

import (
	"context"
	"path/filepath"
	"time"

	"tripwise-backend/models"

	qt "github.com/frankban/quicktest"
	"github.com/glebarez/sqlite"
	"github.com/juju/clock/testclock"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ctx       = context.Background()
	startTime = time.Date(2026, time.October, 19, 1, 0, 0, 0, time.UTC)
	admin     = Identity{UserID: "admin-1", Role: RoleAdmin, Username: "ops"}
)

func newTestDB(c *qt.C) *gorm.DB {
	path := filepath.Join(c.TempDir(), "tripwise.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	c.Assert(err, qt.IsNil)
	sqlDB, err := db.DB()
	c.Assert(err, qt.IsNil)
	sqlDB.SetMaxOpenConns(1)
	c.Cleanup(func() { sqlDB.Close() })
	c.Assert(models.AutoMigrate(db), qt.IsNil)
	return db
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	db       *gorm.DB
	clock    *testclock.Clock
	checkIn  *CheckInService
	badges   *BadgeService
	progress *ProgressService

	trip         models.Trip
	sessions     []models.Session
	participants []models.Participant
}

// newFixture creates one trip with the given number of sessions and
// participants. Participant i has username "user<i>", phone "0812000000<i>"
// and card token "card-<i>". Every session sits at (-8.55, 119.50).
func newFixture(c *qt.C, sessions, participants int) *fixture {
	db := newTestDB(c)
	clk := testclock.NewClock(startTime)

	f := &fixture{db: db, clock: clk}
	f.trip = models.Trip{Name: "Labuan Bajo Explorer"}
	c.Assert(db.Create(&f.trip).Error, qt.IsNil)

	for i := 0; i < sessions; i++ {
		s := models.Session{
			TripID:    f.trip.ID,
			Title:     "Sesi " + string(rune('A'+i)),
			Day:       i + 1,
			Date:      "2026-10-2" + string(rune('0'+i)),
			Time:      "08:00 - 10:00",
			Location:  "Pelabuhan",
			Latitude:  ptr(-8.55),
			Longitude: ptr(119.50),
		}
		c.Assert(db.Create(&s).Error, qt.IsNil)
		f.sessions = append(f.sessions, s)
	}
	for i := 0; i < participants; i++ {
		n := string(rune('0' + i))
		p := models.Participant{
			TripID:        f.trip.ID,
			Name:          "Peserta " + n,
			Phone:         "0812000000" + n,
			LoginUsername: ptr("user" + n),
			CheckinToken:  ptr("card-" + n),
		}
		c.Assert(db.Create(&p).Error, qt.IsNil)
		f.participants = append(f.participants, p)
	}

	f.badges = NewBadgeService(db, clk, nil, nil)
	f.progress = NewProgressService(db, nil)
	f.checkIn = NewCheckInService(db, clk,
		NewMembershipService(db, "62"),
		NewSettingsService(db),
		f.badges, f.progress, nil,
		CheckInConfig{
			QRSecret:   []byte("test-secret"),
			QRTTL:      60 * time.Second,
			CardPrefix: "TW-CHECKIN:",
			Location:   time.FixedZone("WIB", 7*3600),
			Locale:     "id",
		},
	)
	return f
}

// member returns the gateway identity of participant i.
func (f *fixture) member(i int) Identity {
	return Identity{UserID: "u-" + f.participants[i].ID, Role: "participant", Username: *f.participants[i].LoginUsername}
}

func (f *fixture) addBadge(c *qt.C, condition string, sessionID *string, target int) models.BadgeDefinition {
	b := models.BadgeDefinition{
		TripID:        f.trip.ID,
		Name:          condition + " badge",
		ConditionType: condition,
		SessionID:     sessionID,
		TargetValue:   target,
		IsActive:      true,
	}
	c.Assert(f.db.Create(&b).Error, qt.IsNil)
	return b
}

func (f *fixture) reloadParticipant(c *qt.C, id string) models.Participant {
	var p models.Participant
	c.Assert(f.db.Where("id = ?", id).Take(&p).Error, qt.IsNil)
	return p
}

func (f *fixture) tripStatus(c *qt.C) string {
	var t models.Trip
	c.Assert(f.db.Where("id = ?", f.trip.ID).Take(&t).Error, qt.IsNil)
	return t.Status
}

func countRows(c *qt.C, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	var n int64
	c.Assert(db.Model(model).Where(query, args...).Count(&n).Error, qt.IsNil)
	return n
}
