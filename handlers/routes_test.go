package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tripwise-backend/middleware"
	"tripwise-backend/models"
	"tripwise-backend/services"
	"tripwise-backend/workers"

	qt "github.com/frankban/quicktest"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubDispatcher struct {
	err error
}

func (s stubDispatcher) RunOnce(context.Context) (*workers.DispatchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &workers.DispatchResult{Processed: 3, Success: 2, Failed: 1}, nil
}

type testEnv struct {
	app     *fiber.App
	db      *gorm.DB
	trip    models.Trip
	session models.Session
	member  models.Participant
}

func newTestEnv(c *qt.C, dispatcher DispatchRunner) *testEnv {
	db, err := gorm.Open(sqlite.Open(filepath.Join(c.TempDir(), "routes.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	c.Assert(err, qt.IsNil)
	sqlDB, err := db.DB()
	c.Assert(err, qt.IsNil)
	sqlDB.SetMaxOpenConns(1)
	c.Cleanup(func() { sqlDB.Close() })
	c.Assert(models.AutoMigrate(db), qt.IsNil)

	env := &testEnv{db: db}
	env.trip = models.Trip{Name: "Komodo"}
	c.Assert(db.Create(&env.trip).Error, qt.IsNil)
	lat, lon := -8.55, 119.50
	env.session = models.Session{TripID: env.trip.ID, Title: "Padar", Location: "Pulau Padar", Latitude: &lat, Longitude: &lon}
	c.Assert(db.Create(&env.session).Error, qt.IsNil)
	username := "rina"
	env.member = models.Participant{TripID: env.trip.ID, Name: "Rina", Phone: "081234567890", LoginUsername: &username}
	c.Assert(db.Create(&env.member).Error, qt.IsNil)

	clk := testclock.NewClock(time.Date(2026, time.October, 19, 1, 0, 0, 0, time.UTC))
	members := services.NewMembershipService(db, "62")
	badges := services.NewBadgeService(db, clk, nil, nil)
	checkIn := services.NewCheckInService(db, clk, members, services.NewSettingsService(db), badges,
		services.NewProgressService(db, nil), nil, services.CheckInConfig{
			QRSecret:   []byte("secret"),
			QRTTL:      time.Minute,
			CardPrefix: "TW-CHECKIN:",
			Locale:     "id",
		})
	queue := services.NewNotificationQueue(db, nil, nil)

	app := fiber.New()
	app.Use(middleware.GatewayAuthMiddleware("gw"))
	secured := app.Group("/s", middleware.UserContextMiddleware())
	admin := secured.Group("/admin", middleware.RequireAdmin())
	SetupCheckInRoutes(secured, admin, checkIn)
	SetupBadgeRoutes(secured, admin, badges, members)
	SetupNotificationRoutes(admin, queue, dispatcher)
	env.app = app
	return env
}

func (e *testEnv) do(c *qt.C, method, path, role, body string) (int, map[string]interface{}) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer gw")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-rina")
	req.Header.Set("X-User-Name", "rina")
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	resp, err := e.app.Test(req, -1)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	if len(raw) > 0 {
		c.Assert(json.Unmarshal(raw, &out), qt.IsNil, qt.Commentf("body %s", raw))
	}
	return resp.StatusCode, out
}

func TestGeoCheckInOutsideRadiusPayload(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, stubDispatcher{})

	body := `{"trip_id":"` + env.trip.ID + `","session_id":"` + env.session.ID + `","latitude":-8.545503,"longitude":119.5}`
	status, out := env.do(c, "POST", "/s/checkin/geo", "participant", body)
	c.Assert(status, qt.Equals, fiber.StatusBadRequest)
	c.Assert(out["maxDistance"], qt.Equals, 200.0)
	c.Assert(out["distance"], qt.Equals, 500.0)
	c.Assert(out["error"], qt.Matches, `you are 500 m from Pulau Padar.*`)
}

func TestGeoCheckInSuccess(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, stubDispatcher{})

	body := `{"trip_id":"` + env.trip.ID + `","session_id":"` + env.session.ID + `","latitude":-8.5501,"longitude":119.5001}`
	status, out := env.do(c, "POST", "/s/checkin/geo", "participant", body)
	c.Assert(status, qt.Equals, fiber.StatusOK)
	c.Assert(out["already_checked_in"], qt.Equals, false)
	record := out["record"].(map[string]interface{})
	c.Assert(record["method"], qt.Equals, models.MethodGeo)
}

func TestGeoCheckInValidation(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, stubDispatcher{})

	status, out := env.do(c, "POST", "/s/checkin/geo", "participant", `{"trip_id":"t","session_id":"s","latitude":123}`)
	c.Assert(status, qt.Equals, fiber.StatusBadRequest)
	c.Assert(out["error"], qt.Equals, "validation failed")
	fields := out["fields"].(map[string]interface{})
	c.Assert(fields["Latitude"], qt.Equals, "latitude")
	c.Assert(fields["Longitude"], qt.Equals, "required")
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, stubDispatcher{})

	path := "/s/admin/trips/" + env.trip.ID + "/sessions/" + env.session.ID + "/qr"
	status, _ := env.do(c, "POST", path, "participant", "")
	c.Assert(status, qt.Equals, fiber.StatusForbidden)

	status, out := env.do(c, "POST", path, "admin", "")
	c.Assert(status, qt.Equals, fiber.StatusCreated)
	c.Assert(out["token"], qt.Not(qt.Equals), "")

	status, out = env.do(c, "POST", "/s/checkin/qr", "participant", `{"token":"`+out["token"].(string)+`"}`)
	c.Assert(status, qt.Equals, fiber.StatusOK)
	c.Assert(out["record"].(map[string]interface{})["method"], qt.Equals, models.MethodQR)
}

func TestManualCheckInUnknownParticipant(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, stubDispatcher{})

	body := `{"trip_id":"` + env.trip.ID + `","session_id":"` + env.session.ID + `","participant_id":"ghost"}`
	status, _ := env.do(c, "POST", "/s/admin/checkin/manual", "admin", body)
	c.Assert(status, qt.Equals, fiber.StatusNotFound)
}

func TestDispatchEndpoint(t *testing.T) {
	c := qt.New(t)

	env := newTestEnv(c, stubDispatcher{})
	status, out := env.do(c, "POST", "/s/admin/notifications/dispatch", "admin", "")
	c.Assert(status, qt.Equals, fiber.StatusOK)
	c.Assert(out, qt.DeepEquals, map[string]interface{}{"processed": 3.0, "success": 2.0, "failed": 1.0})

	env = newTestEnv(c, stubDispatcher{err: errors.NotProvisionedf("WhatsApp API URL or key")})
	status, out = env.do(c, "POST", "/s/admin/notifications/dispatch", "admin", "")
	c.Assert(status, qt.Equals, fiber.StatusInternalServerError)
	c.Assert(out["error"], qt.Equals, "notification provider is not configured")
}

func TestCredentialRoute(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, stubDispatcher{})

	path := "/s/admin/trips/" + env.trip.ID + "/participants/" + env.member.ID + "/credentials"
	body := `{"username":"rina","password":"pw","login_url":"https://trip.example/login"}`
	status, out := env.do(c, "POST", path, "admin", body)
	c.Assert(status, qt.Equals, fiber.StatusCreated)
	c.Assert(out["status"], qt.Equals, services.CredentialQueued)

	status, out = env.do(c, "POST", path, "admin", body)
	c.Assert(status, qt.Equals, fiber.StatusOK)
	c.Assert(out["status"], qt.Equals, services.CredentialAlreadySent)
}

func TestBadgeShelf(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, stubDispatcher{})

	status, out := env.do(c, "GET", "/s/trips/"+env.trip.ID+"/badges/me", "participant", "")
	c.Assert(status, qt.Equals, fiber.StatusOK)
	c.Assert(out["participant_id"], qt.Equals, env.member.ID)
}
