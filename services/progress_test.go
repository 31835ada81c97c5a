package services

import (
	"testing"

	"tripwise-backend/models"

	qt "github.com/frankban/quicktest"
)

func recordAll(c *qt.C, f *fixture, participant models.Participant) {
	for _, s := range f.sessions {
		_, _, err := AttendanceLedger{}.Record(f.db, Entry{TripID: f.trip.ID, SessionID: s.ID, ParticipantID: participant.ID, Method: models.MethodAdmin, At: startTime})
		c.Assert(err, qt.IsNil)
	}
}

func TestTripCompletionNeedsEveryParticipant(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, 2, 2)

	recordAll(c, f, f.participants[0])
	done, err := f.progress.CheckTripCompletion(ctx, f.trip.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(done, qt.IsFalse)
	c.Assert(f.tripStatus(c), qt.Equals, models.TripStatusOngoing)

	recordAll(c, f, f.participants[1])
	done, err = f.progress.CheckTripCompletion(ctx, f.trip.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(done, qt.IsTrue)
	c.Assert(f.tripStatus(c), qt.Equals, models.TripStatusCompleted)
}

func TestTripCompletionIgnoresSessionFlags(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, 1, 1)
	extra := models.Session{TripID: f.trip.ID, Title: "Tambahan", IsAdditional: true, IsChanged: true}
	c.Assert(f.db.Create(&extra).Error, qt.IsNil)
	f.sessions = append(f.sessions, extra)

	_, _, err := AttendanceLedger{}.Record(f.db, Entry{TripID: f.trip.ID, SessionID: f.sessions[0].ID, ParticipantID: f.participants[0].ID, Method: models.MethodQR, At: startTime})
	c.Assert(err, qt.IsNil)
	done, err := f.progress.CheckTripCompletion(ctx, f.trip.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(done, qt.IsFalse)
}

func TestTripCompletionEmptyTripIsNoop(t *testing.T) {
	c := qt.New(t)

	noSessions := newFixture(c, 0, 2)
	done, err := noSessions.progress.CheckTripCompletion(ctx, noSessions.trip.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(done, qt.IsFalse)
	c.Assert(noSessions.tripStatus(c), qt.Equals, models.TripStatusOngoing)

	noParticipants := newFixture(c, 2, 0)
	done, err = noParticipants.progress.CheckTripCompletion(ctx, noParticipants.trip.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(done, qt.IsFalse)
	c.Assert(noParticipants.tripStatus(c), qt.Equals, models.TripStatusOngoing)
}

func TestTripCompletionIsMonotonic(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, 1, 1)
	recordAll(c, f, f.participants[0])
	done, err := f.progress.CheckTripCompletion(ctx, f.trip.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(done, qt.IsTrue)

	// A session added later does not reopen the trip.
	late := models.Session{TripID: f.trip.ID, Title: "Sesi tambahan"}
	c.Assert(f.db.Create(&late).Error, qt.IsNil)
	done, err = f.progress.CheckTripCompletion(ctx, f.trip.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(done, qt.IsFalse)
	c.Assert(f.tripStatus(c), qt.Equals, models.TripStatusCompleted)
}
