package services

import (
	"context"
	"sync"
	"testing"

	"tripwise-backend/models"

	qt "github.com/frankban/quicktest"
)

func TestCompletionBadgeUnlocksOnce(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, 2, 1)
	badge := f.addBadge(c, models.BadgeCompleteAllSessions, nil, 0)
	p := f.participants[0]
	for _, s := range f.sessions {
		_, _, err := AttendanceLedger{}.Record(f.db, Entry{TripID: f.trip.ID, SessionID: s.ID, ParticipantID: p.ID, Method: models.MethodAdmin, At: startTime})
		c.Assert(err, qt.IsNil)
	}

	first, err := f.badges.EvaluateCompletionBadges(ctx, f.trip.ID, p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(first, qt.HasLen, 1)
	c.Assert(first[0].ID, qt.Equals, badge.ID)

	second, err := f.badges.EvaluateCompletionBadges(ctx, f.trip.ID, p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(second, qt.HasLen, 0)
	c.Assert(countRows(c, f.db, &models.ParticipantBadge{}, "participant_id = ?", p.ID), qt.Equals, int64(1))
}

func TestCompletionBadgeNeedsSessions(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, 0, 1)
	f.addBadge(c, models.BadgeCompleteAllSessions, nil, 0)

	got, err := f.badges.EvaluateCompletionBadges(ctx, f.trip.ID, f.participants[0].ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 0)
}

func TestConcurrentEvaluationUnlocksOnce(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, 1, 1)
	badge := f.addBadge(c, models.BadgeCheckinSession, &f.sessions[0].ID, 1)
	p := f.participants[0]
	_, _, err := AttendanceLedger{}.Record(f.db, Entry{TripID: f.trip.ID, SessionID: f.sessions[0].ID, ParticipantID: p.ID, Method: models.MethodQR, At: startTime})
	c.Assert(err, qt.IsNil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		unlocked int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.badges.EvaluateSessionBadges(ctx, f.trip.ID, f.sessions[0].ID, p.ID)
			c.Check(err, qt.IsNil)
			mu.Lock()
			unlocked += len(got)
			mu.Unlock()
		}()
	}
	wg.Wait()
	c.Assert(unlocked, qt.Equals, 1)
	c.Assert(countRows(c, f.db, &models.ParticipantBadge{}, "badge_id = ?", badge.ID), qt.Equals, int64(1))
}

func TestSessionBadgeRequiresAttendance(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, 1, 1)
	f.addBadge(c, models.BadgeCheckinSession, &f.sessions[0].ID, 1)

	got, err := f.badges.EvaluateSessionBadges(ctx, f.trip.ID, f.sessions[0].ID, f.participants[0].ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 0)
}

type fakeGallery map[string]int64

func (g fakeGallery) ApprovedCount(_ context.Context, participantID, sessionID string) (int64, error) {
	return g[participantID+"/"+sessionID], nil
}

func TestGalleryBadgeTarget(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, 1, 1)
	p, s := f.participants[0], f.sessions[0]
	badge := f.addBadge(c, models.BadgeGalleryUploadSession, &s.ID, 2)

	gallery := fakeGallery{p.ID + "/" + s.ID: 1}
	f.badges.Gallery = gallery
	got, err := f.badges.EvaluateGalleryBadges(ctx, f.trip.ID, s.ID, p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 0)

	gallery[p.ID+"/"+s.ID] = 2
	got, err = f.badges.EvaluateGalleryBadges(ctx, f.trip.ID, s.ID, p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 1)
	c.Assert(got[0].ID, qt.Equals, badge.ID)
}

func TestDBGalleryCounterCountsApproved(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, 1, 1)
	p, s := f.participants[0], f.sessions[0]
	for i, status := range []string{models.GalleryApproved, "PENDING", models.GalleryApproved, "REJECTED"} {
		photo := models.GalleryPhoto{ID: string(rune('a' + i)), TripID: f.trip.ID, SessionID: s.ID, ParticipantID: p.ID, Status: status}
		c.Assert(f.db.Create(&photo).Error, qt.IsNil)
	}
	n, err := DBGalleryCounter{DB: f.db}.ApprovedCount(ctx, p.ID, s.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(2))
}

func TestInactiveBadgesAreNotUnlocked(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, 1, 1)
	p, s := f.participants[0], f.sessions[0]
	badge := f.addBadge(c, models.BadgeCheckinSession, &s.ID, 1)
	c.Assert(f.db.Model(&badge).Update("is_active", false).Error, qt.IsNil)

	_, _, err := AttendanceLedger{}.Record(f.db, Entry{TripID: f.trip.ID, SessionID: s.ID, ParticipantID: p.ID, Method: models.MethodQR, At: startTime})
	c.Assert(err, qt.IsNil)
	got, err := f.badges.EvaluateSessionBadges(ctx, f.trip.ID, s.ID, p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 0)
}

func TestListParticipantBadgesKeepsDeactivated(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, 1, 1)
	p, s := f.participants[0], f.sessions[0]
	badge := f.addBadge(c, models.BadgeCheckinSession, &s.ID, 1)
	_, _, err := AttendanceLedger{}.Record(f.db, Entry{TripID: f.trip.ID, SessionID: s.ID, ParticipantID: p.ID, Method: models.MethodQR, At: startTime})
	c.Assert(err, qt.IsNil)
	_, err = f.badges.EvaluateSessionBadges(ctx, f.trip.ID, s.ID, p.ID)
	c.Assert(err, qt.IsNil)

	c.Assert(f.db.Model(&badge).Update("is_active", false).Error, qt.IsNil)
	shelf, err := f.badges.ListParticipantBadges(ctx, f.trip.ID, p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(shelf, qt.HasLen, 1)
	c.Assert(shelf[0].BadgeID, qt.Equals, badge.ID)
	c.Assert(shelf[0].IsActive, qt.IsFalse)
}

func TestMergeUnlocked(t *testing.T) {
	c := qt.New(t)
	a := models.BadgeDefinition{ID: "a"}
	b := models.BadgeDefinition{ID: "b"}
	got := MergeUnlocked([]models.BadgeDefinition{a, b}, nil, []models.BadgeDefinition{b, a, {ID: "c"}})
	c.Assert(got, qt.HasLen, 3)
	c.Assert([]string{got[0].ID, got[1].ID, got[2].ID}, qt.DeepEquals, []string{"a", "b", "c"})
	c.Assert(MergeUnlocked(), qt.HasLen, 0)
}
