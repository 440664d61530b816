package followup

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/chatsync/internal/models"
)

var t0 = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func check(conv string, at time.Time) fn.Option[models.EligibilityCheck] {
	return fn.Some(models.EligibilityCheck{ConversationID: conv, CheckAt: at})
}

func fu(id string, at time.Time) models.FollowUp {
	return models.FollowUp{ID: id, ConversationID: "c1", ScheduledAt: at, Text: "ping " + id}
}

func TestRemainingNeverNegative(t *testing.T) {
	require.Equal(t, 5*time.Second, Remaining(t0.Add(5*time.Second), t0))
	require.Equal(t, time.Duration(0), Remaining(t0, t0))
	require.Equal(t, time.Duration(0), Remaining(t0.Add(-time.Hour), t0))
}

func TestCheckPendingToScheduledDiscardsCheck(t *testing.T) {
	s := NewSchedule("c1")
	require.Equal(t, StateNone, s.State())

	s.ApplyCheck(check("c1", t0.Add(time.Minute)), t0)
	require.Equal(t, StateCheckPending, s.State())

	s.ApplySnapshot([]models.FollowUp{fu("f1", t0.Add(time.Hour))}, t0)
	require.Equal(t, StateScheduled, s.State())
	require.True(t, s.Check().IsNone())

	// A second follow-up while scheduled keeps the check discarded.
	s.ApplySnapshot([]models.FollowUp{fu("f1", t0.Add(time.Hour)), fu("f2", t0.Add(30*time.Minute))}, t0)
	require.Equal(t, StateScheduled, s.State())
	require.True(t, s.Check().IsNone())
	require.Equal(t, "f2", s.Next().UnwrapOr(models.FollowUp{}).ID)

	// A late check pull cannot resurrect the check.
	s.ApplyCheck(check("c1", t0.Add(time.Minute)), t0)
	require.True(t, s.Check().IsNone())
}

func TestCancellingLastFollowUpReturnsToNone(t *testing.T) {
	s := NewSchedule("c1")
	s.ApplySnapshot([]models.FollowUp{fu("f1", t0.Add(time.Hour)), fu("f2", t0.Add(2*time.Hour))}, t0)

	s.ApplySnapshot([]models.FollowUp{fu("f2", t0.Add(2*time.Hour))}, t0)
	require.Equal(t, StateScheduled, s.State())

	s.ApplySnapshot(nil, t0)
	require.Equal(t, StateNone, s.State())
}

func TestHostReportsNoCheck(t *testing.T) {
	s := NewSchedule("c1")
	s.ApplyCheck(check("c1", t0.Add(time.Minute)), t0)
	s.ApplyCheck(fn.None[models.EligibilityCheck](), t0)
	require.Equal(t, StateNone, s.State())
}

func TestEntriesOrderedWithIndexTotal(t *testing.T) {
	s := NewSchedule("c1")
	s.ApplySnapshot([]models.FollowUp{
		fu("late", t0.Add(3*time.Hour)),
		fu("early", t0.Add(time.Hour)),
		fu("mid", t0.Add(2*time.Hour)),
	}, t0)

	entries := s.Entries(t0.Add(30 * time.Minute))
	require.Len(t, entries, 3)
	require.Equal(t, "early", entries[0].FollowUp.ID)
	require.Equal(t, 1, entries[0].Index)
	require.Equal(t, 3, entries[2].Total)
	require.Equal(t, 30*time.Minute, entries[0].Remaining)
}

func TestTickExpiresCheckAfterGrace(t *testing.T) {
	s := NewSchedule("c1")
	s.ApplyCheck(check("c1", t0.Add(10*time.Second)), t0)

	res := s.Tick(t0.Add(10*time.Second), time.Second)
	require.False(t, res.Changed())
	require.Equal(t, StateCheckPending, s.State())
	require.Equal(t, time.Duration(0), s.CheckRemaining(t0.Add(10*time.Second)))

	res = s.Tick(t0.Add(12*time.Second), time.Second)
	require.True(t, res.CheckExpired)
	require.True(t, res.Repull)
	require.Equal(t, StateNone, s.State())
}

func TestHostPullOverridesLocalCheckExpiry(t *testing.T) {
	s := NewSchedule("c1")
	s.ApplyCheck(check("c1", t0), t0.Add(5*time.Second))

	res := s.Tick(t0.Add(10*time.Second), time.Second)
	require.False(t, res.CheckExpired)
	require.Equal(t, StateCheckPending, s.State())
}

func TestTickFollowUpDueRequestsOneRepullThenRemoves(t *testing.T) {
	s := NewSchedule("c1")
	s.ApplySnapshot([]models.FollowUp{fu("f1", t0.Add(5*time.Second))}, t0)

	res := s.Tick(t0.Add(5*time.Second), time.Second)
	require.True(t, res.Repull)
	require.Empty(t, res.Removed)
	require.Equal(t, StateScheduled, s.State())

	res = s.Tick(t0.Add(5500*time.Millisecond), time.Second)
	require.False(t, res.Changed())

	res = s.Tick(t0.Add(7*time.Second), time.Second)
	require.Equal(t, []string{"f1"}, res.Removed)
	require.Equal(t, StateNone, s.State())
}

func TestTickKeepsFollowUpWithCommandInFlight(t *testing.T) {
	s := NewSchedule("c1")
	s.ApplySnapshot([]models.FollowUp{fu("f1", t0.Add(time.Second))}, t0)
	s.BeginCommand("f1")

	res := s.Tick(t0.Add(time.Minute), time.Second)
	require.Empty(t, res.Removed)
	require.True(t, s.Entries(t0)[0].InFlight)

	s.EndCommand("f1")
	res = s.Tick(t0.Add(time.Minute), time.Second)
	require.Equal(t, []string{"f1"}, res.Removed)
}

func TestSnapshotHeldFollowUpIsNotRemovedLocally(t *testing.T) {
	s := NewSchedule("c1")
	s.ApplySnapshot([]models.FollowUp{fu("f1", t0)}, t0.Add(10*time.Second))

	res := s.Tick(t0.Add(20*time.Second), time.Second)
	require.True(t, res.Repull)
	require.Empty(t, res.Removed)
	require.Equal(t, StateScheduled, s.State())
}

func TestClearCheckForManualCheck(t *testing.T) {
	s := NewSchedule("c1")
	s.ApplyCheck(check("c1", t0.Add(time.Minute)), t0)
	s.ClearCheck()
	require.Equal(t, StateNone, s.State())
}
