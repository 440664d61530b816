package modes

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/chatsync/internal/models"
)

var t0 = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func TestBeginAIToggleRefusesWhileInFlight(t *testing.T) {
	a := NewArbiter()
	a.ApplyAIStatus(models.AIModeStatus{ConversationID: "c1", Active: true, CanToggle: true})

	desired, err := a.BeginAIToggle("c1")
	require.NoError(t, err)
	require.False(t, desired)
	require.True(t, a.AIToggleInFlight("c1"))

	_, err = a.BeginAIToggle("c1")
	require.ErrorIs(t, err, ErrToggleInFlight)

	a.EndAIToggle("c1", fn.Some(models.AIModeStatus{Active: false, CanToggle: true}))
	require.False(t, a.AIToggleInFlight("c1"))
	status := a.AIStatus("c1").UnwrapOr(models.AIModeStatus{})
	require.False(t, status.Active)
	require.Equal(t, "c1", status.ConversationID)

	desired, err = a.BeginAIToggle("c1")
	require.NoError(t, err)
	require.True(t, desired)
}

func TestBeginAIToggleNotAllowedCarriesReason(t *testing.T) {
	a := NewArbiter()
	a.ApplyAIStatus(models.AIModeStatus{ConversationID: "g1", IsGroup: true, CanToggle: false, Reason: "Groups are human-only"})

	_, err := a.BeginAIToggle("g1")
	require.ErrorIs(t, err, ErrToggleNotAllowed)
	require.Contains(t, err.Error(), "Groups are human-only")
	require.False(t, a.AIToggleInFlight("g1"))

	_, err = a.BeginAIToggle("unknown")
	require.ErrorIs(t, err, ErrToggleNotAllowed)
}

func TestFailedAIToggleKeepsStatus(t *testing.T) {
	a := NewArbiter()
	a.ApplyAIStatus(models.AIModeStatus{ConversationID: "c1", Active: true, CanToggle: true})
	_, err := a.BeginAIToggle("c1")
	require.NoError(t, err)

	a.EndAIToggle("c1", fn.None[models.AIModeStatus]())
	require.True(t, a.AIStatus("c1").UnwrapOr(models.AIModeStatus{}).Active)
}

func TestInterventionToggleSendsDisplayedState(t *testing.T) {
	a := NewArbiter()
	pre, err := a.BeginInterventionToggle("c1")
	require.NoError(t, err)
	require.False(t, pre)

	_, err = a.BeginInterventionToggle("c1")
	require.ErrorIs(t, err, ErrToggleInFlight)

	// The intent alone never changes local state.
	require.False(t, a.Intervention("c1", t0).Active)

	a.EndInterventionToggle("c1", fn.Some(models.InterventionState{Active: true, Manual: true, AsOf: t0}))
	state := a.Intervention("c1", t0.Add(time.Hour))
	require.True(t, state.Active)
	require.True(t, state.Manual)
	require.Equal(t, time.Duration(0), state.Remaining)

	pre, err = a.BeginInterventionToggle("c1")
	require.NoError(t, err)
	require.True(t, pre)
}

func TestTemporaryInterventionCountsDownAndExpires(t *testing.T) {
	a := NewArbiter()
	a.ApplyIntervention(models.InterventionState{ConversationID: "c1", Active: true, Remaining: 90 * time.Second, AsOf: t0})
	a.ApplyIntervention(models.InterventionState{ConversationID: "c2", Active: true, Manual: true, AsOf: t0})

	require.Equal(t, 60*time.Second, a.InterventionRemaining("c1", t0.Add(30*time.Second)))
	require.Empty(t, a.Tick(t0.Add(89*time.Second)))

	expired := a.Tick(t0.Add(90 * time.Second))
	require.Equal(t, []string{"c1"}, expired)
	require.False(t, a.Intervention("c1", t0.Add(91*time.Second)).Active)
	require.True(t, a.Intervention("c2", t0.Add(91*time.Second)).Active)
	require.Equal(t, time.Duration(0), a.InterventionRemaining("c1", t0.Add(2*time.Hour)))

	require.Empty(t, a.Tick(t0.Add(2*time.Minute)))
}

func TestElapsedTemporaryInterventionWaitsForHost(t *testing.T) {
	a := NewArbiter()
	a.ApplyIntervention(models.InterventionState{ConversationID: "c1", Active: true, AsOf: t0})

	for i := 1; i <= 5; i++ {
		require.Empty(t, a.Tick(t0.Add(time.Duration(i)*time.Second)))
	}
	v := a.Intervention("c1", t0.Add(5*time.Second))
	require.True(t, v.Active)
	require.Zero(t, v.Remaining)

	a.ApplyIntervention(models.InterventionState{ConversationID: "c1", AsOf: t0.Add(6 * time.Second)})
	require.False(t, a.Intervention("c1", t0.Add(6*time.Second)).Active)
}

func TestForgetDropsModes(t *testing.T) {
	a := NewArbiter()
	a.ApplyAIStatus(models.AIModeStatus{ConversationID: "c1", Active: true, CanToggle: true})
	a.ApplyIntervention(models.InterventionState{ConversationID: "c1", Active: true, Manual: true, AsOf: t0})

	a.Forget("c1")
	require.True(t, a.AIStatus("c1").IsNone())
	require.False(t, a.Intervention("c1", t0).Active)
}

func TestApplyAllInterventionsDeactivatesMissing(t *testing.T) {
	a := NewArbiter()
	a.ApplyIntervention(models.InterventionState{ConversationID: "c1", Active: true, Manual: true, AsOf: t0})
	a.ApplyAllInterventions([]models.InterventionState{{ConversationID: "c2", Active: true, Manual: true}}, t0)

	require.False(t, a.Intervention("c1", t0).Active)
	require.True(t, a.Intervention("c2", t0).Active)
}
