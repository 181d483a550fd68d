package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordingSinkCapturesCallOrder(t *testing.T) {
	s := NewRecordingSink()

	s.StageTransition("run-1", Transition{Stage: StageStatic, Status: StatusActive})
	s.Progress("run-1", Progress{Percent: 50, Status: "scanning"})
	s.Counts("run-1", Counts{Static: 3, Dynamic: 1})
	s.StageTransition("run-1", Transition{Stage: StageStatic, Status: StatusCompleted})

	require.Equal(t, []Transition{
		{Stage: StageStatic, Status: StatusActive},
		{Stage: StageStatic, Status: StatusCompleted},
	}, s.Transitions)
	require.Equal(t, []Progress{{Percent: 50, Status: "scanning"}}, s.Progresses)
	require.Equal(t, []Counts{{Static: 3, Dynamic: 1}}, s.AllCounts)
}

func TestNoOpSinkNeverPanics(t *testing.T) {
	var s Sink = NoOpSink{}
	s.Progress("run-1", Progress{Percent: 10})
	s.StageTransition("run-1", Transition{Stage: StageScan, Status: StatusActive})
	s.Counts("run-1", Counts{})
}

func TestPointAttachDetachAndDisable(t *testing.T) {
	p := NewPoint[Sink]()
	require.False(t, p.HasAttached())

	rec := NewRecordingSink()
	p.Attach(rec)
	require.True(t, p.HasAttached())
	require.True(t, p.HasAttachedAndEnabled())
	p.First().Progress("run-1", Progress{Percent: 1})
	require.Len(t, rec.Progresses, 1)

	p.SetEnabled(false)
	require.False(t, p.HasAttachedAndEnabled())
	require.Nil(t, p.First())

	p.SetEnabled(true)
	p.Detach()
	require.False(t, p.HasAttached())
	require.Nil(t, p.First())
}
