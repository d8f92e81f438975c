package events

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/tank-controller/internal/model"
)

func TestNew_FillsIdentityAndSnapshot(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.MustParse("6f1c2a52-5f0e-4a4e-9d55-2f4c3c1a7e01")
	oldNow, oldID := now, newID
	now = func() time.Time { return fixed }
	newID = func() uuid.UUID { return id }
	defer func() { now, newID = oldNow, oldID }()

	e := New(PumpRunPulse, "pump", Snapshot{Level: 19, Running: true, Limits: model.DefaultLimits()})

	assert.Equal(t, id, e.ID)
	assert.Equal(t, fixed, e.Time)
	assert.Equal(t, PumpRunPulse, e.Kind)
	assert.Equal(t, 19, e.Level)
	assert.True(t, e.Running)
	assert.Equal(t, model.Limits{MinPercent: 20, MaxPercent: 50}, e.Limits)
	assert.Equal(t, "pump", e.Source)
}

func TestNew_UniqueIDs(t *testing.T) {
	a := New(LimitsReset, "button", Snapshot{})
	b := New(LimitsReset, "button", Snapshot{})
	assert.NotEqual(t, a.ID, b.ID)
}

func TestFanout_ContinuesPastFailures(t *testing.T) {
	first := &Memory{}
	last := &Memory{}
	f := NewFanout().
		Add("first", first).
		Add("broken", RecorderFunc(func(Event) error { return errors.New("disk full") })).
		Add("last", last)

	require.NoError(t, f.Record(New(PumpOverride, "api", Snapshot{})))

	assert.Equal(t, []Kind{PumpOverride}, first.Kinds())
	assert.Equal(t, []Kind{PumpOverride}, last.Kinds())
}

func TestFanout_NilIsNoop(t *testing.T) {
	var f *Fanout
	assert.NoError(t, f.Record(Event{}))
}
