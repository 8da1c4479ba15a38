package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/athletics-notify/internal/delivery"
	"github.com/albapepper/athletics-notify/internal/eligibility"
)

func newTestScheduler(t *testing.T, now time.Time, runs *atomic.Int32) *Scheduler {
	t.Helper()
	s, err := New(Options{
		Location: time.UTC,
		Quiet:    eligibility.DefaultQuietHours,
		Clock:    func() time.Time { return now },
		Run: func(_ context.Context, trigger string) delivery.PassResult {
			runs.Add(1)
			return delivery.PassResult{Trigger: trigger, Delivered: 3}
		},
	})
	require.NoError(t, err)
	return s
}

func TestTrigger_RunsOutsideQuietHours(t *testing.T) {
	var runs atomic.Int32
	s := newTestScheduler(t, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), &runs)

	res, ran := s.Trigger(context.Background(), delivery.TriggerScheduled)
	assert.True(t, ran)
	assert.Equal(t, delivery.TriggerScheduled, res.Trigger)
	assert.Equal(t, 3, res.Delivered)
	assert.Equal(t, int32(1), runs.Load())
}

func TestTrigger_SuppressedDuringQuietHours(t *testing.T) {
	var runs atomic.Int32
	s := newTestScheduler(t, time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC), &runs)

	_, ran := s.Trigger(context.Background(), delivery.TriggerScheduled)
	assert.False(t, ran)
	assert.Equal(t, int32(0), runs.Load())

	// Manual runs ignore quiet hours.
	res := s.RunManual(context.Background())
	assert.Equal(t, delivery.TriggerManual, res.Trigger)
	assert.Equal(t, int32(1), runs.Load())
}

func TestNext_IsTopOfHour(t *testing.T) {
	var runs atomic.Int32
	s := newTestScheduler(t, time.Date(2026, 10, 15, 9, 17, 0, 0, time.UTC), &runs)
	assert.Equal(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC), s.Next())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Spec: "every tuesday", Run: func(context.Context, string) delivery.PassResult {
		return delivery.PassResult{}
	}})
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	var runs atomic.Int32
	s := newTestScheduler(t, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), &runs)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
