package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncecere-raito/scrapeengine/internal/model"
)

var errBoom = errors.New("boom")

func TestOpensAfterThresholdExceededWithMinRequests(t *testing.T) {
	b := New("dep", Options{ErrorThresholdPct: 50, MinRequests: 4, ResetTimeout: time.Minute}, zerolog.Nop())

	for i := 0; i < 4; i++ {
		_ = b.Execute(context.Background(), func(context.Context) error { return errBoom })
	}
	assert.Equal(t, model.BreakerOpen, b.State())
}

func TestOpenRejectsWithoutInvokingFn(t *testing.T) {
	b := New("dep", Options{ErrorThresholdPct: 1, MinRequests: 1, ResetTimeout: time.Minute}, zerolog.Nop())
	_ = b.Execute(context.Background(), func(context.Context) error { return errBoom })
	require.Equal(t, model.BreakerOpen, b.State())

	called := false
	err := b.Execute(context.Background(), func(context.Context) error { called = true; return nil })
	assert.Equal(t, ErrOpen, err)
	assert.False(t, called)
}

func TestHalfOpenAdmitsOneProbeAfterResetTimeoutAndClosesOnSuccess(t *testing.T) {
	b := New("dep", Options{ErrorThresholdPct: 1, MinRequests: 1, ResetTimeout: 10 * time.Millisecond}, zerolog.Nop())
	_ = b.Execute(context.Background(), func(context.Context) error { return errBoom })
	require.Equal(t, model.BreakerOpen, b.State())

	time.Sleep(15 * time.Millisecond)

	err := b.Execute(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, model.BreakerClosed, b.State())
}

func TestHalfOpenReopensOnProbeFailure(t *testing.T) {
	b := New("dep", Options{ErrorThresholdPct: 1, MinRequests: 1, ResetTimeout: 10 * time.Millisecond}, zerolog.Nop())
	_ = b.Execute(context.Background(), func(context.Context) error { return errBoom })
	time.Sleep(15 * time.Millisecond)

	err := b.Execute(context.Background(), func(context.Context) error { return errBoom })
	assert.Equal(t, errBoom, err)
	assert.Equal(t, model.BreakerOpen, b.State())
}

func TestRegistryReusesBreakerPerDependency(t *testing.T) {
	r := NewRegistry(Options{ErrorThresholdPct: 50, MinRequests: 2, ResetTimeout: time.Minute}, zerolog.Nop())
	a := r.Get("svc")
	b := r.Get("svc")
	assert.Same(t, a, b)
}

func TestTransitionListenerIsNotified(t *testing.T) {
	b := New("dep", Options{ErrorThresholdPct: 1, MinRequests: 1, ResetTimeout: time.Minute}, zerolog.Nop())
	var got []Transition
	b.OnTransition(func(tr Transition) { got = append(got, tr) })

	_ = b.Execute(context.Background(), func(context.Context) error { return errBoom })
	require.Len(t, got, 1)
	assert.Equal(t, model.BreakerClosed, got[0].From)
	assert.Equal(t, model.BreakerOpen, got[0].To)
}
