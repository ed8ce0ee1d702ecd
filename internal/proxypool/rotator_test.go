package proxypool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRotatorFixture(t *testing.T, cfg RotatorConfig) (*Rotator, *Registry, *scriptedValidator) {
	t.Helper()
	v := newScriptedValidator()
	v.set("10.0.0.1", true, 10)
	v.set("10.0.0.2", true, 20)
	reg := newTestRegistry(t, Config{}, v)
	reg.AddProxies(context.Background(), []Candidate{candidate("10.0.0.1"), candidate("10.0.0.2")})
	return NewRotator(reg, cfg, zap.NewNop()), reg, v
}

func TestRotatorSticksThenSwitches(t *testing.T) {
	t.Parallel()

	rot, _, _ := newRotatorFixture(t, RotatorConfig{SwitchAfter: 2, FailureThreshold: 5})

	first, ok := rot.Next("")
	require.True(t, ok)
	require.Equal(t, "10.0.0.1", first.Host)
	second, _ := rot.Next("")
	require.Equal(t, first.ID, second.ID)

	third, _ := rot.Next("")
	require.Equal(t, "10.0.0.2", third.Host)
}

func TestRotatorRotatesAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	rot, _, _ := newRotatorFixture(t, RotatorConfig{SwitchAfter: 100, FailureThreshold: 2})

	first, _ := rot.Next("")
	rot.ReportOutcome(first.ID, false)
	rot.ReportOutcome(first.ID, true)
	rot.ReportOutcome(first.ID, false)
	same, _ := rot.Next("")
	require.Equal(t, first.ID, same.ID)

	rot.ReportOutcome(first.ID, false)
	next, _ := rot.Next("")
	require.NotEqual(t, first.ID, next.ID)
}

func TestRotatorDropsProxyThatStoppedWorking(t *testing.T) {
	t.Parallel()

	rot, reg, v := newRotatorFixture(t, RotatorConfig{SwitchAfter: 100})

	first, _ := rot.Next("")
	require.Equal(t, "10.0.0.1", first.Host)

	v.set("10.0.0.1", false, 0)
	_, err := reg.ValidateAll(context.Background())
	require.NoError(t, err)

	next, ok := rot.Next("")
	require.True(t, ok)
	require.Equal(t, "10.0.0.2", next.Host)
}

func TestRotatorWithoutStickinessDelegates(t *testing.T) {
	t.Parallel()

	rot, _, _ := newRotatorFixture(t, RotatorConfig{})
	for range 3 {
		rec, ok := rot.Next("")
		require.True(t, ok)
		require.Equal(t, "10.0.0.1", rec.Host)
	}
}

func TestRotatorEmptyPool(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, Config{}, newScriptedValidator())
	rot := NewRotator(reg, RotatorConfig{SwitchAfter: 3}, nil)
	_, ok := rot.Next("")
	require.False(t, ok)
}
