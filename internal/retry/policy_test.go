package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

func TestNewPolicy_DefaultsAndClamp(t *testing.T) {
	p := NewPolicy("", 0, 0, -1)
	require.Equal(t, DefaultPolicy(), p)

	p = NewPolicy(Fixed, 5*time.Second, 2*time.Second, 5)
	require.Equal(t, 2*time.Second, p.Initial)
	require.Equal(t, Fixed, p.Mode)
	require.Equal(t, 5, p.MaxRetries)
}

func TestDelay(t *testing.T) {
	linear := NewPolicy(Linear, 100*time.Millisecond, 250*time.Millisecond, 5)
	require.Equal(t, 100*time.Millisecond, linear.Delay(1))
	require.Equal(t, 200*time.Millisecond, linear.Delay(2))
	require.Equal(t, 250*time.Millisecond, linear.Delay(3))

	exp := NewPolicy(Exponential, 50*time.Millisecond, 160*time.Millisecond, 5)
	require.Equal(t, 50*time.Millisecond, exp.Delay(1))
	require.Equal(t, 100*time.Millisecond, exp.Delay(2))
	require.Equal(t, 160*time.Millisecond, exp.Delay(3))
	require.Equal(t, 160*time.Millisecond, exp.Delay(40))

	require.Zero(t, exp.Delay(0))
}

func TestDo_RetriesOnlyRetryable(t *testing.T) {
	p := NewPolicy(Fixed, time.Millisecond, time.Millisecond, 3)

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.NetworkError("flaky").Retryable().Build()
		}
		return nil
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	calls = 0
	err = p.Do(context.Background(), func() error {
		calls++
		return errors.AuthError("denied").Build()
	}, nil)
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	p := NewPolicy(Fixed, time.Millisecond, time.Millisecond, 2)
	var attempts []int

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.NetworkError("down").Retryable().Build()
	}, func(attempt int, _ error) { attempts = append(attempts, attempt) })
	require.Error(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []int{1, 2}, attempts)
}

func TestDo_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPolicy(Fixed, time.Hour, time.Hour, 5)

	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		return errors.NetworkError("down").Retryable().Build()
	}, nil)
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
