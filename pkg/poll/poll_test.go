package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilStopsWhenDone(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Options{Interval: time.Millisecond, MaxWait: time.Second}, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntilReturnsCheckError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Until(context.Background(), Options{Interval: time.Millisecond}, func(context.Context) (bool, error) {
		calls++
		return false, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestUntilTimesOut(t *testing.T) {
	err := Until(context.Background(), Options{Interval: 5 * time.Millisecond, MaxWait: 20 * time.Millisecond, Name: "clone job"}, func(context.Context) (bool, error) {
		return false, nil
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeTimeout, pkgerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "clone job")
}

func TestUntilDelayFirst(t *testing.T) {
	start := time.Now()
	var firstCheck time.Duration
	err := Until(context.Background(), Options{Interval: 20 * time.Millisecond, DelayFirst: true}, func(context.Context) (bool, error) {
		firstCheck = time.Since(start)
		return true, nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, firstCheck, 20*time.Millisecond)
}

func TestUntilHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Until(ctx, Options{Interval: 5 * time.Millisecond}, func(context.Context) (bool, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestUntilRejectsZeroInterval(t *testing.T) {
	err := Until(context.Background(), Options{}, func(context.Context) (bool, error) { return true, nil })
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
