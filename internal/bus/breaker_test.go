package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/agentplane/core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	breaker := NewBreaker[int]("test", 2, time.Minute, time.Millisecond)
	boom := errors.New("boom")

	_, err := Call(breaker, func() (int, error) { return 0, boom })
	require.Error(t, err)
	_, err = Call(breaker, func() (int, error) { return 0, boom })
	require.Error(t, err)

	_, err = Call(breaker, func() (int, error) { return 1, nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrCircuitOpen)
}

func TestBreakerHalfOpenRecoversOnSuccess(t *testing.T) {
	breaker := NewBreaker[int]("test2", 1, time.Minute, 5*time.Millisecond)
	boom := errors.New("boom")

	_, err := Call(breaker, func() (int, error) { return 0, boom })
	require.Error(t, err)

	time.Sleep(10 * time.Millisecond)

	val, err := Call(breaker, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestBreakerHalfOpenRejectionMapsToCircuitOpen(t *testing.T) {
	// MaxRequests defaults to 1 in HALF_OPEN, so a second concurrent
	// probe is rejected with gobreaker.ErrTooManyRequests rather than
	// gobreaker.ErrOpenState; both must surface as ErrCircuitOpen.
	breaker := NewBreaker[int]("test3", 1, time.Minute, 5*time.Millisecond)
	boom := errors.New("boom")

	_, err := Call(breaker, func() (int, error) { return 0, boom })
	require.Error(t, err)

	time.Sleep(10 * time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = Call(breaker, func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started

	_, err = Call(breaker, func() (int, error) { return 2, nil })
	close(release)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrCircuitOpen)
}
