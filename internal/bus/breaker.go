package bus

import (
	"time"

	"github.com/agentplane/core/pkg/models"
	"github.com/sony/gobreaker/v2"
)

// NewBreaker wraps a named dependency call (bus publish, KV access, LLM
// provider call) with a CLOSED/OPEN/HALF_OPEN state machine.
// failureThreshold consecutive-window failures within failureWindow
// trip the breaker; cooldown gates the OPEN -> HALF_OPEN retry probe.
func NewBreaker[T any](name string, failureThreshold uint32, failureWindow, cooldown time.Duration) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:    name,
		Interval: failureWindow,
		Timeout:  cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
	}
	return gobreaker.NewCircuitBreaker[T](settings)
}

// Call executes fn through breaker, translating its own trip-open and
// half-open-rejection signals into models.ErrCircuitOpen so callers can
// match it uniformly regardless of which dependency tripped or which
// state rejected the call.
func Call[T any](breaker *gobreaker.CircuitBreaker[T], fn func() (T, error)) (T, error) {
	result, err := breaker.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		var zero T
		return zero, models.ErrCircuitOpen
	}
	return result, err
}
