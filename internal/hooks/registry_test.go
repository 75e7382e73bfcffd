package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/agentplane/core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireRunsInPriorityOrderExactlyOnce(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	calls := map[string]int{}

	mk := func(name string, p Priority) Handler {
		return func(ctx context.Context, hc *Context) (*Context, error) {
			order = append(order, name)
			calls[name]++
			return hc.With(name, true), nil
		}
	}

	r.Register(EventTurnStart, mk("low", PriorityLow), WithName("low"), WithPriority(PriorityLow))
	r.Register(EventTurnStart, mk("highest", PriorityHighest), WithName("highest"), WithPriority(PriorityHighest))
	r.Register(EventTurnStart, mk("normal", PriorityNormal), WithName("normal"), WithPriority(PriorityNormal))

	final, err := r.Fire(context.Background(), NewContext(EventTurnStart))
	require.NoError(t, err)

	assert.Equal(t, []string{"highest", "normal", "low"}, order)
	for _, n := range order {
		assert.Equal(t, 1, calls[n])
	}
	_, ok := final.Get("low")
	assert.True(t, ok, "final context should equal the last handler's return value")
}

func TestFirePropagatesHookBlockUnchanged(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(EventToolCall, func(ctx context.Context, hc *Context) (*Context, error) {
		return nil, &models.HookBlockError{Reason: "denied by policy"}
	}, WithName("blocker"))

	ran := false
	r.Register(EventToolCall, func(ctx context.Context, hc *Context) (*Context, error) {
		ran = true
		return hc, nil
	}, WithPriority(PriorityLowest), WithName("after"))

	_, err := r.Fire(context.Background(), NewContext(EventToolCall))
	require.Error(t, err)
	hb, ok := models.IsHookBlock(err)
	require.True(t, ok)
	assert.Equal(t, "denied by policy", hb.Reason)
	assert.False(t, ran, "chain must stop after a HookBlock")
}

func TestFireStopsChainOnGenericError(t *testing.T) {
	r := NewRegistry(nil)
	boom := errors.New("boom")
	r.Register(EventTurnEnd, func(ctx context.Context, hc *Context) (*Context, error) {
		return nil, boom
	})
	ran := false
	r.Register(EventTurnEnd, func(ctx context.Context, hc *Context) (*Context, error) {
		ran = true
		return hc, nil
	}, WithPriority(PriorityLowest))

	_, err := r.Fire(context.Background(), NewContext(EventTurnEnd))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestFireNoHandlersReturnsInputUnchanged(t *testing.T) {
	r := NewRegistry(nil)
	hc := NewContext(EventAgentEnd)
	final, err := r.Fire(context.Background(), hc)
	require.NoError(t, err)
	assert.Same(t, hc, final)
}
