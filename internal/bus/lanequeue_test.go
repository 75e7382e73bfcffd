package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/agentplane/core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaneQueueSerializesWithinLane(t *testing.T) {
	q := NewLaneQueue(10)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			release, err := q.Enqueue("lane-a")
			require.NoError(t, err)
			defer release()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	assert.Len(t, order, 3)
}

func TestLaneQueueRejectsOnceWatermarkReached(t *testing.T) {
	q := NewLaneQueue(1)

	release, err := q.Enqueue("lane-a")
	require.NoError(t, err)

	_, err = q.Enqueue("lane-a")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrBackpressure)

	release()

	release2, err := q.Enqueue("lane-a")
	require.NoError(t, err)
	release2()
}

func TestLaneQueueIndependentLanesRunConcurrently(t *testing.T) {
	q := NewLaneQueue(1)
	release1, err := q.Enqueue("lane-a")
	require.NoError(t, err)
	defer release1()

	done := make(chan error, 1)
	go func() {
		r, err := q.Enqueue("lane-b")
		if err == nil {
			r()
		}
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("independent lane should not block on lane-a")
	}
}
