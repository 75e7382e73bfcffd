package bus

import (
	"fmt"
	"sync"

	"github.com/agentplane/core/pkg/models"
)

// LaneQueue serializes delivery within a lane key (e.g.
// "agentId:channelId:userId") while letting distinct lanes run in
// parallel, with a backpressure watermark.
type LaneQueue struct {
	mu         sync.Mutex
	lanes      map[string]*lane
	watermark  int
}

type lane struct {
	mu      sync.Mutex // held while the front message is in flight
	pending int
}

// DefaultWatermark is the default backpressure threshold.
const DefaultWatermark = 1024

// NewLaneQueue builds a LaneQueue with the given watermark; a
// non-positive value uses DefaultWatermark.
func NewLaneQueue(watermark int) *LaneQueue {
	if watermark <= 0 {
		watermark = DefaultWatermark
	}
	return &LaneQueue{lanes: make(map[string]*lane), watermark: watermark}
}

func (q *LaneQueue) laneFor(key string) *lane {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.lanes[key]
	if !ok {
		l = &lane{}
		q.lanes[key] = l
	}
	return l
}

// Enqueue reserves a slot in laneKey's FIFO, failing with
// models.ErrBackpressure-shaped error if the watermark is exceeded.
// It returns a release function to call once the message has been
// delivered, unblocking the next pending message in this lane.
func (q *LaneQueue) Enqueue(laneKey string) (release func(), err error) {
	l := q.laneFor(laneKey)

	q.mu.Lock()
	if l.pending >= q.watermark {
		q.mu.Unlock()
		return nil, fmt.Errorf("lane %q: %w", laneKey, models.ErrBackpressure)
	}
	l.pending++
	q.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		q.mu.Lock()
		l.pending--
		q.mu.Unlock()
	}, nil
}
