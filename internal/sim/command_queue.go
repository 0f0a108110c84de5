package sim

import (
	"cmp"
	"slices"
	"sync"
)

const (
	commandQueueRejectedMetricKey = "sim_command_queue_rejected_total"
	commandQueueDepthMetricPrefix = "sim_command_queue_depth_"
)

type lane int

const (
	laneHost lane = iota
	laneGuest
	laneControl
	laneCount
)

var laneNames = [laneCount]string{"host", "guest", "control"}

func laneOf(cmd Command) lane {
	switch cmd.Slot {
	case 0:
		return laneHost
	case 1:
		return laneGuest
	default:
		return laneControl
	}
}

// CommandQueue stages commands in one lane per slot plus a control lane.
// Capacity bounds the total across lanes. Drain merges the lanes by frame with
// host before guest before control on ties, so a step sees the same command
// order whichever participant's packet arrived first.
type CommandQueue struct {
	mu       sync.Mutex
	lanes    [laneCount][]Command
	size     int
	capacity int
	metrics  metricsSink
}

type metricsSink interface {
	Add(string, uint64)
	Store(string, uint64)
}

// NewCommandQueue returns a queue holding at most capacity commands.
func NewCommandQueue(capacity int, metrics metricsSink) *CommandQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandQueue{capacity: capacity, metrics: metrics}
}

// Capacity returns the total bound.
func (q *CommandQueue) Capacity() int {
	if q == nil {
		return 0
	}
	return q.capacity
}

// Push stages cmd in its slot's lane. It reports false when the queue is full.
func (q *CommandQueue) Push(cmd Command) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == q.capacity {
		if q.metrics != nil {
			q.metrics.Add(commandQueueRejectedMetricKey, 1)
		}
		return false
	}
	l := laneOf(cmd)
	q.lanes[l] = append(q.lanes[l], cmd)
	q.size++
	q.reportDepth(l)
	return true
}

// Drain empties every lane and returns the merged commands.
func (q *CommandQueue) Drain() []Command {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil
	}
	out := make([]Command, 0, q.size)
	for l := range q.lanes {
		out = append(out, q.lanes[l]...)
		q.lanes[l] = q.lanes[l][:0]
		q.reportDepth(lane(l))
	}
	q.size = 0
	// Stable, so lane order and arrival order within a lane break frame ties.
	slices.SortStableFunc(out, func(a, b Command) int {
		return cmp.Compare(a.Frame, b.Frame)
	})
	return out
}

// Len returns the number of staged commands.
func (q *CommandQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// LaneLen returns the number of commands staged for slot. Slots other than
// host and guest share the control lane.
func (q *CommandQueue) LaneLen(slot int) int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes[laneOf(Command{Slot: slot})])
}

func (q *CommandQueue) reportDepth(l lane) {
	if q.metrics != nil {
		q.metrics.Store(commandQueueDepthMetricPrefix+laneNames[l], uint64(len(q.lanes[l])))
	}
}
