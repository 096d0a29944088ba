// Checkpointing: a snapshot of (clock, queue, event counter, timelines,
// resource calendar) deep-cloned and JSON-encoded for storage in the
// event store's checkpoint bucket. Checkpoints are optional and must not
// observably change simulation outcomes (spec §5).

package prodsched_internal

import (
	"encoding/json"
	"time"

	"github.com/huandu/go-clone"
)

// EngineCheckpoint is the serializable snapshot of an EventEngine's
// mutable state.
type EngineCheckpoint struct {
	Now              time.Time
	EventCounter     int
	QueueItems       []*SimulationEvent
	Timelines        map[string]*TaskTimeline
	WorkerIntervals  map[string][]ResourceInterval
	MachineIntervals map[string][]ResourceInterval
	Registry         []ReassignmentRegistryEntry
}

// Snapshot deep-clones the engine's current state into an
// EngineCheckpoint. Cloning (rather than re-marshaling live state
// in-place) keeps the checkpoint immune to mutation by the engine's own
// subsequent processing, matching the teacher's use of go-clone to
// produce test fixtures isolated from the original.
func (e *EventEngine) Snapshot() *EngineCheckpoint {
	e.resource.mu.Lock()
	workers := clone.Clone(e.resource.workers).(map[string][]ResourceInterval)
	machines := clone.Clone(e.resource.machines).(map[string][]ResourceInterval)
	registry := clone.Clone(e.resource.registry).([]ReassignmentRegistryEntry)
	e.resource.mu.Unlock()

	return &EngineCheckpoint{
		Now:              e.now,
		EventCounter:     e.queue.counter,
		QueueItems:       clone.Clone(e.queue.items).([]*SimulationEvent),
		Timelines:        clone.Clone(e.timelines).(map[string]*TaskTimeline),
		WorkerIntervals:  workers,
		MachineIntervals: machines,
		Registry:         registry,
	}
}

// MarshalCheckpoint serializes a checkpoint to JSON for the event
// store's checkpoint bucket.
func MarshalCheckpoint(cp *EngineCheckpoint) ([]byte, error) {
	return json.Marshal(cp)
}

// UnmarshalCheckpoint deserializes a previously saved checkpoint.
func UnmarshalCheckpoint(blob []byte) (*EngineCheckpoint, error) {
	var cp EngineCheckpoint
	if err := json.Unmarshal(blob, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Restore rebuilds an engine's mutable state from a checkpoint. The
// engine must already have been constructed (its flow, calendar and
// config wired) via NewEventEngine before calling Restore.
func (e *EventEngine) Restore(cp *EngineCheckpoint) {
	e.now = cp.Now
	e.timelines = cp.Timelines

	e.queue = newEventQueue()
	e.queue.counter = cp.EventCounter
	for i, ev := range cp.QueueItems {
		ev.index = i
	}
	e.queue.items = cp.QueueItems

	e.resource.mu.Lock()
	e.resource.workers = cp.WorkerIntervals
	e.resource.machines = cp.MachineIntervals
	e.resource.registry = cp.Registry
	e.resource.mu.Unlock()
}
