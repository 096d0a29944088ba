// TaskTimeline tracks one task's progression through its units: the set of
// concurrently active instances (a worker group plus the unit it is
// working), the running completion counters, and the worker roster. The
// instance bookkeeping, including the remove-then-let-the-caller-decide
// handoff on completion, is ported from timeline_task.py's
// LineaTemporalTarea.

package prodsched_internal

import (
	"fmt"

	"github.com/google/uuid"
)

var timelineLog = NewCompLogger("timeline")

// Instance is one concurrently active worker-group working a single unit
// of a task.
type Instance struct {
	ID        string
	Workers   []string
	Unit      int
	StartedAt string // label only; the engine timestamps via the event system
}

// UnitCompletion is the result of completing one instance's unit, handed
// back to the engine so it can decide what happens to the freed workers
// (spec §4.4.5: "the timeline never decides worker fate on its own").
type UnitCompletion struct {
	Found           bool
	TaskCompleted   bool
	WorkersReleased []string
}

// TaskTimeline is the per-task mutable state the engine consults and
// mutates while processing events for that task.
type TaskTimeline struct {
	Task TaskDescriptor

	UnitsToProduce int

	UnitsFinalizedTotal int
	WorkersAssigned     []string
	ActiveInstances     []*Instance

	// DependencyIndex mirrors ProductionFlowStep.PreviousTaskIndex, copied
	// here so the engine can do dependency checks against only the
	// timeline (spec §4.3).
	DependencyIndex *int
}

// NewTaskTimeline builds an empty timeline for a task.
func NewTaskTimeline(task TaskDescriptor, unitsToProduce int, dependencyIndex *int) *TaskTimeline {
	return &TaskTimeline{
		Task:            task,
		UnitsToProduce:  unitsToProduce,
		DependencyIndex: dependencyIndex,
	}
}

// IsComplete reports whether every unit of this task has been finalized.
func (t *TaskTimeline) IsComplete() bool {
	return t.UnitsFinalizedTotal >= t.UnitsToProduce
}

// StartInitialInstance adds a new active instance for this task, at the
// given unit, with the given worker group. The engine uses it for root
// seeding, continuations, cycle migrations and dependency wake-ups. Spec §4.3:
// "iniciar_instancia_inicial".
func (t *TaskTimeline) StartInitialInstance(workers []string, unit int) *Instance {
	inst := &Instance{
		ID:      uuid.NewString(),
		Workers: append([]string(nil), workers...),
		Unit:    unit,
	}
	t.ActiveInstances = append(t.ActiveInstances, inst)
	for _, w := range workers {
		t.addAssignedWorker(w)
	}
	timelineLog.Infof("task %q: new instance %s with workers %v on unit %d", t.Task.Name, inst.ID[:8], workers, unit)
	return inst
}

func (t *TaskTimeline) addAssignedWorker(w string) {
	for _, existing := range t.WorkersAssigned {
		if existing == w {
			return
		}
	}
	t.WorkersAssigned = append(t.WorkersAssigned, w)
}

// NextAvailableUnit returns the smallest unit number not already being
// worked by an active instance and not yet finalized, or
// (0, false) if the task has no remaining unit to offer.
func (t *TaskTimeline) NextAvailableUnit() (int, bool) {
	inProgress := make(map[int]struct{}, len(t.ActiveInstances))
	for _, inst := range t.ActiveInstances {
		inProgress[inst.Unit] = struct{}{}
	}
	candidate := t.UnitsFinalizedTotal + 1
	for {
		if _, busy := inProgress[candidate]; !busy {
			break
		}
		candidate++
	}
	if candidate > t.UnitsToProduce {
		return 0, false
	}
	return candidate, true
}

// AddParallelInstance joins a worker into a new instance on the next
// available unit, returning nil if the task has no unit left to offer
// (spec §4.3: "agregar_instancia_paralela").
func (t *TaskTimeline) AddParallelInstance(workerID string) *Instance {
	if t.IsComplete() {
		timelineLog.Warnf("task %q: cannot add parallel instance, task already complete", t.Task.Name)
		return nil
	}
	unit, ok := t.NextAvailableUnit()
	if !ok {
		timelineLog.Warnf("task %q: no unit available for parallel instance", t.Task.Name)
		return nil
	}
	inst := &Instance{ID: uuid.NewString(), Workers: []string{workerID}, Unit: unit}
	t.ActiveInstances = append(t.ActiveInstances, inst)
	t.addAssignedWorker(workerID)
	timelineLog.Infof("task %q: parallel instance %s for worker %q on unit %d", t.Task.Name, inst.ID[:8], workerID, unit)
	return inst
}

// instanceByID finds an active instance, or nil.
func (t *TaskTimeline) instanceByID(id string) *Instance {
	for _, inst := range t.ActiveInstances {
		if inst.ID == id {
			return inst
		}
	}
	return nil
}

// CompleteInstanceUnit finalizes the given instance's unit, removing it
// from the active set and incrementing the global completion counter.
// Spec §4.3: "completar_unidad_instancia" — the timeline reports what
// happened, but the engine decides what the released workers do next.
func (t *TaskTimeline) CompleteInstanceUnit(instanceID string) UnitCompletion {
	inst := t.instanceByID(instanceID)
	if inst == nil {
		timelineLog.Errorf("task %q: instance %s not found at completion", t.Task.Name, instanceID)
		return UnitCompletion{Found: false, TaskCompleted: t.IsComplete()}
	}

	t.UnitsFinalizedTotal++
	released := append([]string(nil), inst.Workers...)

	for i, cand := range t.ActiveInstances {
		if cand.ID == instanceID {
			t.ActiveInstances = append(t.ActiveInstances[:i], t.ActiveInstances[i+1:]...)
			break
		}
	}

	completed := t.IsComplete()
	timelineLog.Infof("task %q: instance %s completed unit %d (%d/%d); task_completed=%v",
		t.Task.Name, instanceID[:8], inst.Unit, t.UnitsFinalizedTotal, t.UnitsToProduce, completed)

	return UnitCompletion{
		Found:           true,
		TaskCompleted:   completed,
		WorkersReleased: released,
	}
}

// InstanceFor returns the active instance a worker currently belongs to,
// or nil.
func (t *TaskTimeline) InstanceFor(workerID string) *Instance {
	for _, inst := range t.ActiveInstances {
		for _, w := range inst.Workers {
			if w == workerID {
				return inst
			}
		}
	}
	return nil
}

// String supports debug logging/formatting.
func (t *TaskTimeline) String() string {
	return fmt.Sprintf("TaskTimeline(%s: %d/%d, %d active instances)",
		t.Task.Name, t.UnitsFinalizedTotal, t.UnitsToProduce, len(t.ActiveInstances))
}
