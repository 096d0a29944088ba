package prodsched_internal

import "testing"

func newTestTimeline(units int) *TaskTimeline {
	return NewTaskTimeline(TaskDescriptor{ID: "t1", Name: "Cutting"}, units, nil)
}

func TestTaskTimelineStartInitialInstance(t *testing.T) {
	tl := newTestTimeline(3)
	inst := tl.StartInitialInstance([]string{"alice", "bob"}, 1)
	if inst == nil {
		t.Fatal("StartInitialInstance returned nil")
	}
	if len(tl.ActiveInstances) != 1 {
		t.Fatalf("ActiveInstances = %d, want 1", len(tl.ActiveInstances))
	}
	if len(tl.WorkersAssigned) != 2 {
		t.Fatalf("WorkersAssigned = %v, want 2 entries", tl.WorkersAssigned)
	}
}

func TestTaskTimelineNextAvailableUnit(t *testing.T) {
	tl := newTestTimeline(3)
	tl.StartInitialInstance([]string{"alice"}, 1)

	unit, ok := tl.NextAvailableUnit()
	if !ok || unit != 2 {
		t.Fatalf("NextAvailableUnit = (%d, %v), want (2, true)", unit, ok)
	}
}

func TestTaskTimelineNextAvailableUnitExhausted(t *testing.T) {
	tl := newTestTimeline(1)
	tl.StartInitialInstance([]string{"alice"}, 1)
	if _, ok := tl.NextAvailableUnit(); ok {
		t.Fatal("NextAvailableUnit reported availability past UnitsToProduce")
	}
}

func TestTaskTimelineCompleteInstanceUnit(t *testing.T) {
	tl := newTestTimeline(1)
	inst := tl.StartInitialInstance([]string{"alice", "bob"}, 1)

	completion := tl.CompleteInstanceUnit(inst.ID)
	if !completion.Found {
		t.Fatal("completion not found")
	}
	if !completion.TaskCompleted {
		t.Error("task should be complete after its only unit finishes")
	}
	if len(completion.WorkersReleased) != 2 {
		t.Errorf("WorkersReleased = %v, want 2 entries", completion.WorkersReleased)
	}
	if len(tl.ActiveInstances) != 0 {
		t.Errorf("ActiveInstances after completion = %d, want 0", len(tl.ActiveInstances))
	}
	if !tl.IsComplete() {
		t.Error("IsComplete() false after finishing all units")
	}
}

func TestTaskTimelineCompleteUnknownInstance(t *testing.T) {
	tl := newTestTimeline(2)
	tl.StartInitialInstance([]string{"alice"}, 1)
	completion := tl.CompleteInstanceUnit("does-not-exist")
	if completion.Found {
		t.Fatal("Found true for an unknown instance id")
	}
}

func TestTaskTimelineAddParallelInstance(t *testing.T) {
	tl := newTestTimeline(2)
	tl.StartInitialInstance([]string{"alice"}, 1)

	inst := tl.AddParallelInstance("bob")
	if inst == nil {
		t.Fatal("AddParallelInstance returned nil with a unit available")
	}
	if inst.Unit != 2 {
		t.Errorf("parallel instance unit = %d, want 2", inst.Unit)
	}

	// No more units: a third join must be refused.
	if got := tl.AddParallelInstance("carol"); got != nil {
		t.Errorf("AddParallelInstance returned %v when task is fully subscribed", got)
	}
}

func TestTaskTimelineInstanceFor(t *testing.T) {
	tl := newTestTimeline(2)
	inst := tl.StartInitialInstance([]string{"alice"}, 1)
	if got := tl.InstanceFor("alice"); got == nil || got.ID != inst.ID {
		t.Errorf("InstanceFor(alice) = %v, want instance %s", got, inst.ID)
	}
	if got := tl.InstanceFor("nobody"); got != nil {
		t.Errorf("InstanceFor(nobody) = %v, want nil", got)
	}
}

func TestTaskTimelineRemoveAssignedWorker(t *testing.T) {
	tl := newTestTimeline(2)
	tl.StartInitialInstance([]string{"alice", "bob"}, 1)
	tl.removeAssignedWorker("alice")
	for _, w := range tl.WorkersAssigned {
		if w == "alice" {
			t.Fatal("alice still present after removeAssignedWorker")
		}
	}
	if len(tl.WorkersAssigned) != 1 {
		t.Errorf("WorkersAssigned = %v, want 1 entry", tl.WorkersAssigned)
	}
}
