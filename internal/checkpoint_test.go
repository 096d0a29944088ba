package prodsched_internal

import (
	"testing"
	"time"
)

func testEngineForCheckpoint(t *testing.T) *EventEngine {
	t.Helper()
	flow := []ProductionFlowStep{
		{Task: TaskDescriptor{ID: "A", Name: "Cutting", DurationPerUnit: 10}, Workers: []WorkerRef{{Name: "W1"}}, TriggerUnits: 3, IsCycleStart: true},
	}
	eng := mustEngine(t, EngineConfig{
		ProductionFlow: flow,
		Workers:        []WorkerInfo{{Name: "W1"}},
		RunStart:       time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC),
	})
	eng.seedRoots()
	return eng
}

func TestEngineCheckpointMarshalRoundTrip(t *testing.T) {
	eng := testEngineForCheckpoint(t)
	cp := eng.Snapshot()

	blob, err := MarshalCheckpoint(cp)
	if err != nil {
		t.Fatalf("MarshalCheckpoint: %v", err)
	}
	restored, err := UnmarshalCheckpoint(blob)
	if err != nil {
		t.Fatalf("UnmarshalCheckpoint: %v", err)
	}
	if !restored.Now.Equal(cp.Now) {
		t.Errorf("restored.Now = %v, want %v", restored.Now, cp.Now)
	}
	if restored.EventCounter != cp.EventCounter {
		t.Errorf("restored.EventCounter = %d, want %d", restored.EventCounter, cp.EventCounter)
	}
	if len(restored.QueueItems) != len(cp.QueueItems) {
		t.Errorf("restored.QueueItems len = %d, want %d", len(restored.QueueItems), len(cp.QueueItems))
	}
	if _, ok := restored.Timelines["A"]; !ok {
		t.Fatal("restored timeline for task A missing")
	}
}

func TestEngineSnapshotIsIndependentOfSubsequentMutation(t *testing.T) {
	eng := testEngineForCheckpoint(t)
	cp := eng.Snapshot()

	before := cp.Timelines["A"].UnitsFinalizedTotal
	completion := eng.timelines["A"].CompleteInstanceUnit(eng.timelines["A"].ActiveInstances[0].ID)
	if !completion.Found {
		t.Fatal("completion not found")
	}

	if cp.Timelines["A"].UnitsFinalizedTotal != before {
		t.Error("snapshot was mutated by a later change to the live engine state")
	}
}

func TestEngineRestoreRebuildsState(t *testing.T) {
	eng := testEngineForCheckpoint(t)
	cp := eng.Snapshot()
	blob, err := MarshalCheckpoint(cp)
	if err != nil {
		t.Fatalf("MarshalCheckpoint: %v", err)
	}
	restored, err := UnmarshalCheckpoint(blob)
	if err != nil {
		t.Fatalf("UnmarshalCheckpoint: %v", err)
	}

	fresh := mustEngine(t, EngineConfig{
		ProductionFlow: []ProductionFlowStep{
			{Task: TaskDescriptor{ID: "A", Name: "Cutting", DurationPerUnit: 10}, Workers: []WorkerRef{{Name: "W1"}}, TriggerUnits: 3, IsCycleStart: true},
		},
		Workers: []WorkerInfo{{Name: "W1"}},
	})
	fresh.Restore(restored)

	if !fresh.now.Equal(eng.now) {
		t.Errorf("restored now = %v, want %v", fresh.now, eng.now)
	}
	if len(fresh.queue.items) != len(eng.queue.items) {
		t.Errorf("restored queue length = %d, want %d", len(fresh.queue.items), len(eng.queue.items))
	}
}
