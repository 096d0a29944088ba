package prodsched_internal

import (
	"testing"
	"time"
)

func TestResourceCalendarAssignAndNextAvailable(t *testing.T) {
	wc := mustCalendar(t)
	rc := NewResourceCalendar(wc)
	rc.RegisterResource("alice", ResourceWorker)

	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	end := wc.AddWorkMinutes(start, 60)
	if err := rc.Assign("alice", start, end, "task-a", ResourceWorker); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	// A request starting inside the occupied interval must resolve to the
	// interval's end, not an earlier instant.
	next := rc.NextAvailable("alice", start.Add(10*time.Minute), ResourceWorker)
	if !next.Equal(end) {
		t.Errorf("NextAvailable during occupancy = %v, want %v", next, end)
	}

	// A request starting before the interval returns the snapped request time.
	before := rc.NextAvailable("alice", start.Add(-2*time.Hour), ResourceWorker)
	want := wc.SnapToWorking(start.Add(-2 * time.Hour))
	if !before.Equal(want) {
		t.Errorf("NextAvailable before occupancy = %v, want %v", before, want)
	}
}

func TestResourceCalendarAssignOverlapRejected(t *testing.T) {
	wc := mustCalendar(t)
	rc := NewResourceCalendar(wc)
	rc.RegisterResource("bob", ResourceWorker)

	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	if err := rc.Assign("bob", start, end, "task-a", ResourceWorker); err != nil {
		t.Fatalf("first Assign: %v", err)
	}

	overlapStart := start.Add(1 * time.Hour)
	overlapEnd := end.Add(1 * time.Hour)
	err := rc.Assign("bob", overlapStart, overlapEnd, "task-b", ResourceWorker)
	if err == nil {
		t.Fatal("expected ResourceOverlapError, got nil")
	}
	if _, ok := err.(*ResourceOverlapError); !ok {
		t.Fatalf("expected *ResourceOverlapError, got %T", err)
	}

	if got := len(rc.Intervals("bob", ResourceWorker)); got != 1 {
		t.Errorf("intervals after rejected overlap = %d, want 1", got)
	}
}

func TestResourceCalendarReassignmentRegistry(t *testing.T) {
	wc := mustCalendar(t)
	rc := NewResourceCalendar(wc)

	entry := ReassignmentRegistryEntry{
		WorkerID:     "carol",
		SourceTaskID: "cut",
		TargetTaskID: "sew",
		Rule:         ReassignmentRule{ConditionType: AfterUnits, ConditionValue: 3, TargetTaskID: "sew", Mode: ParallelJoin},
	}
	rc.RegisterReassignmentRule(entry)

	if fired := rc.NotifyUnitsCompleted("cut", 2); len(fired) != 0 {
		t.Fatalf("rule fired early: %v", fired)
	}
	fired := rc.NotifyUnitsCompleted("cut", 3)
	if len(fired) != 1 || fired[0].WorkerID != "carol" {
		t.Fatalf("expected rule to fire at threshold, got %v", fired)
	}
	// Firing removes the rule: a second call must not refire it.
	if fired := rc.NotifyUnitsCompleted("cut", 10); len(fired) != 0 {
		t.Fatalf("rule refired after removal: %v", fired)
	}
}

func TestResourceCalendarRulesForDoesNotRemove(t *testing.T) {
	wc := mustCalendar(t)
	rc := NewResourceCalendar(wc)
	entry := ReassignmentRegistryEntry{
		WorkerID: "dana", SourceTaskID: "cut", TargetTaskID: "sew",
		Rule: ReassignmentRule{ConditionType: OnFinish, TargetTaskID: "sew", Mode: Replace},
	}
	rc.RegisterReassignmentRule(entry)

	rules := rc.RulesFor("cut", []string{"dana"})
	if len(rules) != 1 {
		t.Fatalf("RulesFor = %v, want 1 entry", rules)
	}
	// Still present: RulesFor is a read-only lookup.
	rules2 := rc.RulesFor("cut", []string{"dana"})
	if len(rules2) != 1 {
		t.Fatalf("rule vanished after RulesFor read: %v", rules2)
	}
	rc.RemoveRule(entry)
	if rules3 := rc.RulesFor("cut", []string{"dana"}); len(rules3) != 0 {
		t.Fatalf("rule still present after RemoveRule: %v", rules3)
	}
}
