// ResourceCalendar tracks per-worker and per-machine occupancy intervals
// and the pending worker-reassignment rule registry. Grounded on
// resource_manager.py's GestorDeRecursos, with the mutex-guarded access
// pattern ported from the teacher's Scheduler (spec §5: "the
// ResourceCalendar must still be implemented with a mutex... because some
// reimplementations may choose to parallelize independent root branches").

package prodsched_internal

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

var resourceCalLog = NewCompLogger("resource_calendar")

// ResourceInterval is one occupancy record (spec §3).
type ResourceInterval struct {
	Start  time.Time
	End    time.Time
	TaskID string
}

// ReassignmentRegistryEntry is a pending reassignment rule, consumed (and
// removed) at most once when it fires (spec §3).
type ReassignmentRegistryEntry struct {
	WorkerID     string
	SourceTaskID string
	TargetTaskID string
	Rule         ReassignmentRule
}

// ResourceOverlapError is raised when an assignment would overlap an
// existing interval — an invariant violation per spec §7, "fail loudly in
// debug builds".
type ResourceOverlapError struct {
	ResourceID string
	New        ResourceInterval
	Existing   ResourceInterval
}

func (e *ResourceOverlapError) Error() string {
	return fmt.Sprintf(
		"resource %q: new interval [%s,%s) for task %q overlaps existing [%s,%s) for task %q",
		e.ResourceID, e.New.Start, e.New.End, e.New.TaskID,
		e.Existing.Start, e.Existing.End, e.Existing.TaskID,
	)
}

// ResourceCalendar holds the occupancy intervals for every worker and
// machine plus the reassignment rule registry. All mutating and
// next-available operations are serialized by mu.
type ResourceCalendar struct {
	mu       sync.Mutex
	workers  map[string][]ResourceInterval
	machines map[string][]ResourceInterval
	registry []ReassignmentRegistryEntry
	calendar *WorkCalendar
}

func NewResourceCalendar(wc *WorkCalendar) *ResourceCalendar {
	return &ResourceCalendar{
		workers:  make(map[string][]ResourceInterval),
		machines: make(map[string][]ResourceInterval),
		calendar: wc,
	}
}

// ResourceKind distinguishes a worker resource from a machine resource.
type ResourceKind int

const (
	ResourceWorker ResourceKind = iota
	ResourceMachine
)

// RegisterResource idempotently initializes the calendar for a resource.
func (rc *ResourceCalendar) RegisterResource(id string, kind ResourceKind) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	m := rc.calendarFor(kind)
	if _, ok := m[id]; !ok {
		m[id] = nil
	}
}

func (rc *ResourceCalendar) calendarFor(kind ResourceKind) map[string][]ResourceInterval {
	if kind == ResourceMachine {
		return rc.machines
	}
	return rc.workers
}

// NextAvailable returns the first non-conflicting snapped instant at or
// after from, for the given resource. Spec §4.2.
func (rc *ResourceCalendar) NextAvailable(id string, from time.Time, kind ResourceKind) time.Time {
	rc.mu.Lock()
	intervals := append([]ResourceInterval(nil), rc.calendarFor(kind)[id]...)
	rc.mu.Unlock()

	proposed := rc.calendar.SnapToWorking(from)
	for {
		conflict, found := findConflict(intervals, proposed)
		if !found {
			return proposed
		}
		proposed = rc.calendar.SnapToWorking(conflict.End)
	}
}

// findConflict returns the interval containing t in [start,end), if any.
// Intervals are kept sorted and non-overlapping (Assign's precondition
// check guarantees this), so a linear scan suffices; per-resource
// interval lists stay small relative to simulation length.
func findConflict(intervals []ResourceInterval, t time.Time) (ResourceInterval, bool) {
	for _, iv := range intervals {
		if !t.Before(iv.Start) && t.Before(iv.End) {
			return iv, true
		}
	}
	return ResourceInterval{}, false
}

// Assign inserts a new occupancy interval for the resource, keeping the
// per-resource interval list ordered by start. Overlap with an existing
// interval is a precondition violation (spec §7) and returns a
// *ResourceOverlapError rather than silently corrupting the calendar.
func (rc *ResourceCalendar) Assign(id string, start, end time.Time, taskID string, kind ResourceKind) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	m := rc.calendarFor(kind)
	intervals := m[id]
	for _, iv := range intervals {
		if start.Before(iv.End) && iv.Start.Before(end) {
			err := &ResourceOverlapError{ResourceID: id, New: ResourceInterval{start, end, taskID}, Existing: iv}
			resourceCalLog.Errorf("%v", err)
			return err
		}
	}
	intervals = append(intervals, ResourceInterval{Start: start, End: end, TaskID: taskID})
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start.Before(intervals[j].Start) })
	m[id] = intervals
	resourceCalLog.Debugf("resource %q assigned to task %q [%s,%s)", id, taskID, start, end)
	return nil
}

// Intervals returns a copy of the occupancy intervals for a resource, for
// inspection/testing.
func (rc *ResourceCalendar) Intervals(id string, kind ResourceKind) []ResourceInterval {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]ResourceInterval(nil), rc.calendarFor(kind)[id]...)
}

// RegisterReassignmentRule adds a pending rule to the registry (engine
// init time, spec §4.4.1).
func (rc *ResourceCalendar) RegisterReassignmentRule(entry ReassignmentRegistryEntry) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.registry = append(rc.registry, entry)
}

// NotifyUnitsCompleted scans the registry for AFTER_UNITS rules sourced
// from taskID whose threshold is met, removing each as it fires and
// returning the reassignment data to emit as events. ON_FINISH rules are
// untouched here; they are handled directly by the engine at task
// completion (spec §4.2).
func (rc *ResourceCalendar) NotifyUnitsCompleted(taskID string, totalUnits int) []ReassignmentRegistryEntry {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	var fired []ReassignmentRegistryEntry
	remaining := rc.registry[:0:0]
	for _, entry := range rc.registry {
		if entry.SourceTaskID == taskID &&
			entry.Rule.ConditionType == AfterUnits &&
			entry.Rule.ConditionValue <= totalUnits {
			fired = append(fired, entry)
			resourceCalLog.Infof("reassignment rule fired: worker=%s %s->%s", entry.WorkerID, entry.SourceTaskID, entry.TargetTaskID)
			continue
		}
		remaining = append(remaining, entry)
	}
	rc.registry = remaining
	return fired
}

// RulesFor returns the (unfired) rules whose owner worker is in workerIDs
// and whose source task is taskID, without removing them — used by the
// engine to classify which ON_FINISH rules apply to just-freed workers
// (spec §4.4.5 step 2).
func (rc *ResourceCalendar) RulesFor(taskID string, workerIDs []string) []ReassignmentRegistryEntry {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	workerSet := make(map[string]struct{}, len(workerIDs))
	for _, w := range workerIDs {
		workerSet[w] = struct{}{}
	}
	var out []ReassignmentRegistryEntry
	for _, entry := range rc.registry {
		if entry.SourceTaskID != taskID {
			continue
		}
		if _, ok := workerSet[entry.WorkerID]; ok {
			out = append(out, entry)
		}
	}
	return out
}

// RemoveRule removes a specific registry entry once it has fired via a
// path other than NotifyUnitsCompleted (e.g. an ON_FINISH rule consumed
// directly by the engine).
func (rc *ResourceCalendar) RemoveRule(entry ReassignmentRegistryEntry) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for i, e := range rc.registry {
		if e == entry {
			rc.registry = append(rc.registry[:i], rc.registry[i+1:]...)
			return
		}
	}
}
