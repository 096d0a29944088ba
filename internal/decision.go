// CalculationDecision is the audit record kind: one entry per engine
// choice, retained for explanation and for testing (spec §3, §8).
// Grounded on calculation_audit.py's CalculationDecision/DecisionStatus and
// on cuemby-warren/pkg/events' Event/EventType shape (string-typed kind,
// a Metadata-like Details bag).

package prodsched_internal

import "time"

// DecisionStatus is the severity/color class of a decision, mirroring the
// original's DecisionStatus enum.
type DecisionStatus string

const (
	StatusNeutral  DecisionStatus = "NEUTRAL"
	StatusPositive DecisionStatus = "POSITIVE"
	StatusWarning  DecisionStatus = "WARNING"
	StatusCritical DecisionStatus = "CRITICAL"
)

// DecisionKind names the engine decision being recorded.
type DecisionKind string

const (
	DecisionRootSeeded           DecisionKind = "ROOT_SEEDED"
	DecisionUnitStarted          DecisionKind = "UNIT_STARTED"
	DecisionUnitCompleted        DecisionKind = "UNIT_COMPLETED"
	DecisionTaskCompleted        DecisionKind = "TASK_COMPLETED"
	DecisionReassignment         DecisionKind = "REASSIGNMENT"
	DecisionMigrationCyclic      DecisionKind = "MIGRATION_CYCLIC"
	DecisionIdleWorker           DecisionKind = "IDLE_WORKER"
	DecisionDependencyWakeup     DecisionKind = "DEPENDENCY_WAKEUP"
	DecisionDuplicateSuppressed  DecisionKind = "DUPLICATE_EVENT_SUPPRESSED"
	DecisionScheduledDateIgnored DecisionKind = "SCHEDULED_DATE_OVERRIDDEN"
)

var decisionIcons = map[DecisionStatus]string{
	StatusNeutral:  "info",
	StatusPositive: "check",
	StatusWarning:  "warning",
	StatusCritical: "critical",
}

// CalculationDecision is one entry of the audit log.
type CalculationDecision struct {
	Timestamp          time.Time      `json:"timestamp"`
	Kind               DecisionKind   `json:"kind"`
	Reason             string         `json:"reason"`
	UserFriendlyReason string         `json:"user_friendly_reason"`
	TaskName           string         `json:"task_name,omitempty"`
	Status             DecisionStatus `json:"status"`
	Icon               string         `json:"icon"`
	Details            map[string]any `json:"details,omitempty"`
}

// newDecision builds a CalculationDecision, filling in the icon from the
// status the way the original derives it from DecisionStatus.
func newDecision(ts time.Time, kind DecisionKind, status DecisionStatus, taskName, reason, friendly string, details map[string]any) CalculationDecision {
	return CalculationDecision{
		Timestamp:          ts,
		Kind:               kind,
		Reason:             reason,
		UserFriendlyReason: friendly,
		TaskName:           taskName,
		Status:             status,
		Icon:               decisionIcons[status],
		Details:            details,
	}
}

// auditLog accumulates CalculationDecisions in timestamp order as they are
// produced, guarded by the engine's own single-threaded processing model
// (no internal locking needed: the event loop is the only writer).
type auditLog struct {
	entries []CalculationDecision
	stats   *EngineStats
}

func (a *auditLog) record(d CalculationDecision) {
	a.entries = append(a.entries, d)
	if a.stats != nil {
		a.stats.DecisionsByStatus[d.Status]++
	}
}

// sorted returns a time-sorted copy of the log, merging derived event
// decisions with internally accumulated ones (spec §4.4.8).
func (a *auditLog) sorted() []CalculationDecision {
	out := make([]CalculationDecision, len(a.entries))
	copy(out, a.entries)
	stableSortDecisionsByTime(out)
	return out
}

func stableSortDecisionsByTime(d []CalculationDecision) {
	// Insertion sort: the log is already nearly-sorted (append-only in
	// simulation-time order with only small transpositions from delayed
	// idle-reports), so this is both simple and fast in practice.
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j].Timestamp.Before(d[j-1].Timestamp); j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
}
