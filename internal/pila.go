// Pila persistence: converts a ProductionFlow's index-based dependency
// edges (previous_task_index, next_cyclic_task_index) to stable UUID
// edges for on-disk storage, and resolves them back to indices on load.
// This isolates a saved flow from reordering of the in-memory slice
// (spec §6, §9).

package prodsched_internal

import "github.com/google/uuid"

var pilaLog = NewCompLogger("pila")

// MarshalPila assigns a UniqueID to every step (if not already set) and
// converts its index-based edges to UUID edges, returning a new slice
// safe to serialize. The input is not mutated.
func MarshalPila(flow []ProductionFlowStep) []ProductionFlowStep {
	out := make([]ProductionFlowStep, len(flow))
	copy(out, flow)

	for i := range out {
		if out[i].UniqueID == uuid.Nil {
			out[i].UniqueID = uuid.New()
		}
	}
	for i := range out {
		if idx := out[i].PreviousTaskIndex; idx != nil {
			id := out[*idx].UniqueID
			out[i].PreviousTaskID = &id
		} else {
			out[i].PreviousTaskID = nil
		}
		if idx := out[i].NextCyclicTaskIndex; idx != nil {
			id := out[*idx].UniqueID
			out[i].NextCyclicTaskID = &id
		} else {
			out[i].NextCyclicTaskID = nil
		}
	}
	return out
}

// UnmarshalPila resolves UUID edges back to indices against the current
// step ordering. Any UUID that no longer resolves to a step is dropped
// (its index field set to nil) rather than failing the load, per spec
// §6: "any id that no longer resolves is set to null".
func UnmarshalPila(flow []ProductionFlowStep) []ProductionFlowStep {
	out := make([]ProductionFlowStep, len(flow))
	copy(out, flow)

	idToIndex := make(map[uuid.UUID]int, len(out))
	for i, step := range out {
		if step.UniqueID != uuid.Nil {
			idToIndex[step.UniqueID] = i
		}
	}

	for i := range out {
		if id := out[i].PreviousTaskID; id != nil {
			if idx, ok := idToIndex[*id]; ok {
				out[i].PreviousTaskIndex = &idx
			} else {
				pilaLog.Warnf("step %d: previous_task_id %s does not resolve, dropping edge", i, id)
				out[i].PreviousTaskIndex = nil
			}
		}
		if id := out[i].NextCyclicTaskID; id != nil {
			if idx, ok := idToIndex[*id]; ok {
				out[i].NextCyclicTaskIndex = &idx
			} else {
				pilaLog.Warnf("step %d: next_cyclic_task_id %s does not resolve, dropping edge", i, id)
				out[i].NextCyclicTaskIndex = nil
			}
		}
	}
	return out
}
