// Production flow data model: the declarative, caller-supplied description
// of tasks, workers and machines that the engine turns into a concrete
// per-unit execution timeline.

package prodsched_internal

import (
	"time"

	"github.com/google/uuid"
)

// ConditionType is the trigger for a worker reassignment rule.
type ConditionType string

const (
	AfterUnits ConditionType = "AFTER_UNITS"
	OnFinish   ConditionType = "ON_FINISH"
)

// ReassignmentMode controls what happens to a worker once a rule fires.
type ReassignmentMode string

const (
	ParallelJoin ReassignmentMode = "PARALLEL_JOIN"
	Replace      ReassignmentMode = "REPLACE"
)

// ReassignmentRule moves a worker from one task to another once a
// condition on the source task is satisfied.
type ReassignmentRule struct {
	ConditionType  ConditionType    `yaml:"condition_type" json:"condition_type"`
	ConditionValue int              `yaml:"condition_value" json:"condition_value"`
	TargetTaskID   string           `yaml:"target_task_id" json:"target_task_id"`
	Mode           ReassignmentMode `yaml:"mode" json:"mode"`
}

// WorkerRef is one entry of a step's `workers` list: a worker name plus an
// optional reassignment rule. It decodes only from the object form
// ({name, reassignment_rule}); a bare worker-name string is not accepted
// by YAML or JSON decoding.
type WorkerRef struct {
	Name             string            `yaml:"name" json:"name"`
	ReassignmentRule *ReassignmentRule `yaml:"reassignment_rule,omitempty" json:"reassignment_rule,omitempty"`
}

// TaskDescriptor is the immutable, static metadata of a task, carried
// through to the compiled result rows.
type TaskDescriptor struct {
	ID                 string  `yaml:"id" json:"id"`
	Name               string  `yaml:"name" json:"name"`
	DurationPerUnit    float64 `yaml:"duration_per_unit" json:"duration_per_unit"`
	RequiredSkillLevel int     `yaml:"required_skill_level" json:"required_skill_level"`
	MachineID          string  `yaml:"machine_id,omitempty" json:"machine_id,omitempty"`
	ProductCode        string  `yaml:"product_code" json:"product_code"`
	ProductDesc        string  `yaml:"product_desc" json:"product_desc"`
	FabricationID      string  `yaml:"fabrication_id" json:"fabrication_id"`
	Department         string  `yaml:"department,omitempty" json:"department,omitempty"`
}

// HasMachine reports whether this task is bound to a machine resource.
func (t TaskDescriptor) HasMachine() bool { return t.MachineID != "" }

// ProductionFlowStep is one entry of the caller-supplied ProductionFlow,
// immutable for the duration of a simulation run.
type ProductionFlowStep struct {
	Task    TaskDescriptor `yaml:"task" json:"task"`
	Workers []WorkerRef    `yaml:"workers" json:"workers"`

	TriggerUnits int `yaml:"trigger_units" json:"trigger_units"`

	// PreviousTaskIndex is the standard predecessor, index into the flow.
	// nil means "no standard predecessor".
	PreviousTaskIndex *int `yaml:"previous_task_index,omitempty" json:"previous_task_index,omitempty"`
	// MinPredecessorUnits is the number of predecessor units needed per unit
	// of this step. The engine treats zero (or a negative value) as 1.
	MinPredecessorUnits int `yaml:"min_predecessor_units,omitempty" json:"min_predecessor_units,omitempty"`

	IsCycleStart bool `yaml:"is_cycle_start,omitempty" json:"is_cycle_start,omitempty"`

	// UnitsPerCycle and NextCyclicTaskIndex together describe an optional
	// rework edge: every UnitsPerCycle completions of this task, the
	// just-freed workers loop back into NextCyclicTaskIndex.
	UnitsPerCycle       *int `yaml:"units_per_cycle,omitempty" json:"units_per_cycle,omitempty"`
	NextCyclicTaskIndex *int `yaml:"next_cyclic_task_index,omitempty" json:"next_cyclic_task_index,omitempty"`

	ScheduledStartDate *time.Time `yaml:"scheduled_start_date,omitempty" json:"scheduled_start_date,omitempty"`

	// UniqueID, PreviousTaskID and NextCyclicTaskID are populated only when
	// the flow has been through MarshalPila/UnmarshalPila (see pila.go);
	// they are the UUID-based equivalent of the index fields above, used so
	// that a persisted flow survives reordering of the in-memory slice.
	UniqueID         uuid.UUID  `yaml:"unique_id,omitempty" json:"unique_id,omitempty"`
	PreviousTaskID   *uuid.UUID `yaml:"previous_task_id,omitempty" json:"previous_task_id,omitempty"`
	NextCyclicTaskID *uuid.UUID `yaml:"next_cyclic_task_id,omitempty" json:"next_cyclic_task_id,omitempty"`
}

// WorkerRoster entry: a worker's name and skill level.
type WorkerInfo struct {
	Name       string `yaml:"name" json:"name"`
	SkillLevel int    `yaml:"skill_level" json:"skill_level"`
}

// MachineInfo is one entry of the machine roster.
type MachineInfo struct {
	ID          string `yaml:"id" json:"id"`
	ProcessType string `yaml:"process_type" json:"process_type"`
}

// ResultRow is one compiled per-unit, per-instance execution record.
type ResultRow struct {
	TaskName        string    `json:"task_name"`
	TaskDetail      string    `json:"task_detail"`
	Department      string    `json:"department"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMin     float64   `json:"duration_min"`
	AssignedWorkers string    `json:"assigned_workers"`
	WorkerList      []string  `json:"worker_list"`
	MachineName     string    `json:"machine_name"`
	ProductCode     string    `json:"product_code"`
	ProductDesc     string    `json:"product_desc"`
	UnitNumber      int       `json:"unit_number"`
	FabricationID   string    `json:"fabrication_id"`
	FlowIndex       int       `json:"flow_index"`
	ParentIndex     int       `json:"parent_index"`
	StartFormatted  string    `json:"start_formatted"`
	EndFormatted    string    `json:"end_formatted"`
	WorkDays        int       `json:"work_days"`
}

// SimulationResult is the engine's full output: compiled rows plus the
// audit trail of decisions made while producing them.
type SimulationResult struct {
	Results  []ResultRow           `json:"results"`
	AuditLog []CalculationDecision `json:"audit_log"`
	Stats    *EngineStats          `json:"stats,omitempty"`
}
