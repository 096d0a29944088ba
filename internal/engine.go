// EventEngine orchestrates the discrete-event simulation: it owns the
// clock, the event queue, every task's timeline, and the resource
// calendar, and drives them from a ProductionFlow to a compiled result.
// Grounded on event_engine.py's MotorDeEventos, adapted to a
// single-threaded cooperative loop per this domain's concurrency model
// (the original used a ThreadPoolExecutor; that parallelism belongs to
// the caller, not the simulator).

package prodsched_internal

import (
	"fmt"
	"sort"
	"time"

	"github.com/docker/go-units"
)

var engineLog = NewCompLogger("engine")

// IdleWaitThreshold is the minimum projected wait before an idle worker
// generates a WARNING audit decision (spec §4.4.7).
const IdleWaitThreshold = 5 * time.Minute

// EngineConfig bundles the caller-supplied roster and calendar data an
// EventEngine needs at construction time.
type EngineConfig struct {
	ProductionFlow []ProductionFlowStep
	Workers        []WorkerInfo
	Machines       []MachineInfo
	WorkCalendar   *WorkCalendar
	RunStart       time.Time
	Store          *EventStore // optional; nil disables persistence and replay-based compilation
}

// EventEngine is the C4 component: the priority-queue simulator tying
// together timelines, the resource calendar and the working calendar.
type EventEngine struct {
	flow     []ProductionFlowStep
	calendar *WorkCalendar
	resource *ResourceCalendar
	store    *EventStore

	now     time.Time
	queue   *eventQueue
	audit   *auditLog
	stats   *EngineStats

	timelines     map[string]*TaskTimeline
	indexToTaskID map[int]string
	taskIDToIndex map[string]int

	machines map[string]MachineInfo

	earliestStart      time.Time
	completedFinEvents []*SimulationEvent
}

// NewEventEngine builds an engine from config, wiring every task's
// timeline, registering workers and machines with the resource calendar,
// and pushing every configured reassignment rule into its registry.
// Spec §4.4.1.
func NewEventEngine(cfg EngineConfig) (*EventEngine, error) {
	if cfg.WorkCalendar == nil {
		return nil, &ConfigError{Field: "work_calendar", Reason: "must not be nil"}
	}
	stats := newEngineStats()
	eng := &EventEngine{
		flow:          cfg.ProductionFlow,
		calendar:      cfg.WorkCalendar,
		resource:      NewResourceCalendar(cfg.WorkCalendar),
		store:         cfg.Store,
		now:           cfg.RunStart,
		queue:         newEventQueue(),
		audit:         &auditLog{stats: stats},
		stats:         stats,
		timelines:     make(map[string]*TaskTimeline),
		indexToTaskID: make(map[int]string),
		taskIDToIndex: make(map[string]int),
		machines:      make(map[string]MachineInfo),
	}

	for _, w := range cfg.Workers {
		eng.resource.RegisterResource(w.Name, ResourceWorker)
	}
	for _, m := range cfg.Machines {
		eng.resource.RegisterResource(m.ID, ResourceMachine)
		eng.machines[m.ID] = m
	}

	seenIDs := make(map[string]struct{}, len(cfg.ProductionFlow))
	for i, step := range cfg.ProductionFlow {
		if step.Task.ID == "" {
			return nil, &ConfigError{Field: fmt.Sprintf("flow[%d].task.id", i), Reason: "must not be empty"}
		}
		if _, dup := seenIDs[step.Task.ID]; dup {
			return nil, &ConfigError{Field: fmt.Sprintf("flow[%d].task.id", i), Reason: "duplicate task id"}
		}
		seenIDs[step.Task.ID] = struct{}{}
		if step.PreviousTaskIndex != nil && (*step.PreviousTaskIndex < 0 || *step.PreviousTaskIndex >= len(cfg.ProductionFlow)) {
			return nil, &ConfigError{Field: fmt.Sprintf("flow[%d].previous_task_index", i), Reason: "out of range"}
		}
		if step.NextCyclicTaskIndex != nil && (*step.NextCyclicTaskIndex < 0 || *step.NextCyclicTaskIndex >= len(cfg.ProductionFlow)) {
			return nil, &ConfigError{Field: fmt.Sprintf("flow[%d].next_cyclic_task_index", i), Reason: "out of range"}
		}
		if step.Task.DurationPerUnit < 0 {
			return nil, &ConfigError{Field: fmt.Sprintf("flow[%d].task.duration_per_unit", i), Reason: "must not be negative"}
		}

		tl := NewTaskTimeline(step.Task, step.TriggerUnits, step.PreviousTaskIndex)
		eng.timelines[step.Task.ID] = tl
		eng.indexToTaskID[i] = step.Task.ID
		eng.taskIDToIndex[step.Task.ID] = i

		for _, ref := range step.Workers {
			tl.addAssignedWorker(ref.Name)
			if ref.ReassignmentRule != nil {
				eng.resource.RegisterReassignmentRule(ReassignmentRegistryEntry{
					WorkerID:     ref.Name,
					SourceTaskID: step.Task.ID,
					TargetTaskID: ref.ReassignmentRule.TargetTaskID,
					Rule:         *ref.ReassignmentRule,
				})
			}
		}
	}

	engineLog.Infof("engine initialized with %d tasks", len(eng.timelines))
	return eng, nil
}

func (e *EventEngine) flowStep(taskID string) (ProductionFlowStep, int, bool) {
	idx, ok := e.taskIDToIndex[taskID]
	if !ok {
		return ProductionFlowStep{}, 0, false
	}
	return e.flow[idx], idx, true
}

func (e *EventEngine) minPredecessorUnits(step ProductionFlowStep) int {
	if step.MinPredecessorUnits <= 0 {
		return 1
	}
	return step.MinPredecessorUnits
}

// seedRoots emits the initial INICIO_UNIDAD events for every true root
// (is_cycle_start with no standard predecessor), advancing `now` to the
// earliest root timestamp. Spec §4.4.2.
func (e *EventEngine) seedRoots() {
	type root struct {
		taskID string
		at     time.Time
	}
	var roots []root
	for i, step := range e.flow {
		taskID := e.indexToTaskID[i]
		if !step.IsCycleStart {
			continue
		}
		if step.PreviousTaskIndex != nil {
			engineLog.Warnf("task %q marked is_cycle_start but has a standard predecessor; not used as root", step.Task.Name)
			continue
		}
		at := e.now
		if step.ScheduledStartDate != nil && step.ScheduledStartDate.After(at) {
			at = *step.ScheduledStartDate
		}
		roots = append(roots, root{taskID: taskID, at: at})
	}

	if len(roots) == 0 {
		return
	}
	earliest := roots[0].at
	for _, r := range roots[1:] {
		if r.at.Before(earliest) {
			earliest = r.at
		}
	}
	e.now = earliest

	for _, r := range roots {
		if e.queue.hasFutureEvent(r.taskID, 1) {
			continue
		}
		tl := e.timelines[r.taskID]
		if len(tl.WorkersAssigned) == 0 {
			engineLog.Warnf("root task %q has no assigned workers; skipping initial event", tl.Task.Name)
			continue
		}
		ts := r.at
		if ts.Before(e.now) {
			ts = e.now
		}
		inst := tl.StartInitialInstance(tl.WorkersAssigned, 1)
		ev := &SimulationEvent{
			Timestamp: ts,
			Kind:      EventInicioUnidad,
			Inicio:    &InicioUnidadData{TaskID: r.taskID, Unit: 1, InstanceID: inst.ID},
		}
		e.queue.schedule(ev)
		e.audit.record(newDecision(ts, DecisionRootSeeded, StatusNeutral, tl.Task.Name,
			"true root seeded", fmt.Sprintf("%q is a production starting point", tl.Task.Name), nil))
	}
}

// Run drains the queue to completion and returns the compiled result.
// Spec §4.4.3/§4.4.8.
func (e *EventEngine) Run() (*SimulationResult, error) {
	e.seedRoots()

	for {
		ev := e.queue.popMin()
		if ev == nil {
			break
		}
		if ev.Cancelled {
			continue
		}
		e.now = ev.Timestamp
		e.stats.EventsProcessed++

		switch ev.Kind {
		case EventInicioUnidad:
			e.handleInicioUnidad(ev)
		case EventFinBloqueTrabajo:
			e.handleFinBloque(ev)
		case EventReasignacionTrabajador:
			e.handleReasignacion(ev)
		case EventTiempoInactivo:
			// Re-check only; nothing to mutate, the wakeup check already
			// ran when the worker went idle. Kept as a queued no-op so the
			// audit trail shows the re-check happened.
		}

		if e.store != nil {
			if err := e.store.Append(ev); err != nil {
				engineLog.Errorf("store append failed: %v", err)
			}
		}
	}

	if e.store != nil {
		if err := e.store.Flush(); err != nil {
			engineLog.Errorf("store flush failed: %v", err)
		}
	}

	return e.compileResults()
}

// handleInicioUnidad implements spec §4.4.4.
func (e *EventEngine) handleInicioUnidad(ev *SimulationEvent) {
	data := ev.Inicio
	tl, ok := e.timelines[data.TaskID]
	if !ok {
		engineLog.Errorf("INICIO_UNIDAD for unknown task %q", data.TaskID)
		return
	}
	inst := tl.instanceByID(data.InstanceID)
	if inst == nil {
		engineLog.Warnf("INICIO_UNIDAD for task %q: instance %s not found (likely cancelled)", tl.Task.Name, data.InstanceID)
		return
	}
	if tl.IsComplete() {
		engineLog.Debugf("INICIO_UNIDAD for task %q dropped: task already complete", tl.Task.Name)
		return
	}
	if len(inst.Workers) == 0 && !tl.Task.HasMachine() {
		engineLog.Errorf("INICIO_UNIDAD for task %q: instance has no workers and no machine", tl.Task.Name)
		return
	}

	resources := append([]string(nil), inst.Workers...)
	if tl.Task.HasMachine() {
		resources = append(resources, tl.Task.MachineID)
	}

	proposedStart := ev.Timestamp
	actualStart := proposedStart
	for _, r := range resources {
		kind := ResourceWorker
		if r == tl.Task.MachineID {
			kind = ResourceMachine
		}
		candidate := e.resource.NextAvailable(r, proposedStart, kind)
		if candidate.After(actualStart) {
			actualStart = candidate
		}
	}

	unitDuration := tl.Task.DurationPerUnit
	if !tl.Task.HasMachine() && len(inst.Workers) > 0 {
		unitDuration = tl.Task.DurationPerUnit / float64(len(inst.Workers))
	}
	actualEnd := e.calendar.AddWorkMinutes(actualStart, unitDuration)

	for _, r := range resources {
		kind := ResourceWorker
		if r == tl.Task.MachineID {
			kind = ResourceMachine
		}
		if err := e.resource.Assign(r, actualStart, actualEnd, tl.Task.ID, kind); err != nil {
			engineLog.Errorf("assign failed for task %q resource %q: %v", tl.Task.Name, r, err)
			return
		}
	}

	if e.earliestStart.IsZero() || actualStart.Before(e.earliestStart) {
		e.earliestStart = actualStart
	}

	finEv := &SimulationEvent{
		Timestamp: actualEnd,
		Kind:      EventFinBloqueTrabajo,
		FinBloque: &FinBloqueData{
			TaskID:           tl.Task.ID,
			Unit:             data.Unit,
			InstanceID:       inst.ID,
			Workers:          append([]string(nil), inst.Workers...),
			Start:            actualStart,
			MachineID:        tl.Task.MachineID,
			ComputedDuration: unitDuration,
		},
	}
	e.queue.schedule(finEv)
	e.stats.taskStats(tl.Task.ID).UnitsScheduled++

	e.audit.record(newDecision(actualStart, DecisionUnitStarted, StatusNeutral, tl.Task.Name,
		fmt.Sprintf("unit %d started with workers %v", data.Unit, inst.Workers),
		fmt.Sprintf("started unit %d of %q", data.Unit, tl.Task.Name), nil))
}

// handleFinBloque implements the priority chain of spec §4.4.5.
func (e *EventEngine) handleFinBloque(ev *SimulationEvent) {
	data := ev.FinBloque
	tl, ok := e.timelines[data.TaskID]
	if !ok {
		engineLog.Errorf("FIN_BLOQUE_TRABAJO for unknown task %q", data.TaskID)
		return
	}

	completion := tl.CompleteInstanceUnit(data.InstanceID)
	if !completion.Found {
		return
	}
	e.completedFinEvents = append(e.completedFinEvents, ev)
	e.stats.taskStats(tl.Task.ID).UnitsExecuted++

	e.audit.record(newDecision(ev.Timestamp, DecisionUnitCompleted, StatusPositive, tl.Task.Name,
		fmt.Sprintf("unit %d completed", data.Unit),
		fmt.Sprintf("%q finished unit %d", tl.Task.Name, data.Unit),
		map[string]any{"unit": data.Unit, "duration_min": data.ComputedDuration}))

	step, _, _ := e.flowStep(data.TaskID)
	freed := completion.WorkersReleased

	onFinishRules := e.resource.RulesFor(data.TaskID, freed)
	var onFinish, afterUnitsNow []ReassignmentRegistryEntry
	for _, r := range onFinishRules {
		switch r.Rule.ConditionType {
		case OnFinish:
			onFinish = append(onFinish, r)
		case AfterUnits:
			if r.Rule.ConditionValue <= tl.UnitsFinalizedTotal {
				afterUnitsNow = append(afterUnitsNow, r)
			}
		}
	}
	finalRuleApplies := completion.TaskCompleted && len(onFinish) > 0

	switch {
	case completion.TaskCompleted && finalRuleApplies:
		// P1
		e.audit.record(newDecision(ev.Timestamp, DecisionTaskCompleted, StatusPositive, tl.Task.Name,
			"task completed with ON_FINISH reassignment rules", fmt.Sprintf("%q is complete", tl.Task.Name), nil))
		handled := make(map[string]struct{}, len(onFinish))
		for _, rule := range onFinish {
			e.emitReasignacion(rule, ev.Timestamp, "ON_FINISH rule on task completion")
			e.resource.RemoveRule(rule)
			handled[rule.WorkerID] = struct{}{}
		}
		for _, w := range freed {
			if _, ok := handled[w]; !ok {
				e.recordIdle(tl, []string{w}, ev.Timestamp)
			}
		}

	case completion.TaskCompleted && !finalRuleApplies:
		// P2
		e.audit.record(newDecision(ev.Timestamp, DecisionTaskCompleted, StatusPositive, tl.Task.Name,
			"task completed", fmt.Sprintf("%q is complete", tl.Task.Name), nil))
		if step.NextCyclicTaskIndex != nil {
			e.migrateCycle(tl, step, freed, ev.Timestamp)
		} else {
			e.queue.cancelAllForTask(data.TaskID)
			e.recordIdle(tl, freed, ev.Timestamp)
		}

	case !completion.TaskCompleted && len(afterUnitsNow) > 0:
		// P3
		for _, rule := range afterUnitsNow {
			e.emitReasignacion(rule, ev.Timestamp, "AFTER_UNITS threshold reached")
			e.resource.RemoveRule(rule)
		}

	case !completion.TaskCompleted && step.NextCyclicTaskIndex != nil && step.UnitsPerCycle != nil && *step.UnitsPerCycle > 0 &&
		tl.UnitsFinalizedTotal%(*step.UnitsPerCycle) == 0:
		// P4
		e.migrateCycle(tl, step, freed, ev.Timestamp)

	default:
		// P5 — continuation
		e.continueTask(tl, step, freed, ev.Timestamp)
	}

	e.cascadeDependencies(data.TaskID, tl.UnitsFinalizedTotal, ev.Timestamp, make(map[string]struct{}))
}

func (e *EventEngine) emitReasignacion(entry ReassignmentRegistryEntry, at time.Time, reason string) {
	ev := &SimulationEvent{
		Timestamp: at,
		Kind:      EventReasignacionTrabajador,
		Reasign: &ReasignacionData{
			WorkerID:     entry.WorkerID,
			SourceTaskID: entry.SourceTaskID,
			TargetTaskID: entry.TargetTaskID,
			Mode:         entry.Rule.Mode,
			Reason:       reason,
		},
	}
	e.queue.schedule(ev)
	e.audit.record(newDecision(at, DecisionReassignment, StatusNeutral, entry.SourceTaskID,
		fmt.Sprintf("worker %q reassigned to %q: %s", entry.WorkerID, entry.TargetTaskID, reason),
		fmt.Sprintf("%q moves to a new task", entry.WorkerID), map[string]any{"mode": entry.Rule.Mode}))
}

// migrateCycle implements the shared cycle-migration routine for P2/P4
// (spec §4.4.5).
func (e *EventEngine) migrateCycle(tl *TaskTimeline, step ProductionFlowStep, freed []string, at time.Time) {
	targetID := e.indexToTaskID[*step.NextCyclicTaskIndex]
	target, ok := e.timelines[targetID]
	if !ok {
		engineLog.Errorf("cycle target %q not found for task %q", targetID, tl.Task.Name)
		e.recordIdle(tl, freed, at)
		return
	}

	nextUnit := target.UnitsFinalizedTotal + 1
	if nextUnit > target.UnitsToProduce {
		e.recordIdle(tl, freed, at)
		return
	}
	if e.queue.hasFutureEvent(targetID, nextUnit) {
		e.audit.record(newDecision(at, DecisionDuplicateSuppressed, StatusNeutral, target.Task.Name,
			"cycle migration suppressed: unit already scheduled",
			fmt.Sprintf("%q unit %d is already underway", target.Task.Name, nextUnit), nil))
		e.recordIdle(tl, freed, at)
		return
	}

	inst := target.StartInitialInstance(freed, nextUnit)
	ev := &SimulationEvent{
		Timestamp: at,
		Kind:      EventInicioUnidad,
		Inicio:    &InicioUnidadData{TaskID: targetID, Unit: nextUnit, InstanceID: inst.ID, ActivatedByCycle: true},
	}
	e.queue.schedule(ev)
	e.audit.record(newDecision(at, DecisionMigrationCyclic, StatusPositive, tl.Task.Name,
		fmt.Sprintf("workers %v cycled from %q into %q unit %d", freed, tl.Task.Name, target.Task.Name, nextUnit),
		fmt.Sprintf("workers move from %q to %q", tl.Task.Name, target.Task.Name), nil))
}

// continueTask implements P5: find the next unit for the freed workers,
// check dependency gating, and either continue or record idle.
func (e *EventEngine) continueTask(tl *TaskTimeline, step ProductionFlowStep, freed []string, at time.Time) {
	nextUnit, ok := tl.NextAvailableUnit()
	if !ok {
		e.recordIdle(tl, freed, at)
		return
	}

	if step.PreviousTaskIndex != nil {
		predID := e.indexToTaskID[*step.PreviousTaskIndex]
		pred, ok := e.timelines[predID]
		if !ok {
			engineLog.Errorf("predecessor %q not found for task %q", predID, tl.Task.Name)
			e.recordIdle(tl, freed, at)
			return
		}
		required := nextUnit * e.minPredecessorUnits(step)
		if pred.UnitsFinalizedTotal < required {
			e.recordIdleWaitingFor(tl, freed, at, pred)
			return
		}
	}

	inst := tl.StartInitialInstance(freed, nextUnit)
	ev := &SimulationEvent{
		Timestamp: at,
		Kind:      EventInicioUnidad,
		Inicio:    &InicioUnidadData{TaskID: tl.Task.ID, Unit: nextUnit, InstanceID: inst.ID},
	}
	e.queue.schedule(ev)
}

// cascadeDependencies wakes successors transitively through completed
// tasks. Spec §4.4.5 step 4.
func (e *EventEngine) cascadeDependencies(taskID string, finalizedTotal int, at time.Time, visited map[string]struct{}) {
	if _, seen := visited[taskID]; seen {
		return
	}
	visited[taskID] = struct{}{}

	for i, step := range e.flow {
		if step.PreviousTaskIndex == nil || e.indexToTaskID[*step.PreviousTaskIndex] != taskID {
			continue
		}
		successorID := e.indexToTaskID[i]
		successor := e.timelines[successorID]

		if successor.IsComplete() {
			e.cascadeDependencies(successorID, successor.UnitsFinalizedTotal, at, visited)
			continue
		}

		nextUnit, ok := successor.NextAvailableUnit()
		if !ok {
			continue
		}
		required := nextUnit * e.minPredecessorUnits(step)
		if finalizedTotal < required {
			continue
		}
		if e.queue.hasFutureEvent(successorID, nextUnit) {
			continue
		}
		if len(successor.WorkersAssigned) == 0 {
			continue
		}

		if step.ScheduledStartDate != nil {
			e.audit.record(newDecision(at, DecisionScheduledDateIgnored, StatusNeutral, successor.Task.Name,
				"scheduled_start_date overridden by satisfied dependency",
				fmt.Sprintf("%q starts now because its predecessor is ready", successor.Task.Name), nil))
		}

		inst := successor.StartInitialInstance(successor.WorkersAssigned, nextUnit)
		ev := &SimulationEvent{
			Timestamp: at,
			Kind:      EventInicioUnidad,
			Inicio:    &InicioUnidadData{TaskID: successorID, Unit: nextUnit, InstanceID: inst.ID},
		}
		e.queue.schedule(ev)
		e.audit.record(newDecision(at, DecisionDependencyWakeup, StatusNeutral, successor.Task.Name,
			fmt.Sprintf("dependency satisfied, starting unit %d", nextUnit),
			fmt.Sprintf("%q can now start its next unit", successor.Task.Name), nil))

		e.cascadeDependencies(successorID, successor.UnitsFinalizedTotal, at, visited)
	}
}

// handleReasignacion implements spec §4.4.6.
func (e *EventEngine) handleReasignacion(ev *SimulationEvent) {
	data := ev.Reasign
	source, ok := e.timelines[data.SourceTaskID]
	if ok {
		source.removeAssignedWorker(data.WorkerID)
	}
	target, ok := e.timelines[data.TargetTaskID]
	if !ok {
		engineLog.Errorf("reassignment target %q not found", data.TargetTaskID)
		return
	}

	switch data.Mode {
	case ParallelJoin:
		inst := target.AddParallelInstance(data.WorkerID)
		if inst == nil {
			e.recordIdle(target, []string{data.WorkerID}, ev.Timestamp)
			return
		}
		finEv := &SimulationEvent{
			Timestamp: ev.Timestamp,
			Kind:      EventInicioUnidad,
			Inicio:    &InicioUnidadData{TaskID: target.Task.ID, Unit: inst.Unit, InstanceID: inst.ID},
		}
		e.queue.schedule(finEv)

	case Replace:
		target.addAssignedWorker(data.WorkerID)
		e.recomputeFutureEvents(target, ev.Timestamp)
	}
}

// recomputeFutureEvents cancels a timeline's outstanding events and
// regenerates production from the current state with its (now enlarged)
// worker team — the REPLACE-mode routine of spec §4.4.6.
func (e *EventEngine) recomputeFutureEvents(tl *TaskTimeline, at time.Time) {
	e.queue.cancelAllForTask(tl.Task.ID)
	if tl.IsComplete() || len(tl.ActiveInstances) > 0 {
		return
	}
	nextUnit, ok := tl.NextAvailableUnit()
	if !ok {
		return
	}
	inst := tl.StartInitialInstance(tl.WorkersAssigned, nextUnit)
	ev := &SimulationEvent{
		Timestamp: at,
		Kind:      EventInicioUnidad,
		Inicio:    &InicioUnidadData{TaskID: tl.Task.ID, Unit: nextUnit, InstanceID: inst.ID},
	}
	e.queue.schedule(ev)
}

// recordIdle reports workers becoming idle without a known upstream
// driver to wait on (spec §4.4.7).
func (e *EventEngine) recordIdle(tl *TaskTimeline, workers []string, at time.Time) {
	e.recordIdleWaitingFor(tl, workers, at, nil)
}

// recordIdleWaitingFor reports workers idle while waiting on a specific
// predecessor timeline; emits a WARNING decision per worker once the
// projected wait exceeds IdleWaitThreshold.
func (e *EventEngine) recordIdleWaitingFor(tl *TaskTimeline, workers []string, at time.Time, waitingFor *TaskTimeline) {
	if len(workers) == 0 {
		return
	}
	e.stats.recordIdle(tl.Task.ID, len(workers))

	wait, waitingForName := e.projectIdleWait(waitingFor)
	if wait < IdleWaitThreshold {
		return
	}
	for _, w := range workers {
		e.audit.record(newDecision(at, DecisionIdleWorker, StatusWarning, tl.Task.Name,
			fmt.Sprintf("worker %q idle for %s waiting on %q", w, units.HumanDuration(wait), waitingForName),
			fmt.Sprintf("%q is waiting on %q", w, waitingForName),
			map[string]any{"worker": w, "wait_minutes": wait.Minutes(), "blocked_task": tl.Task.Name, "waiting_for": waitingForName}))
		e.stats.recordIdleMinutes(tl.Task.ID, wait.Minutes())
	}
}

// projectIdleWait scans the queue for the next FIN_BLOQUE_TRABAJO of the
// given predecessor timeline, returning the wait until it and its name.
func (e *EventEngine) projectIdleWait(waitingFor *TaskTimeline) (time.Duration, string) {
	if waitingFor == nil {
		return 0, ""
	}
	var soonest *time.Time
	for _, ev := range e.queue.items {
		if ev.Cancelled || ev.Kind != EventFinBloqueTrabajo {
			continue
		}
		if ev.FinBloque.TaskID != waitingFor.Task.ID {
			continue
		}
		if soonest == nil || ev.Timestamp.Before(*soonest) {
			ts := ev.Timestamp
			soonest = &ts
		}
	}
	if soonest == nil {
		return 0, waitingFor.Task.Name
	}
	wait := soonest.Sub(e.now)
	if wait < 0 {
		wait = 0
	}
	return wait, waitingFor.Task.Name
}

func (tl *TaskTimeline) removeAssignedWorker(worker string) {
	out := tl.WorkersAssigned[:0]
	for _, w := range tl.WorkersAssigned {
		if w != worker {
			out = append(out, w)
		}
	}
	tl.WorkersAssigned = out
}

// compileResults replays FIN_BLOQUE events from the store (spec §4.4.8).
// Without a store, it falls back to compiling directly from in-memory
// history recorded during the run.
func (e *EventEngine) compileResults() (*SimulationResult, error) {
	var rows []ResultRow

	var finEvents []*SimulationEvent
	if e.store != nil {
		replayed, err := e.store.ReplayFinBloque()
		if err != nil {
			return nil, fmt.Errorf("replaying temporal store: %w", err)
		}
		finEvents = replayed
	} else {
		finEvents = e.completedFinEvents
	}

	for _, ev := range finEvents {
		data := ev.FinBloque
		tl, ok := e.timelines[data.TaskID]
		if !ok {
			continue
		}
		actualWorkMinutes := e.calendar.WorkMinutesBetween(data.Start, ev.Timestamp)
		row := ResultRow{
			TaskName:        tl.Task.Name,
			TaskDetail:      tl.Task.Name,
			Department:      tl.Task.Department,
			Start:           data.Start,
			End:             ev.Timestamp,
			DurationMin:     actualWorkMinutes,
			AssignedWorkers: joinWorkers(data.Workers),
			WorkerList:      data.Workers,
			MachineName:     data.MachineID,
			ProductCode:     tl.Task.ProductCode,
			ProductDesc:     tl.Task.ProductDesc,
			UnitNumber:      data.Unit,
			FabricationID:   tl.Task.FabricationID,
			FlowIndex:       e.taskIDToIndex[data.TaskID],
		}
		if idx, ok := e.taskIDToIndex[data.TaskID]; ok {
			if step := e.flow[idx]; step.PreviousTaskIndex != nil {
				row.ParentIndex = *step.PreviousTaskIndex
			} else {
				row.ParentIndex = -1
			}
		}
		row.StartFormatted = e.formatDayOffset(data.Start)
		row.EndFormatted = e.formatDayOffset(ev.Timestamp)
		row.WorkDays = e.calendar.CountWorkdays(data.Start, ev.Timestamp)
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Start.Before(rows[j].Start) })

	return &SimulationResult{
		Results:  rows,
		AuditLog: e.audit.sorted(),
		Stats:    e.stats,
	}, nil
}

// formatDayOffset renders a "Day N - HH:MM" label relative to the
// earliest unit start observed in the run (spec §4.4.8).
func (e *EventEngine) formatDayOffset(t time.Time) string {
	if e.earliestStart.IsZero() {
		return t.Format("15:04")
	}
	day := e.calendar.CountWorkdays(e.earliestStart, t)
	return fmt.Sprintf("Day %d - %s", day, t.Format("15:04"))
}

func joinWorkers(workers []string) string {
	out := ""
	for i, w := range workers {
		if i > 0 {
			out += ", "
		}
		out += w
	}
	return out
}
