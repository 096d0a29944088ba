// The public face of the scheduling core for callers of this package.

package prodsched

import (
	"time"

	"github.com/sirupsen/logrus"

	prodsched_internal "github.com/hipatia-systems/prodsched/internal"
)

// Re-exported data model types (spec §3).
type (
	ProductionFlowStep  = prodsched_internal.ProductionFlowStep
	TaskDescriptor      = prodsched_internal.TaskDescriptor
	WorkerRef           = prodsched_internal.WorkerRef
	WorkerInfo          = prodsched_internal.WorkerInfo
	MachineInfo         = prodsched_internal.MachineInfo
	ReassignmentRule    = prodsched_internal.ReassignmentRule
	ResultRow           = prodsched_internal.ResultRow
	SimulationResult    = prodsched_internal.SimulationResult
	CalculationDecision = prodsched_internal.CalculationDecision
	ConfigError         = prodsched_internal.ConfigError
)

const (
	AfterUnits   = prodsched_internal.AfterUnits
	OnFinish     = prodsched_internal.OnFinish
	ParallelJoin = prodsched_internal.ParallelJoin
	Replace      = prodsched_internal.Replace
)

// WorkCalendar and its configuration (C1).
type (
	WorkCalendar       = prodsched_internal.WorkCalendar
	WorkBreak          = prodsched_internal.WorkBreak
	TimeOfDay          = prodsched_internal.TimeOfDay
	CalendarConfigFile = prodsched_internal.CalendarConfigFile
)

// NewWorkCalendar builds a WorkCalendar from explicit shift/break/holiday
// values, for callers that assemble their calendar without a config file.
func NewWorkCalendar(workStart, workEnd TimeOfDay, breaks []WorkBreak, holidays []time.Time) (*WorkCalendar, error) {
	return prodsched_internal.NewWorkCalendar(workStart, workEnd, breaks, holidays)
}

// ParseTimeOfDay parses an "HH:MM" string into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	return prodsched_internal.ParseTimeOfDay(s)
}

// EngineConfig and EventEngine (C4), the package's main entry point.
type (
	EngineConfig = prodsched_internal.EngineConfig
	EventEngine  = prodsched_internal.EventEngine
)

// NewEventEngine builds an EventEngine from the given config.
func NewEventEngine(cfg EngineConfig) (*EventEngine, error) {
	return prodsched_internal.NewEventEngine(cfg)
}

// Configuration loading.
type RootConfigFile = prodsched_internal.RootConfigFile

func LoadConfig(cfgFile string, buf []byte) (*RootConfigFile, error) {
	return prodsched_internal.LoadConfig(cfgFile, buf)
}

// EventStore and StoreConfig (persistence and checkpointing, §6).
type (
	EventStore  = prodsched_internal.EventStore
	StoreConfig = prodsched_internal.StoreConfig
)

func NewEventStore(cfg *StoreConfig) (*EventStore, error) {
	return prodsched_internal.NewEventStore(cfg)
}

// Pila persistence (§6, §9): UUID-based flow serialization.
func MarshalPila(flow []ProductionFlowStep) []ProductionFlowStep {
	return prodsched_internal.MarshalPila(flow)
}

func UnmarshalPila(flow []ProductionFlowStep) []ProductionFlowStep {
	return prodsched_internal.UnmarshalPila(flow)
}

// Logging: the root logger is needed only for tests where the logger is
// captured (see testutils/log_collector.go); its actual type is
// obscured.
func GetRootLogger() any { return prodsched_internal.RootLogger }

func SetLogger(cfg *prodsched_internal.EngineLoggerConfig) error {
	return prodsched_internal.SetLogger(cfg)
}

// NewCompLogger returns a component-scoped logger, for callers embedding
// this package that want to tag their own log lines consistently.
func NewCompLogger(comp string) *logrus.Entry {
	return prodsched_internal.NewCompLogger(comp)
}
