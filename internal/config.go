// Engine and calendar configuration, loaded from YAML. Structure and
// loading approach ported from vmi's config.go, generalized from a
// single top-level section to this domain's engine_config +
// calendar_config pair.
//
// Expected file shape:
//
//  engine_config:
//    log_config:
//      ...
//    store_config:
//      ...
//  calendar_config:
//    work_start_time: "08:00"
//    work_end_time: "17:00"
//    breaks:
//      - start: "12:00"
//        end: "13:00"
//    holidays:
//      - "2026-12-25"

package prodsched_internal

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ENGINE_CONFIG_SECTION_NAME   = "engine_config"
	CALENDAR_CONFIG_SECTION_NAME = "calendar_config"
)

// ConfigError reports a rejected configuration value — fail-fast input
// validation per spec §7, never a recovered-in-place condition.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for %q: %s", e.Field, e.Reason)
}

// EngineConfigFile is the `engine_config` top-level section: the ambient
// stack knobs (logging, storage) that are not part of the domain model
// itself.
type EngineConfigFile struct {
	LoggerConfig *EngineLoggerConfig `yaml:"log_config"`
	StoreConfig  *StoreConfig        `yaml:"store_config"`
}

func DefaultEngineConfigFile() *EngineConfigFile {
	return &EngineConfigFile{
		LoggerConfig: DefaultEngineLoggerConfig(),
		StoreConfig:  DefaultStoreConfig(),
	}
}

// CalendarBreakConfig is one daily break as HH:MM strings.
type CalendarBreakConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// CalendarConfigFile is the `calendar_config` top-level section.
type CalendarConfigFile struct {
	WorkStartTime string                `yaml:"work_start_time"`
	WorkEndTime   string                `yaml:"work_end_time"`
	Breaks        []CalendarBreakConfig `yaml:"breaks"`
	Holidays      []string              `yaml:"holidays"`
}

func DefaultCalendarConfigFile() *CalendarConfigFile {
	return &CalendarConfigFile{
		WorkStartTime: "08:00",
		WorkEndTime:   "17:00",
	}
}

// Build validates and converts the file-level calendar config into a
// WorkCalendar, returning a *ConfigError on any rejected value.
func (c *CalendarConfigFile) Build() (*WorkCalendar, error) {
	workStart, err := ParseTimeOfDay(c.WorkStartTime)
	if err != nil {
		return nil, &ConfigError{Field: "calendar_config.work_start_time", Reason: err.Error()}
	}
	workEnd, err := ParseTimeOfDay(c.WorkEndTime)
	if err != nil {
		return nil, &ConfigError{Field: "calendar_config.work_end_time", Reason: err.Error()}
	}

	breaks := make([]WorkBreak, 0, len(c.Breaks))
	for i, b := range c.Breaks {
		start, err := ParseTimeOfDay(b.Start)
		if err != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("calendar_config.breaks[%d].start", i), Reason: err.Error()}
		}
		end, err := ParseTimeOfDay(b.End)
		if err != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("calendar_config.breaks[%d].end", i), Reason: err.Error()}
		}
		breaks = append(breaks, WorkBreak{Start: start, End: end})
	}

	holidays := make([]time.Time, 0, len(c.Holidays))
	for i, h := range c.Holidays {
		d, err := time.Parse("2006-01-02", h)
		if err != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("calendar_config.holidays[%d]", i), Reason: err.Error()}
		}
		holidays = append(holidays, d)
	}

	wc, err := NewWorkCalendar(workStart, workEnd, breaks, holidays)
	if err != nil {
		return nil, &ConfigError{Field: "calendar_config", Reason: err.Error()}
	}
	return wc, nil
}

// RootConfigFile is the full top-level YAML document.
type RootConfigFile struct {
	Engine   *EngineConfigFile   `yaml:"engine_config"`
	Calendar *CalendarConfigFile `yaml:"calendar_config"`
}

func DefaultRootConfigFile() *RootConfigFile {
	return &RootConfigFile{
		Engine:   DefaultEngineConfigFile(),
		Calendar: DefaultCalendarConfigFile(),
	}
}

// LoadConfig reads and parses a YAML config file (or, for tests, a
// pre-populated buf), merging the loaded values over the defaults. The path
// is expanded for environment variables first (e.g. "$HOME/prodsched.yaml"),
// the same `os.ExpandEnv` step `BuildHtmlBasicAuth`'s `LoadPasswordSpec`
// applies to a `file:` password spec.
func LoadConfig(cfgFile string, buf []byte) (*RootConfigFile, error) {
	if buf == nil {
		f, err := os.Open(os.ExpandEnv(cfgFile))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		buf, err = io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", cfgFile, err)
		}
	}

	cfg := DefaultRootConfigFile()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("file %q: %w", cfgFile, err)
	}
	return cfg, nil
}
