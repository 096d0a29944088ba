package prodsched_internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", []byte(``))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Engine.LoggerConfig.Level != LOGGER_CONFIG_LEVEL_DEFAULT {
		t.Errorf("default log level = %q, want %q", cfg.Engine.LoggerConfig.Level, LOGGER_CONFIG_LEVEL_DEFAULT)
	}
	if cfg.Calendar.WorkStartTime != "08:00" || cfg.Calendar.WorkEndTime != "17:00" {
		t.Errorf("default calendar = %+v", cfg.Calendar)
	}
}

func TestLoadConfigOverridesMergeOverDefaults(t *testing.T) {
	data := `
engine_config:
  log_config:
    level: debug
calendar_config:
  work_start_time: "09:00"
  work_end_time: "18:00"
  breaks:
    - start: "13:00"
      end: "14:00"
  holidays:
    - "2026-01-01"
`
	cfg, err := LoadConfig("", []byte(data))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Engine.LoggerConfig.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Engine.LoggerConfig.Level)
	}
	if cfg.Calendar.WorkStartTime != "09:00" {
		t.Errorf("work_start_time = %q, want 09:00", cfg.Calendar.WorkStartTime)
	}
	wantBreaks := []CalendarBreakConfig{{Start: "13:00", End: "14:00"}}
	if diff := cmp.Diff(wantBreaks, cfg.Calendar.Breaks); diff != "" {
		t.Errorf("breaks mismatch (-want +got):\n%s", diff)
	}
	// Defaults not present in the document survive the merge.
	if cfg.Engine.StoreConfig.FlushInterval != STORE_CONFIG_FLUSH_INTERVAL_DEFAULT {
		t.Errorf("store flush_interval = %d, want default %d", cfg.Engine.StoreConfig.FlushInterval, STORE_CONFIG_FLUSH_INTERVAL_DEFAULT)
	}

	wc, err := cfg.Calendar.Build()
	if err != nil {
		t.Fatalf("Calendar.Build: %v", err)
	}
	if wc.WorkStart != (TimeOfDay{9, 0}) {
		t.Errorf("built calendar WorkStart = %v, want 09:00", wc.WorkStart)
	}
}

func TestCalendarConfigBuildRejectsBadTime(t *testing.T) {
	c := &CalendarConfigFile{WorkStartTime: "nope", WorkEndTime: "17:00"}
	_, err := c.Build()
	if err == nil {
		t.Fatal("expected error for invalid work_start_time")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}

func TestCalendarConfigBuildRejectsBadHoliday(t *testing.T) {
	c := &CalendarConfigFile{WorkStartTime: "08:00", WorkEndTime: "17:00", Holidays: []string{"not-a-date"}}
	_, err := c.Build()
	if err == nil {
		t.Fatal("expected error for invalid holiday date")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/no/such/file.yaml", nil); err == nil {
		t.Fatal("expected error opening a nonexistent config file")
	}
}

func TestLoadConfigExpandsEnvVarsInPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prodsched.yaml")
	if err := os.WriteFile(path, []byte("calendar_config:\n  work_start_time: \"09:00\"\n  work_end_time: \"18:00\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("PRODSCHED_TEST_CONFIG_DIR", dir)

	cfg, err := LoadConfig("$PRODSCHED_TEST_CONFIG_DIR/prodsched.yaml", nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Calendar.WorkStartTime != "09:00" {
		t.Errorf("work_start_time = %q, want 09:00 (env var in path not expanded)", cfg.Calendar.WorkStartTime)
	}
}
