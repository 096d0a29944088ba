package prodsched_internal

import (
	"testing"
)

func openTestStore(t *testing.T) *EventStore {
	t.Helper()
	cfg := &StoreConfig{DataDir: t.TempDir(), FlushInterval: 2}
	s, err := NewEventStore(cfg)
	if err != nil {
		t.Fatalf("NewEventStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEventStoreAppendFlushesAtThreshold(t *testing.T) {
	s := openTestStore(t)

	ev1 := &SimulationEvent{Kind: EventFinBloqueTrabajo, FinBloque: &FinBloqueData{TaskID: "A", Unit: 1}}
	if err := s.Append(ev1); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(s.buf) != 1 {
		t.Fatalf("buffered count = %d, want 1 (below flush threshold)", len(s.buf))
	}

	ev2 := &SimulationEvent{Kind: EventFinBloqueTrabajo, FinBloque: &FinBloqueData{TaskID: "A", Unit: 2}}
	if err := s.Append(ev2); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(s.buf) != 0 {
		t.Fatalf("buffered count = %d, want 0 (threshold reached, auto-flushed)", len(s.buf))
	}

	replayed, err := s.ReplayFinBloque()
	if err != nil {
		t.Fatalf("ReplayFinBloque: %v", err)
	}
	if len(replayed) != 2 {
		t.Fatalf("replayed count = %d, want 2", len(replayed))
	}
}

func TestEventStoreReplayFinBloqueFiltersOtherKinds(t *testing.T) {
	s := openTestStore(t)

	events := []*SimulationEvent{
		{Kind: EventFinBloqueTrabajo, FinBloque: &FinBloqueData{TaskID: "A", Unit: 1}},
		{Kind: EventInicioUnidad, Inicio: &InicioUnidadData{TaskID: "A", Unit: 2}},
		{Kind: EventReasignacionTrabajador, Reasign: &ReasignacionData{TargetTaskID: "B"}},
	}
	for _, ev := range events {
		if err := s.Append(ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	replayed, err := s.ReplayFinBloque()
	if err != nil {
		t.Fatalf("ReplayFinBloque: %v", err)
	}
	if len(replayed) != 1 {
		t.Fatalf("replayed count = %d, want 1 (only FIN_BLOQUE_TRABAJO)", len(replayed))
	}
	if replayed[0].FinBloque.TaskID != "A" || replayed[0].FinBloque.Unit != 1 {
		t.Errorf("replayed event = %+v, want task A unit 1", replayed[0].FinBloque)
	}
}

func TestEventStoreCheckpointRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if blob, err := s.LoadCheckpoint("missing"); err != nil || blob != nil {
		t.Fatalf("LoadCheckpoint(missing) = (%v, %v), want (nil, nil)", blob, err)
	}

	payload := []byte(`{"clock":"2026-08-03T08:00:00Z"}`)
	if err := s.SaveCheckpoint("run-1", payload); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	got, err := s.LoadCheckpoint("run-1")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("LoadCheckpoint = %q, want %q", got, payload)
	}
}

func TestEventStoreCloseFlushesBuffer(t *testing.T) {
	cfg := &StoreConfig{DataDir: t.TempDir(), FlushInterval: 1000}
	s, err := NewEventStore(cfg)
	if err != nil {
		t.Fatalf("NewEventStore: %v", err)
	}

	if err := s.Append(&SimulationEvent{Kind: EventFinBloqueTrabajo, FinBloque: &FinBloqueData{TaskID: "A", Unit: 1}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(s.buf) != 1 {
		t.Fatalf("buffered count = %d, want 1 before Close", len(s.buf))
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(s.buf) != 0 {
		t.Fatalf("buffered count = %d, want 0 after Close", len(s.buf))
	}
}
