package domain

import "testing"

func TestHopperCollectAndDump(t *testing.T) {
	h := NewHopper(Vehicle{ID: "v1", Capacity: 10, MaxShift: 100})

	for _, d := range []int{4, 6} {
		if err := h.Collect(d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if h.Load != 10 {
		t.Fatalf("Load = %d, want 10", h.Load)
	}

	if err := h.Collect(3); err == nil {
		t.Fatalf("expected capacity error, got nil")
	}
	if h.Load != 10 {
		t.Errorf("failed collect must not change load, got %d", h.Load)
	}

	h.Dump()
	if h.Load != 0 || h.Dumps != 1 {
		t.Fatalf("after dump: load=%d dumps=%d", h.Load, h.Dumps)
	}

	if err := h.Collect(3); err != nil {
		t.Fatalf("unexpected error after dump: %v", err)
	}
	if h.Collected != 13 {
		t.Errorf("Collected = %d, want 13", h.Collected)
	}
}

func TestHopperFitsZeroDemand(t *testing.T) {
	h := &Hopper{VehicleID: "v", Capacity: 5, Load: 5}
	if !h.Fits(0) {
		t.Errorf("zero demand must always fit")
	}
	if h.Fits(1) {
		t.Errorf("full hopper must reject positive demand")
	}
}
