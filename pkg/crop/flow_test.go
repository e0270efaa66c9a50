package crop

import "testing"

func TestFlowInitialState(t *testing.T) {
	f := NewFlow()
	if f.State() != Idle {
		t.Errorf("Expected Idle, got %v", f.State())
	}
}

func TestFlowHappyPath(t *testing.T) {
	f := NewFlow()

	if err := f.Select(); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if f.State() != Cropping {
		t.Errorf("Expected Cropping, got %v", f.State())
	}

	if err := f.Confirm(); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if f.State() != Searching {
		t.Errorf("Expected Searching, got %v", f.State())
	}

	if err := f.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if f.State() != Displaying {
		t.Errorf("Expected Displaying, got %v", f.State())
	}

	// A new selection is allowed from Displaying.
	if err := f.Select(); err != nil {
		t.Fatalf("Select from Displaying failed: %v", err)
	}
	if f.State() != Cropping {
		t.Errorf("Expected Cropping, got %v", f.State())
	}
}

func TestFlowCancelReturnsToIdle(t *testing.T) {
	f := NewFlow()
	if err := f.Select(); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if err := f.CancelCrop(); err != nil {
		t.Fatalf("CancelCrop failed: %v", err)
	}
	if f.State() != Idle {
		t.Errorf("Expected Idle after cancel, got %v", f.State())
	}
}

func TestFlowBusyWhileSearching(t *testing.T) {
	f := NewFlow()
	if err := f.Select(); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if err := f.Confirm(); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if err := f.Select(); err != ErrBusy {
		t.Errorf("Expected ErrBusy from Select while searching, got %v", err)
	}
	if err := f.Confirm(); err != ErrBusy {
		t.Errorf("Expected ErrBusy from Confirm while searching, got %v", err)
	}
	if f.State() != Searching {
		t.Errorf("State changed by rejected transition: %v", f.State())
	}
}

func TestFlowInvalidTransitions(t *testing.T) {
	f := NewFlow()
	if err := f.Confirm(); err == nil {
		t.Error("Expected error confirming from Idle")
	}
	if err := f.Finish(); err == nil {
		t.Error("Expected error finishing from Idle")
	}
	if err := f.CancelCrop(); err == nil {
		t.Error("Expected error cancelling from Idle")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "idle"},
		{Cropping, "cropping"},
		{Searching, "searching"},
		{Displaying, "displaying"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}
