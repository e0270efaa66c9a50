package crop

import "fmt"

// State is one phase of the overall search flow.
type State int

const (
	// Idle: no image, no results.
	Idle State = iota
	// Cropping: image loaded, interactive crop active.
	Cropping
	// Searching: crop committed, request in flight.
	Searching
	// Displaying: results or error shown.
	Displaying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Cropping:
		return "cropping"
	case Searching:
		return "searching"
	case Displaying:
		return "displaying"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrBusy rejects a search submitted while another is in flight. The flow
// permits exactly one in-progress search.
var ErrBusy = fmt.Errorf("crop: search already in flight")

// Flow is the four-state machine driving the search page. Transitions
// that are not listed are rejected, which makes the single-flight rule
// explicit instead of a disabled-button convention.
type Flow struct {
	state State
}

// NewFlow starts in Idle.
func NewFlow() *Flow {
	return &Flow{state: Idle}
}

// State returns the current phase.
func (f *Flow) State() State {
	return f.state
}

// Select handles file selection: valid from Idle and from Displaying
// (which implicitly resets through Idle).
func (f *Flow) Select() error {
	switch f.state {
	case Idle, Displaying:
		f.state = Cropping
		return nil
	case Searching:
		return ErrBusy
	default:
		return f.reject("select")
	}
}

// CancelCrop returns from Cropping to Idle.
func (f *Flow) CancelCrop() error {
	if f.state != Cropping {
		return f.reject("cancel")
	}
	f.state = Idle
	return nil
}

// Confirm commits the crop and moves to Searching.
func (f *Flow) Confirm() error {
	switch f.state {
	case Cropping:
		f.state = Searching
		return nil
	case Searching:
		return ErrBusy
	default:
		return f.reject("confirm")
	}
}

// Finish leaves Searching for Displaying. It fires on success and on
// failure alike; the caller decides what Displaying shows.
func (f *Flow) Finish() error {
	if f.state != Searching {
		return f.reject("finish")
	}
	f.state = Displaying
	return nil
}

func (f *Flow) reject(event string) error {
	return fmt.Errorf("crop: %s not valid in state %s", event, f.state)
}
