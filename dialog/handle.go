package dialog

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidTransition is returned when an operation does not fit the dialog's current state.
	ErrInvalidTransition = errors.New("invalid dialog transition")
)

// State is where a dialog is in its lifecycle.
type State int

const (
	Closed State = iota
	Opening
	Open
	Submitting
	Closing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Submitting:
		return "submitting"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Slot admits one open dialog at a time. The owning test context provides it.
type Slot interface {
	Acquire(owner string) error
	Release(owner string)
}

var transitions = map[State][]State{
	Closed:     {Opening},
	Opening:    {Open, Closed},
	Open:       {Submitting, Closing},
	Submitting: {Open, Closing, Closed},
	Closing:    {Closed},
}

// Handle tracks one modal from trigger to removal.
type Handle struct {
	mu      sync.Mutex
	kind    Kind
	state   State
	slot    Slot
	holding bool
	history []State
}

func newHandle(kind Kind, slot Slot) *Handle {
	return &Handle{kind: kind, slot: slot, history: []State{Closed}}
}

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// History returns every state the handle has been in, oldest first.
func (h *Handle) History() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.history...)
}

func (h *Handle) transition(to State) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !allowed(h.state, to) {
		return fmt.Errorf("%w: %s dialog %s -> %s", ErrInvalidTransition, h.kind, h.state, to)
	}

	if to == Open && !h.holding && h.slot != nil {
		if err := h.slot.Acquire(h.kind.String()); err != nil {
			return err
		}
		h.holding = true
	}
	if to == Closed && h.holding {
		h.slot.Release(h.kind.String())
		h.holding = false
	}

	h.state = to
	h.history = append(h.history, to)
	return nil
}

// advance walks path from wherever the handle already is on it.
func (h *Handle) advance(path ...State) error {
	current := h.State()
	start := 0
	for i, s := range path {
		if s == current {
			start = i + 1
		}
	}
	for _, s := range path[start:] {
		if err := h.transition(s); err != nil {
			return err
		}
	}
	return nil
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
