package session

import "fmt"

// State represents where a booking session is in its lifecycle.
type State string

const (
	StateTierSelected      State = "tier_selected"
	StateDetailsInProgress State = "details_in_progress"
	StateAwaitingPayment   State = "awaiting_payment"
	StatePaymentConfirmed  State = "payment_confirmed"
	StateSubmitted         State = "submitted"
)

// validTransitions defines the state machine for booking sessions.
// A card payment must be confirmed before submission; cash submits straight
// from details entry. Abandoning a hosted checkout returns the session to
// details entry, but a confirmed payment never regresses.
var validTransitions = map[State][]State{
	StateTierSelected:      {StateDetailsInProgress},
	StateDetailsInProgress: {StateAwaitingPayment, StateSubmitted},
	StateAwaitingPayment:   {StatePaymentConfirmed, StateDetailsInProgress},
	StatePaymentConfirmed:  {StateSubmitted},
	StateSubmitted:         {},
}

// IsValid returns true if the state is recognized.
func (s State) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this state to the target is allowed.
func (s State) CanTransitionTo(target State) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible.
func (s State) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// ParseState converts a string to a State, returning an error if invalid.
func ParseState(s string) (State, error) {
	state := State(s)
	if !state.IsValid() {
		return "", fmt.Errorf("invalid session state: %s", s)
	}
	return state, nil
}
