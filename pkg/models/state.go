package models

// TicketState is the lifecycle state of a ticket.
type TicketState string

const (
	StateDraft          TicketState = "draft"
	StateReady          TicketState = "ready"
	StateBlocked        TicketState = "blocked"
	StateInProgress     TicketState = "in_progress"
	StateVerifying      TicketState = "verifying"
	StateInReview       TicketState = "in_review"
	StateReviewing      TicketState = "reviewing"
	StateNeedsReview    TicketState = "needs_review"
	StateMerged         TicketState = "merged"
	StateDone           TicketState = "done"
	StateCancelled      TicketState = "cancelled"
	StateSentinelFailed TicketState = "sentinel_failed"
)

// VerificationStatus tracks the most recent verifier outcome for a ticket.
type VerificationStatus string

const (
	VerificationUnverified       VerificationStatus = "unverified"
	VerificationVerifying        VerificationStatus = "verifying"
	VerificationPassed           VerificationStatus = "passed"
	VerificationFailed           VerificationStatus = "failed"
	VerificationSentinelRejected VerificationStatus = "sentinel_rejected"
)

// AssigneeKind distinguishes human-owned tickets from agent-owned ones.
type AssigneeKind string

const (
	AssigneeHuman AssigneeKind = "human"
	AssigneeAgent AssigneeKind = "agent"
)

// Agent role names. Roles are tags selecting which queue partition a worker
// pulls from, not identities.
const (
	AgentForge    = "forge-agent"
	AgentSentinel = "sentinel-agent"
)

// legalTransitions is the authoritative transition relation. Anything not
// listed here is rejected.
var legalTransitions = map[TicketState][]TicketState{
	StateDraft:      {StateReady, StateBlocked, StateCancelled},
	StateBlocked:    {StateReady, StateCancelled},
	StateReady:      {StateInProgress, StateCancelled},
	StateInProgress: {StateVerifying, StateReady, StateCancelled},
	StateVerifying:  {StateInReview, StateNeedsReview, StateCancelled},
	StateInReview:   {StateReviewing, StateCancelled},
	StateReviewing:  {StateMerged, StateSentinelFailed, StateInReview, StateCancelled},
	StateMerged:     {StateDone},
}

// CanTransition reports whether from → to is a legal lifecycle transition.
func CanTransition(from, to TicketState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state ends the automated lifecycle.
// needs_review and sentinel_failed park the ticket for a human; merged, done
// and cancelled never re-enter the active graph through the engine.
func (s TicketState) IsTerminal() bool {
	switch s {
	case StateMerged, StateDone, StateCancelled, StateNeedsReview, StateSentinelFailed:
		return true
	}
	return false
}

// IsTerminalSuccess reports whether the state satisfies a dependency edge.
func (s TicketState) IsTerminalSuccess() bool {
	return s == StateMerged || s == StateDone
}

// IsActive reports whether the ticket still participates in the lifecycle,
// i.e. a cancel request is meaningful.
func (s TicketState) IsActive() bool {
	switch s {
	case StateDraft, StateReady, StateBlocked, StateInProgress, StateVerifying, StateInReview, StateReviewing:
		return true
	}
	return false
}

// InFlightStates are the states in which exactly one worker owns the ticket
// and heartbeats are expected.
func InFlightStates() []TicketState {
	return []TicketState{StateInProgress, StateReviewing}
}

// ReclaimTarget returns the queue state a stranded ticket returns to when the
// reaper clears its owner. Forge work re-enters the ready queue; sentinel work
// re-enters the review queue.
func (s TicketState) ReclaimTarget() (TicketState, bool) {
	switch s {
	case StateInProgress:
		return StateReady, true
	case StateReviewing:
		return StateInReview, true
	}
	return "", false
}
