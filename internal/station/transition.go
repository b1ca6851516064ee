package station

import "fmt"

// Trigger is an input to the state machine: a command or an event.
type Trigger int

const (
	// TriggerConnect is a connect command with a cached credential.
	TriggerConnect Trigger = iota
	// TriggerAddressAcquired is the link-up plus address notification.
	TriggerAddressAcquired
	// TriggerLinkDisconnected is a disconnect notification from the radio.
	TriggerLinkDisconnected
	// TriggerStartProvisioning is a command to open a provisioning session.
	TriggerStartProvisioning
	// TriggerSessionEndedWithCredential is a session ending after a credential was stored.
	TriggerSessionEndedWithCredential
	// TriggerSessionEndedWithoutCredential is a session ending with nothing stored.
	TriggerSessionEndedWithoutCredential
	// TriggerStopProvisioning is a command to abort the provisioning session.
	TriggerStopProvisioning
	// TriggerDisconnect is an explicit disconnect command.
	TriggerDisconnect
	// TriggerRetryExhausted is the reconnect policy giving up.
	TriggerRetryExhausted
	// TriggerAttemptFailed is a connect or session start command that failed immediately.
	TriggerAttemptFailed
)

func (t Trigger) String() string {
	switch t {
	case TriggerConnect:
		return "connect"
	case TriggerAddressAcquired:
		return "address_acquired"
	case TriggerLinkDisconnected:
		return "link_disconnected"
	case TriggerStartProvisioning:
		return "start_provisioning"
	case TriggerSessionEndedWithCredential:
		return "session_ended_with_credential"
	case TriggerSessionEndedWithoutCredential:
		return "session_ended_without_credential"
	case TriggerStopProvisioning:
		return "stop_provisioning"
	case TriggerDisconnect:
		return "disconnect"
	case TriggerRetryExhausted:
		return "retry_exhausted"
	case TriggerAttemptFailed:
		return "attempt_failed"
	default:
		return fmt.Sprintf("Trigger(%d)", int(t))
	}
}

// Action is a side effect the orchestrator performs while applying a transition.
type Action int

const (
	// ActionResetRetry resets the reconnect policy.
	ActionResetRetry Action = iota
	// ActionIssueConnect sends a connect command with the cached credential.
	ActionIssueConnect
	// ActionReconnect re-issues the connect command according to the reconnect policy.
	ActionReconnect
	// ActionIssueDisconnect sends a disconnect command.
	ActionIssueDisconnect
	// ActionClearCredential erases the stored and cached credential.
	ActionClearCredential
	// ActionStartSession starts a provisioning session.
	ActionStartSession
	// ActionTeardownSession stops the active provisioning session.
	ActionTeardownSession
)

func (a Action) String() string {
	switch a {
	case ActionResetRetry:
		return "reset_retry"
	case ActionIssueConnect:
		return "issue_connect"
	case ActionReconnect:
		return "reconnect"
	case ActionIssueDisconnect:
		return "issue_disconnect"
	case ActionClearCredential:
		return "clear_credential"
	case ActionStartSession:
		return "start_session"
	case ActionTeardownSession:
		return "teardown_session"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Transition is the result of applying a trigger to a state.
type Transition struct {
	From    State
	To      State
	Trigger Trigger
	Actions []Action
}

// Changed reports whether the state differs after the transition.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Ignored reports whether the trigger has no effect in the source state.
func (t Transition) Ignored() bool {
	return !t.Changed() && len(t.Actions) == 0
}

// Next is the transition table. It is pure: the orchestrator performs the
// returned actions and commits To.
func Next(from State, trigger Trigger) Transition {
	tr := Transition{From: from, To: from, Trigger: trigger}

	switch trigger {
	case TriggerConnect:
		if from == Disconnected || from == Error {
			tr.To = Connecting
			tr.Actions = []Action{ActionResetRetry, ActionIssueConnect}
		}

	case TriggerAddressAcquired:
		if from == Connecting {
			tr.To = Connected
			tr.Actions = []Action{ActionResetRetry}
		}

	case TriggerLinkDisconnected:
		// Retry-vs-give-up depends only on the state before the event.
		switch from {
		case Connected:
			// A lost link starts a fresh retry sequence.
			tr.To = Connecting
			tr.Actions = []Action{ActionResetRetry, ActionReconnect}
		case Connecting:
			tr.To = Connecting
			tr.Actions = []Action{ActionReconnect}
		case Disconnected, Error:
			tr.To = Disconnected
		}

	case TriggerStartProvisioning:
		if from == Disconnected || from == Error {
			tr.To = Provisioning
			tr.Actions = []Action{ActionClearCredential, ActionStartSession}
		}

	case TriggerSessionEndedWithCredential:
		if from == Provisioning {
			tr.To = Connecting
			tr.Actions = []Action{ActionTeardownSession, ActionResetRetry, ActionIssueConnect}
		}

	case TriggerSessionEndedWithoutCredential:
		if from == Provisioning {
			tr.To = Error
			tr.Actions = []Action{ActionTeardownSession}
		}

	case TriggerStopProvisioning:
		if from == Provisioning {
			tr.To = Disconnected
			tr.Actions = []Action{ActionTeardownSession}
		}

	case TriggerDisconnect:
		tr.To = Disconnected
		if from == Provisioning {
			tr.Actions = []Action{ActionTeardownSession, ActionIssueDisconnect}
		} else {
			tr.Actions = []Action{ActionIssueDisconnect}
		}

	case TriggerRetryExhausted:
		if from == Connecting {
			tr.To = Error
		}

	case TriggerAttemptFailed:
		tr.To = Error
	}

	return tr
}
