package station

import "fmt"

// State is the connection state of the station interface.
type State int32

const (
	// Disconnected indicates no connection attempt is in progress.
	Disconnected State = iota
	// Connecting indicates a connect command has been issued and no address is held yet.
	Connecting
	// Connected indicates the link is up and an address has been acquired.
	Connected
	// Provisioning indicates a provisioning session is advertising the SoftAP.
	Provisioning
	// Error indicates the last connection or provisioning attempt failed.
	Error
)

// States lists every state in declaration order.
var States = []State{Disconnected, Connecting, Connected, Provisioning, Error}

// String returns the upper-case name of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Provisioning:
		return "PROVISIONING"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Valid reports whether s is one of the five defined states.
func (s State) Valid() bool {
	return s >= Disconnected && s <= Error
}

// MarshalText renders the state name for JSON and YAML encoders.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid state %d", int32(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState parses an upper-case state name.
func ParseState(name string) (State, error) {
	for _, st := range States {
		if st.String() == name {
			return st, nil
		}
	}
	return Disconnected, fmt.Errorf("unknown state %q", name)
}
