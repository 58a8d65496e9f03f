package sddf

import (
	"fmt"

	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// State is the lifecycle position of a subsystem.
type State int

const (
	// StateCreated: driver, virtualisers and device bound, no clients.
	StateCreated State = iota

	// StateConfigured: one or more clients added.
	StateConfigured

	// StateConnected: channels wired, internal ids allocated.
	StateConnected

	// StateSerialised: configuration blobs emitted.
	StateSerialised
)

var stateNames = [...]string{"created", "configured", "connected", "serialised"}

// String returns the lower-case state name.
func (s State) String() string {
	if s < StateCreated || s > StateSerialised {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// requireAddClient rejects add-client outside Created/Configured.
func requireAddClient(label string, s State) error {
	if s != StateCreated && s != StateConfigured {
		return sdf.NewInvalidStateError(label, fmt.Sprintf("cannot add client in state %s", s))
	}
	return nil
}

// requireRemoveClient rejects remove-client outside Created/Configured:
// once connected, client channels exist and the client list is fixed.
func requireRemoveClient(label string, s State) error {
	if s != StateCreated && s != StateConfigured {
		return sdf.NewInvalidStateError(label, fmt.Sprintf("cannot remove client in state %s", s))
	}
	return nil
}

// requireConnect rejects a second connect or a connect after serialise.
// A subsystem with zero clients may still connect; Created is treated as
// Configured with an empty client list.
func requireConnect(label string, s State) error {
	if s != StateCreated && s != StateConfigured {
		return sdf.NewInvalidStateError(label, fmt.Sprintf("cannot connect in state %s", s))
	}
	return nil
}

// requireSerialise rejects serialise-config before Connected. Serialising
// twice is allowed; the output is deterministic.
func requireSerialise(label string, s State) error {
	if s != StateConnected && s != StateSerialised {
		return sdf.NewInvalidStateError(label, fmt.Sprintf("cannot serialise config in state %s", s))
	}
	return nil
}
