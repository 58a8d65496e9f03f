package sdf

import "fmt"

// SystemDescription is the top-level container for one generation
// session. It owns every registered entity, enforces global invariants
// (name uniqueness, registered channel endpoints) and renders the final
// document.
//
// A SystemDescription is not safe for concurrent use: all entities
// reachable from it form one mutation domain.
type SystemDescription struct {
	arch     Arch
	paddrTop uint64

	pds      []*ProtectionDomain
	mrs      []*MemoryRegion
	channels []*Channel

	names   map[string]bool
	mrNames map[string]bool
}

// New creates an empty system description for the given architecture.
// paddrTop bounds the physical address space; the engine records it but
// never allocates physical memory itself.
func New(arch Arch, paddrTop uint64) (*SystemDescription, error) {
	if !arch.Valid() {
		return nil, fmt.Errorf("unknown architecture %d", int(arch))
	}
	return &SystemDescription{
		arch:     arch,
		paddrTop: paddrTop,
		names:    make(map[string]bool),
		mrNames:  make(map[string]bool),
	}, nil
}

// Arch returns the target architecture.
func (sys *SystemDescription) Arch() Arch { return sys.arch }

// PaddrTop returns the top physical address bound.
func (sys *SystemDescription) PaddrTop() uint64 { return sys.paddrTop }

// AddPD registers a top-level protection domain. The PD's name, and the
// names of all PDs and VMs nested under it, must not collide with any
// name already registered. On failure nothing is registered.
func (sys *SystemDescription) AddPD(pd *ProtectionDomain) error {
	incoming := make(map[string]bool)
	if err := collectNames(pd, sys.names, incoming); err != nil {
		return err
	}
	for name := range incoming {
		sys.names[name] = true
	}
	sys.pds = append(sys.pds, pd)
	return nil
}

// collectNames walks pd's subtree, rejecting collisions against existing
// and recording every new name into incoming.
func collectNames(pd *ProtectionDomain, existing, incoming map[string]bool) error {
	if existing[pd.name] || incoming[pd.name] {
		return NewDuplicateNameError("protection domain", pd.name)
	}
	incoming[pd.name] = true
	if pd.vm != nil {
		if existing[pd.vm.name] || incoming[pd.vm.name] {
			return NewDuplicateNameError("virtual machine", pd.vm.name)
		}
		incoming[pd.vm.name] = true
	}
	for _, c := range pd.children {
		if err := collectNames(c.pd, existing, incoming); err != nil {
			return err
		}
	}
	return nil
}

// AddMR registers a memory region. Region names are unique per system.
func (sys *SystemDescription) AddMR(mr *MemoryRegion) error {
	if sys.mrNames[mr.name] {
		return NewDuplicateNameError("memory region", mr.name)
	}
	sys.mrNames[mr.name] = true
	sys.mrs = append(sys.mrs, mr)
	return nil
}

// RemoveMR unregisters a memory region previously added with AddMR,
// freeing its name. Mappings referencing the region are the caller's to
// remove. Removing an unknown region is a no-op.
func (sys *SystemDescription) RemoveMR(mr *MemoryRegion) {
	for i, existing := range sys.mrs {
		if existing == mr {
			sys.mrs = append(sys.mrs[:i], sys.mrs[i+1:]...)
			delete(sys.mrNames, mr.name)
			return
		}
	}
}

// AddChannel registers a channel. Both endpoint PDs must already be
// registered (directly or as a descendant of a registered PD).
func (sys *SystemDescription) AddChannel(ch *Channel) error {
	if !sys.registered(ch.a) {
		return NewInvalidClientError(ch.a.name, fmt.Sprintf("channel endpoint %q is not registered", ch.a.name))
	}
	if !sys.registered(ch.b) {
		return NewInvalidClientError(ch.b.name, fmt.Sprintf("channel endpoint %q is not registered", ch.b.name))
	}
	sys.channels = append(sys.channels, ch)
	return nil
}

// RemoveChannel unregisters a channel previously added with AddChannel.
// It does not release the channel's end ids; call Channel.Destroy for
// that. Removing an unknown channel is a no-op.
func (sys *SystemDescription) RemoveChannel(ch *Channel) {
	for i, existing := range sys.channels {
		if existing == ch {
			sys.channels = append(sys.channels[:i], sys.channels[i+1:]...)
			return
		}
	}
}

// RemovePD unregisters a top-level PD. It refuses while any registered
// channel references the PD: destroying a referenced PD is a caller
// error, never resolved by cascade deletion.
func (sys *SystemDescription) RemovePD(pd *ProtectionDomain) error {
	for _, ch := range sys.channels {
		if ch.a == pd || ch.b == pd {
			return NewInvalidStateError(pd.name, fmt.Sprintf("PD %q is still referenced by a channel", pd.name))
		}
	}
	for i, existing := range sys.pds {
		if existing == pd {
			sys.pds = append(sys.pds[:i], sys.pds[i+1:]...)
			removed := make(map[string]bool)
			// Errors are impossible here: the subtree was registered.
			_ = collectNames(pd, nil, removed)
			for name := range removed {
				delete(sys.names, name)
			}
			return nil
		}
	}
	return NewInvalidStateError(pd.name, fmt.Sprintf("PD %q is not registered", pd.name))
}

// registered reports whether pd is reachable from a registered top-level
// PD.
func (sys *SystemDescription) registered(pd *ProtectionDomain) bool {
	root := pd
	for root.parent != nil {
		root = root.parent
	}
	for _, existing := range sys.pds {
		if existing == root {
			return true
		}
	}
	return false
}

// PDs returns the registered top-level PDs in insertion order.
func (sys *SystemDescription) PDs() []*ProtectionDomain { return sys.pds }

// MRs returns the registered memory regions in insertion order.
func (sys *SystemDescription) MRs() []*MemoryRegion { return sys.mrs }

// Channels returns the registered channels in insertion order.
func (sys *SystemDescription) Channels() []*Channel { return sys.channels }

// FindPD returns the registered PD with the given name, searching nested
// children too, or nil.
func (sys *SystemDescription) FindPD(name string) *ProtectionDomain {
	var walk func(pd *ProtectionDomain) *ProtectionDomain
	walk = func(pd *ProtectionDomain) *ProtectionDomain {
		if pd.name == name {
			return pd
		}
		for _, c := range pd.children {
			if found := walk(c.pd); found != nil {
				return found
			}
		}
		return nil
	}
	for _, pd := range sys.pds {
		if found := walk(pd); found != nil {
			return found
		}
	}
	return nil
}

// FindMR returns the registered memory region with the given name, or nil.
func (sys *SystemDescription) FindMR(name string) *MemoryRegion {
	for _, mr := range sys.mrs {
		if mr.name == name {
			return mr
		}
	}
	return nil
}
