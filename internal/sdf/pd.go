package sdf

import "fmt"

// Scheduling defaults applied to every new protection domain.
const (
	defaultBudget    = 1000
	defaultPeriod    = 1000
	defaultStackSize = 0x1000
)

// ProtectionDomain is an isolated execution unit running one program
// image. Child PDs form a tree; at most one virtual machine may be
// attached.
//
// A PD owns two local id spaces: one for channel ends and bound IRQs
// (slots) and one for child PDs. Both hand out the lowest unused id unless
// a fixed id is requested.
type ProtectionDomain struct {
	name         string
	programImage string

	priority  uint8
	budget    uint32
	period    uint32
	stackSize uint32
	cpu       uint8
	passive   bool

	maps     []*Map
	irqs     []*IRQ
	children []childPD
	vm       *VirtualMachine

	parent   *ProtectionDomain
	slotIDs  *idAllocator
	childIDs *idAllocator
}

type childPD struct {
	pd *ProtectionDomain
	id uint8
}

// NewProtectionDomain creates a PD running the named program image.
func NewProtectionDomain(name, programImage string) *ProtectionDomain {
	return &ProtectionDomain{
		name:         name,
		programImage: programImage,
		budget:       defaultBudget,
		period:       defaultPeriod,
		stackSize:    defaultStackSize,
		slotIDs:      newIDAllocator(maxSlotIDs),
		childIDs:     newIDAllocator(maxChildIDs),
	}
}

// Name returns the PD's name, unique within a system.
func (pd *ProtectionDomain) Name() string { return pd.name }

// ProgramImage returns the PD's executable image reference.
func (pd *ProtectionDomain) ProgramImage() string { return pd.programImage }

// SetPriority sets the scheduling priority.
func (pd *ProtectionDomain) SetPriority(priority uint8) { pd.priority = priority }

// SetBudget sets the scheduling budget in microseconds.
func (pd *ProtectionDomain) SetBudget(budget uint32) { pd.budget = budget }

// SetPeriod sets the scheduling period in microseconds.
func (pd *ProtectionDomain) SetPeriod(period uint32) { pd.period = period }

// SetStackSize sets the initial thread's stack size in bytes.
func (pd *ProtectionDomain) SetStackSize(stackSize uint32) { pd.stackSize = stackSize }

// SetCPU sets the physical CPU affinity.
func (pd *ProtectionDomain) SetCPU(cpu uint8) { pd.cpu = cpu }

// SetPassive marks the PD as passive (no scheduling context of its own).
func (pd *ProtectionDomain) SetPassive(passive bool) { pd.passive = passive }

// Priority returns the scheduling priority.
func (pd *ProtectionDomain) Priority() uint8 { return pd.priority }

// Passive reports whether the PD is passive.
func (pd *ProtectionDomain) Passive() bool { return pd.passive }

// AddMap places a memory region into the PD's address space.
func (pd *ProtectionDomain) AddMap(m *Map) {
	pd.maps = append(pd.maps, m)
}

// Maps returns the PD's mappings in insertion order.
func (pd *ProtectionDomain) Maps() []*Map { return pd.maps }

// RemoveMap drops a mapping previously added with AddMap. Removing an
// unknown mapping is a no-op.
func (pd *ProtectionDomain) RemoveMap(m *Map) {
	for i, existing := range pd.maps {
		if existing == m {
			pd.maps = append(pd.maps[:i], pd.maps[i+1:]...)
			return
		}
	}
}

// AddIRQ binds a hardware interrupt line into the PD, allocating a local
// id from the slot id space unless the IRQ carries a fixed id.
func (pd *ProtectionDomain) AddIRQ(irq *IRQ) error {
	if irq.fixedID != nil {
		if !pd.slotIDs.allocateFixed(int(*irq.fixedID)) {
			return NewInvalidStateError(pd.name, fmt.Sprintf("slot id %d already in use", *irq.fixedID))
		}
		irq.id = *irq.fixedID
	} else {
		id, ok := pd.slotIDs.allocate()
		if !ok {
			return NewIDExhaustedError(pd.name, "slot")
		}
		irq.id = uint8(id)
	}
	pd.irqs = append(pd.irqs, irq)
	return nil
}

// IRQs returns the PD's bound interrupt lines in insertion order.
func (pd *ProtectionDomain) IRQs() []*IRQ { return pd.irqs }

// RemoveIRQ unbinds an interrupt line, returning its local id to the
// slot pool. Removing an unknown IRQ is a no-op.
func (pd *ProtectionDomain) RemoveIRQ(irq *IRQ) {
	for i, existing := range pd.irqs {
		if existing == irq {
			pd.irqs = append(pd.irqs[:i], pd.irqs[i+1:]...)
			pd.slotIDs.release(int(irq.id))
			return
		}
	}
}

// AddChild registers a child PD, allocating the lowest unused child id
// unless fixedID is non-nil. A child has exactly one parent, and the
// parent/child relation must stay acyclic.
func (pd *ProtectionDomain) AddChild(child *ProtectionDomain, fixedID *uint8) (uint8, error) {
	if child == pd {
		return 0, NewStructuralCycleError(pd.name, "a PD cannot be its own child")
	}
	if child.parent != nil {
		return 0, NewStructuralCycleError(child.name, fmt.Sprintf("PD %q already has parent %q", child.name, child.parent.name))
	}
	for p := pd; p != nil; p = p.parent {
		if p == child {
			return 0, NewStructuralCycleError(child.name, fmt.Sprintf("adding %q under %q would create a cycle", child.name, pd.name))
		}
	}

	var id uint8
	if fixedID != nil {
		if !pd.childIDs.allocateFixed(int(*fixedID)) {
			return 0, NewInvalidStateError(pd.name, fmt.Sprintf("child id %d already in use", *fixedID))
		}
		id = *fixedID
	} else {
		allocated, ok := pd.childIDs.allocate()
		if !ok {
			return 0, NewIDExhaustedError(pd.name, "child")
		}
		id = uint8(allocated)
	}

	child.parent = pd
	pd.children = append(pd.children, childPD{pd: child, id: id})
	return id, nil
}

// Children returns the child PDs in insertion order.
func (pd *ProtectionDomain) Children() []*ProtectionDomain {
	out := make([]*ProtectionDomain, len(pd.children))
	for i, c := range pd.children {
		out[i] = c.pd
	}
	return out
}

// Parent returns the parent PD, or nil for a top-level PD.
func (pd *ProtectionDomain) Parent() *ProtectionDomain { return pd.parent }

// AttachVM attaches a virtual machine to the PD. A PD hosts at most one
// VM, and a VM attaches to exactly one PD.
func (pd *ProtectionDomain) AttachVM(vm *VirtualMachine) error {
	if pd.vm != nil {
		return NewStructuralCycleError(pd.name, fmt.Sprintf("PD %q already hosts virtual machine %q", pd.name, pd.vm.name))
	}
	if vm.host != nil {
		return NewStructuralCycleError(vm.name, fmt.Sprintf("virtual machine %q already attached to PD %q", vm.name, vm.host.name))
	}
	vm.host = pd
	pd.vm = vm
	return nil
}

// VM returns the attached virtual machine, or nil.
func (pd *ProtectionDomain) VM() *VirtualMachine { return pd.vm }

// allocateSlot claims a channel-end slot, fixed when fixedID is non-nil.
func (pd *ProtectionDomain) allocateSlot(fixedID *uint8) (uint8, error) {
	if fixedID != nil {
		if !pd.slotIDs.allocateFixed(int(*fixedID)) {
			return 0, NewInvalidStateError(pd.name, fmt.Sprintf("slot id %d already in use", *fixedID))
		}
		return *fixedID, nil
	}
	id, ok := pd.slotIDs.allocate()
	if !ok {
		return 0, NewIDExhaustedError(pd.name, "slot")
	}
	return uint8(id), nil
}

// releaseSlot returns a channel-end slot to the pool.
func (pd *ProtectionDomain) releaseSlot(id uint8) {
	pd.slotIDs.release(int(id))
}
