package sdf

// Trigger is the trigger mode of a hardware interrupt line.
type Trigger int

const (
	TriggerEdge Trigger = iota
	TriggerLevel
)

// String renders the trigger mode in Microkit notation.
func (t Trigger) String() string {
	if t == TriggerEdge {
		return "edge"
	}
	return "level"
}

// IRQ is a hardware interrupt line bound into a protection domain.
// The local id is allocated from the owning PD's slot id space when the
// IRQ is bound, unless a fixed id was requested.
type IRQ struct {
	number  uint32
	trigger Trigger
	fixedID *uint8
	id      uint8
}

// NewIRQ creates an interrupt line with an allocator-chosen local id.
func NewIRQ(number uint32, trigger Trigger) *IRQ {
	return &IRQ{number: number, trigger: trigger}
}

// NewIRQWithID creates an interrupt line with a fixed local id, claimed
// from the owning PD's slot id space at bind time.
func NewIRQWithID(number uint32, trigger Trigger, id uint8) *IRQ {
	fixed := id
	return &IRQ{number: number, trigger: trigger, fixedID: &fixed}
}

// Number returns the interrupt number.
func (i *IRQ) Number() uint32 { return i.number }

// TriggerMode returns the trigger mode.
func (i *IRQ) TriggerMode() Trigger { return i.trigger }

// ID returns the local id. Valid only after the IRQ is bound to a PD.
func (i *IRQ) ID() uint8 { return i.id }
