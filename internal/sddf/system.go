package sddf

import (
	"fmt"

	"github.com/microkit-tools/sdfgen/internal/dtb"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// Recorder receives a record of every emitted configuration blob.
// The artifact index implements it; a nil recorder disables recording.
type Recorder interface {
	Record(subsystem, name, path string, data []byte) error
}

// system is the state shared by every subsystem variant: the owning
// assembler, the optional device node, the lifecycle position, and the
// channels the subsystem itself created during connect.
type system struct {
	sdf    *sdf.SystemDescription
	device dtb.Node
	label  string
	state  State

	channels []*sdf.Channel
	recorder Recorder
}

// SetRecorder attaches a blob recorder. May be nil.
func (s *system) SetRecorder(r Recorder) { s.recorder = r }

// State returns the subsystem's lifecycle position.
func (s *system) State() State { return s.state }

// Channels returns the channels created by this subsystem's connect.
func (s *system) Channels() []*sdf.Channel { return s.channels }

// link describes one channel to create during connect.
type link struct {
	a, b *sdf.ProtectionDomain
	opts []sdf.ChannelOption
}

// wire creates and registers one channel per link. On any failure every
// channel created by this call is unregistered and destroyed before the
// error is returned, so a failed connect leaves no channel behind.
func (s *system) wire(links []link) error {
	var created []*sdf.Channel
	rollback := func() {
		for _, ch := range created {
			s.sdf.RemoveChannel(ch)
			ch.Destroy()
		}
	}
	for _, l := range links {
		ch, err := sdf.NewChannel(l.a, l.b, l.opts...)
		if err != nil {
			rollback()
			return err
		}
		if err := s.sdf.AddChannel(ch); err != nil {
			ch.Destroy()
			rollback()
			return err
		}
		created = append(created, ch)
	}
	s.channels = append(s.channels, created...)
	return nil
}

// mapDevice maps the bound device node's register ranges into the driver
// and binds its interrupt lines. No-op without a device node. The
// returned undo unregisters everything this call created, so a connect
// that fails after mapping can leave the graph unchanged; on error
// mapDevice has already undone itself.
func (s *system) mapDevice(driver *sdf.ProtectionDomain) (func(), error) {
	var mrs []*sdf.MemoryRegion
	var maps []*sdf.Map
	var irqs []*sdf.IRQ
	undo := func() {
		for _, irq := range irqs {
			driver.RemoveIRQ(irq)
		}
		for _, m := range maps {
			driver.RemoveMap(m)
		}
		for _, mr := range mrs {
			s.sdf.RemoveMR(mr)
		}
	}
	if s.device == nil {
		return undo, nil
	}
	for i, r := range s.device.Reg() {
		base := r.Base &^ (sdf.PageSize - 1)
		size := pageAlignUp(r.Size + (r.Base - base))
		name := fmt.Sprintf("%s_%s_regs", s.label, s.device.Name())
		if i > 0 {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		mr, err := sdf.NewMemoryRegionPhysical(name, size, base)
		if err != nil {
			undo()
			return nil, err
		}
		if err := s.sdf.AddMR(mr); err != nil {
			undo()
			return nil, err
		}
		mrs = append(mrs, mr)
		m, err := sdf.NewMap(mr, base, sdf.PermRW, false)
		if err != nil {
			undo()
			return nil, err
		}
		driver.AddMap(m)
		maps = append(maps, m)
	}
	for _, number := range s.device.Interrupts() {
		irq := sdf.NewIRQ(number, sdf.TriggerLevel)
		if err := driver.AddIRQ(irq); err != nil {
			undo()
			return nil, err
		}
		irqs = append(irqs, irq)
	}
	return undo, nil
}

// checkClient validates a candidate client PD against the subsystem's
// own PDs and the clients already added.
func checkClient(client *sdf.ProtectionDomain, reserved, existing []*sdf.ProtectionDomain) error {
	for _, pd := range reserved {
		if pd == client {
			return sdf.NewInvalidClientError(client.Name(),
				fmt.Sprintf("PD %q is the subsystem's own driver or virtualiser", client.Name()))
		}
	}
	for _, pd := range existing {
		if pd == client {
			return sdf.NewDuplicateClientError(client.Name(), "")
		}
	}
	return nil
}

func pageAlignUp(v uint64) uint64 {
	return (v + sdf.PageSize - 1) &^ (sdf.PageSize - 1)
}
