// Package vmm composes a virtual machine monitor: a PD hosting one guest
// VM, with hardware devices passed through via the device-tree
// collaborator.
package vmm

import (
	"fmt"

	"github.com/microkit-tools/sdfgen/internal/dtb"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// Guest RAM placement. The engine performs no physical allocation: with
// one-to-one RAM the region is pinned immediately below the system's top
// physical address, otherwise placement is left to the external
// allocator.
const (
	defaultRAMSize   = 0x10000000
	defaultGuestBase = 0x40000000
)

type passthrough struct {
	name string
	node dtb.Node
}

// System binds a VMM-hosting PD to a guest VM. Passthrough devices are
// recorded before connect; connect creates guest RAM, maps device
// resources into the guest, and binds device interrupts into the VMM PD.
type System struct {
	sdf         *sdf.SystemDescription
	vmmPD       *sdf.ProtectionDomain
	vm          *sdf.VirtualMachine
	name        string
	guestDTB    dtb.Tree
	oneToOneRAM bool
	ramSize     uint64

	devices   []passthrough
	connected bool
}

// New binds a VMM. guestDTB may be nil when no passthrough devices are
// resolved by path. oneToOneRAM pins guest RAM so guest-physical equals
// machine-physical.
func New(sys *sdf.SystemDescription, vmmPD *sdf.ProtectionDomain, vm *sdf.VirtualMachine, name string, guestDTB dtb.Tree, oneToOneRAM bool) *System {
	return &System{
		sdf:         sys,
		vmmPD:       vmmPD,
		vm:          vm,
		name:        name,
		guestDTB:    guestDTB,
		oneToOneRAM: oneToOneRAM,
		ramSize:     defaultRAMSize,
	}
}

// SetRAMSize overrides the guest RAM size. Must be page-aligned.
func (s *System) SetRAMSize(size uint64) error {
	if size == 0 || size%sdf.PageSize != 0 {
		return sdf.NewInvalidAddressError(s.name, fmt.Sprintf("guest RAM size %#x is not page-aligned", size))
	}
	s.ramSize = size
	return nil
}

// AddPassthroughDevice records a hardware device to map into the guest.
// The node is resolved through the device-tree collaborator; recording
// an already-recorded name fails.
func (s *System) AddPassthroughDevice(name string, node dtb.Node) error {
	if s.connected {
		return sdf.NewInvalidStateError(s.name, "cannot add passthrough device after connect")
	}
	if node == nil {
		return sdf.NewInvalidClientError(name, fmt.Sprintf("passthrough device %q has no device-tree node", name))
	}
	for _, d := range s.devices {
		if d.name == name {
			return sdf.NewDuplicateNameError("passthrough device", name)
		}
	}
	s.devices = append(s.devices, passthrough{name: name, node: node})
	return nil
}

// RemovePassthroughDevice drops a recorded passthrough device by name.
// Only legal before connect; removing an unknown name is a no-op.
func (s *System) RemovePassthroughDevice(name string) error {
	if s.connected {
		return sdf.NewInvalidStateError(s.name, "cannot remove passthrough device after connect")
	}
	for i, d := range s.devices {
		if d.name == name {
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			return nil
		}
	}
	return nil
}

// AddPassthroughDevicePath resolves path through the guest device tree
// and records the node under name.
func (s *System) AddPassthroughDevicePath(name, path string) error {
	if s.guestDTB == nil {
		return sdf.NewInvalidStateError(s.name, "no device tree bound to this VMM")
	}
	node, ok := s.guestDTB.Node(path)
	if !ok {
		return sdf.NewInvalidClientError(name, fmt.Sprintf("device-tree node %q not found", path))
	}
	return s.AddPassthroughDevice(name, node)
}

// Connect attaches the VM to the VMM PD, creates the guest RAM region,
// and maps every passthrough device's resource ranges into the guest
// address space while binding its interrupts into the VMM PD. Connect is
// legal exactly once.
func (s *System) Connect() error {
	if s.connected {
		return sdf.NewInvalidStateError(s.name, "VMM already connected")
	}

	if err := s.vmmPD.AttachVM(s.vm); err != nil {
		return err
	}

	ramName := fmt.Sprintf("%s_guest_ram", s.name)
	var ram *sdf.MemoryRegion
	var guestBase uint64
	var err error
	if s.oneToOneRAM {
		guestBase = s.sdf.PaddrTop() - s.ramSize
		ram, err = sdf.NewMemoryRegionPhysical(ramName, s.ramSize, guestBase)
	} else {
		guestBase = defaultGuestBase
		ram, err = sdf.NewMemoryRegion(ramName, s.ramSize)
	}
	if err != nil {
		return err
	}
	if err := s.sdf.AddMR(ram); err != nil {
		return err
	}
	ramMap, err := sdf.NewMap(ram, guestBase, sdf.PermRead|sdf.PermWrite|sdf.PermExecute, true)
	if err != nil {
		return err
	}
	s.vm.AddMap(ramMap)

	// The VMM itself also needs the guest RAM to load the kernel image.
	vmmMap, err := sdf.NewMap(ram, guestBase, sdf.PermRW, true)
	if err != nil {
		return err
	}
	vmmMap.SetVarVaddr("guest_ram_vaddr")
	s.vmmPD.AddMap(vmmMap)

	for _, d := range s.devices {
		if err := s.mapPassthrough(d); err != nil {
			return err
		}
	}

	s.connected = true
	return nil
}

// mapPassthrough maps one device's register ranges one-to-one into the
// guest and binds its interrupt lines into the VMM PD.
func (s *System) mapPassthrough(d passthrough) error {
	for i, r := range d.node.Reg() {
		base := r.Base &^ (sdf.PageSize - 1)
		size := (r.Size + (r.Base - base) + sdf.PageSize - 1) &^ uint64(sdf.PageSize-1)
		name := fmt.Sprintf("%s_%s", s.name, d.name)
		if i > 0 {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		mr, err := sdf.NewMemoryRegionPhysical(name, size, base)
		if err != nil {
			return err
		}
		if err := s.sdf.AddMR(mr); err != nil {
			return err
		}
		m, err := sdf.NewMap(mr, base, sdf.PermRW, false)
		if err != nil {
			return err
		}
		s.vm.AddMap(m)
	}
	for _, number := range d.node.Interrupts() {
		if err := s.vmmPD.AddIRQ(sdf.NewIRQ(number, sdf.TriggerLevel)); err != nil {
			return err
		}
	}
	return nil
}

// Connected reports whether connect has run.
func (s *System) Connected() bool { return s.connected }

// PD returns the protection domain hosting the VMM.
func (s *System) PD() *sdf.ProtectionDomain { return s.vmmPD }

// VM returns the guest virtual machine.
func (s *System) VM() *sdf.VirtualMachine { return s.vm }
