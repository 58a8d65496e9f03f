package sdf

import "fmt"

// VirtualCPU is one virtual processor of a virtual machine.
type VirtualCPU struct {
	// ID is the vCPU id, unique within the owning VM.
	ID uint8

	// CPU is the physical CPU affinity.
	CPU uint8
}

// VirtualMachine is a guest execution context hosted inside exactly one
// protection domain.
type VirtualMachine struct {
	name  string
	vcpus []VirtualCPU
	maps  []*Map

	// Set when the VM is attached to a PD. A VM attaches at most once.
	host *ProtectionDomain
}

// NewVirtualMachine creates a virtual machine with the given vCPUs.
// vCPU ids must be unique within the VM.
func NewVirtualMachine(name string, vcpus []VirtualCPU) (*VirtualMachine, error) {
	seen := make(map[uint8]bool, len(vcpus))
	for _, vcpu := range vcpus {
		if seen[vcpu.ID] {
			return nil, NewDuplicateNameError("vcpu", fmt.Sprintf("%s/vcpu-%d", name, vcpu.ID))
		}
		seen[vcpu.ID] = true
	}
	vm := &VirtualMachine{name: name}
	vm.vcpus = append(vm.vcpus, vcpus...)
	return vm, nil
}

// Name returns the VM's name.
func (vm *VirtualMachine) Name() string { return vm.name }

// VCPUs returns the VM's vCPUs in declaration order.
func (vm *VirtualMachine) VCPUs() []VirtualCPU { return vm.vcpus }

// AddMap places a memory region into the guest address space.
func (vm *VirtualMachine) AddMap(m *Map) {
	vm.maps = append(vm.maps, m)
}

// Maps returns the guest mappings in insertion order.
func (vm *VirtualMachine) Maps() []*Map { return vm.maps }

// Host returns the PD hosting this VM, or nil if unattached.
func (vm *VirtualMachine) Host() *ProtectionDomain { return vm.host }
