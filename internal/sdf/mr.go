package sdf

import "fmt"

// MemoryRegion is a named block of addressable memory, optionally pinned
// to a fixed physical address.
//
// The engine never allocates physical space: a physical address is
// caller-asserted to be non-overlapping with every other fixed region.
type MemoryRegion struct {
	name  string
	size  uint64
	paddr *uint64
}

// NewMemoryRegion creates a memory region backed by allocator-chosen
// physical memory. Size must be a positive multiple of the page size.
func NewMemoryRegion(name string, size uint64) (*MemoryRegion, error) {
	if err := checkMRSize(name, size); err != nil {
		return nil, err
	}
	return &MemoryRegion{name: name, size: size}, nil
}

// NewMemoryRegionPhysical creates a memory region pinned to a fixed
// physical address. Both size and paddr must be page-aligned.
func NewMemoryRegionPhysical(name string, size, paddr uint64) (*MemoryRegion, error) {
	if err := checkMRSize(name, size); err != nil {
		return nil, err
	}
	if paddr%PageSize != 0 {
		return nil, NewInvalidAddressError(name, fmt.Sprintf("physical address %#x is not page-aligned", paddr))
	}
	p := paddr
	return &MemoryRegion{name: name, size: size, paddr: &p}, nil
}

func checkMRSize(name string, size uint64) error {
	if size == 0 {
		return NewInvalidAddressError(name, "memory region size must be greater than zero")
	}
	if size%PageSize != 0 {
		return NewInvalidAddressError(name, fmt.Sprintf("memory region size %#x is not page-aligned", size))
	}
	return nil
}

// Name returns the region's unique name.
func (mr *MemoryRegion) Name() string { return mr.name }

// Size returns the region's size in bytes.
func (mr *MemoryRegion) Size() uint64 { return mr.size }

// Paddr returns the fixed physical address, if one was supplied.
func (mr *MemoryRegion) Paddr() (uint64, bool) {
	if mr.paddr == nil {
		return 0, false
	}
	return *mr.paddr, true
}
