package sdf

import (
	"fmt"
	"strings"
)

// Perms is the permission set of a mapping.
type Perms uint8

const (
	PermRead    Perms = 1 << 0
	PermWrite   Perms = 1 << 1
	PermExecute Perms = 1 << 2

	PermRW Perms = PermRead | PermWrite
)

// String renders the permission set in Microkit "rwx" notation.
func (p Perms) String() string {
	var b strings.Builder
	if p&PermRead != 0 {
		b.WriteByte('r')
	}
	if p&PermWrite != 0 {
		b.WriteByte('w')
	}
	if p&PermExecute != 0 {
		b.WriteByte('x')
	}
	return b.String()
}

// Map places one memory region into one PD's or VM's address space.
// The region is referenced by name only; the map never owns it.
type Map struct {
	mr     string
	vaddr  uint64
	perms  Perms
	cached bool

	// Optional symbol names patched into the program image at build time
	// with the mapping's vaddr and size.
	setvarVaddr string
	setvarSize  string
}

// NewMap creates a mapping of mr at vaddr with a non-empty permission set.
func NewMap(mr *MemoryRegion, vaddr uint64, perms Perms, cached bool) (*Map, error) {
	if perms == 0 {
		return nil, NewInvalidAddressError(mr.Name(), "mapping permission set must not be empty")
	}
	return newMap(mr.Name(), vaddr, perms, cached)
}

// NewReservation creates a permission-less mapping. A reservation holds an
// address range in the address space without granting access.
func NewReservation(mr *MemoryRegion, vaddr uint64) (*Map, error) {
	return newMap(mr.Name(), vaddr, 0, false)
}

func newMap(mr string, vaddr uint64, perms Perms, cached bool) (*Map, error) {
	if vaddr%PageSize != 0 {
		return nil, NewInvalidAddressError(mr, fmt.Sprintf("virtual address %#x is not page-aligned", vaddr))
	}
	return &Map{mr: mr, vaddr: vaddr, perms: perms, cached: cached}, nil
}

// SetVarVaddr names the image symbol to patch with the mapping's vaddr.
func (m *Map) SetVarVaddr(symbol string) { m.setvarVaddr = symbol }

// SetVarSize names the image symbol to patch with the mapping's size.
func (m *Map) SetVarSize(symbol string) { m.setvarSize = symbol }

// MR returns the name of the mapped memory region.
func (m *Map) MR() string { return m.mr }

// Vaddr returns the virtual address of the mapping.
func (m *Map) Vaddr() uint64 { return m.vaddr }

// PermSet returns the mapping's permission set.
func (m *Map) PermSet() Perms { return m.perms }

// Cached reports whether the mapping is cached.
func (m *Map) Cached() bool { return m.cached }
