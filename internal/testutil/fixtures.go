// Package testutil provides shared fixtures for subsystem tests:
// pre-registered systems, PDs and static device nodes with sensible
// defaults so tests only spell out what they exercise.
package testutil

import (
	"testing"

	"github.com/microkit-tools/sdfgen/internal/dtb"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// PaddrTop is the physical memory bound used by test systems.
const PaddrTop = 0xa0000000

// NewSystem creates an empty aarch64 system description.
func NewSystem(t testing.TB) *sdf.SystemDescription {
	t.Helper()
	sys, err := sdf.New(sdf.ArchAarch64, PaddrTop)
	if err != nil {
		t.Fatalf("creating system: %v", err)
	}
	return sys
}

// NewPD creates a PD with the given priority and registers it with the
// system.
func NewPD(t testing.TB, sys *sdf.SystemDescription, name string, priority uint8) *sdf.ProtectionDomain {
	t.Helper()
	pd := sdf.NewProtectionDomain(name, name+".elf")
	pd.SetPriority(priority)
	if err := sys.AddPD(pd); err != nil {
		t.Fatalf("adding pd %q: %v", name, err)
	}
	return pd
}

// Device builds a static device node with one register window.
func Device(name string, base, size uint64, irqs ...uint32) *dtb.StaticNode {
	return &dtb.StaticNode{
		NodeName: name,
		Ranges:   []dtb.Range{{Base: base, Size: size}},
		Irqs:     irqs,
	}
}
