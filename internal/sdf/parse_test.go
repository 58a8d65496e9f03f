package sdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	sys := buildSampleSystem(t)
	rendered, err := sys.Render()
	require.NoError(t, err)

	parsed, err := Parse(rendered)
	require.NoError(t, err)

	rerendered, err := parsed.Render()
	require.NoError(t, err)
	assert.Equal(t, string(rendered), string(rerendered))
}

func TestParse_RoundTripNestedAndVM(t *testing.T) {
	sys := newTestSystem(t)

	host := NewProtectionDomain("vmm", "vmm.elf")
	host.SetPriority(100)
	child := NewProtectionDomain("monitor", "monitor.elf")
	fixed := uint8(3)
	_, err := host.AddChild(child, &fixed)
	require.NoError(t, err)

	vm, err := NewVirtualMachine("guest", []VirtualCPU{{ID: 0}, {ID: 1, CPU: 1}})
	require.NoError(t, err)
	ram, err := NewMemoryRegion("guest_ram", 0x200000)
	require.NoError(t, err)
	require.NoError(t, sys.AddMR(ram))
	m, err := NewMap(ram, 0x40000000, PermRead|PermWrite|PermExecute, true)
	require.NoError(t, err)
	vm.AddMap(m)
	require.NoError(t, host.AttachVM(vm))
	require.NoError(t, sys.AddPD(host))

	rendered, err := sys.Render()
	require.NoError(t, err)

	parsed, err := Parse(rendered)
	require.NoError(t, err)

	vmm := parsed.FindPD("vmm")
	require.NotNil(t, vmm)
	require.Len(t, vmm.Children(), 1)
	require.NotNil(t, vmm.VM())
	assert.Equal(t, "guest", vmm.VM().Name())
	assert.Len(t, vmm.VM().VCPUs(), 2)

	rerendered, err := parsed.Render()
	require.NoError(t, err)
	assert.Equal(t, string(rendered), string(rerendered))
}

func TestParse_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not xml", doc: "{}"},
		{name: "truncated", doc: `<?xml version="1.0"?><system arch="aarch64"`},
		{name: "unknown arch", doc: `<system arch="mips" paddr_top="0x1000"></system>`},
		{name: "missing paddr_top", doc: `<system arch="aarch64"></system>`},
		{
			name: "one-ended channel",
			doc: `<system arch="aarch64" paddr_top="0x1000">` +
				`<protection_domain name="a" priority="0" budget="1" period="1" cpu="0" passive="false" stack_size="0x1000">` +
				`<program_image path="a.elf" /></protection_domain>` +
				`<channel><end pd="a" id="0" notify="true" pp="false" /></channel></system>`,
		},
		{
			name: "channel with unknown pd",
			doc: `<system arch="aarch64" paddr_top="0x1000">` +
				`<channel><end pd="x" id="0" notify="true" pp="false" />` +
				`<end pd="y" id="0" notify="true" pp="false" /></channel></system>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestParse_RejectsGraphViolations(t *testing.T) {
	// Well-formed XML that violates a graph invariant still fails.
	doc := `<system arch="aarch64" paddr_top="0x1000">` +
		`<protection_domain name="dup" priority="0" budget="1" period="1" cpu="0" passive="false" stack_size="0x1000">` +
		`<program_image path="a.elf" /></protection_domain>` +
		`<protection_domain name="dup" priority="0" budget="1" period="1" cpu="0" passive="false" stack_size="0x1000">` +
		`<program_image path="b.elf" /></protection_domain></system>`

	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.True(t, IsDuplicateName(err))
}
