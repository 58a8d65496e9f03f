package sdf

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProtectionDomain_Defaults(t *testing.T) {
	pd := NewProtectionDomain("worker", "worker.elf")

	assert.Equal(t, "worker", pd.Name())
	assert.Equal(t, "worker.elf", pd.ProgramImage())
	assert.Equal(t, uint32(1000), pd.budget)
	assert.Equal(t, uint32(1000), pd.period)
	assert.Equal(t, uint32(0x1000), pd.stackSize)
	assert.False(t, pd.Passive())
	assert.Nil(t, pd.Parent())
}

func TestAddChild_AllocatesLowestID(t *testing.T) {
	parent := NewProtectionDomain("parent", "parent.elf")

	a := NewProtectionDomain("a", "a.elf")
	b := NewProtectionDomain("b", "b.elf")

	idA, err := parent.AddChild(a, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), idA)

	idB, err := parent.AddChild(b, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), idB)

	assert.Equal(t, parent, a.Parent())
	assert.Len(t, parent.Children(), 2)
}

func TestAddChild_FixedID(t *testing.T) {
	parent := NewProtectionDomain("parent", "parent.elf")
	child := NewProtectionDomain("child", "child.elf")

	fixed := uint8(5)
	id, err := parent.AddChild(child, &fixed)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), id)

	other := NewProtectionDomain("other", "other.elf")
	_, err = parent.AddChild(other, &fixed)
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
}

func TestAddChild_RejectsSelf(t *testing.T) {
	pd := NewProtectionDomain("self", "self.elf")
	_, err := pd.AddChild(pd, nil)
	require.Error(t, err)
	assert.True(t, IsStructuralCycle(err))
}

func TestAddChild_RejectsSecondParent(t *testing.T) {
	p1 := NewProtectionDomain("p1", "p1.elf")
	p2 := NewProtectionDomain("p2", "p2.elf")
	child := NewProtectionDomain("child", "child.elf")

	_, err := p1.AddChild(child, nil)
	require.NoError(t, err)

	_, err = p2.AddChild(child, nil)
	require.Error(t, err)
	assert.True(t, IsStructuralCycle(err))
}

func TestAddChild_RejectsAncestorCycle(t *testing.T) {
	grandparent := NewProtectionDomain("grandparent", "g.elf")
	parent := NewProtectionDomain("parent", "p.elf")

	_, err := grandparent.AddChild(parent, nil)
	require.NoError(t, err)

	// parent → grandparent would close a loop.
	_, err = parent.AddChild(grandparent, nil)
	require.Error(t, err)
	assert.True(t, IsStructuralCycle(err))
}

func TestAddIRQ_SharesSlotSpaceWithChannels(t *testing.T) {
	driver := NewProtectionDomain("driver", "driver.elf")
	peer := NewProtectionDomain("peer", "peer.elf")

	require.NoError(t, driver.AddIRQ(NewIRQ(42, TriggerLevel)))
	assert.Equal(t, uint8(0), driver.IRQs()[0].ID())

	ch, err := NewChannel(driver, peer)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), ch.EndAID(), "channel end must skip the IRQ's slot")
}

func TestAddIRQ_FixedIDConflict(t *testing.T) {
	pd := NewProtectionDomain("pd", "pd.elf")
	require.NoError(t, pd.AddIRQ(NewIRQWithID(10, TriggerEdge, 3)))

	err := pd.AddIRQ(NewIRQWithID(11, TriggerEdge, 3))
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
}

func TestAddIRQ_SlotExhaustion(t *testing.T) {
	pd := NewProtectionDomain("pd", "pd.elf")
	for i := 0; i < maxSlotIDs; i++ {
		require.NoError(t, pd.AddIRQ(NewIRQ(uint32(i), TriggerLevel)))
	}

	err := pd.AddIRQ(NewIRQ(100, TriggerLevel))
	require.Error(t, err)
	assert.True(t, IsIDExhausted(err))
}

func TestRemoveIRQ_ReleasesSlot(t *testing.T) {
	pd := NewProtectionDomain("pd", "pd.elf")
	irq := NewIRQ(42, TriggerLevel)
	require.NoError(t, pd.AddIRQ(irq))
	assert.Equal(t, uint8(0), irq.ID())

	pd.RemoveIRQ(irq)
	assert.Empty(t, pd.IRQs())

	// The slot is free again.
	other := NewIRQ(43, TriggerLevel)
	require.NoError(t, pd.AddIRQ(other))
	assert.Equal(t, uint8(0), other.ID())

	// Removing an unknown IRQ is a no-op.
	pd.RemoveIRQ(irq)
	assert.Len(t, pd.IRQs(), 1)
}

func TestRemoveMap(t *testing.T) {
	pd := NewProtectionDomain("pd", "pd.elf")
	mr, err := NewMemoryRegion("shared", 0x1000)
	require.NoError(t, err)
	m, err := NewMap(mr, 0x4000000, PermRW, true)
	require.NoError(t, err)

	pd.AddMap(m)
	pd.RemoveMap(m)
	assert.Empty(t, pd.Maps())

	pd.RemoveMap(m)
	assert.Empty(t, pd.Maps())
}

func TestAttachVM_OnePerPD(t *testing.T) {
	host := NewProtectionDomain("vmm", "vmm.elf")
	vm1, err := NewVirtualMachine("guest1", []VirtualCPU{{ID: 0}})
	require.NoError(t, err)
	vm2, err := NewVirtualMachine("guest2", []VirtualCPU{{ID: 0}})
	require.NoError(t, err)

	require.NoError(t, host.AttachVM(vm1))
	assert.Equal(t, vm1, host.VM())
	assert.Equal(t, host, vm1.Host())

	err = host.AttachVM(vm2)
	require.Error(t, err)
	assert.True(t, IsStructuralCycle(err))
}

func TestAttachVM_OnePDPerVM(t *testing.T) {
	host1 := NewProtectionDomain("vmm1", "vmm1.elf")
	host2 := NewProtectionDomain("vmm2", "vmm2.elf")
	vm, err := NewVirtualMachine("guest", []VirtualCPU{{ID: 0}})
	require.NoError(t, err)

	require.NoError(t, host1.AttachVM(vm))
	err = host2.AttachVM(vm)
	require.Error(t, err)
	assert.True(t, IsStructuralCycle(err))
}

func TestChildIDExhaustion(t *testing.T) {
	parent := NewProtectionDomain("parent", "parent.elf")
	for i := 0; i < maxChildIDs; i++ {
		child := NewProtectionDomain(fmt.Sprintf("child_%d", i), "c.elf")
		_, err := parent.AddChild(child, nil)
		require.NoError(t, err)
	}

	extra := NewProtectionDomain("extra", "extra.elf")
	_, err := parent.AddChild(extra, nil)
	require.Error(t, err)
	assert.True(t, IsIDExhausted(err))
}
