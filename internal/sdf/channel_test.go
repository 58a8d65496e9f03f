package sdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannel_AllocatesLowestIDs(t *testing.T) {
	a := NewProtectionDomain("a", "a.elf")
	b := NewProtectionDomain("b", "b.elf")

	ch1, err := NewChannel(a, b)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), ch1.EndAID())
	assert.Equal(t, uint8(0), ch1.EndBID())

	ch2, err := NewChannel(a, b)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), ch2.EndAID())
	assert.Equal(t, uint8(1), ch2.EndBID())
}

func TestNewChannel_RejectsSameEndpoint(t *testing.T) {
	a := NewProtectionDomain("a", "a.elf")
	_, err := NewChannel(a, a)
	require.Error(t, err)
	assert.True(t, IsInvalidClient(err))
}

func TestNewChannel_FixedIDs(t *testing.T) {
	a := NewProtectionDomain("a", "a.elf")
	b := NewProtectionDomain("b", "b.elf")

	ch, err := NewChannel(a, b, WithEndAID(10), WithEndBID(20))
	require.NoError(t, err)
	assert.Equal(t, uint8(10), ch.EndAID())
	assert.Equal(t, uint8(20), ch.EndBID())

	_, err = NewChannel(a, b, WithEndAID(10))
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
}

func TestNewChannel_RollsBackEndAOnEndBFailure(t *testing.T) {
	a := NewProtectionDomain("a", "a.elf")
	b := NewProtectionDomain("b", "b.elf")
	c := NewProtectionDomain("c", "c.elf")

	// Claim end B's target id so allocation fails on the B side.
	_, err := NewChannel(b, c, WithEndAID(5))
	require.NoError(t, err)

	_, err = NewChannel(a, b, WithEndBID(5))
	require.Error(t, err)

	// End A's id 0 must have been released.
	ch, err := NewChannel(a, b)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), ch.EndAID())
}

func TestChannel_DestroyReleasesBothEnds(t *testing.T) {
	a := NewProtectionDomain("a", "a.elf")
	b := NewProtectionDomain("b", "b.elf")

	ch1, err := NewChannel(a, b)
	require.NoError(t, err)
	ch2, err := NewChannel(a, b)
	require.NoError(t, err)

	ch1.Destroy()

	ch3, err := NewChannel(a, b)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), ch3.EndAID(), "destroyed channel's id must be reused")
	assert.Equal(t, uint8(0), ch3.EndBID())
	assert.Equal(t, uint8(1), ch2.EndAID())
}

func TestNewChannel_NotifyAndPPOptions(t *testing.T) {
	a := NewProtectionDomain("a", "a.elf")
	b := NewProtectionDomain("b", "b.elf")

	ch, err := NewChannel(a, b, WithNotifyA(false), WithPP(PPEndA))
	require.NoError(t, err)
	assert.False(t, ch.aNotify)
	assert.True(t, ch.bNotify)
	assert.Equal(t, PPEndA, ch.pp)
}

func TestNewChannel_SlotExhaustion(t *testing.T) {
	a := NewProtectionDomain("a", "a.elf")
	b := NewProtectionDomain("b", "b.elf")

	for i := 0; i < maxSlotIDs; i++ {
		_, err := NewChannel(a, b)
		require.NoError(t, err)
	}

	_, err := NewChannel(a, b)
	require.Error(t, err)
	assert.True(t, IsIDExhausted(err))
}
