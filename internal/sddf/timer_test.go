package sddf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microkit-tools/sdfgen/internal/sdf"
	"github.com/microkit-tools/sdfgen/internal/testutil"
)

func TestTimer_AddClient(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver := testutil.NewPD(t, sys, "timer_driver", 254)
	timer := NewTimer(sys, nil, driver)

	client := testutil.NewPD(t, sys, "console", 1)
	require.NoError(t, timer.AddClient(client))
	assert.Equal(t, 1, timer.ClientCount())
	assert.Equal(t, StateConfigured, timer.State())

	err := timer.AddClient(client)
	require.Error(t, err)
	assert.True(t, sdf.IsDuplicateClient(err))
	assert.Equal(t, 1, timer.ClientCount())

	err = timer.AddClient(driver)
	require.Error(t, err)
	assert.True(t, sdf.IsInvalidClient(err))
}

func TestTimer_ConnectWiresOneChannelPerClient(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver := testutil.NewPD(t, sys, "timer_driver", 254)
	timer := NewTimer(sys, nil, driver)

	a := testutil.NewPD(t, sys, "client_a", 1)
	b := testutil.NewPD(t, sys, "client_b", 1)
	require.NoError(t, timer.AddClient(a))
	require.NoError(t, timer.AddClient(b))

	require.NoError(t, timer.Connect())
	assert.Equal(t, StateConnected, timer.State())

	chs := timer.Channels()
	require.Len(t, chs, 2)
	assert.Equal(t, a, chs[0].EndA())
	assert.Equal(t, driver, chs[0].EndB())
	assert.Equal(t, b, chs[1].EndA())
	assert.Equal(t, uint8(0), chs[0].EndBID())
	assert.Equal(t, uint8(1), chs[1].EndBID(), "driver ends share the driver's slot space")
	assert.Len(t, sys.Channels(), 2)
}

func TestTimer_ConnectMapsDevice(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver := testutil.NewPD(t, sys, "timer_driver", 254)
	device := testutil.Device("timer", 0x30001230, 0x100, 42)
	timer := NewTimer(sys, device, driver)

	require.NoError(t, timer.Connect())

	require.Len(t, driver.Maps(), 1)
	m := driver.Maps()[0]
	assert.Equal(t, "timer_timer_regs", m.MR())
	assert.Equal(t, uint64(0x30001000), m.Vaddr(), "register window is mapped page-aligned")
	assert.False(t, m.Cached())

	mr := sys.FindMR("timer_timer_regs")
	require.NotNil(t, mr)
	paddr, fixed := mr.Paddr()
	assert.True(t, fixed)
	assert.Equal(t, uint64(0x30001000), paddr)
	assert.Equal(t, uint64(0x1000), mr.Size())

	require.Len(t, driver.IRQs(), 1)
	assert.Equal(t, uint32(42), driver.IRQs()[0].Number())
}

func TestTimer_LifecycleViolations(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver := testutil.NewPD(t, sys, "timer_driver", 254)
	client := testutil.NewPD(t, sys, "console", 1)
	timer := NewTimer(sys, nil, driver)
	require.NoError(t, timer.AddClient(client))

	// Serialise before connect.
	err := timer.SerialiseConfig(t.TempDir())
	require.Error(t, err)
	assert.True(t, sdf.IsInvalidState(err))

	require.NoError(t, timer.Connect())

	// Add client after connect.
	late := testutil.NewPD(t, sys, "late", 1)
	err = timer.AddClient(late)
	require.Error(t, err)
	assert.True(t, sdf.IsInvalidState(err))

	// Double connect.
	err = timer.Connect()
	require.Error(t, err)
	assert.True(t, sdf.IsInvalidState(err))
}

func TestTimer_SerialiseEmitsBlobs(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver := testutil.NewPD(t, sys, "timer_driver", 254)
	client := testutil.NewPD(t, sys, "console", 1)
	timer := NewTimer(sys, nil, driver)
	rec := &fakeRecorder{}
	timer.SetRecorder(rec)
	require.NoError(t, timer.AddClient(client))
	require.NoError(t, timer.Connect())

	dir := t.TempDir()
	require.NoError(t, timer.SerialiseConfig(dir))
	assert.Equal(t, StateSerialised, timer.State())

	drv, err := os.ReadFile(filepath.Join(dir, "timer_driver_timer_driver.data"))
	require.NoError(t, err)
	assert.Equal(t, []byte("sddf_tmr"), drv[:8])

	cl, err := os.ReadFile(filepath.Join(dir, "timer_client_console.data"))
	require.NoError(t, err)
	assert.Equal(t, []byte("sddf_tmr"), cl[:8])

	require.Len(t, rec.blobs, 2)
	assert.Equal(t, "timer", rec.blobs[0].subsystem)
}

func TestTimer_SerialiseIsDeterministic(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver := testutil.NewPD(t, sys, "timer_driver", 254)
	client := testutil.NewPD(t, sys, "console", 1)
	timer := NewTimer(sys, nil, driver)
	require.NoError(t, timer.AddClient(client))
	require.NoError(t, timer.Connect())

	first := t.TempDir()
	require.NoError(t, timer.SerialiseConfig(first))

	// Serialising again is allowed and produces identical bytes.
	second := t.TempDir()
	require.NoError(t, timer.SerialiseConfig(second))

	for _, name := range []string{"timer_driver_timer_driver.data", "timer_client_console.data"} {
		a, err := os.ReadFile(filepath.Join(first, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(second, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}
}

func TestTimer_ConnectRollsBackOnFailure(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver := testutil.NewPD(t, sys, "timer_driver", 254)
	good := testutil.NewPD(t, sys, "good", 1)
	full := testutil.NewPD(t, sys, "full", 1)

	// Exhaust the second client's slot id space so its channel fails.
	for i := 0; i < 62; i++ {
		require.NoError(t, full.AddIRQ(sdf.NewIRQ(uint32(i), sdf.TriggerLevel)))
	}

	device := testutil.Device("timer", 0x30000000, 0x1000, 42)
	timer := NewTimer(sys, device, driver)
	require.NoError(t, timer.AddClient(good))
	require.NoError(t, timer.AddClient(full))

	err := timer.Connect()
	require.Error(t, err)
	assert.True(t, sdf.IsIDExhausted(err))

	// The first client's channel was rolled back.
	assert.Empty(t, sys.Channels())
	assert.Empty(t, timer.Channels())

	// So were the device region, the driver's map and its IRQ binding.
	assert.Empty(t, sys.MRs())
	assert.Empty(t, driver.Maps())
	assert.Empty(t, driver.IRQs())

	ch, err := sdf.NewChannel(good, driver)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), ch.EndAID(), "rolled-back channel id must be free again")
	assert.Equal(t, uint8(0), ch.EndBID(), "the driver's IRQ slot must be free again")
}

func TestTimer_RemoveClient(t *testing.T) {
	sys := testutil.NewSystem(t)
	driver := testutil.NewPD(t, sys, "timer_driver", 254)
	client := testutil.NewPD(t, sys, "console", 1)
	timer := NewTimer(sys, nil, driver)

	require.NoError(t, timer.AddClient(client))
	require.NoError(t, timer.RemoveClient(client))
	assert.Equal(t, 0, timer.ClientCount())
	assert.Equal(t, StateCreated, timer.State())

	// Removing an unknown client is a no-op; re-adding works.
	require.NoError(t, timer.RemoveClient(client))
	require.NoError(t, timer.AddClient(client))

	require.NoError(t, timer.Connect())
	err := timer.RemoveClient(client)
	require.Error(t, err)
	assert.True(t, sdf.IsInvalidState(err))
}
