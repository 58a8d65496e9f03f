package lionsos

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microkit-tools/sdfgen/internal/sddf"
	"github.com/microkit-tools/sdfgen/internal/sdf"
	"github.com/microkit-tools/sdfgen/internal/testutil"
	"github.com/microkit-tools/sdfgen/internal/vmm"
)

type vmfsFixture struct {
	sys    *sdf.SystemDescription
	host   *sdf.ProtectionDomain
	client *sdf.ProtectionDomain
	blk    *sddf.Block
	fsVM   *vmm.System
	vmfs   *VmFS
}

func newVmfsFixture(t *testing.T) *vmfsFixture {
	t.Helper()
	sys := testutil.NewSystem(t)

	blkDriver := testutil.NewPD(t, sys, "blk_driver", 254)
	blkVirt := testutil.NewPD(t, sys, "blk_virt", 250)
	blk := sddf.NewBlock(sys, nil, blkDriver, blkVirt)

	host := testutil.NewPD(t, sys, "fs_vmm", 100)
	vm, err := sdf.NewVirtualMachine("fs_guest", []sdf.VirtualCPU{{ID: 0}})
	require.NoError(t, err)
	fsVM := vmm.New(sys, host, vm, "fs_vm", nil, false)

	client := testutil.NewPD(t, sys, "app", 1)
	device := testutil.Device("virtio_blk", 0xa003000, 0x1000, 79)

	vmfs := NewVmFS(sys, fsVM, client, blk, device, 3)
	return &vmfsFixture{sys: sys, host: host, client: client, blk: blk, fsVM: fsVM, vmfs: vmfs}
}

func TestVmFS_ConnectRegistersDependencies(t *testing.T) {
	fx := newVmfsFixture(t)

	require.NoError(t, fx.vmfs.Connect())

	assert.Equal(t, 1, fx.blk.ClientCount())
	require.Len(t, fx.sys.Channels(), 1)
	for _, suffix := range []string{"command_queue", "completion_queue", "data"} {
		require.NotNil(t, fx.sys.FindMR("fs_vmfs_app_"+suffix), suffix)
	}

	// The VMM and block subsystems wire themselves afterwards; the
	// virtio transport is mapped into the guest.
	require.NoError(t, fx.fsVM.Connect())
	require.NoError(t, fx.blk.Connect())
	require.NotNil(t, fx.sys.FindMR("fs_vm_virtio"))
	require.Len(t, fx.host.IRQs(), 1)
	assert.Equal(t, uint32(79), fx.host.IRQs()[0].Number())
}

func TestVmFS_ConnectRollsBackOnChannelFailure(t *testing.T) {
	fx := newVmfsFixture(t)

	// Exhaust the client's slot id space so the server/client channel
	// fails after the passthrough, the block registration and the queue
	// wiring succeeded.
	for i := 0; i < 62; i++ {
		require.NoError(t, fx.client.AddIRQ(sdf.NewIRQ(uint32(i), sdf.TriggerLevel)))
	}

	err := fx.vmfs.Connect()
	require.Error(t, err)
	assert.True(t, sdf.IsIDExhausted(err))

	assert.Equal(t, 0, fx.blk.ClientCount())
	assert.Empty(t, fx.sys.MRs())
	assert.Empty(t, fx.sys.Channels())
	assert.Empty(t, fx.host.Maps())
	assert.Empty(t, fx.client.Maps())

	// After freeing the client's slots a retry succeeds cleanly; it also
	// re-records the virtio passthrough, which would collide had the
	// failed attempt left it behind.
	irqs := append([]*sdf.IRQ(nil), fx.client.IRQs()...)
	for _, irq := range irqs {
		fx.client.RemoveIRQ(irq)
	}
	require.NoError(t, fx.vmfs.Connect())
}

func TestVmFS_RejectsServerAsClient(t *testing.T) {
	fx := newVmfsFixture(t)
	fx.vmfs.client = fx.host

	err := fx.vmfs.Connect()
	require.Error(t, err)
	assert.True(t, sdf.IsInvalidClient(err))
}

func TestVmFS_ConnectTwice(t *testing.T) {
	fx := newVmfsFixture(t)
	require.NoError(t, fx.vmfs.Connect())

	err := fx.vmfs.Connect()
	require.Error(t, err)
	assert.True(t, sdf.IsInvalidState(err))
}

func TestVmFS_SerialiseEmitsBlobs(t *testing.T) {
	fx := newVmfsFixture(t)
	require.NoError(t, fx.vmfs.Connect())

	dir := t.TempDir()
	require.NoError(t, fx.vmfs.SerialiseConfig(dir))

	srv, err := os.ReadFile(filepath.Join(dir, "fs_vmfs_server_fs_vmm.data"))
	require.NoError(t, err)
	assert.Equal(t, []byte("lionsvmf"), srv[:8])
	assert.Equal(t, []byte("app"), srv[16:19])
	// The partition index follows the client name field and channel id.
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(srv[16+64+1:16+64+5]))

	cl, err := os.ReadFile(filepath.Join(dir, "fs_vmfs_client_app.data"))
	require.NoError(t, err)
	assert.Equal(t, []byte("lionsvmf"), cl[:8])
	assert.Equal(t, []byte("fs_vmm"), cl[16:22])
}

func TestVmFS_SerialiseBeforeConnect(t *testing.T) {
	fx := newVmfsFixture(t)
	err := fx.vmfs.SerialiseConfig(t.TempDir())
	require.Error(t, err)
	assert.True(t, sdf.IsInvalidState(err))
}
