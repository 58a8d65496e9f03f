package lionsos

import (
	"github.com/microkit-tools/sdfgen/internal/dtb"
	"github.com/microkit-tools/sdfgen/internal/sddf"
	"github.com/microkit-tools/sdfgen/internal/sdf"
	"github.com/microkit-tools/sdfgen/internal/vmm"
)

// VmFS binds a filesystem served from a guest virtual machine to a
// single client PD. The VMM PD hosting the guest is the server end of
// the filesystem protocol; the guest reaches its backing store through
// a Block subsystem partition, with the virtio transport device passed
// through into the VM.
//
// VmFS registers the VMM PD as a block client and records the virtio
// passthrough during connect; the caller connects the VMM and block
// subsystems afterwards (or before serialising), in the usual order.
type VmFS struct {
	sdf       *sdf.SystemDescription
	fsVM      *vmm.System
	client    *sdf.ProtectionDomain
	blk       *sddf.Block
	device    dtb.Node
	partition uint32
	channel   *sdf.Channel
	recorder  sddf.Recorder

	connected bool
}

// NewVmFS binds a VM-hosted filesystem. fsVM is the VMM system running
// the filesystem guest, blk the block subsystem backing it, device the
// virtio transport node passed through to the guest and partition the
// block partition the guest operates on.
func NewVmFS(sys *sdf.SystemDescription, fsVM *vmm.System, client *sdf.ProtectionDomain,
	blk *sddf.Block, device dtb.Node, partition uint32) *VmFS {
	return &VmFS{
		sdf:       sys,
		fsVM:      fsVM,
		client:    client,
		blk:       blk,
		device:    device,
		partition: partition,
	}
}

// SetRecorder attaches a blob recorder. May be nil.
func (v *VmFS) SetRecorder(r sddf.Recorder) { v.recorder = r }

// Connect records the virtio passthrough on the VMM, registers the VMM
// PD as a block client on the partition, then wires the server/client
// channel and shared queue regions. Atomic: on any failure the
// passthrough, the block registration and all regions and maps created
// by this call are undone.
func (v *VmFS) Connect() error {
	if v.connected {
		return sdf.NewInvalidStateError("fs_vmfs", "filesystem already connected")
	}
	fs := v.fsVM.PD()
	if fs == v.client {
		return sdf.NewInvalidClientError(v.client.Name(), "filesystem server and client must be distinct PDs")
	}

	var undos []func()
	rollback := func() {
		for i := len(undos) - 1; i >= 0; i-- {
			undos[i]()
		}
	}

	if err := v.fsVM.AddPassthroughDevice("virtio", v.device); err != nil {
		return err
	}
	undos = append(undos, func() { _ = v.fsVM.RemovePassthroughDevice("virtio") })
	if err := v.blk.AddClient(fs, v.partition); err != nil {
		rollback()
		return err
	}
	undos = append(undos, func() { _ = v.blk.RemoveClient(fs) })

	undoQueues, err := connectFSQueues(v.sdf, "vmfs", fs, v.client)
	if err != nil {
		rollback()
		return err
	}
	undos = append(undos, undoQueues)

	ch, err := sdf.NewChannel(v.client, fs, sdf.WithPP(sdf.PPEndA))
	if err != nil {
		rollback()
		return err
	}
	if err := v.sdf.AddChannel(ch); err != nil {
		ch.Destroy()
		rollback()
		return err
	}
	v.channel = ch
	v.connected = true
	return nil
}

// SerialiseConfig emits the server and client blobs into dir. The
// server blob carries the partition index so the guest knows which
// block partition holds the filesystem.
func (v *VmFS) SerialiseConfig(dir string) error {
	if !v.connected {
		return sdf.NewInvalidStateError("fs_vmfs", "cannot serialise config before connect")
	}
	fs := v.fsVM.PD()

	srv := sddf.NewConfigBlob("lionsvmf", sddf.RoleServer)
	srv.Str(v.client.Name())
	srv.U8(v.channel.EndBID())
	srv.U32(v.partition)
	srv.U64(fsCommandQueueVaddr)
	srv.U64(fsCompletionQueueVaddr)
	srv.U64(fsDataVaddr)
	if err := sddf.EmitBlob(v.recorder, "fs_vmfs", dir, sddf.BlobName("fs_vmfs", "server", fs.Name()), srv.Bytes()); err != nil {
		return err
	}

	cl := sddf.NewConfigBlob("lionsvmf", sddf.RoleClient)
	cl.Str(fs.Name())
	cl.U8(v.channel.EndAID())
	cl.U64(fsCommandQueueVaddr)
	cl.U64(fsCompletionQueueVaddr)
	cl.U64(fsDataVaddr)
	return sddf.EmitBlob(v.recorder, "fs_vmfs", dir, sddf.BlobName("fs_vmfs", "client", v.client.Name()), cl.Bytes())
}
