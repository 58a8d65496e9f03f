// Package lionsos composes LionsOS filesystem services on top of the
// sDDF subsystems.
package lionsos

import (
	"fmt"

	"github.com/microkit-tools/sdfgen/internal/sddf"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// Shared-queue layout between a filesystem server and its client. The
// three regions are mapped into both PDs at the same virtual addresses.
const (
	fsCommandQueueSize    = 0x8000
	fsCompletionQueueSize = 0x8000
	fsDataSize            = 0x200000

	fsCommandQueueVaddr    = 0x10000000
	fsCompletionQueueVaddr = 0x10008000
	fsDataVaddr            = 0x10010000
)

// FatFS binds a FAT filesystem server PD to a single client PD.
type FatFS struct {
	sdf      *sdf.SystemDescription
	fs       *sdf.ProtectionDomain
	client   *sdf.ProtectionDomain
	channel  *sdf.Channel
	recorder sddf.Recorder

	connected  bool
	serialised bool
}

// NewFatFS binds a FAT filesystem to its server and client PDs.
func NewFatFS(sys *sdf.SystemDescription, fs, client *sdf.ProtectionDomain) *FatFS {
	return &FatFS{sdf: sys, fs: fs, client: client}
}

// SetRecorder attaches a blob recorder. May be nil.
func (f *FatFS) SetRecorder(r sddf.Recorder) { f.recorder = r }

// Connect wires the server/client channel and maps the shared command,
// completion and data regions into both PDs.
func (f *FatFS) Connect() error {
	if f.connected {
		return sdf.NewInvalidStateError("fs_fat", "filesystem already connected")
	}
	if f.fs == f.client {
		return sdf.NewInvalidClientError(f.client.Name(), "filesystem server and client must be distinct PDs")
	}

	undoQueues, err := connectFSQueues(f.sdf, "fat", f.fs, f.client)
	if err != nil {
		return err
	}

	ch, err := sdf.NewChannel(f.client, f.fs, sdf.WithPP(sdf.PPEndA))
	if err != nil {
		undoQueues()
		return err
	}
	if err := f.sdf.AddChannel(ch); err != nil {
		ch.Destroy()
		undoQueues()
		return err
	}
	f.channel = ch
	f.connected = true
	return nil
}

// SerialiseConfig emits the server and client blobs into dir.
func (f *FatFS) SerialiseConfig(dir string) error {
	if !f.connected {
		return sdf.NewInvalidStateError("fs_fat", "cannot serialise config before connect")
	}

	srv := sddf.NewConfigBlob("lionsfat", sddf.RoleServer)
	srv.Str(f.client.Name())
	srv.U8(f.channel.EndBID())
	srv.U64(fsCommandQueueVaddr)
	srv.U64(fsCompletionQueueVaddr)
	srv.U64(fsDataVaddr)
	if err := sddf.EmitBlob(f.recorder, "fs_fat", dir, sddf.BlobName("fs_fat", "server", f.fs.Name()), srv.Bytes()); err != nil {
		return err
	}

	cl := sddf.NewConfigBlob("lionsfat", sddf.RoleClient)
	cl.Str(f.fs.Name())
	cl.U8(f.channel.EndAID())
	cl.U64(fsCommandQueueVaddr)
	cl.U64(fsCompletionQueueVaddr)
	cl.U64(fsDataVaddr)
	if err := sddf.EmitBlob(f.recorder, "fs_fat", dir, sddf.BlobName("fs_fat", "client", f.client.Name()), cl.Bytes()); err != nil {
		return err
	}

	f.serialised = true
	return nil
}

// connectFSQueues creates the three shared regions for one fs/client
// pair and maps them into both PDs. The returned undo unregisters the
// regions and maps, so a connect that fails after this step can leave
// the graph unchanged; on error connectFSQueues has already undone
// itself.
func connectFSQueues(sys *sdf.SystemDescription, flavour string, fs, client *sdf.ProtectionDomain) (func(), error) {
	regions := []struct {
		suffix string
		size   uint64
		vaddr  uint64
	}{
		{"command_queue", fsCommandQueueSize, fsCommandQueueVaddr},
		{"completion_queue", fsCompletionQueueSize, fsCompletionQueueVaddr},
		{"data", fsDataSize, fsDataVaddr},
	}
	type pdMap struct {
		pd *sdf.ProtectionDomain
		m  *sdf.Map
	}
	var mrs []*sdf.MemoryRegion
	var maps []pdMap
	undo := func() {
		for _, pm := range maps {
			pm.pd.RemoveMap(pm.m)
		}
		for _, mr := range mrs {
			sys.RemoveMR(mr)
		}
	}
	for _, r := range regions {
		name := fmt.Sprintf("fs_%s_%s_%s", flavour, client.Name(), r.suffix)
		mr, err := sdf.NewMemoryRegion(name, r.size)
		if err != nil {
			undo()
			return nil, err
		}
		if err := sys.AddMR(mr); err != nil {
			undo()
			return nil, err
		}
		mrs = append(mrs, mr)
		for _, pd := range []*sdf.ProtectionDomain{fs, client} {
			m, err := sdf.NewMap(mr, r.vaddr, sdf.PermRW, true)
			if err != nil {
				undo()
				return nil, err
			}
			m.SetVarVaddr("fs_" + r.suffix + "_vaddr")
			pd.AddMap(m)
			maps = append(maps, pdMap{pd: pd, m: m})
		}
	}
	return undo, nil
}
