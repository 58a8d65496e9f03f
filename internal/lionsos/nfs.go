package lionsos

import (
	"github.com/microkit-tools/sdfgen/internal/sddf"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// NfsFS binds an NFS filesystem server PD to a single client PD. The
// server reaches the network through an embedded network client (with
// its own copier and MAC), logs through a serial subsystem and schedules
// retries through a timer subsystem.
//
// NfsFS registers the server as a client on the supplied subsystems
// during connect; the caller connects those subsystems afterwards (or
// before serialising), in the usual subsystem order.
type NfsFS struct {
	sdf      *sdf.SystemDescription
	fs       *sdf.ProtectionDomain
	client   *sdf.ProtectionDomain
	net      *sddf.Net
	copier   *sdf.ProtectionDomain
	mac      sddf.MAC
	serial   *sddf.Serial
	timer    *sddf.Timer
	channel  *sdf.Channel
	recorder sddf.Recorder

	connected bool
}

// NewNfsFS binds an NFS filesystem. net, serial and timer are the
// subsystems the server depends on; copier and mac configure the
// server's network client slot.
func NewNfsFS(sys *sdf.SystemDescription, fs, client *sdf.ProtectionDomain,
	net *sddf.Net, copier *sdf.ProtectionDomain, mac sddf.MAC,
	serial *sddf.Serial, timer *sddf.Timer) *NfsFS {
	return &NfsFS{
		sdf:    sys,
		fs:     fs,
		client: client,
		net:    net,
		copier: copier,
		mac:    mac,
		serial: serial,
		timer:  timer,
	}
}

// SetRecorder attaches a blob recorder. May be nil.
func (n *NfsFS) SetRecorder(r sddf.Recorder) { n.recorder = r }

// Connect registers the server with its network, serial and timer
// dependencies, then wires the server/client channel and shared queue
// regions. Atomic: on any failure the dependency registrations and all
// regions and maps created by this call are undone.
func (n *NfsFS) Connect() error {
	if n.connected {
		return sdf.NewInvalidStateError("fs_nfs", "filesystem already connected")
	}
	if n.fs == n.client {
		return sdf.NewInvalidClientError(n.client.Name(), "filesystem server and client must be distinct PDs")
	}

	var undos []func()
	rollback := func() {
		for i := len(undos) - 1; i >= 0; i-- {
			undos[i]()
		}
	}

	if err := n.net.AddClientWithCopier(n.fs, n.copier, n.mac); err != nil {
		return err
	}
	undos = append(undos, func() { _ = n.net.RemoveClient(n.fs) })
	if err := n.serial.AddClient(n.fs); err != nil {
		rollback()
		return err
	}
	undos = append(undos, func() { _ = n.serial.RemoveClient(n.fs) })
	if err := n.timer.AddClient(n.fs); err != nil {
		rollback()
		return err
	}
	undos = append(undos, func() { _ = n.timer.RemoveClient(n.fs) })

	undoQueues, err := connectFSQueues(n.sdf, "nfs", n.fs, n.client)
	if err != nil {
		rollback()
		return err
	}
	undos = append(undos, undoQueues)

	ch, err := sdf.NewChannel(n.client, n.fs, sdf.WithPP(sdf.PPEndA))
	if err != nil {
		rollback()
		return err
	}
	if err := n.sdf.AddChannel(ch); err != nil {
		ch.Destroy()
		rollback()
		return err
	}
	n.channel = ch
	n.connected = true
	return nil
}

// SerialiseConfig emits the server and client blobs into dir.
func (n *NfsFS) SerialiseConfig(dir string) error {
	if !n.connected {
		return sdf.NewInvalidStateError("fs_nfs", "cannot serialise config before connect")
	}

	srv := sddf.NewConfigBlob("lionsnfs", sddf.RoleServer)
	srv.Str(n.client.Name())
	srv.U8(n.channel.EndBID())
	srv.Raw(macBytes(n.mac))
	srv.U64(fsCommandQueueVaddr)
	srv.U64(fsCompletionQueueVaddr)
	srv.U64(fsDataVaddr)
	if err := sddf.EmitBlob(n.recorder, "fs_nfs", dir, sddf.BlobName("fs_nfs", "server", n.fs.Name()), srv.Bytes()); err != nil {
		return err
	}

	cl := sddf.NewConfigBlob("lionsnfs", sddf.RoleClient)
	cl.Str(n.fs.Name())
	cl.U8(n.channel.EndAID())
	cl.U64(fsCommandQueueVaddr)
	cl.U64(fsCompletionQueueVaddr)
	cl.U64(fsDataVaddr)
	return sddf.EmitBlob(n.recorder, "fs_nfs", dir, sddf.BlobName("fs_nfs", "client", n.client.Name()), cl.Bytes())
}

func macBytes(m sddf.MAC) []byte {
	out := make([]byte, len(m))
	copy(out, m[:])
	return out
}
