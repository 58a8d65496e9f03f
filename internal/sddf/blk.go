package sddf

import (
	"github.com/microkit-tools/sdfgen/internal/dtb"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// Block wires block clients through a single virtualiser. Each client
// names the partition it operates on; partitions are not exclusive, so
// several clients may share one.
type Block struct {
	virtSystem
	partitions []uint32
}

// NewBlock binds a block subsystem to its driver and virtualiser PDs and
// an optional device node.
func NewBlock(sys *sdf.SystemDescription, device dtb.Node, driver, virt *sdf.ProtectionDomain) *Block {
	return &Block{virtSystem: virtSystem{
		system: system{sdf: sys, device: device, label: "blk"},
		driver: driver,
		virt:   virt,
	}}
}

// AddClient adds a block client operating on the given partition. On
// failure the client list is unchanged.
func (b *Block) AddClient(client *sdf.ProtectionDomain, partition uint32) error {
	if err := b.addClient(client); err != nil {
		return err
	}
	b.partitions = append(b.partitions, partition)
	return nil
}

// RemoveClient drops a previously added client and its partition
// binding. Only legal before connect; removing an unknown client is a
// no-op.
func (b *Block) RemoveClient(client *sdf.ProtectionDomain) error {
	if err := requireRemoveClient(b.label, b.state); err != nil {
		return err
	}
	for i, c := range b.clients {
		if c == client {
			b.clients = append(b.clients[:i], b.clients[i+1:]...)
			b.partitions = append(b.partitions[:i], b.partitions[i+1:]...)
			break
		}
	}
	if len(b.clients) == 0 {
		b.state = StateCreated
	}
	return nil
}

// Connect wires driver to virtualiser and each client to the
// virtualiser.
func (b *Block) Connect() error {
	return b.connect()
}

// SerialiseConfig emits the subsystem's blobs into dir. Client blobs
// carry the partition index.
func (b *Block) SerialiseConfig(dir string) error {
	return b.serialise(dir, "sddf_blk", func(cl *ConfigBlob, i int) {
		cl.U32(b.partitions[i])
	})
}
