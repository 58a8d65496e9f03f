package sddf

import (
	"github.com/microkit-tools/sdfgen/internal/dtb"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// GPU wires GPU clients through a single virtualiser.
type GPU struct {
	virtSystem
}

// NewGPU binds a GPU subsystem to its driver and virtualiser PDs and an
// optional device node.
func NewGPU(sys *sdf.SystemDescription, device dtb.Node, driver, virt *sdf.ProtectionDomain) *GPU {
	return &GPU{virtSystem{
		system: system{sdf: sys, device: device, label: "gpu"},
		driver: driver,
		virt:   virt,
	}}
}

// AddClient adds a GPU client. On failure the client list is unchanged.
func (g *GPU) AddClient(client *sdf.ProtectionDomain) error {
	return g.addClient(client)
}

// Connect wires driver to virtualiser and each client to the
// virtualiser.
func (g *GPU) Connect() error {
	return g.connect()
}

// SerialiseConfig emits the subsystem's blobs into dir.
func (g *GPU) SerialiseConfig(dir string) error {
	return g.serialise(dir, "sddf_gpu", nil)
}
