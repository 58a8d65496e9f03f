package sddf

import (
	"github.com/microkit-tools/sdfgen/internal/dtb"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// I2C wires I2C clients through a single virtualiser that arbitrates bus
// address claims.
type I2C struct {
	virtSystem
}

// NewI2C binds an I2C subsystem to its driver and virtualiser PDs and an
// optional device node.
func NewI2C(sys *sdf.SystemDescription, device dtb.Node, driver, virt *sdf.ProtectionDomain) *I2C {
	return &I2C{virtSystem{
		system: system{sdf: sys, device: device, label: "i2c"},
		driver: driver,
		virt:   virt,
	}}
}

// AddClient adds an I2C client. On failure the client list is unchanged.
func (i *I2C) AddClient(client *sdf.ProtectionDomain) error {
	return i.addClient(client)
}

// Connect wires driver to virtualiser and each client to the
// virtualiser.
func (i *I2C) Connect() error {
	return i.connect()
}

// SerialiseConfig emits the subsystem's blobs into dir.
func (i *I2C) SerialiseConfig(dir string) error {
	return i.serialise(dir, "sddf_i2c", nil)
}
