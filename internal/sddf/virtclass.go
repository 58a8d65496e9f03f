package sddf

import (
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// virtSystem is the shared shape of the single-virtualiser device
// classes (I2C, block, GPU): a driver, one virtualiser, and clients that
// channel through the virtualiser.
type virtSystem struct {
	system
	driver  *sdf.ProtectionDomain
	virt    *sdf.ProtectionDomain
	clients []*sdf.ProtectionDomain
}

func (v *virtSystem) addClient(client *sdf.ProtectionDomain) error {
	if err := requireAddClient(v.label, v.state); err != nil {
		return err
	}
	if err := checkClient(client, []*sdf.ProtectionDomain{v.driver, v.virt}, v.clients); err != nil {
		return err
	}
	v.clients = append(v.clients, client)
	v.state = StateConfigured
	return nil
}

func (v *virtSystem) connect() error {
	if err := requireConnect(v.label, v.state); err != nil {
		return err
	}
	undoDevice, err := v.mapDevice(v.driver)
	if err != nil {
		return err
	}
	links := []link{{a: v.driver, b: v.virt}}
	for _, client := range v.clients {
		links = append(links, link{a: client, b: v.virt})
	}
	if err := v.wire(links); err != nil {
		undoDevice()
		return err
	}
	v.state = StateConnected
	return nil
}

// serialise emits the standard driver/virt/client blobs for a
// single-virtualiser class. extra, when non-nil, appends class-specific
// fields to each client blob.
func (v *virtSystem) serialise(dir, magic string, extra func(b *ConfigBlob, clientIndex int)) error {
	if err := requireSerialise(v.label, v.state); err != nil {
		return err
	}

	drv := NewConfigBlob(magic, RoleDriver)
	drv.Str(v.virt.Name())
	drv.U8(v.channels[0].EndAID())
	if err := v.emit(dir, BlobName(v.label, "driver", v.driver.Name()), drv.Bytes()); err != nil {
		return err
	}

	vb := NewConfigBlob(magic, RoleVirt)
	vb.U8(v.channels[0].EndBID())
	vb.U32(uint32(len(v.clients)))
	for i := range v.clients {
		vb.U8(v.channels[i+1].EndBID())
	}
	if err := v.emit(dir, BlobName(v.label, "virt", v.virt.Name()), vb.Bytes()); err != nil {
		return err
	}

	for i, client := range v.clients {
		cl := NewConfigBlob(magic, RoleClient)
		cl.Str(v.virt.Name())
		cl.U8(v.channels[i+1].EndAID())
		if extra != nil {
			extra(cl, i)
		}
		if err := v.emit(dir, BlobName(v.label, "client", client.Name()), cl.Bytes()); err != nil {
			return err
		}
	}

	v.state = StateSerialised
	return nil
}

// ClientCount returns the number of clients added.
func (v *virtSystem) ClientCount() int { return len(v.clients) }
