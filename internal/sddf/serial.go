package sddf

import (
	"github.com/microkit-tools/sdfgen/internal/dtb"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// Serial wires serial clients through separate transmit and receive
// virtualisers. The receive side is optional: a transmit-only system
// passes a nil virtRx and its clients get no receive channel.
type Serial struct {
	system
	driver      *sdf.ProtectionDomain
	virtTx      *sdf.ProtectionDomain
	virtRx      *sdf.ProtectionDomain
	enableColor bool
	clients     []*sdf.ProtectionDomain
}

// NewSerial binds a serial subsystem. virtRx may be nil. enableColor
// makes the transmit virtualiser colour-code per-client output.
func NewSerial(sys *sdf.SystemDescription, device dtb.Node, driver, virtTx, virtRx *sdf.ProtectionDomain, enableColor bool) *Serial {
	return &Serial{
		system:      system{sdf: sys, device: device, label: "serial"},
		driver:      driver,
		virtTx:      virtTx,
		virtRx:      virtRx,
		enableColor: enableColor,
	}
}

func (s *Serial) reserved() []*sdf.ProtectionDomain {
	reserved := []*sdf.ProtectionDomain{s.driver, s.virtTx}
	if s.virtRx != nil {
		reserved = append(reserved, s.virtRx)
	}
	return reserved
}

// AddClient adds a serial client. On failure the client list is
// unchanged.
func (s *Serial) AddClient(client *sdf.ProtectionDomain) error {
	if err := requireAddClient(s.label, s.state); err != nil {
		return err
	}
	if err := checkClient(client, s.reserved(), s.clients); err != nil {
		return err
	}
	s.clients = append(s.clients, client)
	s.state = StateConfigured
	return nil
}

// RemoveClient drops a previously added client. Only legal before
// connect; removing an unknown client is a no-op.
func (s *Serial) RemoveClient(client *sdf.ProtectionDomain) error {
	if err := requireRemoveClient(s.label, s.state); err != nil {
		return err
	}
	for i, c := range s.clients {
		if c == client {
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			break
		}
	}
	if len(s.clients) == 0 {
		s.state = StateCreated
	}
	return nil
}

// Connect maps the device into the driver and wires driver to both
// virtualisers and every client to each present virtualiser.
func (s *Serial) Connect() error {
	if err := requireConnect(s.label, s.state); err != nil {
		return err
	}
	undoDevice, err := s.mapDevice(s.driver)
	if err != nil {
		return err
	}

	links := []link{{a: s.driver, b: s.virtTx}}
	if s.virtRx != nil {
		links = append(links, link{a: s.driver, b: s.virtRx})
	}
	for _, client := range s.clients {
		links = append(links, link{a: client, b: s.virtTx})
		if s.virtRx != nil {
			links = append(links, link{a: client, b: s.virtRx})
		}
	}
	if err := s.wire(links); err != nil {
		undoDevice()
		return err
	}
	s.state = StateConnected
	return nil
}

// SerialiseConfig emits blobs for the driver, each virtualiser and each
// client into dir.
func (s *Serial) SerialiseConfig(dir string) error {
	if err := requireSerialise(s.label, s.state); err != nil {
		return err
	}

	rx := uint8(0)
	if s.virtRx != nil {
		rx = 1
	}
	color := uint8(0)
	if s.enableColor {
		color = 1
	}

	drv := NewConfigBlob("sddf_ser", RoleDriver)
	drv.U8(rx)
	if err := s.emit(dir, BlobName(s.label, "driver", s.driver.Name()), drv.Bytes()); err != nil {
		return err
	}

	tx := NewConfigBlob("sddf_ser", RoleVirtTx)
	tx.U8(color)
	tx.U32(uint32(len(s.clients)))
	if err := s.emit(dir, BlobName(s.label, "virt_tx", s.virtTx.Name()), tx.Bytes()); err != nil {
		return err
	}
	if s.virtRx != nil {
		vrx := NewConfigBlob("sddf_ser", RoleVirtRx)
		vrx.U32(uint32(len(s.clients)))
		if err := s.emit(dir, BlobName(s.label, "virt_rx", s.virtRx.Name()), vrx.Bytes()); err != nil {
			return err
		}
	}

	for _, client := range s.clients {
		cl := NewConfigBlob("sddf_ser", RoleClient)
		cl.Str(s.virtTx.Name())
		cl.U8(rx)
		if err := s.emit(dir, BlobName(s.label, "client", client.Name()), cl.Bytes()); err != nil {
			return err
		}
	}

	s.state = StateSerialised
	return nil
}

// ClientCount returns the number of clients added.
func (s *Serial) ClientCount() int { return len(s.clients) }
