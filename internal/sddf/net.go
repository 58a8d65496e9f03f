package sddf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/microkit-tools/sdfgen/internal/dtb"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// MAC is a 6-byte Ethernet address.
type MAC [6]byte

// ParseMAC converts colon-separated notation to a MAC.
func ParseMAC(s string) (MAC, error) {
	var mac MAC
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("invalid MAC address %q", s)
	}
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return mac, fmt.Errorf("invalid MAC address %q: %w", s, err)
		}
		mac[i] = byte(v)
	}
	return mac, nil
}

// String renders the address in colon-separated notation.
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

func (m MAC) isZero() bool {
	return m == MAC{}
}

func (m MAC) isBroadcast() bool {
	return m == MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

func (m MAC) isMulticast() bool {
	return m[0]&0x01 != 0
}

// netClient pairs a client PD with its dedicated copier and MAC address.
type netClient struct {
	client *sdf.ProtectionDomain
	copier *sdf.ProtectionDomain
	mac    MAC
}

// Net wires network clients through separate receive and transmit
// virtualisers. Each client comes with a dedicated copier PD that copies
// its frames out of the receive path; MAC addresses, client PDs and
// copier PDs are all unique within the subsystem.
type Net struct {
	system
	driver  *sdf.ProtectionDomain
	virtRx  *sdf.ProtectionDomain
	virtTx  *sdf.ProtectionDomain
	clients []netClient
}

// NewNet binds a network subsystem to its driver and virtualiser PDs and
// an optional device node.
func NewNet(sys *sdf.SystemDescription, device dtb.Node, driver, virtRx, virtTx *sdf.ProtectionDomain) *Net {
	return &Net{
		system: system{sdf: sys, device: device, label: "net"},
		driver: driver,
		virtRx: virtRx,
		virtTx: virtTx,
	}
}

// AddClientWithCopier adds a network client with its dedicated copier PD
// and MAC address. On any validation failure the client list is
// unchanged.
func (n *Net) AddClientWithCopier(client, copier *sdf.ProtectionDomain, mac MAC) error {
	if err := requireAddClient(n.label, n.state); err != nil {
		return err
	}
	if mac.isZero() || mac.isBroadcast() || mac.isMulticast() {
		return sdf.NewInvalidAddressError(client.Name(), fmt.Sprintf("MAC address %s is not a valid unicast address", mac))
	}
	reserved := []*sdf.ProtectionDomain{n.driver, n.virtRx, n.virtTx}
	if err := checkClient(client, reserved, n.clientPDs()); err != nil {
		return err
	}
	if copier == client {
		return sdf.NewInvalidClientError(copier.Name(), "a PD cannot be both client and copier")
	}
	for _, pd := range reserved {
		if pd == copier {
			return sdf.NewInvalidClientError(copier.Name(),
				fmt.Sprintf("copier %q is the subsystem's own driver or virtualiser", copier.Name()))
		}
	}
	for _, c := range n.clients {
		if c.copier == copier {
			return sdf.NewDuplicateClientError(copier.Name(), "copier "+copier.Name())
		}
		if c.client == copier || c.copier == client {
			return sdf.NewInvalidClientError(copier.Name(), "a PD cannot be both client and copier")
		}
		if c.mac == mac {
			return sdf.NewDuplicateClientError(client.Name(), "MAC address "+mac.String())
		}
	}
	n.clients = append(n.clients, netClient{client: client, copier: copier, mac: mac})
	n.state = StateConfigured
	return nil
}

// RemoveClient drops a previously added client together with its copier
// and MAC reservation. Only legal before connect; removing an unknown
// client is a no-op.
func (n *Net) RemoveClient(client *sdf.ProtectionDomain) error {
	if err := requireRemoveClient(n.label, n.state); err != nil {
		return err
	}
	for i, c := range n.clients {
		if c.client == client {
			n.clients = append(n.clients[:i], n.clients[i+1:]...)
			break
		}
	}
	if len(n.clients) == 0 {
		n.state = StateCreated
	}
	return nil
}

func (n *Net) clientPDs() []*sdf.ProtectionDomain {
	pds := make([]*sdf.ProtectionDomain, len(n.clients))
	for i, c := range n.clients {
		pds[i] = c.client
	}
	return pds
}

// Connect maps the device into the driver and wires the fixed
// driver/virtualiser channels plus, per client, copier to the receive
// virtualiser and client to its copier.
func (n *Net) Connect() error {
	if err := requireConnect(n.label, n.state); err != nil {
		return err
	}
	undoDevice, err := n.mapDevice(n.driver)
	if err != nil {
		return err
	}
	links := []link{
		{a: n.driver, b: n.virtRx},
		{a: n.driver, b: n.virtTx},
	}
	for _, c := range n.clients {
		links = append(links, link{a: c.copier, b: n.virtRx})
		links = append(links, link{a: c.client, b: c.copier})
	}
	if err := n.wire(links); err != nil {
		undoDevice()
		return err
	}
	n.state = StateConnected
	return nil
}

// SerialiseConfig emits blobs for the driver, both virtualisers and each
// client and copier into dir. Client and receive-virtualiser blobs carry
// the MAC addresses.
func (n *Net) SerialiseConfig(dir string) error {
	if err := requireSerialise(n.label, n.state); err != nil {
		return err
	}

	drv := NewConfigBlob("sddf_net", RoleDriver)
	drv.U8(n.channels[0].EndAID())
	drv.U8(n.channels[1].EndAID())
	if err := n.emit(dir, BlobName(n.label, "driver", n.driver.Name()), drv.Bytes()); err != nil {
		return err
	}

	vrx := NewConfigBlob("sddf_net", RoleVirtRx)
	vrx.U32(uint32(len(n.clients)))
	for _, c := range n.clients {
		vrx.Raw(c.mac[:])
	}
	if err := n.emit(dir, BlobName(n.label, "virt_rx", n.virtRx.Name()), vrx.Bytes()); err != nil {
		return err
	}

	vtx := NewConfigBlob("sddf_net", RoleVirtTx)
	vtx.U32(uint32(len(n.clients)))
	if err := n.emit(dir, BlobName(n.label, "virt_tx", n.virtTx.Name()), vtx.Bytes()); err != nil {
		return err
	}

	for i, c := range n.clients {
		// Per client: channels[2+2i] is copier-virtRx, channels[3+2i]
		// is client-copier.
		cp := NewConfigBlob("sddf_net", RoleCopier)
		cp.U8(n.channels[2+2*i].EndAID())
		cp.U8(n.channels[3+2*i].EndBID())
		if err := n.emit(dir, BlobName(n.label, "copier", c.copier.Name()), cp.Bytes()); err != nil {
			return err
		}

		cl := NewConfigBlob("sddf_net", RoleClient)
		cl.Raw(c.mac[:])
		cl.U8(n.channels[3+2*i].EndAID())
		if err := n.emit(dir, BlobName(n.label, "client", c.client.Name()), cl.Bytes()); err != nil {
			return err
		}
	}

	n.state = StateSerialised
	return nil
}

// ClientCount returns the number of clients added.
func (n *Net) ClientCount() int { return len(n.clients) }
