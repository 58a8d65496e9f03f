package sddf

import (
	"github.com/microkit-tools/sdfgen/internal/dtb"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// Timer wires timer clients directly to the timer driver; the class has
// no virtualiser. Each client gets one channel: the client end may issue
// protected procedure calls (get/set timeout), the driver end notifies
// timeouts back.
type Timer struct {
	system
	driver  *sdf.ProtectionDomain
	clients []*sdf.ProtectionDomain
}

// NewTimer binds a timer subsystem to its driver PD and an optional
// device node.
func NewTimer(sys *sdf.SystemDescription, device dtb.Node, driver *sdf.ProtectionDomain) *Timer {
	return &Timer{
		system: system{sdf: sys, device: device, label: "timer"},
		driver: driver,
	}
}

// AddClient adds a timer client. On failure the client list is unchanged.
func (t *Timer) AddClient(client *sdf.ProtectionDomain) error {
	if err := requireAddClient(t.label, t.state); err != nil {
		return err
	}
	if err := checkClient(client, []*sdf.ProtectionDomain{t.driver}, t.clients); err != nil {
		return err
	}
	t.clients = append(t.clients, client)
	t.state = StateConfigured
	return nil
}

// RemoveClient drops a previously added client. Only legal before
// connect; removing an unknown client is a no-op.
func (t *Timer) RemoveClient(client *sdf.ProtectionDomain) error {
	if err := requireRemoveClient(t.label, t.state); err != nil {
		return err
	}
	for i, c := range t.clients {
		if c == client {
			t.clients = append(t.clients[:i], t.clients[i+1:]...)
			break
		}
	}
	if len(t.clients) == 0 {
		t.state = StateCreated
	}
	return nil
}

// Connect maps the device into the driver and wires one channel per
// client. Atomic: a failed connect leaves no channel, device region, map
// or IRQ registered.
func (t *Timer) Connect() error {
	if err := requireConnect(t.label, t.state); err != nil {
		return err
	}
	undoDevice, err := t.mapDevice(t.driver)
	if err != nil {
		return err
	}
	links := make([]link, len(t.clients))
	for i, client := range t.clients {
		links[i] = link{a: client, b: t.driver, opts: []sdf.ChannelOption{
			sdf.WithPP(sdf.PPEndA),
			sdf.WithNotifyA(false),
		}}
	}
	if err := t.wire(links); err != nil {
		undoDevice()
		return err
	}
	t.state = StateConnected
	return nil
}

// SerialiseConfig emits the driver blob and one blob per client into dir.
func (t *Timer) SerialiseConfig(dir string) error {
	if err := requireSerialise(t.label, t.state); err != nil {
		return err
	}

	drv := NewConfigBlob("sddf_tmr", RoleDriver)
	drv.U32(uint32(len(t.clients)))
	for _, ch := range t.channels {
		drv.U8(ch.EndBID())
	}
	if err := t.emit(dir, BlobName(t.label, "driver", t.driver.Name()), drv.Bytes()); err != nil {
		return err
	}

	for i, client := range t.clients {
		cl := NewConfigBlob("sddf_tmr", RoleClient)
		cl.Str(t.driver.Name())
		cl.U8(t.channels[i].EndAID())
		if err := t.emit(dir, BlobName(t.label, "client", client.Name()), cl.Bytes()); err != nil {
			return err
		}
	}

	t.state = StateSerialised
	return nil
}

// ClientCount returns the number of clients added.
func (t *Timer) ClientCount() int { return len(t.clients) }
