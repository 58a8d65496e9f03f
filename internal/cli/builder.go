package cli

import (
	"fmt"
	"strings"

	"github.com/microkit-tools/sdfgen/internal/dtb"
	"github.com/microkit-tools/sdfgen/internal/sddf"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// Subsystem is the builder-facing surface shared by all device-class
// subsystems.
type Subsystem interface {
	Connect() error
	SerialiseConfig(dir string) error
	SetRecorder(r sddf.Recorder)
}

// Assembly is an assembled but not yet connected system: the resource
// graph plus its subsystems in declaration order.
type Assembly struct {
	Name       string
	SDF        *sdf.SystemDescription
	Subsystems []Subsystem
}

// Assemble turns a decoded config into a system description with its
// subsystems built but not connected. Assembly failures surface the
// builder's typed errors unchanged.
func Assemble(cfg *Config) (*Assembly, error) {
	arch, err := sdf.ParseArch(cfg.Arch)
	if err != nil {
		return nil, err
	}
	sys, err := sdf.New(arch, cfg.PaddrTop)
	if err != nil {
		return nil, err
	}

	pds := make(map[string]*sdf.ProtectionDomain, len(cfg.PDs))
	for _, pc := range cfg.PDs {
		pd := sdf.NewProtectionDomain(pc.Name, pc.Image)
		pd.SetPriority(pc.Priority)
		if pc.Budget != 0 {
			pd.SetBudget(pc.Budget)
		}
		if pc.Period != 0 {
			pd.SetPeriod(pc.Period)
		}
		if pc.StackSize != 0 {
			pd.SetStackSize(pc.StackSize)
		}
		if pc.CPU != 0 {
			pd.SetCPU(pc.CPU)
		}
		if pc.Passive {
			pd.SetPassive(true)
		}
		if err := sys.AddPD(pd); err != nil {
			return nil, err
		}
		pds[pc.Name] = pd
	}

	mrs := make(map[string]*sdf.MemoryRegion, len(cfg.MRs))
	for _, mc := range cfg.MRs {
		var mr *sdf.MemoryRegion
		var err error
		if mc.Paddr != 0 {
			mr, err = sdf.NewMemoryRegionPhysical(mc.Name, mc.Size, mc.Paddr)
		} else {
			mr, err = sdf.NewMemoryRegion(mc.Name, mc.Size)
		}
		if err != nil {
			return nil, err
		}
		if err := sys.AddMR(mr); err != nil {
			return nil, err
		}
		mrs[mc.Name] = mr
	}

	for _, mapc := range cfg.Maps {
		pd, ok := pds[mapc.PD]
		if !ok {
			return nil, fmt.Errorf("map references undeclared pd %q", mapc.PD)
		}
		mr, ok := mrs[mapc.MR]
		if !ok {
			return nil, fmt.Errorf("map references undeclared mr %q", mapc.MR)
		}
		perms, err := parsePerms(mapc.Perms)
		if err != nil {
			return nil, err
		}
		m, err := sdf.NewMap(mr, mapc.Vaddr, perms, mapc.Cached)
		if err != nil {
			return nil, err
		}
		pd.AddMap(m)
	}

	devices := buildDeviceTree(cfg.Devices)

	asm := &Assembly{Name: cfg.Name, SDF: sys}
	for _, sc := range cfg.Subsystems {
		sub, err := buildSubsystem(sys, sc, pds, devices)
		if err != nil {
			return nil, err
		}
		asm.Subsystems = append(asm.Subsystems, sub)
	}

	return asm, nil
}

// buildDeviceTree materialises the declared device nodes as a static
// tree keyed by device name.
func buildDeviceTree(devices []DeviceConfig) map[string]dtb.Node {
	nodes := make(map[string]dtb.Node, len(devices))
	for _, dc := range devices {
		ranges := make([]dtb.Range, len(dc.Reg))
		for i, r := range dc.Reg {
			ranges[i] = dtb.Range{Base: r.Base, Size: r.Size}
		}
		// Device MR names derive from Name(), so use the friendly name
		// rather than the full DT path.
		nodes[dc.Name] = &dtb.StaticNode{
			NodeName: dc.Name,
			Ranges:   ranges,
			Irqs:     dc.IRQs,
		}
	}
	return nodes
}

func buildSubsystem(sys *sdf.SystemDescription, sc SubsystemConfig,
	pds map[string]*sdf.ProtectionDomain, devices map[string]dtb.Node) (Subsystem, error) {

	lookup := func(role, name string) (*sdf.ProtectionDomain, error) {
		if name == "" {
			return nil, fmt.Errorf("%s subsystem requires a %s pd", sc.Class, role)
		}
		pd, ok := pds[name]
		if !ok {
			return nil, fmt.Errorf("%s subsystem references undeclared pd %q", sc.Class, name)
		}
		return pd, nil
	}

	var device dtb.Node
	if sc.Device != "" {
		var ok bool
		device, ok = devices[sc.Device]
		if !ok {
			return nil, fmt.Errorf("%s subsystem references undeclared device %q", sc.Class, sc.Device)
		}
	}

	driver, err := lookup("driver", sc.Driver)
	if err != nil {
		return nil, err
	}

	switch sc.Class {
	case "timer":
		t := sddf.NewTimer(sys, device, driver)
		for _, cc := range sc.Clients {
			client, err := lookup("client", cc.Name)
			if err != nil {
				return nil, err
			}
			if err := t.AddClient(client); err != nil {
				return nil, err
			}
		}
		return t, nil

	case "serial":
		virtTx, err := lookup("virt_tx", sc.VirtTx)
		if err != nil {
			return nil, err
		}
		var virtRx *sdf.ProtectionDomain
		if sc.VirtRx != "" {
			virtRx, err = lookup("virt_rx", sc.VirtRx)
			if err != nil {
				return nil, err
			}
		}
		s := sddf.NewSerial(sys, device, driver, virtTx, virtRx, sc.EnableColor)
		for _, cc := range sc.Clients {
			client, err := lookup("client", cc.Name)
			if err != nil {
				return nil, err
			}
			if err := s.AddClient(client); err != nil {
				return nil, err
			}
		}
		return s, nil

	case "i2c", "gpu", "block":
		virt, err := lookup("virt", sc.Virt)
		if err != nil {
			return nil, err
		}
		switch sc.Class {
		case "i2c":
			i := sddf.NewI2C(sys, device, driver, virt)
			for _, cc := range sc.Clients {
				client, err := lookup("client", cc.Name)
				if err != nil {
					return nil, err
				}
				if err := i.AddClient(client); err != nil {
					return nil, err
				}
			}
			return i, nil
		case "gpu":
			g := sddf.NewGPU(sys, device, driver, virt)
			for _, cc := range sc.Clients {
				client, err := lookup("client", cc.Name)
				if err != nil {
					return nil, err
				}
				if err := g.AddClient(client); err != nil {
					return nil, err
				}
			}
			return g, nil
		default:
			b := sddf.NewBlock(sys, device, driver, virt)
			for _, cc := range sc.Clients {
				client, err := lookup("client", cc.Name)
				if err != nil {
					return nil, err
				}
				if err := b.AddClient(client, cc.Partition); err != nil {
					return nil, err
				}
			}
			return b, nil
		}

	case "net":
		virtRx, err := lookup("virt_rx", sc.VirtRx)
		if err != nil {
			return nil, err
		}
		virtTx, err := lookup("virt_tx", sc.VirtTx)
		if err != nil {
			return nil, err
		}
		n := sddf.NewNet(sys, device, driver, virtRx, virtTx)
		for _, cc := range sc.Clients {
			client, err := lookup("client", cc.Name)
			if err != nil {
				return nil, err
			}
			copier, err := lookup("copier", cc.Copier)
			if err != nil {
				return nil, err
			}
			mac, err := sddf.ParseMAC(cc.MAC)
			if err != nil {
				return nil, err
			}
			if err := n.AddClientWithCopier(client, copier, mac); err != nil {
				return nil, err
			}
		}
		return n, nil

	default:
		return nil, fmt.Errorf("unknown subsystem class %q", sc.Class)
	}
}

// parsePerms converts "rwx" notation to a permission set.
func parsePerms(s string) (sdf.Perms, error) {
	var p sdf.Perms
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'r':
			p |= sdf.PermRead
		case 'w':
			p |= sdf.PermWrite
		case 'x':
			p |= sdf.PermExecute
		default:
			return 0, fmt.Errorf("invalid permission %q in %q", string(c), s)
		}
	}
	if p == 0 {
		return 0, fmt.Errorf("empty permission string")
	}
	return p, nil
}
