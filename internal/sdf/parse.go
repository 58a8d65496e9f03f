package sdf

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// Shadow structs for decoding rendered documents. Numeric attributes are
// decoded as strings because the writer emits some of them in hex.
type xmlSystem struct {
	XMLName  xml.Name     `xml:"system"`
	Arch     string       `xml:"arch,attr"`
	PaddrTop string       `xml:"paddr_top,attr"`
	PDs      []xmlPD      `xml:"protection_domain"`
	MRs      []xmlMR      `xml:"memory_region"`
	Channels []xmlChannel `xml:"channel"`
}

type xmlPD struct {
	Name      string   `xml:"name,attr"`
	ID        string   `xml:"id,attr"`
	Priority  string   `xml:"priority,attr"`
	Budget    string   `xml:"budget,attr"`
	Period    string   `xml:"period,attr"`
	CPU       string   `xml:"cpu,attr"`
	Passive   string   `xml:"passive,attr"`
	StackSize string   `xml:"stack_size,attr"`
	Image     xmlImage `xml:"program_image"`
	Maps      []xmlMap `xml:"map"`
	IRQs      []xmlIRQ `xml:"irq"`
	Children  []xmlPD  `xml:"protection_domain"`
	VM        *xmlVM   `xml:"virtual_machine"`
}

type xmlImage struct {
	Path string `xml:"path,attr"`
}

type xmlMap struct {
	MR          string `xml:"mr,attr"`
	Vaddr       string `xml:"vaddr,attr"`
	Perms       string `xml:"perms,attr"`
	Cached      string `xml:"cached,attr"`
	SetVarVaddr string `xml:"setvar_vaddr,attr"`
	SetVarSize  string `xml:"setvar_size,attr"`
}

type xmlIRQ struct {
	IRQ     string `xml:"irq,attr"`
	Trigger string `xml:"trigger,attr"`
	ID      string `xml:"id,attr"`
}

type xmlVM struct {
	Name  string    `xml:"name,attr"`
	VCPUs []xmlVCPU `xml:"vcpu"`
	Maps  []xmlMap  `xml:"map"`
}

type xmlVCPU struct {
	ID  string `xml:"id,attr"`
	CPU string `xml:"cpu,attr"`
}

type xmlChannel struct {
	Ends []xmlEnd `xml:"end"`
}

type xmlEnd struct {
	PD     string `xml:"pd,attr"`
	ID     string `xml:"id,attr"`
	Notify string `xml:"notify,attr"`
	PP     string `xml:"pp,attr"`
}

// Parse reconstructs an equivalent SystemDescription from a rendered
// document. Used for round-trip testing; Parse(Render(sys)) renders to
// the same bytes as sys.
func Parse(data []byte) (*SystemDescription, error) {
	var doc xmlSystem
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing system document: %w", err)
	}

	arch, err := ParseArch(doc.Arch)
	if err != nil {
		return nil, err
	}
	paddrTop, err := parseUint(doc.PaddrTop, 64)
	if err != nil {
		return nil, fmt.Errorf("paddr_top: %w", err)
	}

	sys, err := New(arch, paddrTop)
	if err != nil {
		return nil, err
	}

	for _, xpd := range doc.PDs {
		pd, err := buildPD(&xpd)
		if err != nil {
			return nil, err
		}
		if err := sys.AddPD(pd); err != nil {
			return nil, err
		}
	}
	for _, xmr := range doc.MRs {
		mr, err := buildMR(&xmr)
		if err != nil {
			return nil, err
		}
		if err := sys.AddMR(mr); err != nil {
			return nil, err
		}
	}
	for _, xch := range doc.Channels {
		ch, err := buildChannel(sys, &xch)
		if err != nil {
			return nil, err
		}
		if err := sys.AddChannel(ch); err != nil {
			return nil, err
		}
	}

	return sys, nil
}

func buildPD(xpd *xmlPD) (*ProtectionDomain, error) {
	pd := NewProtectionDomain(xpd.Name, xpd.Image.Path)

	priority, err := parseUint(xpd.Priority, 8)
	if err != nil {
		return nil, fmt.Errorf("pd %q priority: %w", xpd.Name, err)
	}
	pd.SetPriority(uint8(priority))
	budget, err := parseUint(xpd.Budget, 32)
	if err != nil {
		return nil, fmt.Errorf("pd %q budget: %w", xpd.Name, err)
	}
	pd.SetBudget(uint32(budget))
	period, err := parseUint(xpd.Period, 32)
	if err != nil {
		return nil, fmt.Errorf("pd %q period: %w", xpd.Name, err)
	}
	pd.SetPeriod(uint32(period))
	cpu, err := parseUint(xpd.CPU, 8)
	if err != nil {
		return nil, fmt.Errorf("pd %q cpu: %w", xpd.Name, err)
	}
	pd.SetCPU(uint8(cpu))
	stackSize, err := parseUint(xpd.StackSize, 32)
	if err != nil {
		return nil, fmt.Errorf("pd %q stack_size: %w", xpd.Name, err)
	}
	pd.SetStackSize(uint32(stackSize))
	pd.SetPassive(xpd.Passive == "true")

	for _, xm := range xpd.Maps {
		m, err := buildMap(&xm)
		if err != nil {
			return nil, fmt.Errorf("pd %q: %w", xpd.Name, err)
		}
		pd.AddMap(m)
	}
	for _, xirq := range xpd.IRQs {
		number, err := parseUint(xirq.IRQ, 32)
		if err != nil {
			return nil, fmt.Errorf("pd %q irq: %w", xpd.Name, err)
		}
		id, err := parseUint(xirq.ID, 8)
		if err != nil {
			return nil, fmt.Errorf("pd %q irq id: %w", xpd.Name, err)
		}
		trigger := TriggerEdge
		if xirq.Trigger == "level" {
			trigger = TriggerLevel
		}
		if err := pd.AddIRQ(NewIRQWithID(uint32(number), trigger, uint8(id))); err != nil {
			return nil, err
		}
	}
	for i := range xpd.Children {
		child, err := buildPD(&xpd.Children[i])
		if err != nil {
			return nil, err
		}
		id, err := parseUint(xpd.Children[i].ID, 8)
		if err != nil {
			return nil, fmt.Errorf("pd %q child id: %w", xpd.Name, err)
		}
		fixed := uint8(id)
		if _, err := pd.AddChild(child, &fixed); err != nil {
			return nil, err
		}
	}
	if xpd.VM != nil {
		vm, err := buildVM(xpd.VM)
		if err != nil {
			return nil, err
		}
		if err := pd.AttachVM(vm); err != nil {
			return nil, err
		}
	}

	return pd, nil
}

func buildVM(xvm *xmlVM) (*VirtualMachine, error) {
	vcpus := make([]VirtualCPU, len(xvm.VCPUs))
	for i, xvcpu := range xvm.VCPUs {
		id, err := parseUint(xvcpu.ID, 8)
		if err != nil {
			return nil, fmt.Errorf("vm %q vcpu id: %w", xvm.Name, err)
		}
		cpu, err := parseUint(xvcpu.CPU, 8)
		if err != nil {
			return nil, fmt.Errorf("vm %q vcpu cpu: %w", xvm.Name, err)
		}
		vcpus[i] = VirtualCPU{ID: uint8(id), CPU: uint8(cpu)}
	}
	vm, err := NewVirtualMachine(xvm.Name, vcpus)
	if err != nil {
		return nil, err
	}
	for _, xm := range xvm.Maps {
		m, err := buildMap(&xm)
		if err != nil {
			return nil, fmt.Errorf("vm %q: %w", xvm.Name, err)
		}
		vm.AddMap(m)
	}
	return vm, nil
}

func buildMap(xm *xmlMap) (*Map, error) {
	vaddr, err := parseUint(xm.Vaddr, 64)
	if err != nil {
		return nil, fmt.Errorf("map of %q vaddr: %w", xm.MR, err)
	}
	var perms Perms
	for _, c := range xm.Perms {
		switch c {
		case 'r':
			perms |= PermRead
		case 'w':
			perms |= PermWrite
		case 'x':
			perms |= PermExecute
		default:
			return nil, fmt.Errorf("map of %q: unknown permission %q", xm.MR, string(c))
		}
	}
	m, err := newMap(xm.MR, vaddr, perms, xm.Cached == "true")
	if err != nil {
		return nil, err
	}
	if xm.SetVarVaddr != "" {
		m.SetVarVaddr(xm.SetVarVaddr)
	}
	if xm.SetVarSize != "" {
		m.SetVarSize(xm.SetVarSize)
	}
	return m, nil
}

func buildMR(xmr *xmlMR) (*MemoryRegion, error) {
	size, err := parseUint(xmr.Size, 64)
	if err != nil {
		return nil, fmt.Errorf("mr %q size: %w", xmr.Name, err)
	}
	if xmr.PhysAddr != "" {
		paddr, err := parseUint(xmr.PhysAddr, 64)
		if err != nil {
			return nil, fmt.Errorf("mr %q phys_addr: %w", xmr.Name, err)
		}
		return NewMemoryRegionPhysical(xmr.Name, size, paddr)
	}
	return NewMemoryRegion(xmr.Name, size)
}

func buildChannel(sys *SystemDescription, xch *xmlChannel) (*Channel, error) {
	if len(xch.Ends) != 2 {
		return nil, fmt.Errorf("channel must have exactly two ends, got %d", len(xch.Ends))
	}
	a := sys.FindPD(xch.Ends[0].PD)
	b := sys.FindPD(xch.Ends[1].PD)
	if a == nil || b == nil {
		return nil, fmt.Errorf("channel references unknown PD")
	}
	aID, err := parseUint(xch.Ends[0].ID, 8)
	if err != nil {
		return nil, fmt.Errorf("channel end id: %w", err)
	}
	bID, err := parseUint(xch.Ends[1].ID, 8)
	if err != nil {
		return nil, fmt.Errorf("channel end id: %w", err)
	}
	pp := PPNone
	if xch.Ends[0].PP == "true" {
		pp = PPEndA
	} else if xch.Ends[1].PP == "true" {
		pp = PPEndB
	}
	return NewChannel(a, b,
		WithEndAID(uint8(aID)),
		WithEndBID(uint8(bID)),
		WithNotifyA(xch.Ends[0].Notify == "true"),
		WithNotifyB(xch.Ends[1].Notify == "true"),
		WithPP(pp),
	)
}

type xmlMR struct {
	Name     string `xml:"name,attr"`
	Size     string `xml:"size,attr"`
	PhysAddr string `xml:"phys_addr,attr"`
}

// parseUint accepts decimal or 0x-prefixed hex.
func parseUint(s string, bits int) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing numeric attribute")
	}
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, err
	}
	return v, nil
}
