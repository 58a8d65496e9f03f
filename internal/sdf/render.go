package sdf

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Render serializes the full entity graph to Microkit .system XML.
//
// The writer is hand-rolled so the output is byte-deterministic: elements
// appear in insertion order, attributes in a fixed order, and names are
// NFC normalized at the serialization boundary. Render is a pure read of
// current state; two identical call sequences produce identical bytes.
func (sys *SystemDescription) Render() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&buf, "<system arch=%q paddr_top=\"%#x\">\n", sys.arch, sys.paddrTop)

	for _, pd := range sys.pds {
		renderPD(&buf, pd, 1, nil)
	}
	for _, mr := range sys.mrs {
		renderMR(&buf, mr, 1)
	}
	for _, ch := range sys.channels {
		renderChannel(&buf, ch, 1)
	}

	buf.WriteString("</system>\n")
	return buf.Bytes(), nil
}

const indentUnit = "    "

func indent(buf *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteString(indentUnit)
	}
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// attr writes one XML attribute with an NFC-normalized, XML-escaped
// string value. Non-ASCII passes through as raw UTF-8.
func attr(buf *bytes.Buffer, name, value string) {
	fmt.Fprintf(buf, ` %s="%s"`, name, attrEscaper.Replace(norm.NFC.String(value)))
}

func attrHex(buf *bytes.Buffer, name string, value uint64) {
	fmt.Fprintf(buf, " %s=\"%#x\"", name, value)
}

func attrInt(buf *bytes.Buffer, name string, value uint64) {
	fmt.Fprintf(buf, " %s=\"%d\"", name, value)
}

func attrBool(buf *bytes.Buffer, name string, value bool) {
	fmt.Fprintf(buf, " %s=\"%t\"", name, value)
}

func renderPD(buf *bytes.Buffer, pd *ProtectionDomain, depth int, childID *uint8) {
	indent(buf, depth)
	buf.WriteString("<protection_domain")
	attr(buf, "name", pd.name)
	if childID != nil {
		attrInt(buf, "id", uint64(*childID))
	}
	attrInt(buf, "priority", uint64(pd.priority))
	attrInt(buf, "budget", uint64(pd.budget))
	attrInt(buf, "period", uint64(pd.period))
	attrInt(buf, "cpu", uint64(pd.cpu))
	attrBool(buf, "passive", pd.passive)
	attrHex(buf, "stack_size", uint64(pd.stackSize))
	buf.WriteString(">\n")

	indent(buf, depth+1)
	buf.WriteString("<program_image")
	attr(buf, "path", pd.programImage)
	buf.WriteString(" />\n")

	for _, m := range pd.maps {
		renderMap(buf, m, depth+1)
	}
	for _, irq := range pd.irqs {
		indent(buf, depth+1)
		buf.WriteString("<irq")
		attrInt(buf, "irq", uint64(irq.number))
		attr(buf, "trigger", irq.trigger.String())
		attrInt(buf, "id", uint64(irq.id))
		buf.WriteString(" />\n")
	}
	for _, c := range pd.children {
		id := c.id
		renderPD(buf, c.pd, depth+1, &id)
	}
	if pd.vm != nil {
		renderVM(buf, pd.vm, depth+1)
	}

	indent(buf, depth)
	buf.WriteString("</protection_domain>\n")
}

func renderVM(buf *bytes.Buffer, vm *VirtualMachine, depth int) {
	indent(buf, depth)
	buf.WriteString("<virtual_machine")
	attr(buf, "name", vm.name)
	buf.WriteString(">\n")
	for _, vcpu := range vm.vcpus {
		indent(buf, depth+1)
		buf.WriteString("<vcpu")
		attrInt(buf, "id", uint64(vcpu.ID))
		attrInt(buf, "cpu", uint64(vcpu.CPU))
		buf.WriteString(" />\n")
	}
	for _, m := range vm.maps {
		renderMap(buf, m, depth+1)
	}
	indent(buf, depth)
	buf.WriteString("</virtual_machine>\n")
}

func renderMap(buf *bytes.Buffer, m *Map, depth int) {
	indent(buf, depth)
	buf.WriteString("<map")
	attr(buf, "mr", m.mr)
	attrHex(buf, "vaddr", m.vaddr)
	attr(buf, "perms", m.perms.String())
	attrBool(buf, "cached", m.cached)
	if m.setvarVaddr != "" {
		attr(buf, "setvar_vaddr", m.setvarVaddr)
	}
	if m.setvarSize != "" {
		attr(buf, "setvar_size", m.setvarSize)
	}
	buf.WriteString(" />\n")
}

func renderMR(buf *bytes.Buffer, mr *MemoryRegion, depth int) {
	indent(buf, depth)
	buf.WriteString("<memory_region")
	attr(buf, "name", mr.name)
	attrHex(buf, "size", mr.size)
	if paddr, ok := mr.Paddr(); ok {
		attrHex(buf, "phys_addr", paddr)
	}
	buf.WriteString(" />\n")
}

func renderChannel(buf *bytes.Buffer, ch *Channel, depth int) {
	indent(buf, depth)
	buf.WriteString("<channel>\n")
	renderEnd(buf, ch.a, ch.aID, ch.aNotify, ch.pp == PPEndA, depth+1)
	renderEnd(buf, ch.b, ch.bID, ch.bNotify, ch.pp == PPEndB, depth+1)
	indent(buf, depth)
	buf.WriteString("</channel>\n")
}

func renderEnd(buf *bytes.Buffer, pd *ProtectionDomain, id uint8, notify, pp bool, depth int) {
	indent(buf, depth)
	buf.WriteString("<end")
	attr(buf, "pd", pd.name)
	attrInt(buf, "id", uint64(id))
	attrBool(buf, "notify", notify)
	attrBool(buf, "pp", pp)
	buf.WriteString(" />\n")
}
