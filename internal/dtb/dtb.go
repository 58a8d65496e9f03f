// Package dtb defines the device-tree collaborator contract.
//
// The engine never parses device-tree blobs. A collaborator resolves a
// node path to a handle; the engine only reads resource ranges and
// interrupt numbers through that handle when wiring hardware-backed
// subsystems.
package dtb

// Range is one contiguous device resource range.
type Range struct {
	Base uint64
	Size uint64
}

// Node is an opaque handle to one device-tree node.
type Node interface {
	// Name returns the node's name.
	Name() string

	// Reg returns the node's resource ranges in declaration order.
	Reg() []Range

	// Interrupts returns the node's interrupt numbers in declaration
	// order.
	Interrupts() []uint32
}

// Tree resolves node paths to handles.
type Tree interface {
	// Node returns the node at path, or ok=false if absent.
	Node(path string) (Node, bool)
}
