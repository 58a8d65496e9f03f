// Package sdf builds seL4 Microkit system descriptions.
//
// A SystemDescription owns every entity registered with it (protection
// domains, memory regions, channels, virtual machines) for one generation
// session. Entities are created with explicit constructors, mutated through
// their own setters, and referenced elsewhere only by name or non-owning
// handle. Render walks the graph in insertion order and produces the
// Microkit .system XML consumed by the downstream build toolchain; two
// identical call sequences produce byte-identical output.
package sdf
