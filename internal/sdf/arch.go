package sdf

import "fmt"

// Arch identifies the target architecture of a system description.
type Arch int

const (
	ArchAarch32 Arch = iota
	ArchAarch64
	ArchRiscv32
	ArchRiscv64
	ArchX86
	ArchX86_64
)

// PageSize is the smallest mappable granule on all supported architectures.
const PageSize = 0x1000

var archNames = map[Arch]string{
	ArchAarch32: "aarch32",
	ArchAarch64: "aarch64",
	ArchRiscv32: "riscv32",
	ArchRiscv64: "riscv64",
	ArchX86:     "x86",
	ArchX86_64:  "x86_64",
}

// String returns the canonical lower-case architecture name.
func (a Arch) String() string {
	if name, ok := archNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Arch(%d)", int(a))
}

// ParseArch converts a canonical architecture name to an Arch.
func ParseArch(s string) (Arch, error) {
	for arch, name := range archNames {
		if name == s {
			return arch, nil
		}
	}
	return 0, fmt.Errorf("unknown architecture %q", s)
}

// Valid reports whether a is one of the supported architectures.
func (a Arch) Valid() bool {
	_, ok := archNames[a]
	return ok
}
