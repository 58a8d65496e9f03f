package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/microkit-tools/sdfgen/internal/cli"
)

// Scenario defines one build scenario: a complete system config plus
// assertions over the assembled and connected result.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Arch is the target architecture (aarch64, riscv64, ...).
	Arch string `yaml:"arch"`

	// PaddrTop is the upper bound of usable physical memory.
	PaddrTop uint64 `yaml:"paddr_top"`

	PDs        []PDDecl        `yaml:"pds"`
	MRs        []MRDecl        `yaml:"mrs,omitempty"`
	Maps       []MapDecl       `yaml:"maps,omitempty"`
	Devices    []DeviceDecl    `yaml:"devices,omitempty"`
	Subsystems []SubsystemDecl `yaml:"subsystems,omitempty"`

	// Assertions validate the connected system.
	Assertions []Assertion `yaml:"assertions"`
}

// PDDecl declares one protection domain.
type PDDecl struct {
	Name      string `yaml:"name"`
	Image     string `yaml:"image"`
	Priority  uint8  `yaml:"priority"`
	Budget    uint32 `yaml:"budget,omitempty"`
	Period    uint32 `yaml:"period,omitempty"`
	StackSize uint32 `yaml:"stack_size,omitempty"`
	CPU       uint8  `yaml:"cpu,omitempty"`
	Passive   bool   `yaml:"passive,omitempty"`
}

// MRDecl declares one memory region.
type MRDecl struct {
	Name  string `yaml:"name"`
	Size  uint64 `yaml:"size"`
	Paddr uint64 `yaml:"paddr,omitempty"`
}

// MapDecl maps a declared MR into a declared PD.
type MapDecl struct {
	PD     string `yaml:"pd"`
	MR     string `yaml:"mr"`
	Vaddr  uint64 `yaml:"vaddr"`
	Perms  string `yaml:"perms"`
	Cached bool   `yaml:"cached"`
}

// DeviceDecl declares a device node for subsystems to bind.
type DeviceDecl struct {
	Name string    `yaml:"name"`
	Path string    `yaml:"path"`
	Reg  []RegDecl `yaml:"reg,omitempty"`
	IRQs []uint32  `yaml:"irqs,omitempty"`
}

// RegDecl is one base/size pair of a device register window.
type RegDecl struct {
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

// SubsystemDecl declares one subsystem and its clients.
type SubsystemDecl struct {
	Class       string       `yaml:"class"`
	Device      string       `yaml:"device,omitempty"`
	Driver      string       `yaml:"driver"`
	Virt        string       `yaml:"virt,omitempty"`
	VirtRx      string       `yaml:"virt_rx,omitempty"`
	VirtTx      string       `yaml:"virt_tx,omitempty"`
	EnableColor bool         `yaml:"enable_color,omitempty"`
	Clients     []ClientDecl `yaml:"clients"`
}

// ClientDecl is one subsystem client.
type ClientDecl struct {
	Name      string `yaml:"name"`
	Copier    string `yaml:"copier,omitempty"`
	MAC       string `yaml:"mac,omitempty"`
	Partition uint32 `yaml:"partition,omitempty"`
}

// Assertion validates the connected system.
type Assertion struct {
	// Type specifies the assertion type:
	// - "pd_count": top-level protection domain count
	// - "mr_count": memory region count
	// - "channel_count": channel count
	// - "blob_exists": named blob was emitted
	// - "xml_contains": rendered XML contains the substring
	Type string `yaml:"type"`

	// Count is the expected count (pd_count, mr_count, channel_count).
	Count int `yaml:"count,omitempty"`

	// Name is the expected blob file name (blob_exists).
	Name string `yaml:"name,omitempty"`

	// Substring is the expected XML fragment (xml_contains).
	Substring string `yaml:"substring,omitempty"`
}

// Assertion type constants.
const (
	AssertPDCount      = "pd_count"
	AssertMRCount      = "mr_count"
	AssertChannelCount = "channel_count"
	AssertBlobExists   = "blob_exists"
	AssertXMLContains  = "xml_contains"
)

// LoadScenario reads and parses a scenario YAML file. Returns an error
// if the file doesn't exist, is malformed, contains unknown fields
// (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Arch == "" {
		return fmt.Errorf("arch is required")
	}
	if len(s.PDs) == 0 {
		return fmt.Errorf("pds list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPDCount, AssertMRCount, AssertChannelCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertBlobExists:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for blob_exists", index)
		}
	case AssertXMLContains:
		if a.Substring == "" {
			return fmt.Errorf("assertions[%d]: substring is required for xml_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// toConfig converts the scenario's declarations to a builder config.
func (s *Scenario) toConfig() *cli.Config {
	cfg := &cli.Config{
		Name:     s.Name,
		Arch:     s.Arch,
		PaddrTop: s.PaddrTop,
	}
	for _, pd := range s.PDs {
		cfg.PDs = append(cfg.PDs, cli.PDConfig(pd))
	}
	for _, mr := range s.MRs {
		cfg.MRs = append(cfg.MRs, cli.MRConfig(mr))
	}
	for _, m := range s.Maps {
		cfg.Maps = append(cfg.Maps, cli.MapConfig(m))
	}
	for _, d := range s.Devices {
		dc := cli.DeviceConfig{Name: d.Name, Path: d.Path, IRQs: d.IRQs}
		for _, r := range d.Reg {
			dc.Reg = append(dc.Reg, cli.RegionBlock(r))
		}
		cfg.Devices = append(cfg.Devices, dc)
	}
	for _, sub := range s.Subsystems {
		sc := cli.SubsystemConfig{
			Class:       sub.Class,
			Device:      sub.Device,
			Driver:      sub.Driver,
			Virt:        sub.Virt,
			VirtRx:      sub.VirtRx,
			VirtTx:      sub.VirtTx,
			EnableColor: sub.EnableColor,
		}
		for _, c := range sub.Clients {
			sc.Clients = append(sc.Clients, cli.ClientConfig(c))
		}
		cfg.Subsystems = append(cfg.Subsystems, sc)
	}
	return cfg
}
