package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Config is the decoded system configuration. The CUE file declares a
// single top-level "system" struct matching this shape.
type Config struct {
	Name     string `json:"name"`
	Arch     string `json:"arch"`
	PaddrTop uint64 `json:"paddr_top"`

	PDs        []PDConfig        `json:"pds"`
	MRs        []MRConfig        `json:"mrs,omitempty"`
	Maps       []MapConfig       `json:"maps,omitempty"`
	Devices    []DeviceConfig    `json:"devices,omitempty"`
	Subsystems []SubsystemConfig `json:"subsystems,omitempty"`
}

// PDConfig declares one protection domain. Zero-valued optional fields
// keep the builder defaults.
type PDConfig struct {
	Name      string `json:"name"`
	Image     string `json:"image"`
	Priority  uint8  `json:"priority"`
	Budget    uint32 `json:"budget,omitempty"`
	Period    uint32 `json:"period,omitempty"`
	StackSize uint32 `json:"stack_size,omitempty"`
	CPU       uint8  `json:"cpu,omitempty"`
	Passive   bool   `json:"passive,omitempty"`
}

// MRConfig declares one memory region. Paddr zero means virtual.
type MRConfig struct {
	Name  string `json:"name"`
	Size  uint64 `json:"size"`
	Paddr uint64 `json:"paddr,omitempty"`
}

// MapConfig maps a declared MR into a declared PD.
type MapConfig struct {
	PD     string `json:"pd"`
	MR     string `json:"mr"`
	Vaddr  uint64 `json:"vaddr"`
	Perms  string `json:"perms"`
	Cached bool   `json:"cached"`
}

// DeviceConfig declares a device node subsystems can bind to.
type DeviceConfig struct {
	Name string        `json:"name"`
	Path string        `json:"path"`
	Reg  []RegionBlock `json:"reg,omitempty"`
	IRQs []uint32      `json:"irqs,omitempty"`
}

// RegionBlock is one base/size pair of a device's register window.
type RegionBlock struct {
	Base uint64 `json:"base"`
	Size uint64 `json:"size"`
}

// SubsystemConfig declares one device-class subsystem and its clients.
type SubsystemConfig struct {
	Class       string         `json:"class"` // timer|serial|i2c|block|net|gpu
	Device      string         `json:"device,omitempty"`
	Driver      string         `json:"driver"`
	Virt        string         `json:"virt,omitempty"`
	VirtRx      string         `json:"virt_rx,omitempty"`
	VirtTx      string         `json:"virt_tx,omitempty"`
	EnableColor bool           `json:"enable_color,omitempty"`
	Clients     []ClientConfig `json:"clients"`
}

// ClientConfig is one subsystem client. Copier and MAC apply to net,
// Partition to block.
type ClientConfig struct {
	Name      string `json:"name"`
	Copier    string `json:"copier,omitempty"`
	MAC       string `json:"mac,omitempty"`
	Partition uint32 `json:"partition,omitempty"`
}

// LoadError represents an error that occurred during config loading.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNotFound     = "E002" // Path not found
	ErrCodeLoadFailed   = "E003" // CUE load failed
	ErrCodeBuildFailed  = "E004" // CUE build failed
	ErrCodeDecodeFailed = "E005" // CUE decode failed
	ErrCodeWriteFailed  = "E006" // File write error
	ErrCodeIndexFailed  = "E007" // Artifact index error
)

// LoadConfig loads and decodes a CUE system config file.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config file: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("resolving path: %v", err)}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: filepath.Dir(abs)}
	instances := load.Instances([]string{filepath.Base(abs)}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE file: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	systemVal := value.LookupPath(cue.ParsePath("system"))
	if !systemVal.Exists() {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: "config has no top-level \"system\" struct"}
	}

	var decoded Config
	if err := systemVal.Decode(&decoded); err != nil {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("decoding system config: %v", err)}
	}

	if decoded.Name == "" {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: "system.name must be set"}
	}
	if len(decoded.PDs) == 0 {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: "system.pds must declare at least one protection domain"}
	}

	return &decoded, nil
}
