package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/microkit-tools/sdfgen/internal/cli"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// Result captures everything a scenario run produced: the connected
// system, its rendered XML, and the blob files written under BlobDir.
type Result struct {
	SDF     *sdf.SystemDescription
	XML     []byte
	BlobDir string
	Blobs   []string // blob file names, sorted by ReadDir
}

// Run assembles the scenario's system, connects every subsystem,
// serialises the blobs into blobDir and renders the XML.
func Run(scenario *Scenario, blobDir string) (*Result, error) {
	asm, err := cli.Assemble(scenario.toConfig())
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	for _, sub := range asm.Subsystems {
		if err := sub.Connect(); err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
	}
	for _, sub := range asm.Subsystems {
		if err := sub.SerialiseConfig(blobDir); err != nil {
			return nil, fmt.Errorf("serialise: %w", err)
		}
	}

	rendered, err := asm.SDF.Render()
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	entries, err := os.ReadDir(blobDir)
	if err != nil {
		return nil, fmt.Errorf("reading blob dir: %w", err)
	}
	var blobs []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".data" {
			blobs = append(blobs, e.Name())
		}
	}

	return &Result{
		SDF:     asm.SDF,
		XML:     rendered,
		BlobDir: blobDir,
		Blobs:   blobs,
	}, nil
}

// CheckAssertions evaluates every assertion against the result and
// returns one error per failure.
func CheckAssertions(scenario *Scenario, result *Result) []error {
	var failures []error

	for i, a := range scenario.Assertions {
		switch a.Type {
		case AssertPDCount:
			if got := len(result.SDF.PDs()); got != a.Count {
				failures = append(failures, fmt.Errorf("assertions[%d]: pd_count = %d, want %d", i, got, a.Count))
			}
		case AssertMRCount:
			if got := len(result.SDF.MRs()); got != a.Count {
				failures = append(failures, fmt.Errorf("assertions[%d]: mr_count = %d, want %d", i, got, a.Count))
			}
		case AssertChannelCount:
			if got := len(result.SDF.Channels()); got != a.Count {
				failures = append(failures, fmt.Errorf("assertions[%d]: channel_count = %d, want %d", i, got, a.Count))
			}
		case AssertBlobExists:
			found := false
			for _, b := range result.Blobs {
				if b == a.Name {
					found = true
					break
				}
			}
			if !found {
				failures = append(failures, fmt.Errorf("assertions[%d]: blob %q not emitted (have %v)", i, a.Name, result.Blobs))
			}
		case AssertXMLContains:
			if !bytes.Contains(result.XML, []byte(a.Substring)) {
				failures = append(failures, fmt.Errorf("assertions[%d]: rendered XML does not contain %q", i, a.Substring))
			}
		}
	}

	return failures
}
