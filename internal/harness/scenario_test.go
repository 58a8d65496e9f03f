package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "i2c_two_clients.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "i2c_two_clients", scenario.Name)
	assert.Equal(t, "aarch64", scenario.Arch)
	assert.Equal(t, uint64(0xa0000000), scenario.PaddrTop)
	assert.Len(t, scenario.PDs, 4)
	require.Len(t, scenario.Subsystems, 1)
	assert.Equal(t, "i2c", scenario.Subsystems[0].Class)
	assert.NotEmpty(t, scenario.Assertions)
}

func TestLoadScenario_NotFound(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nonexistent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	// "assertion" instead of "assertions" must be caught, not ignored.
	content := `
name: typo
description: catches field typos
arch: aarch64
paddr_top: 0xa0000000
pds:
  - name: a
    image: a.elf
    priority: 1
assertion:
  - type: pd_count
    count: 1
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingAssertions(t *testing.T) {
	content := `
name: empty
description: no assertions
arch: aarch64
paddr_top: 0xa0000000
pds:
  - name: a
    image: a.elf
    priority: 1
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertions")
}

func TestLoadScenario_UnknownAssertionType(t *testing.T) {
	content := `
name: bad
description: unknown assertion type
arch: aarch64
paddr_top: 0xa0000000
pds:
  - name: a
    image: a.elf
    priority: 1
assertions:
  - type: trace_contains
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown assertion type")
}

func TestLoadScenario_BlobExistsNeedsName(t *testing.T) {
	content := `
name: bad
description: blob_exists without name
arch: aarch64
paddr_top: 0xa0000000
pds:
  - name: a
    image: a.elf
    priority: 1
assertions:
  - type: blob_exists
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}
