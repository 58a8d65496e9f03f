package sddf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// Configuration blobs are fixed-layout little-endian structures consumed
// by the matching sDDF component at boot. Every blob starts with an
// 8-byte subsystem magic and a format version.
const ConfigVersion uint32 = 1

// Participant roles encoded in blob headers.
const (
	RoleDriver uint32 = iota
	RoleVirt
	RoleVirtRx
	RoleVirtTx
	RoleClient
	RoleCopier
	RoleServer
)

// ConfigBlob accumulates one configuration blob. All writes are
// little-endian.
type ConfigBlob struct {
	buf bytes.Buffer
}

// NewConfigBlob starts a blob with the standard header.
func NewConfigBlob(magic string, role uint32) *ConfigBlob {
	b := &ConfigBlob{}
	var m [8]byte
	copy(m[:], magic)
	b.buf.Write(m[:])
	b.U32(ConfigVersion)
	b.U32(role)
	return b
}

// U8 appends one byte.
func (b *ConfigBlob) U8(v uint8) { b.buf.WriteByte(v) }

// U32 appends a little-endian uint32.
func (b *ConfigBlob) U32(v uint32) { binary.Write(&b.buf, binary.LittleEndian, v) }

// U64 appends a little-endian uint64.
func (b *ConfigBlob) U64(v uint64) { binary.Write(&b.buf, binary.LittleEndian, v) }

// Str appends a fixed 64-byte zero-padded name field.
func (b *ConfigBlob) Str(s string) {
	var field [64]byte
	copy(field[:], s)
	b.buf.Write(field[:])
}

// Raw appends bytes verbatim.
func (b *ConfigBlob) Raw(p []byte) { b.buf.Write(p) }

// Bytes returns the accumulated blob.
func (b *ConfigBlob) Bytes() []byte { return b.buf.Bytes() }

// BlobName returns the deterministic file name for one participant's
// blob: <subsystem>_<role>_<pd>.data.
func BlobName(subsystem, role, pd string) string {
	return fmt.Sprintf("%s_%s_%s.data", subsystem, role, pd)
}

// EmitBlob writes one blob under dir and records it with rec when rec is
// non-nil. The write is a plain synchronous file write: on failure no
// guarantee is made about partially written bytes.
func EmitBlob(rec Recorder, subsystem, dir, name string, data []byte) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return sdf.NewIOFailureError(path, err)
	}
	if rec != nil {
		if err := rec.Record(subsystem, name, path, data); err != nil {
			return err
		}
	}
	return nil
}

func (s *system) emit(dir, name string, data []byte) error {
	return EmitBlob(s.recorder, s.label, dir, name, data)
}
