// Package fileheader implements the 8-byte magic+version prefix that
// begins every stream traceme writes: the events stream, the string_data
// stream, the string_index stream, and the paged multiplexed stream.
//
// The header is opaque to higher layers. Writers call Write once, at
// stream creation; readers call Read to validate a buffer and Strip to
// get at the body that follows.
package fileheader

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/selfprofile/traceme/errs"
)

// Size is the on-disk size of a file header: a 4-byte magic plus a
// 4-byte little-endian version.
const Size = 8

// CurrentFileFormatVersion is the format version written by this
// implementation. Readers reject any other version.
const CurrentFileFormatVersion uint32 = 7

// Magic values for each of traceme's on-disk stream kinds.
var (
	MagicEventStream     = [4]byte{'M', 'M', 'E', 'S'}
	MagicStringtableData = [4]byte{'M', 'M', 'S', 'D'}
	MagicStringtableIndex = [4]byte{'M', 'M', 'S', 'I'}
	MagicPagedFormat      = [4]byte{'M', 'M', 'P', 'D'}
)

// Write writes a file header with the given magic and
// CurrentFileFormatVersion to w.
func Write(w io.Writer, magic [4]byte) error {
	var buf [Size]byte
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], CurrentFileFormatVersion)

	_, err := w.Write(buf[:])

	return err
}

// Read validates that data begins with the expected magic and a supported
// version, returning the version found. It returns errs.ErrVersionMismatch
// if either check fails or data is shorter than Size.
func Read(data []byte, expectedMagic [4]byte) (uint32, error) {
	if len(data) < Size {
		return 0, fmt.Errorf("%w: header truncated, got %d bytes", errs.ErrVersionMismatch, len(data))
	}

	if [4]byte(data[0:4]) != expectedMagic {
		return 0, fmt.Errorf("%w: expected magic %q, got %q", errs.ErrVersionMismatch, expectedMagic, data[0:4])
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	if version != CurrentFileFormatVersion {
		return 0, fmt.Errorf("%w: expected version %d, got %d", errs.ErrVersionMismatch, CurrentFileFormatVersion, version)
	}

	return version, nil
}

// Strip returns the portion of data following the file header. It panics
// if data is shorter than Size; callers are expected to have already
// validated the header with Read.
func Strip(data []byte) []byte {
	return data[Size:]
}
