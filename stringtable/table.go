package stringtable

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/selfprofile/traceme/errs"
	"github.com/selfprofile/traceme/fileheader"
)

// Table is the read side of the string table: an in-memory index built
// from raw data/index byte buffers (typically memory-mapped by the
// caller), resolving a StringId to its UTF-8 content. See spec.md §4.H.
type Table struct {
	data  []byte
	index map[StringId]uint32
}

// NewTable validates both buffers' headers, checks they share the same
// version, and parses the index into an id -> Addr map.
func NewTable(data, index []byte) (*Table, error) {
	dataVersion, err := fileheader.Read(data, fileheader.MagicStringtableData)
	if err != nil {
		return nil, err
	}

	indexVersion, err := fileheader.Read(index, fileheader.MagicStringtableIndex)
	if err != nil {
		return nil, err
	}

	if dataVersion != indexVersion {
		return nil, errs.ErrStringTableVersionMismatch
	}

	body := fileheader.Strip(index)
	if len(body)%8 != 0 {
		return nil, fmt.Errorf("%w: string index body length %d is not a multiple of 8", errs.ErrStringTableVersionMismatch, len(body))
	}

	t := &Table{
		data:  data,
		index: make(map[StringId]uint32, len(body)/8),
	}

	for i := 0; i < len(body); i += 8 {
		id := StringId(binary.LittleEndian.Uint32(body[i : i+4]))
		addr := binary.LittleEndian.Uint32(body[i+4 : i+8])
		t.index[id] = addr
	}

	return t, nil
}

// Resolve returns the UTF-8 content the given id's entry decodes to.
func (t *Table) Resolve(id StringId) (string, error) {
	var sb strings.Builder
	if err := t.writeTo(&sb, id); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (t *Table) writeTo(sb *strings.Builder, id StringId) error {
	addr, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrUnknownStringID, id)
	}

	pos := int(addr)
	for {
		if pos >= len(t.data) {
			return fmt.Errorf("%w: entry for id %d runs past end of string data", errs.ErrUnknownStringID, id)
		}

		b := t.data[pos]

		switch {
		case b == Terminator:
			return nil
		case isReferenceLeader(b):
			if pos+4 > len(t.data) {
				return fmt.Errorf("%w: truncated reference component for id %d", errs.ErrUnknownStringID, id)
			}
			ref := getReference(t.data[pos : pos+4])
			if err := t.writeTo(sb, ref); err != nil {
				return err
			}
			pos += 4
		default:
			r, size, err := decodeUTF8Lead(t.data[pos:])
			if err != nil {
				return err
			}
			sb.WriteRune(r)
			pos += size
		}
	}
}

// decodeUTF8Lead decodes one Unicode scalar starting at b[0]. Only the
// ASCII, 2-byte, and 3-byte UTF-8 forms are supported; a 4-byte leading
// byte (0b11110xxx) is deliberately rejected rather than silently
// mis-decoded, since b[0]'s top bits in that case (1111xxxx) never
// collide with the reference tag pattern (10xxxxxx) and so would
// otherwise decode into the wrong, truncated rune. See spec.md §9.
func decodeUTF8Lead(b []byte) (rune, int, error) {
	lead := b[0]

	switch {
	case lead&0x80 == 0:
		return rune(lead), 1, nil
	case lead&0xE0 == 0xC0:
		if len(b) < 2 {
			return 0, 0, fmt.Errorf("%w: truncated 2-byte utf8 sequence", errs.ErrUnsupportedUTF8Form)
		}
		r := rune(lead&0x1F)<<6 | rune(b[1]&0x3F)
		return r, 2, nil
	case lead&0xF0 == 0xE0:
		if len(b) < 3 {
			return 0, 0, fmt.Errorf("%w: truncated 3-byte utf8 sequence", errs.ErrUnsupportedUTF8Form)
		}
		r := rune(lead&0x0F)<<12 | rune(b[1]&0x3F)<<6 | rune(b[2]&0x3F)
		return r, 3, nil
	default:
		return 0, 0, fmt.Errorf("%w: lead byte 0x%02X", errs.ErrUnsupportedUTF8Form, lead)
	}
}
