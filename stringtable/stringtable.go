// Package stringtable implements traceme's tag-encoded, deduplicating
// string store: a write side (Builder) that allocates ids over a data +
// index sink pair, and a read side (Table) that resolves a StringId back
// to UTF-8 from in-memory byte buffers.
package stringtable

import "github.com/selfprofile/traceme/internal/hash"

// StringId is the 30-bit identifier for a string-table entry.
type StringId uint32

// StringIDMask is the bit mask every StringId value is restricted to.
const StringIDMask = 0x3FFF_FFFF

// MaxStringID is the largest value any StringId may take.
const MaxStringID StringId = StringIDMask

// MaxPreReservedStringID is the top of the host-reservable id range.
// Splitting the 30-bit space in half gives hosts a generous block of
// reservable ids without crowding the sequential range a long-running
// profiler needs; spec.md leaves the exact split as an Open Question,
// resolved this way.
const MaxPreReservedStringID StringId = MaxStringID / 2

// MetadataStringID is the fixed id the profiler uses for its one
// per-session JSON metadata blob.
const MetadataStringID = MaxPreReservedStringID + 1

// Terminator ends every string entry's component list.
const Terminator byte = 0xFF

// referenceTagMask/referenceTagBits identify a reference component's
// leading byte: its top two bits are always "10", the UTF-8 continuation
// pattern, which a valid UTF-8 leading byte can never produce. Because a
// StringId only ever occupies 30 bits (StringIDMask), OR-ing the tag
// into the top two bits of the 4-byte word and writing that word
// big-endian — unlike the rest of the wire format, which is little-endian
// throughout — puts the tagged byte first, making the two component
// kinds self-delimiting without a separate tag byte. See spec.md §9
// "Reference-vs-UTF-8 disambiguation".
const (
	referenceTagMask = 0xC0
	referenceTagBits = 0x80
)

func putReference(buf []byte, id StringId) {
	v := uint32(id) & StringIDMask
	buf[0] = referenceTagBits | byte(v>>24)
	buf[1] = byte(v >> 16)
	buf[2] = byte(v >> 8)
	buf[3] = byte(v)
}

func getReference(buf []byte) StringId {
	v := uint32(buf[0]&^referenceTagMask)<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	return StringId(v)
}

// isReferenceLeader reports whether b is the first byte of a reference
// component, as opposed to a UTF-8 leading byte.
func isReferenceLeader(b byte) bool {
	return b&referenceTagMask == referenceTagBits
}

// StringComponent is one element of a composite string entry: either
// inline UTF-8 text or a reference to a previously-allocated StringId.
type StringComponent interface {
	componentSize() int
	putComponent(buf []byte) int
}

// Ref is a StringComponent referencing an already-allocated entry.
type Ref StringId

func (Ref) componentSize() int { return 4 }

func (r Ref) putComponent(buf []byte) int {
	putReference(buf, StringId(r))
	return 4
}

// Inline is a StringComponent holding literal UTF-8 bytes.
type Inline string

func (c Inline) componentSize() int { return len(c) }

func (c Inline) putComponent(buf []byte) int {
	return copy(buf, c)
}

// SerializableString is anything Builder.Alloc can write as a string
// entry: a plain Go string, or a Composite list of components.
type SerializableString interface {
	serializedSize() int
	serialize(buf []byte)
}

// PlainString is a SerializableString holding literal UTF-8 text.
type PlainString string

func (s PlainString) serializedSize() int { return len(s) + 1 }

func (s PlainString) serialize(buf []byte) {
	n := copy(buf, s)
	buf[n] = Terminator
}

// Composite is a SerializableString built from an ordered list of
// components, each either inline text or a reference to another id.
type Composite []StringComponent

func (c Composite) serializedSize() int {
	size := 1 // terminator
	for _, comp := range c {
		size += comp.componentSize()
	}
	return size
}

func (c Composite) serialize(buf []byte) {
	pos := 0
	for _, comp := range c {
		pos += comp.putComponent(buf[pos:])
	}
	buf[pos] = Terminator
}

var (
	_ SerializableString = PlainString("")
	_ SerializableString = Composite(nil)
	_ StringComponent    = Ref(0)
	_ StringComponent    = Inline("")
)

// ReservedIDFromLabel hashes label into the reserved id range
// [0, MaxPreReservedStringID], giving hosts a stable, collision-tolerant
// way to pick reserved ids for deduplication hints without maintaining
// their own counter.
func ReservedIDFromLabel(label string) StringId {
	return StringId(hash.ID(label) % uint64(MaxPreReservedStringID+1))
}
