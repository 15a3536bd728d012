package rawevent

import (
	"github.com/selfprofile/traceme/internal/hash"
	"github.com/selfprofile/traceme/stringtable"
)

// EventId is a RawEvent's event-id field: the low 32 bits hold the
// StringId of the event's label, the high 32 bits hold an optional
// disambiguator that lets two events with the same label but different
// runtime arguments (for example, two invocations of the same query
// keyed by different query inputs) still be told apart downstream
// without allocating a fresh string per invocation.
type EventId uint64

// FromLabel packs kindID with a zero disambiguator.
func FromLabel(kindID stringtable.StringId) EventId {
	return EventId(uint64(kindID))
}

// FromLabelAndID packs kindID with a disambiguator derived from id,
// which may be any value that's stable across the lifetime of the
// event being disambiguated (a query cache key, an allocation address).
func FromLabelAndID(kindID stringtable.StringId, id uint64) EventId {
	b := encodeUint64(id)
	disambiguator := uint32(hash.ID(string(b[:])))
	return EventId(uint64(kindID) | uint64(disambiguator)<<32)
}

func encodeUint64(v uint64) [8]byte {
	var b [8]byte
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// KindID returns the StringId component of the event id.
func (id EventId) KindID() stringtable.StringId {
	return stringtable.StringId(uint32(id))
}

// Disambiguator returns the hash-derived disambiguator, or 0 if the id
// was built with FromLabel.
func (id EventId) Disambiguator() uint32 {
	return uint32(id >> 32)
}

// EventIdBuilder allocates event-kind labels into the string table
// shared with the rest of the profiler.
type EventIdBuilder struct {
	strings *stringtable.Builder
}

// NewEventIdBuilder wraps a string table builder.
func NewEventIdBuilder(strings *stringtable.Builder) *EventIdBuilder {
	return &EventIdBuilder{strings: strings}
}

// FromLabel allocates label in the string table and returns an EventId
// with no disambiguator.
func (b *EventIdBuilder) FromLabel(label string) EventId {
	kindID := b.strings.Alloc(stringtable.PlainString(label))
	return FromLabel(kindID)
}

// FromLabelAndID allocates label in the string table and returns an
// EventId disambiguated by id.
func (b *EventIdBuilder) FromLabelAndID(label string, id uint64) EventId {
	kindID := b.strings.Alloc(stringtable.PlainString(label))
	return FromLabelAndID(kindID, id)
}
