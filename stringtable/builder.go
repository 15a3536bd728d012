package stringtable

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/selfprofile/traceme/errs"
	"github.com/selfprofile/traceme/fileheader"
	"github.com/selfprofile/traceme/sink"
)

// Builder is the write side of the string table: it allocates ids over a
// data sink (string entries) and an index sink (id -> Addr), both
// assumed to be dedicated to this table for its whole lifetime. See
// spec.md §4.G.
type Builder struct {
	data  sink.Sink
	index sink.Sink

	counter atomic.Uint32
}

// NewBuilder returns a Builder whose sequential-id counter starts at
// MetadataStringID+1. It does not write file headers itself: callers
// using a non-paged back-end must call WriteHeaders first; callers using
// the paged back-end must not, since a paged stream carries no header of
// its own (see spec.md §6).
func NewBuilder(data, index sink.Sink) *Builder {
	b := &Builder{data: data, index: index}
	b.counter.Store(uint32(MetadataStringID))

	return b
}

// WriteHeaders writes the data and index sinks' file headers. Call this
// before any Alloc when data/index are FileSink- or MmapSink-backed;
// skip it entirely for the paged back-end.
func WriteHeaders(data, index sink.Sink) error {
	if err := fileheader.Write(data.AsWriter(), fileheader.MagicStringtableData); err != nil {
		return err
	}
	return fileheader.Write(index.AsWriter(), fileheader.MagicStringtableIndex)
}

// Alloc draws the next sequential id, serializes s to the data sink, and
// records the (id, addr) pair on the index sink.
func (b *Builder) Alloc(s SerializableString) StringId {
	id := StringId(b.counter.Add(1))
	if id > MaxStringID {
		panic(errs.ErrStringIDExhausted)
	}

	b.allocUnchecked(id, s)

	return id
}

// AllocWithReservedID writes s under the caller-supplied id instead of
// drawing one from the sequential counter. id must be within
// [0, MaxPreReservedStringID]; the builder does not detect or reject
// duplicate reserved ids, that contract is on the caller.
func (b *Builder) AllocWithReservedID(id StringId, s SerializableString) StringId {
	if id > MaxPreReservedStringID {
		panic(errs.ErrReservedIDOutOfRange)
	}

	b.allocUnchecked(id, s)

	return id
}

// AllocMetadata writes s under the fixed MetadataStringID. The profiler
// calls this exactly once per session.
func (b *Builder) AllocMetadata(s SerializableString) StringId {
	b.allocUnchecked(MetadataStringID, s)
	return MetadataStringID
}

// MapVirtualToConcreteString registers virtual as an alias for an
// already-allocated concrete string: it allocates a one-component
// composite entry under virtual whose sole content is a reference to
// concrete, reusing the ordinary reference-resolution machinery instead
// of needing any special case on the read side.
func (b *Builder) MapVirtualToConcreteString(virtual, concrete StringId) {
	b.AllocWithReservedID(virtual, Composite{Ref(concrete)})
}

// BulkMapVirtualToSingleConcreteString maps every id in virtualIDs to
// concrete, one MapVirtualToConcreteString call each.
func (b *Builder) BulkMapVirtualToSingleConcreteString(virtualIDs []StringId, concrete StringId) {
	for _, v := range virtualIDs {
		b.MapVirtualToConcreteString(v, concrete)
	}
}

func (b *Builder) allocUnchecked(id StringId, s SerializableString) {
	size := s.serializedSize()
	addr := b.data.WriteAtomic(size, s.serialize)

	b.index.WriteAtomic(8, func(buf []byte) {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(id))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(addr))
	})
}
