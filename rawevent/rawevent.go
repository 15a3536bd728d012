// Package rawevent implements the fixed-size event record written to the
// events sink by the profiler: a total, symmetric little-endian codec
// for both instant and interval timings. See spec.md §4.A.
package rawevent

import (
	"encoding/binary"
	"math"

	"github.com/selfprofile/traceme/stringtable"
)

// Size is the serialized byte length of every RawEvent, instant or
// interval alike.
const Size = 4 + 8 + 4 + 8 + 8

// MaxInstantTimestampNanos is the sentinel End value marking a record as
// an instant rather than an interval. It is reserved and never a valid
// elapsed-nanosecond value.
const MaxInstantTimestampNanos uint64 = math.MaxUint64

// MaxIntervalTimestampNanos is the largest nanosecond value a Start or
// End field may hold for an interval event; it is one less than the
// instant sentinel so the two can never be confused.
const MaxIntervalTimestampNanos = MaxInstantTimestampNanos - 1

// RawEvent is the fixed-width record serialized to the events sink.
type RawEvent struct {
	EventKind stringtable.StringId
	EventID   EventId
	ThreadID  uint32
	Start     uint64
	End       uint64
}

// NewInstant builds an instant event at the given elapsed-nanosecond
// timestamp, saturating it to MaxIntervalTimestampNanos if it would
// otherwise collide with the instant sentinel.
func NewInstant(kind stringtable.StringId, id EventId, threadID uint32, atNanos uint64) RawEvent {
	return RawEvent{
		EventKind: kind,
		EventID:   id,
		ThreadID:  threadID,
		Start:     saturate(atNanos),
		End:       MaxInstantTimestampNanos,
	}
}

// NewInterval builds an interval event spanning [startNanos, endNanos),
// each saturated independently.
func NewInterval(kind stringtable.StringId, id EventId, threadID uint32, startNanos, endNanos uint64) RawEvent {
	return RawEvent{
		EventKind: kind,
		EventID:   id,
		ThreadID:  threadID,
		Start:     saturate(startNanos),
		End:       saturate(endNanos),
	}
}

func saturate(nanos uint64) uint64 {
	if nanos > MaxIntervalTimestampNanos {
		return MaxIntervalTimestampNanos
	}
	return nanos
}

// IsInstant reports whether the event represents a single instant rather
// than a (start, end) interval.
func (e RawEvent) IsInstant() bool {
	return e.End == MaxInstantTimestampNanos
}

// Serialize writes e little-endian into buf, which must be exactly Size
// bytes long.
func (e RawEvent) Serialize(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(e.EventKind))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(e.EventID))
	binary.LittleEndian.PutUint32(buf[12:16], e.ThreadID)
	binary.LittleEndian.PutUint64(buf[16:24], e.Start)
	binary.LittleEndian.PutUint64(buf[24:32], e.End)
}

// Deserialize reads a RawEvent from buf, which must be exactly Size
// bytes long. It is the exact inverse of Serialize.
func Deserialize(buf []byte) RawEvent {
	return RawEvent{
		EventKind: stringtable.StringId(binary.LittleEndian.Uint32(buf[0:4])),
		EventID:   EventId(binary.LittleEndian.Uint64(buf[4:12])),
		ThreadID:  binary.LittleEndian.Uint32(buf[12:16]),
		Start:     binary.LittleEndian.Uint64(buf[16:24]),
		End:       binary.LittleEndian.Uint64(buf[24:32]),
	}
}
