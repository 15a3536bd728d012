// Package profiler is traceme's front-end: it composes the three sinks
// (events, string_data, string_index) selected by Config, the string
// table built on top of them, and the clock used to time instant and
// interval events. See spec.md §4.I.
package profiler

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/selfprofile/traceme/fileheader"
	"github.com/selfprofile/traceme/internal/options"
	"github.com/selfprofile/traceme/rawevent"
	"github.com/selfprofile/traceme/sink"
	"github.com/selfprofile/traceme/stringtable"
)

// Profiler records instant and interval events from any number of
// goroutines, and allocates the strings those events refer to. Every
// exported method is safe to call concurrently.
type Profiler struct {
	events  sink.Sink
	strings *stringtable.Builder
	eventID *rawevent.EventIdBuilder

	startTime time.Time
	now       func() time.Time

	close func() error
}

// New creates the configured back-end's sinks under pathStem, writes
// their headers, records the one-time session metadata blob, and
// snapshots the reference instant every subsequent record_* call is
// timed against.
func New(pathStem string, opts ...Option) (*Profiler, error) {
	cfg := newConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	sink.SetLogger(cfg.logger)

	eventsSink, dataSink, indexSink, closeFn, err := buildSinks(cfg, pathStem)
	if err != nil {
		return nil, err
	}

	p := &Profiler{
		events:    eventsSink,
		strings:   stringtable.NewBuilder(dataSink, indexSink),
		startTime: cfg.now(),
		now:       cfg.now,
		close:     closeFn,
	}
	p.eventID = rawevent.NewEventIdBuilder(p.strings)

	p.strings.AllocMetadata(stringtable.PlainString(p.metadataJSON()))

	return p, nil
}

func buildSinks(cfg *Config, pathStem string) (events, data, index sink.Sink, closeFn func() error, err error) {
	switch cfg.backend {
	case MmapBackend:
		ev, err := sink.NewMmapSink(pathStem + ".events")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		ds, err := sink.NewMmapSink(pathStem + ".string_data")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		is, err := sink.NewMmapSink(pathStem + ".string_index")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if err := writeNonPagedHeaders(ev, ds, is); err != nil {
			return nil, nil, nil, nil, err
		}
		return ev, ds, is, closeAll(ev, ds, is), nil

	case PagedBackend:
		paged, err := sink.NewPagedSink(pathStem+".rspd", cfg.pageSize, cfg.logger)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return paged.Events, paged.StringData, paged.StringIndex, paged.Close, nil

	case PagedSyncBackend:
		paged, err := sink.NewPagedSinkV2(pathStem+".rspd", cfg.pageSize, cfg.logger)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return paged.Events, paged.StringData, paged.StringIndex, paged.Close, nil

	default: // FileBackend
		ev, err := sink.NewFileSink(pathStem + ".events")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		ds, err := sink.NewFileSink(pathStem + ".string_data")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		is, err := sink.NewFileSink(pathStem + ".string_index")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if err := writeNonPagedHeaders(ev, ds, is); err != nil {
			return nil, nil, nil, nil, err
		}
		return ev, ds, is, closeAll(ev, ds, is), nil
	}
}

func writeNonPagedHeaders(events, data, index sink.Sink) error {
	if err := fileheader.Write(events.AsWriter(), fileheader.MagicEventStream); err != nil {
		return err
	}
	return stringtable.WriteHeaders(data, index)
}

func closeAll(closers ...io.Closer) func() error {
	return func() error {
		var first error
		for _, c := range closers {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}

func (p *Profiler) metadataJSON() string {
	cmd := strings.Join(os.Args, " ")
	return fmt.Sprintf(`{"start_time":%d,"process_id":%d,"cmd":%q}`, p.startTime.UnixNano(), os.Getpid(), cmd)
}

// Close finalizes and closes every sink. It must be called exactly once,
// after which the Profiler and any still-open TimingGuards must not be
// used.
func (p *Profiler) Close() error {
	return p.close()
}

// AllocString allocates s in the shared string table and returns its id.
func (p *Profiler) AllocString(s stringtable.SerializableString) stringtable.StringId {
	return p.strings.Alloc(s)
}

// MapVirtualToConcreteString registers virtual as an alias for the
// already-allocated concrete string.
func (p *Profiler) MapVirtualToConcreteString(virtual, concrete stringtable.StringId) {
	p.strings.MapVirtualToConcreteString(virtual, concrete)
}

// BulkMapVirtualToSingleConcreteString maps every id in virtualIDs to
// concrete.
func (p *Profiler) BulkMapVirtualToSingleConcreteString(virtualIDs []stringtable.StringId, concrete stringtable.StringId) {
	p.strings.BulkMapVirtualToSingleConcreteString(virtualIDs, concrete)
}

// EventIDFromLabel allocates label in the string table and returns an
// EventId with no disambiguator.
func (p *Profiler) EventIDFromLabel(label string) rawevent.EventId {
	return p.eventID.FromLabel(label)
}

// EventIDFromLabelAndID allocates label in the string table and returns
// an EventId disambiguated by id.
func (p *Profiler) EventIDFromLabelAndID(label string, id uint64) rawevent.EventId {
	return p.eventID.FromLabelAndID(label, id)
}

// RecordInstantEvent records a single-point-in-time event. The timestamp
// is computed automatically against the reference instant snapshotted by
// New.
func (p *Profiler) RecordInstantEvent(eventKind stringtable.StringId, eventID rawevent.EventId, threadID uint32) {
	p.recordRaw(rawevent.NewInstant(eventKind, eventID, threadID, p.nanosSinceStart()))
}

// StartRecordingIntervalEvent starts timing an interval event and
// returns a TimingGuard that records it when closed.
func (p *Profiler) StartRecordingIntervalEvent(eventKind stringtable.StringId, eventID rawevent.EventId, threadID uint32) *TimingGuard {
	return &TimingGuard{
		profiler:   p,
		eventKind:  eventKind,
		eventID:    eventID,
		threadID:   threadID,
		startNanos: p.nanosSinceStart(),
	}
}

func (p *Profiler) recordRaw(ev rawevent.RawEvent) {
	p.events.WriteAtomic(rawevent.Size, ev.Serialize)
}

func (p *Profiler) nanosSinceStart() uint64 {
	elapsed := p.now().Sub(p.startTime)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed.Nanoseconds())
}
