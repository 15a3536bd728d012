package profiler

import (
	"sync"

	"github.com/selfprofile/traceme/rawevent"
	"github.com/selfprofile/traceme/stringtable"
)

// TimingGuard records one interval event spanning from the instant it
// was created (StartRecordingIntervalEvent) to the instant it is
// finalized. Go has no destructors, so callers must call Close
// explicitly instead of relying on a drop-time finalizer the way the
// original does.
type TimingGuard struct {
	profiler  *Profiler
	eventKind stringtable.StringId
	eventID   rawevent.EventId
	threadID  uint32

	startNanos uint64

	mu     sync.Mutex
	closed bool
}

// Close records the interval event using the event id the guard was
// created with. Calling Close more than once is a no-op.
func (g *TimingGuard) Close() {
	g.finish(g.eventID)
}

// FinishWithOverrideEventID records the interval event using id instead
// of the one the guard was created with, letting a caller discover the
// precise event id only once the operation being timed has completed.
// Calling this (or Close) more than once is a no-op.
func (g *TimingGuard) FinishWithOverrideEventID(id rawevent.EventId) {
	g.finish(id)
}

func (g *TimingGuard) finish(id rawevent.EventId) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	g.closed = true

	end := g.profiler.nanosSinceStart()
	g.profiler.recordRaw(rawevent.NewInterval(g.eventKind, id, g.threadID, g.startNanos, end))
}
