package rawevent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/selfprofile/traceme/stringtable"
)

func TestRawEvent_SerializeDeserializeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		event RawEvent
	}{
		{"instant", NewInstant(stringtable.StringId(7), FromLabel(42), 3, 1234)},
		{"interval", NewInterval(stringtable.StringId(7), FromLabel(42), 3, 100, 200)},
		{"zero", RawEvent{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, Size)
			tt.event.Serialize(buf)

			got := Deserialize(buf)
			require.Equal(t, tt.event, got)
		})
	}
}

func TestRawEvent_InstantVsIntervalDiscrimination(t *testing.T) {
	instant := NewInstant(stringtable.StringId(1), FromLabel(1), 0, 500)
	require.True(t, instant.IsInstant())

	interval := NewInterval(stringtable.StringId(1), FromLabel(1), 0, 100, 200)
	require.False(t, interval.IsInstant())
}

func TestRawEvent_TimestampsSaturateRatherThanOverflow(t *testing.T) {
	e := NewInterval(stringtable.StringId(1), FromLabel(1), 0, MaxInstantTimestampNanos, MaxInstantTimestampNanos)

	require.Equal(t, MaxIntervalTimestampNanos, e.Start)
	require.Equal(t, MaxIntervalTimestampNanos, e.End)
	require.False(t, e.IsInstant())
}

func TestEventId_FromLabelHasNoDisambiguator(t *testing.T) {
	id := FromLabel(stringtable.StringId(99))
	require.Equal(t, stringtable.StringId(99), id.KindID())
	require.Zero(t, id.Disambiguator())
}

func TestEventId_FromLabelAndIDDisambiguatesDistinctIDs(t *testing.T) {
	a := FromLabelAndID(stringtable.StringId(5), 1)
	b := FromLabelAndID(stringtable.StringId(5), 2)

	require.Equal(t, a.KindID(), b.KindID())
	require.NotEqual(t, a.Disambiguator(), b.Disambiguator())
}
