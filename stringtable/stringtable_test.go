package stringtable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/selfprofile/traceme/sink"
)

func newTableFixture(t *testing.T) (*Builder, func() *Table) {
	t.Helper()

	dataSink := sink.NewByteSliceSink()
	indexSink := sink.NewByteSliceSink()
	require.NoError(t, WriteHeaders(dataSink, indexSink))
	builder := NewBuilder(dataSink, indexSink)

	return builder, func() *Table {
		table, err := NewTable(dataSink.Bytes(), indexSink.Bytes())
		require.NoError(t, err)
		return table
	}
}

func TestBuilder_AllocRoundTripsPlainStrings(t *testing.T) {
	builder, build := newTableFixture(t)

	values := []string{"abc", "", "xyz", "g2héèsy"}
	ids := make([]StringId, len(values))
	for i, v := range values {
		ids[i] = builder.Alloc(PlainString(v))
	}

	table := build()
	for i, v := range values {
		got, err := table.Resolve(ids[i])
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestBuilder_SequentialIdsStartAfterMetadata(t *testing.T) {
	builder, _ := newTableFixture(t)

	id := builder.Alloc(PlainString("a"))
	require.Equal(t, MetadataStringID+1, id)

	id2 := builder.Alloc(PlainString("b"))
	require.Equal(t, MetadataStringID+2, id2)
}

func TestBuilder_CompositeResolvesThroughReference(t *testing.T) {
	builder, build := newTableFixture(t)

	base := builder.Alloc(PlainString("world"))
	composite := builder.Alloc(Composite{Inline("hello "), Ref(base), Inline("!")})

	table := build()
	got, err := table.Resolve(composite)
	require.NoError(t, err)
	require.Equal(t, "hello world!", got)
}

func TestBuilder_AllocWithReservedIDRejectsOutOfRange(t *testing.T) {
	builder, _ := newTableFixture(t)

	require.Panics(t, func() {
		builder.AllocWithReservedID(MaxPreReservedStringID+1, PlainString("x"))
	})
}

func TestBuilder_AllocMetadataUsesFixedID(t *testing.T) {
	builder, build := newTableFixture(t)

	id := builder.AllocMetadata(PlainString(`{"start_time":1}`))
	require.Equal(t, MetadataStringID, id)

	table := build()
	got, err := table.Resolve(MetadataStringID)
	require.NoError(t, err)
	require.Equal(t, `{"start_time":1}`, got)
}

func TestBuilder_MapVirtualToConcreteString(t *testing.T) {
	builder, build := newTableFixture(t)

	concrete := builder.Alloc(PlainString("concrete value"))
	virtual := ReservedIDFromLabel("virtual-label")
	builder.MapVirtualToConcreteString(virtual, concrete)

	table := build()
	got, err := table.Resolve(virtual)
	require.NoError(t, err)
	require.Equal(t, "concrete value", got)
}

func TestBuilder_BulkMapVirtualToSingleConcreteString(t *testing.T) {
	builder, build := newTableFixture(t)

	concrete := builder.Alloc(PlainString("shared"))
	virtuals := []StringId{
		ReservedIDFromLabel("v1"),
		ReservedIDFromLabel("v2"),
		ReservedIDFromLabel("v3"),
	}
	builder.BulkMapVirtualToSingleConcreteString(virtuals, concrete)

	table := build()
	for _, v := range virtuals {
		got, err := table.Resolve(v)
		require.NoError(t, err)
		require.Equal(t, "shared", got)
	}
}

func TestTable_ResolveUnknownIDErrors(t *testing.T) {
	_, build := newTableFixture(t)
	table := build()

	_, err := table.Resolve(StringId(999999))
	require.Error(t, err)
}

func TestReferenceComponent_LeaderByteAlwaysMatchesContinuationPattern(t *testing.T) {
	ids := []StringId{0, 1, 255, 256, MaxPreReservedStringID, MetadataStringID, MaxStringID}
	for _, id := range ids {
		buf := make([]byte, 4)
		putReference(buf, id)

		require.True(t, isReferenceLeader(buf[0]), "id %d", id)
		require.Equal(t, id, getReference(buf))
	}
}

func TestReservedIDFromLabel_StaysWithinReservedRange(t *testing.T) {
	for _, label := range []string{"a", "some.metric.name", ""} {
		id := ReservedIDFromLabel(label)
		require.LessOrEqual(t, id, MaxPreReservedStringID)
	}
}
