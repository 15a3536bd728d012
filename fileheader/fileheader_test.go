package fileheader

import (
	"bytes"
	"testing"

	"github.com/selfprofile/traceme/errs"
	"github.com/stretchr/testify/require"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, MagicEventStream))

	require.Equal(t, Size, buf.Len())

	version, err := Read(buf.Bytes(), MagicEventStream)
	require.NoError(t, err)
	require.Equal(t, CurrentFileFormatVersion, version)
}

func TestRead_WrongMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, MagicEventStream))

	_, err := Read(buf.Bytes(), MagicStringtableData)
	require.ErrorIs(t, err, errs.ErrVersionMismatch)
}

func TestRead_WrongVersion(t *testing.T) {
	data := []byte{'M', 'M', 'E', 'S', 0xFF, 0xFF, 0xFF, 0xFF}

	_, err := Read(data, MagicEventStream)
	require.ErrorIs(t, err, errs.ErrVersionMismatch)
}

func TestRead_Truncated(t *testing.T) {
	_, err := Read([]byte{'M', 'M'}, MagicEventStream)
	require.ErrorIs(t, err, errs.ErrVersionMismatch)
}

func TestStrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, MagicPagedFormat))
	buf.WriteString("body")

	require.Equal(t, []byte("body"), Strip(buf.Bytes()))
}
