package sink

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSink_WriteAtomicAddressesAreMonotonic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.events")
	s, err := NewFileSink(path)
	require.NoError(t, err)

	a1 := s.WriteAtomic(4, func(b []byte) { copy(b, "abcd") })
	a2 := s.WriteAtomic(3, func(b []byte) { copy(b, "xyz") })

	require.EqualValues(t, 0, a1)
	require.EqualValues(t, 4, a2)
	require.NoError(t, s.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "abcdxyz", string(got))
}

func TestFileSink_WriteLargerThanBufferSpillsThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.events")
	s, err := NewFileSink(path)
	require.NoError(t, err)

	s.WriteAtomic(3, func(b []byte) { copy(b, "abc") })

	big := make([]byte, FileBufferSize+17)
	for i := range big {
		big[i] = byte('a' + i%26)
	}
	s.WriteBytesAtomic(big)

	s.WriteAtomic(3, func(b []byte) { copy(b, "xyz") })

	require.NoError(t, s.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "abc", string(got[:3]))
	require.Equal(t, big, got[3:3+len(big)])
	require.Equal(t, "xyz", string(got[3+len(big):]))
}

func TestFileSink_WriteBytesAtomicBelowSpillThresholdUsesBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.events")
	s, err := NewFileSink(path)
	require.NoError(t, err)

	small := make([]byte, 64)
	for i := range small {
		small[i] = byte(i)
	}
	addr := s.WriteBytesAtomic(small)
	require.EqualValues(t, 0, addr)

	require.NoError(t, s.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, small, got)
}

func TestFileSink_CloseFlushesPartialBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.events")
	s, err := NewFileSink(path)
	require.NoError(t, err)

	s.WriteAtomic(5, func(b []byte) { copy(b, "hello") })
	require.NoError(t, s.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestFileSink_ConcurrentWritesNeverOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.events")
	s, err := NewFileSink(path)
	require.NoError(t, err)

	const goroutines = 32
	const recordSize = 17

	var wg sync.WaitGroup
	seen := make([][]Addr, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		idx := i
		go func() {
			defer wg.Done()
			rec := make([]byte, recordSize)
			for j := range rec {
				rec[j] = byte(idx)
			}
			for n := 0; n < 10; n++ {
				addr := s.WriteAtomic(recordSize, func(b []byte) { copy(b, rec) })
				seen[idx] = append(seen[idx], addr)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, goroutines*10*recordSize, info.Size())

	addrs := make(map[Addr]bool)
	for _, list := range seen {
		for _, a := range list {
			require.False(t, addrs[a], "address %d allocated twice", a)
			addrs[a] = true
		}
	}
	require.Len(t, addrs, goroutines*10)
}

func TestFileSink_NewFileSinkCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "trace.events")
	s, err := NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)
}
