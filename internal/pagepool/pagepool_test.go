package pagepool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_GetReturnsZeroedPageOfCorrectLength(t *testing.T) {
	p := New(16, 2)

	buf := p.Get()
	require.Len(t, buf, 16)
	for _, b := range buf {
		require.Equal(t, byte(0), b)
	}
}

func TestPool_GetDrainsFreeListThenAllocatesFresh(t *testing.T) {
	p := New(8, 1)

	first := p.Get()
	require.Len(t, first, 8)

	// Free list is now empty; Get must allocate a fresh zeroed buffer
	// rather than panic or block.
	second := p.Get()
	require.Len(t, second, 8)
}

func TestPool_PutZeroesBeforeReturningToFreeList(t *testing.T) {
	p := New(4, 0)

	buf := make([]byte, 4)
	copy(buf, []byte{1, 2, 3, 4})
	p.Put(buf)

	got := p.Get()
	for _, b := range got {
		require.Equal(t, byte(0), b)
	}
}

func TestPool_PutWrongSizePanics(t *testing.T) {
	p := New(8, 0)

	require.Panics(t, func() {
		p.Put(make([]byte, 4))
	})
}

func TestPool_ConcurrentGetPut(t *testing.T) {
	p := New(32, 4)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				buf := p.Get()
				buf[0] = 0xFF
				p.Put(buf)
			}
		}()
	}
	wg.Wait()
}
