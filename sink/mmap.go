package sink

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
)

// InitialMmapSize is the length MmapSink maps the backing file to before
// any bytes have been written.
const InitialMmapSize = 1 << 20 // 1 MiB

// MmapSink is a Sink backed by a single contiguous memory-mapped file
// region that grows (by doubling, never shrinking) as writes exceed its
// current mapping. See spec.md §4.E.
type MmapSink struct {
	mu     sync.Mutex
	file   *os.File
	region mmap.MMap
	offset uint32
}

var _ Sink = (*MmapSink)(nil)

// NewMmapSink creates (or truncates) the file at path, maps
// InitialMmapSize bytes of it, and returns a ready-to-use sink.
func NewMmapSink(path string) (*MmapSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:gosec
	if err != nil {
		return nil, err
	}

	if err := f.Truncate(InitialMmapSize); err != nil {
		f.Close()
		return nil, err
	}

	region, err := mmap.MapRegion(f, InitialMmapSize, mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &MmapSink{file: f, region: region}, nil
}

func (s *MmapSink) WriteAtomic(n int, fill func([]byte)) Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	needed := s.offset + uint32(n) //nolint:gosec
	if needed > uint32(len(s.region)) {
		s.growLocked(needed)
	}

	curr := s.offset
	fill(s.region[curr:needed])
	s.offset = needed

	return Addr(curr)
}

func (s *MmapSink) WriteBytesAtomic(bytes []byte) Addr {
	return s.WriteAtomic(len(bytes), func(b []byte) { copy(b, bytes) })
}

// growLocked doubles the mapping until it is at least `needed` bytes,
// remapping the file in place. The caller must hold mu.
func (s *MmapSink) growLocked(needed uint32) {
	newLen := len(s.region)
	if newLen == 0 {
		newLen = InitialMmapSize
	}
	for uint32(newLen) < needed { //nolint:gosec
		newLen *= 2
	}

	if err := s.region.Unmap(); err != nil {
		fatal("MmapSink.grow.unmap", err)
	}

	if err := s.file.Truncate(int64(newLen)); err != nil {
		fatal("MmapSink.grow.truncate", err)
	}

	region, err := mmap.MapRegion(s.file, newLen, mmap.RDWR, 0, 0)
	if err != nil {
		fatal("MmapSink.grow.remap", err)
	}
	s.region = region
}

func (s *MmapSink) AsWriter() io.Writer {
	return NewWriterAdapter(s.WriteBytesAtomic)
}

// Close truncates the backing file to the exact high-water mark written,
// syncs it, and unmaps the region.
func (s *MmapSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.region.Unmap(); err != nil {
		return err
	}

	if err := s.file.Truncate(int64(s.offset)); err != nil {
		return err
	}

	if err := s.file.Sync(); err != nil {
		return err
	}

	return s.file.Close()
}
