package sink

import (
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileBufferSize is the size of a FileSink's internal write-behind
// buffer.
const FileBufferSize = 512 * 1024

// FileSink is a line-buffered Sink over a single *os.File. Writes that
// fit in the internal buffer are appended to it in place; writes that
// don't trigger a flush and, if still too large, spill through to a
// one-shot direct write. See spec.md §4.D.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	buffer []byte
	bufPos int
	addr   uint32
}

var _ Sink = (*FileSink)(nil)

// NewFileSink creates (or truncates) the file at path, creating its
// parent directories as needed.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return nil, err
	}

	return &FileSink{
		file:   f,
		buffer: make([]byte, FileBufferSize),
	}, nil
}

func (s *FileSink) WriteAtomic(n int, fill func([]byte)) Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	curr := s.addr
	s.addr += uint32(n) //nolint:gosec

	bufEnd := s.bufPos + n
	switch {
	case bufEnd <= len(s.buffer):
		fill(s.buffer[s.bufPos:bufEnd])
		s.bufPos = bufEnd
	case n <= len(s.buffer):
		s.flushLocked()
		fill(s.buffer[0:n])
		s.bufPos = n
	default:
		s.flushLocked()
		tmp := make([]byte, n)
		fill(tmp)
		if _, err := s.file.Write(tmp); err != nil {
			fatal("FileSink.WriteAtomic", err)
		}
	}

	return Addr(curr)
}

// WriteBytesAtomic takes the regular buffered path for small writes (to
// avoid flushing an almost-empty buffer) and a direct-to-file path,
// bypassing the buffer entirely, once bytes is 128 bytes or longer.
func (s *FileSink) WriteBytesAtomic(bytes []byte) Addr {
	if len(bytes) < 128 {
		return s.WriteAtomic(len(bytes), func(b []byte) { copy(b, bytes) })
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	curr := s.addr
	s.addr += uint32(len(bytes)) //nolint:gosec

	if s.bufPos > 0 {
		s.flushLocked()
	}

	if _, err := s.file.Write(bytes); err != nil {
		fatal("FileSink.WriteBytesAtomic", err)
	}

	return Addr(curr)
}

// flushLocked writes buffer[:bufPos] to the file and resets bufPos. The
// caller must hold mu.
func (s *FileSink) flushLocked() {
	if s.bufPos == 0 {
		return
	}

	if _, err := s.file.Write(s.buffer[:s.bufPos]); err != nil {
		fatal("FileSink.flush", err)
	}

	s.bufPos = 0
}

func (s *FileSink) AsWriter() io.Writer {
	return NewWriterAdapter(s.WriteBytesAtomic)
}

// Close flushes any remaining buffered bytes and closes the underlying
// file. Go has no destructors, so callers (the profiler) must call Close
// explicitly instead of relying on a Drop impl the way the original does.
func (s *FileSink) Close() error {
	s.mu.Lock()
	s.flushLocked()
	s.mu.Unlock()

	return s.file.Close()
}
