package sink

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/selfprofile/traceme/errs"
	"github.com/selfprofile/traceme/fileheader"
	"github.com/selfprofile/traceme/internal/pagepool"
)

// PageSize is the default size of a paged-sink page, including its
// 5-byte header.
const PageSize = 8 * 1024 * 1024

// pageHeaderSize is the 1-byte tag + 4-byte big-endian length prefix
// every page begins with.
const pageHeaderSize = 5

// Page tags identifying which logical stream a page's payload belongs to.
const (
	PageTagEvents      byte = 1
	PageTagStringData  byte = 2
	PageTagStringIndex byte = 3
)

// pagedChanCapacity bounds the channel from writers to the background
// flush goroutine. A generous capacity keeps writers from blocking on
// the channel under ordinary load; under sustained overload, once this
// many pages are queued, a writer that completes a page blocks on the
// send until the background goroutine catches up. The free-buffer pool
// never blocks a writer beyond its mutex: when it is empty it allocates
// a fresh buffer.
const pagedChanCapacity = 64

// pagedShared owns the output file, the free-buffer pool, and the
// background flush goroutine shared by every PagedWriter writing to one
// .rspd file.
type pagedShared struct {
	pageSize int
	file     *os.File
	pool     *pagepool.Pool
	pages    chan []byte
	done     chan struct{}
	log      *zap.SugaredLogger
}

func newPagedShared(file *os.File, pageSize int, log *zap.SugaredLogger) *pagedShared {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	s := &pagedShared{
		pageSize: pageSize,
		file:     file,
		pool:     pagepool.New(pageSize, 3),
		pages:    make(chan []byte, pagedChanCapacity),
		done:     make(chan struct{}),
		log:      log,
	}

	go s.flushLoop()

	return s
}

// flushLoop is the paged sink's only long-lived goroutine. It writes each
// filled page to the file in the order received, zeroes it, and returns it
// to the free pool. A zero-length page is the shutdown sentinel.
func (s *pagedShared) flushLoop() {
	defer close(s.done)

	for page := range s.pages {
		if len(page) == 0 {
			return
		}

		if _, err := s.file.Write(page); err != nil {
			fatal("pagedShared.flushLoop", err)
		}

		s.pool.Put(page)
	}
}

// closeWriters sends the shutdown sentinel and waits for flushLoop to
// drain every page already queued ahead of it (channels are FIFO, so the
// sentinel is guaranteed to arrive last as long as every PagedWriter has
// already sent its final page).
func (s *pagedShared) closeWriters() error {
	s.pages <- []byte{}
	<-s.done

	return s.file.Close()
}

func writePageHeader(buf []byte, tag byte, payloadLen int) {
	buf[0] = tag
	buf[1] = byte(payloadLen >> 24)
	buf[2] = byte(payloadLen >> 16)
	buf[3] = byte(payloadLen >> 8)
	buf[4] = byte(payloadLen)
}

// PagedWriter is a per-logical-stream writer over a shared paged output
// file. Multiple PagedWriters (one per page tag) share one pagedShared.
// See spec.md §4.F.
type PagedWriter struct {
	shared  *pagedShared
	pageTag byte

	mu     sync.Mutex
	buf    []byte
	bufPos int
	addr   uint32
	closed bool
}

var _ Sink = (*PagedWriter)(nil)

func newPagedWriter(shared *pagedShared, tag byte) *PagedWriter {
	return &PagedWriter{
		shared:  shared,
		pageTag: tag,
		buf:     shared.pool.Get(),
		bufPos:  pageHeaderSize,
	}
}

func (w *PagedWriter) WriteAtomic(n int, fill func([]byte)) Addr {
	if n > w.shared.pageSize-pageHeaderSize {
		panic(errs.ErrWriteTooLarge)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.bufPos+n > len(w.buf) {
		writePageHeader(w.buf, w.pageTag, w.bufPos-pageHeaderSize)
		w.shared.pages <- w.buf
		w.buf = w.shared.pool.Get()
		w.bufPos = pageHeaderSize
	}

	curr := w.addr
	fill(w.buf[w.bufPos : w.bufPos+n])
	w.bufPos += n
	w.addr += uint32(n) //nolint:gosec

	return Addr(curr)
}

func (w *PagedWriter) WriteBytesAtomic(bytes []byte) Addr {
	return w.WriteAtomic(len(bytes), func(b []byte) { copy(b, bytes) })
}

func (w *PagedWriter) AsWriter() io.Writer {
	return NewWriterAdapter(w.WriteBytesAtomic)
}

// Close finalizes the writer's current page, sending it to the
// background flush goroutine even if only partially filled. A current
// page with no payload is returned to the pool instead of being written.
// It does not shut down the shared background goroutine; call
// PagedSink.Close for that once every writer has been closed.
func (w *PagedWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.bufPos == pageHeaderSize {
		w.shared.pool.Put(w.buf)
		w.buf = nil
		return nil
	}

	writePageHeader(w.buf, w.pageTag, w.bufPos-pageHeaderSize)
	w.shared.pages <- w.buf
	w.buf = nil

	return nil
}

// PagedSink is the tagged-page back-end: three PagedWriters (events,
// string_data, string_index) sharing one .rspd output file and one
// background flush goroutine.
type PagedSink struct {
	shared      *pagedShared
	Events      *PagedWriter
	StringData  *PagedWriter
	StringIndex *PagedWriter
}

// NewPagedSink creates path's parent directories, creates the .rspd file,
// writes its file header, and starts the background flush goroutine.
func NewPagedSink(path string, pageSize int, log *zap.SugaredLogger) (*PagedSink, error) {
	if pageSize <= pageHeaderSize {
		panic("sink: page size must be greater than the page header size")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	file, err := os.Create(path) //nolint:gosec
	if err != nil {
		return nil, err
	}

	if err := fileheader.Write(file, fileheader.MagicPagedFormat); err != nil {
		file.Close()
		return nil, err
	}

	shared := newPagedShared(file, pageSize, log)

	return &PagedSink{
		shared:      shared,
		Events:      newPagedWriter(shared, PageTagEvents),
		StringData:  newPagedWriter(shared, PageTagStringData),
		StringIndex: newPagedWriter(shared, PageTagStringIndex),
	}, nil
}

// Close finalizes all three writers, then shuts down the background
// flush goroutine and closes the output file.
func (s *PagedSink) Close() error {
	for _, w := range []*PagedWriter{s.Events, s.StringData, s.StringIndex} {
		if err := w.Close(); err != nil {
			return err
		}
	}

	return s.shared.closeWriters()
}
