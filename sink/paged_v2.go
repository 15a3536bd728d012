package sink

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/selfprofile/traceme/errs"
	"github.com/selfprofile/traceme/fileheader"
)

// pagedSharedV2 is the synchronous counterpart to pagedShared: every page,
// full or partial, is written to the file inline under a shared mutex
// instead of being handed to a background goroutine. It produces the same
// on-disk byte layout as the background-thread variant for the same
// sequence of page completions, at the cost of making WriteAtomic calls
// that trigger a page flush block on file I/O. See spec.md §9.
type pagedSharedV2 struct {
	pageSize int

	mu   sync.Mutex
	file *os.File
	log  *zap.SugaredLogger
}

func newPagedSharedV2(file *os.File, pageSize int, log *zap.SugaredLogger) *pagedSharedV2 {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &pagedSharedV2{pageSize: pageSize, file: file, log: log}
}

func (s *pagedSharedV2) writePage(page []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(page); err != nil {
		fatal("pagedSharedV2.writePage", err)
	}
}

func (s *pagedSharedV2) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.file.Close()
}

// PagedWriterV2 is the synchronous per-logical-stream writer over a
// pagedSharedV2. Unlike PagedWriter, it owns its in-progress buffer
// outright rather than drawing it from a recycling pool, since there is
// no background goroutine retiring buffers to recycle.
type PagedWriterV2 struct {
	shared  *pagedSharedV2
	pageTag byte

	mu     sync.Mutex
	buf    []byte
	bufPos int
	addr   uint32
	closed bool
}

var _ Sink = (*PagedWriterV2)(nil)

func newPagedWriterV2(shared *pagedSharedV2, tag byte) *PagedWriterV2 {
	return &PagedWriterV2{
		shared:  shared,
		pageTag: tag,
		buf:     make([]byte, shared.pageSize),
		bufPos:  pageHeaderSize,
	}
}

func (w *PagedWriterV2) WriteAtomic(n int, fill func([]byte)) Addr {
	if n > w.shared.pageSize-pageHeaderSize {
		panic(errs.ErrWriteTooLarge)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.bufPos+n > len(w.buf) {
		writePageHeader(w.buf, w.pageTag, w.bufPos-pageHeaderSize)
		w.shared.writePage(w.buf)
		w.buf = make([]byte, w.shared.pageSize)
		w.bufPos = pageHeaderSize
	}

	curr := w.addr
	fill(w.buf[w.bufPos : w.bufPos+n])
	w.bufPos += n
	w.addr += uint32(n) //nolint:gosec

	return Addr(curr)
}

func (w *PagedWriterV2) WriteBytesAtomic(bytes []byte) Addr {
	return w.WriteAtomic(len(bytes), func(b []byte) { copy(b, bytes) })
}

func (w *PagedWriterV2) AsWriter() io.Writer {
	return NewWriterAdapter(w.WriteBytesAtomic)
}

// Close finalizes and writes the writer's current page, even if partial.
// A current page with no payload is dropped instead of being written.
func (w *PagedWriterV2) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.bufPos == pageHeaderSize {
		w.buf = nil
		return nil
	}

	writePageHeader(w.buf, w.pageTag, w.bufPos-pageHeaderSize)
	w.shared.writePage(w.buf)
	w.buf = nil

	return nil
}

// PagedSinkV2 is the synchronous variant of PagedSink: same wire format,
// no background flush goroutine. Useful when the host can't tolerate an
// extra long-lived goroutine per trace (for example, short-lived CLI
// invocations where goroutine teardown ordering would otherwise need to
// be reasoned about at exit).
type PagedSinkV2 struct {
	shared      *pagedSharedV2
	Events      *PagedWriterV2
	StringData  *PagedWriterV2
	StringIndex *PagedWriterV2
}

// NewPagedSinkV2 creates path's parent directories, creates the .rspd
// file, and writes its file header.
func NewPagedSinkV2(path string, pageSize int, log *zap.SugaredLogger) (*PagedSinkV2, error) {
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

	shared := newPagedSharedV2(file, pageSize, log)

	return &PagedSinkV2{
		shared:      shared,
		Events:      newPagedWriterV2(shared, PageTagEvents),
		StringData:  newPagedWriterV2(shared, PageTagStringData),
		StringIndex: newPagedWriterV2(shared, PageTagStringIndex),
	}, nil
}

// Close finalizes all three writers and closes the output file.
func (s *PagedSinkV2) Close() error {
	for _, w := range []*PagedWriterV2{s.Events, s.StringData, s.StringIndex} {
		if err := w.Close(); err != nil {
			return err
		}
	}

	return s.shared.close()
}
