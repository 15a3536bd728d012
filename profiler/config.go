package profiler

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selfprofile/traceme/internal/options"
)

// Backend selects which sink implementation a Profiler's three streams
// are built on.
type Backend int

const (
	// FileBackend uses the line-buffered FileSink for every stream.
	FileBackend Backend = iota
	// MmapBackend uses the growable memory-mapped MmapSink.
	MmapBackend
	// PagedBackend uses the tagged-page PagedSink with a background
	// flush goroutine.
	PagedBackend
	// PagedSyncBackend uses the synchronous PagedSinkV2 variant.
	PagedSyncBackend
)

// defaultPageSize is used by PagedBackend/PagedSyncBackend when the host
// doesn't override it with WithPagedBackend/WithPagedSyncBackend.
const defaultPageSize = 8 * 1024 * 1024

// Config holds every knob profiler.New accepts. It is only ever built
// and applied internally; hosts configure a Profiler via Option values.
type Config struct {
	backend  Backend
	pageSize int
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func newConfig() *Config {
	return &Config{
		backend:  FileBackend,
		pageSize: defaultPageSize,
		logger:   zap.NewNop().Sugar(),
		now:      time.Now,
	}
}

// Option configures a Profiler at construction time.
type Option = options.Option[*Config]

// WithFileBackend selects the line-buffered FileSink for every stream.
// This is the default.
func WithFileBackend() Option {
	return options.NoError(func(c *Config) { c.backend = FileBackend })
}

// WithMmapBackend selects the growable memory-mapped MmapSink.
func WithMmapBackend() Option {
	return options.NoError(func(c *Config) { c.backend = MmapBackend })
}

// WithPagedBackend selects the tagged-page back-end with a background
// flush goroutine, using pageSize-byte pages.
func WithPagedBackend(pageSize int) Option {
	return options.New(func(c *Config) error {
		if pageSize <= 5 {
			return fmt.Errorf("profiler: page size %d too small to hold a page header", pageSize)
		}
		c.backend = PagedBackend
		c.pageSize = pageSize
		return nil
	})
}

// WithPagedSyncBackend selects the synchronous paged back-end, using
// pageSize-byte pages.
func WithPagedSyncBackend(pageSize int) Option {
	return options.New(func(c *Config) error {
		if pageSize <= 5 {
			return fmt.Errorf("profiler: page size %d too small to hold a page header", pageSize)
		}
		c.backend = PagedSyncBackend
		c.pageSize = pageSize
		return nil
	})
}

// WithLogger installs the logger used for structured profiler logs and
// propagated to every sink's fatal-I/O-error reporting.
func WithLogger(logger *zap.SugaredLogger) Option {
	return options.NoError(func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithClock overrides the wall-clock function used to compute elapsed
// nanoseconds, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return options.NoError(func(c *Config) {
		if now != nil {
			c.now = now
		}
	})
}
