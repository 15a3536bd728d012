package sink

import (
	"os"

	"go.uber.org/zap"
)

// logger is the package-level logger used to report a fatal I/O error
// before aborting the process. It defaults to a no-op logger so that
// using the sink package without a profiler-injected logger never
// panics; profiler.New replaces it via SetLogger.
var logger *zap.SugaredLogger = zap.NewNop().Sugar()

// SetLogger installs the logger used by fatal I/O error reporting. It is
// called once by profiler.New with the logger the host configured.
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	logger = l
}

// exitFunc is the function fatal calls to end the process. It is a
// package variable so that a test can replace it and keep a fatal error
// from tearing down the test binary.
var exitFunc = os.Exit

// fatal reports an unrecoverable back-end I/O error and aborts the
// process. Per spec.md §7, runtime I/O failure during steady-state
// writing has no retry or quarantine path: a trace that silently dropped
// bytes would mislead every downstream consumer, so the sink aborts
// instead.
func fatal(op string, err error) {
	logger.Errorw("traceme: fatal sink I/O error, aborting process", "op", op, "error", err)
	exitFunc(1)
}
