// Package errs collects the sentinel errors returned by traceme's
// packages. Callers should match against these with errors.Is, since
// call sites wrap them with additional context via fmt.Errorf("%w: ...").
package errs

import "errors"

var (
	// ErrVersionMismatch is returned when a stream's magic number doesn't
	// match the expected one, or its format version differs from
	// fileheader.CurrentFileFormatVersion.
	ErrVersionMismatch = errors.New("file header version mismatch")

	// ErrStringTableVersionMismatch is returned when the string_data and
	// string_index streams of a StringTable were written by different
	// format versions.
	ErrStringTableVersionMismatch = errors.New("string table data/index version mismatch")

	// ErrStringIDExhausted is the value Builder.Alloc panics with when the
	// builder's sequential id counter would exceed stringtable.MaxStringID.
	ErrStringIDExhausted = errors.New("string id space exhausted")

	// ErrReservedIDOutOfRange is the value AllocWithReservedID panics with
	// when the caller-supplied id is above
	// stringtable.MaxPreReservedStringID.
	ErrReservedIDOutOfRange = errors.New("reserved string id out of range")

	// ErrWriteTooLarge is the value a paged sink's WriteAtomic panics with
	// when a single call would not fit in one page.
	ErrWriteTooLarge = errors.New("write exceeds page capacity")

	// ErrUnknownStringID is returned by Table.Resolve for an id absent
	// from the index.
	ErrUnknownStringID = errors.New("unknown string id")

	// ErrUnsupportedUTF8Form is returned by the string table reader when it
	// encounters a 4-byte UTF-8 leader byte. Only 1-, 2- and 3-byte forms
	// are supported; see spec.md §9.
	ErrUnsupportedUTF8Form = errors.New("unsupported 4-byte utf8 form")
)
