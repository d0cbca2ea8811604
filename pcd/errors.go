package pcd

import (
	"github.com/pkg/errors"
)

// Error taxonomy shared by the codecs and the algorithms.
// Returned errors wrap one of these and are tested with errors.Is.
var (
	ErrMalformedHeader        = errors.New("malformed header")
	ErrTruncatedData          = errors.New("truncated data")
	ErrUnsupportedVersion     = errors.New("unsupported version")
	ErrUnsupportedFormat      = errors.New("unsupported format")
	ErrIOFailure              = errors.New("i/o failure")
	ErrMissingMetadata        = errors.New("no segmentation metadata")
	ErrOutOfRange             = errors.New("out of range")
	ErrDegenerateNeighborhood = errors.New("degenerate neighborhood")
)

// IOError describes failed file operation.
// It matches ErrIOFailure and unwraps to the underlying error.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIOFailure
}
