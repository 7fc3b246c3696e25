package setup

import (
	"errors"
	"io/fs"

	"github.com/crafted-tech/fxsetup/acquire"
	"github.com/crafted-tech/fxsetup/payload"
	"github.com/crafted-tech/fxsetup/peimage"
	"github.com/crafted-tech/fxsetup/platform"
	"github.com/crafted-tech/fxsetup/renderapi"
	"github.com/crafted-tech/fxsetup/vklayer"
)

// ErrForeignFile is returned when the module path is taken by a file that
// does not belong to this tool.
var ErrForeignFile = errors.New("file exists and belongs to another product")

// Kind classifies a failure.
type Kind int

const (
	KindIO Kind = iota
	KindArchiveCorrupt
	KindBinaryFormatInvalid
	KindForeignFileConflict
	KindPermissionDenied
	KindNetworkFailure
	KindExtractionFailure
	KindRegistryOperationFailure
	KindAPIUndetermined
)

func (k Kind) String() string {
	switch k {
	case KindArchiveCorrupt:
		return "ArchiveCorrupt"
	case KindBinaryFormatInvalid:
		return "BinaryFormatInvalid"
	case KindForeignFileConflict:
		return "ForeignFileConflict"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindNetworkFailure:
		return "NetworkFailure"
	case KindExtractionFailure:
		return "ExtractionFailure"
	case KindRegistryOperationFailure:
		return "RegistryOperationFailure"
	case KindAPIUndetermined:
		return "APIUndetermined"
	default:
		return "IO"
	}
}

// Failure is the error a workflow ended with.
type Failure struct {
	Kind Kind
	// Cause is a short description of what was being done.
	Cause string
	Err   error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Cause
	}
	return f.Cause + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Classify maps err to a failure kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, payload.ErrArchiveCorrupt):
		return KindArchiveCorrupt
	case errors.Is(err, peimage.ErrBinaryFormatInvalid):
		return KindBinaryFormatInvalid
	case errors.Is(err, ErrForeignFile):
		return KindForeignFileConflict
	case errors.Is(err, acquire.ErrNetworkFailure):
		return KindNetworkFailure
	case errors.Is(err, acquire.ErrExtractionFailure):
		return KindExtractionFailure
	case errors.Is(err, vklayer.ErrElevationRequired),
		errors.Is(err, platform.ErrElevationDeclined),
		errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, vklayer.ErrRegistryOperation):
		return KindRegistryOperationFailure
	case errors.Is(err, renderapi.ErrUndetermined):
		return KindAPIUndetermined
	default:
		return KindIO
	}
}

func newFailure(cause string, err error) *Failure {
	return &Failure{Kind: Classify(err), Cause: cause, Err: err}
}

// ExitCode is the process exit status for a workflow ending in s.
func ExitCode(s State) int {
	switch s.Phase {
	case PhaseFinalized, PhaseRestartRequired:
		return 0
	default:
		return 1
	}
}
