package discovery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pluginhub/pluginhub/internal/plugins"
)

var (
	// ErrInvalidArgument marks a missing or malformed required argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedSource marks a discoverer requested for a source its
	// adapter does not support.
	ErrUnsupportedSource = errors.New("unsupported plugin source")
)

// EndpointError is the failure of one discoverer during an aggregate query.
type EndpointError struct {
	Adapter string
	Source  plugins.Source
	Err     error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("%s discoverer for %s: %v", e.Adapter, e.Source, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// PartialError reports discoverers that failed while the aggregate query
// still produced a result from the others.
type PartialError struct {
	Failures []*EndpointError
}

func (e *PartialError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d discoverer(s) failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// partial returns nil when nothing failed
func partial(failures []*EndpointError) error {
	if len(failures) == 0 {
		return nil
	}
	return &PartialError{Failures: failures}
}
