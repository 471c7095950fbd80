package feather

import (
	"fmt"
	"strings"

	"github.com/mwantia/feather/path"
)

// Failure is a sub-resource that could not be transferred.
type Failure struct {
	Path *path.Path
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// TransferError is the outcome of a transfer in which at least one
// sub-resource failed while the rest of the tree was still walked.
type TransferError struct {
	Failures []Failure
}

func (e *TransferError) Error() string {
	if len(e.Failures) == 1 {
		return "feather: transfer failed: " + e.Failures[0].Error()
	}

	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("feather: %d resources failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *TransferError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
