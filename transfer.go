package feather

import (
	"github.com/mwantia/feather/promise"
)

// Transfer moves everything below a source resource to a destination
// resource.
type Transfer interface {
	ID() string
	Source() Resource
	Destination() Resource

	// Start begins the transfer and returns the OnStop promise. It may be
	// called once.
	Start() (*promise.Promise[struct{}], error)
	// Stop cancels the transfer. In-flight pipes are stopped and OnStop
	// fails with data.ErrCanceled.
	Stop()

	// OnStart resolves once both sessions are initialized.
	OnStart() *promise.Promise[struct{}]
	// OnStop resolves when every sub-resource reached a terminal state. It
	// fails with a *TransferError if any of them failed.
	OnStop() *promise.Promise[struct{}]

	Progress() *Progress
	Throughput() *Throughput
}

// TransferStats is a snapshot of a transfer's bookkeeping.
type TransferStats struct {
	// Files counts data transfers that reached a terminal state.
	Files int64
	// Directories counts listings that reached a terminal state, including
	// the root.
	Directories int64
	Failed      int64

	Queued   int
	InFlight int
	Listing  int
	// PeakInFlight is the highest number of data transfers that ran at the
	// same time.
	PeakInFlight int
}
