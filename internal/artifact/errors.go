package artifact

import "errors"

var (
	// ErrSuperseded indicates a newer trigger was issued before the result
	// arrived, so the result was discarded.
	ErrSuperseded = errors.New("artifact: result superseded by a newer request")

	// ErrClosed indicates the synchronizer was torn down.
	ErrClosed = errors.New("artifact: synchronizer closed")

	// ErrReleased indicates the resource's backing storage is gone.
	ErrReleased = errors.New("artifact: resource released")
)
