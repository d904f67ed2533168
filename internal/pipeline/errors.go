package pipeline

import "errors"

// Sentinel errors surfaced by Controller.Run, matching this package's
// share of the error taxonomy: input/config errors the caller can fix,
// versus resource/processing errors that are usually fatal.
var (
	// ErrClippingUnresolved means every clipping-retry attempt still
	// produced a peak above the configured limit.
	ErrClippingUnresolved = errors.New("pipeline: clipping protection exhausted its retry budget")

	// ErrNoChannels means the input reported zero channels.
	ErrNoChannels = errors.New("pipeline: input has no channels")

	// ErrCanceled means ctx was canceled between blocks.
	ErrCanceled = errors.New("pipeline: canceled")
)

// IsClippingUnresolved reports whether err wraps ErrClippingUnresolved.
func IsClippingUnresolved(err error) bool {
	return errors.Is(err, ErrClippingUnresolved)
}
