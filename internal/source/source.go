// Package source provides the opaque FrameSource contract described in
// spec.md §4.1 and its two concrete upstream implementations (RTSP and
// local webcam). The core camera package never looks inside a decoded
// frame; it only ever forwards it to the encoder.
package source

import (
	"context"
	"errors"
	"image"
)

// ErrOpenFailed wraps a failure to contact the upstream. It is never fatal
// to the process: the owning CameraStream stays Running with no frames.
var ErrOpenFailed = errors.New("source: open failed")

// ErrReadFailed wraps a transient read failure. The producer retries after
// a short backoff; it is never surfaced to clients as an HTTP error.
var ErrReadFailed = errors.New("source: read failed")

// FrameSource is the capture handle a CameraStream owns for its lifetime.
// Open is called once per producer run, Read is called in a tight loop
// until the stream stops, and Close releases upstream resources. Close is
// called by the producer after a successful Open, and CameraStream.Stop may
// also force-close a source whose producer has not returned in time, so
// Close can run more than once, or while Open or Read is still blocked.
type FrameSource interface {
	// Open blocks until the upstream is reachable or fails. May take
	// seconds; callers should not hold any lock while calling it.
	Open(ctx context.Context) error
	// Read blocks until the next decoded frame is available. On error the
	// caller treats the source as transiently broken and retries.
	Read(ctx context.Context) (image.Image, error)
	// Close idempotently releases upstream resources.
	Close() error
}
