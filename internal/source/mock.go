package source

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
	"time"
)

// MockSource yields a counter-tagged solid-color frame at a fixed interval.
// It is the harness described in spec.md §8 ("use a mock FrameSource that
// yields a counter-tagged frame every 10 ms") for exercising CameraStream
// without a real camera.
type MockSource struct {
	Interval time.Duration

	counter atomic.Int64
	stall   atomic.Bool
	closed  atomic.Bool
}

// NewMockSource builds a mock yielding a frame every interval.
func NewMockSource(interval time.Duration) *MockSource {
	return &MockSource{Interval: interval}
}

// Open is a no-op; the mock has no upstream to contact.
func (m *MockSource) Open(ctx context.Context) error {
	return nil
}

// Stall makes subsequent Read calls block until the context is cancelled,
// simulating an upstream stall (spec.md S4).
func (m *MockSource) Stall(v bool) {
	m.stall.Store(v)
}

// FrameCount returns the number of frames minted so far.
func (m *MockSource) FrameCount() int64 {
	return m.counter.Load()
}

// Read blocks for Interval and returns a 1x1 image whose single pixel
// encodes the frame counter, so tests can tell frames apart after JPEG
// round-tripping.
func (m *MockSource) Read(ctx context.Context) (image.Image, error) {
	if m.stall.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	select {
	case <-time.After(m.Interval):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	n := m.counter.Add(1)
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.Gray{Y: uint8(n % 256)})
	return img, nil
}

// Close marks the source closed. Idempotent.
func (m *MockSource) Close() error {
	m.closed.Store(true)
	return nil
}

// Closed reports whether Close has been called.
func (m *MockSource) Closed() bool {
	return m.closed.Load()
}
