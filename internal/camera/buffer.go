package camera

import (
	"sync"

	"github.com/bellanda/local-cameras-view/internal/model"
)

// ringBuffer is a fixed-size ring of recently produced frames, adapted from
// the teacher's internal/frame.CameraCache. Unlike the teacher (which used
// it to serve reads), here it exists only to back the buffer_size field of
// CameraStream.Status — spec.md §9 notes the source's own frame-buffer
// deque is "vestigial... written but never read", but rather than drop it
// entirely we keep it as a real occupancy counter instead of a dead write.
type ringBuffer struct {
	mu     sync.Mutex
	frames []*model.EncodedFrame
	next   int
	filled int
}

func newRingBuffer(size int) *ringBuffer {
	if size <= 0 {
		size = 1
	}
	return &ringBuffer{frames: make([]*model.EncodedFrame, size)}
}

func (r *ringBuffer) push(f *model.EncodedFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[r.next] = f
	r.next = (r.next + 1) % len(r.frames)
	if r.filled < len(r.frames) {
		r.filled++
	}
}

func (r *ringBuffer) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filled
}
