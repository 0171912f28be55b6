// Package camera implements the per-camera fan-out actor described in
// spec.md §4.3: one producer task per camera, O(1) encode per produced
// frame, and non-blocking delivery to any number of subscribed clients.
package camera

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bellanda/local-cameras-view/internal/config"
	"github.com/bellanda/local-cameras-view/internal/encoder"
	"github.com/bellanda/local-cameras-view/internal/metrics"
	"github.com/bellanda/local-cameras-view/internal/model"
	"github.com/bellanda/local-cameras-view/internal/source"
)

// readBackoff is the transient-read-error retry delay from spec.md §4.3
// step 2a.
const readBackoff = 100 * time.Millisecond

// pacingSleep is the short sleep spec.md §4.3 step 2b takes when a frame
// arrives faster than target_fps allows.
const pacingSleep = time.Millisecond

// stopJoinBound is the ≤1s join deadline from spec.md §4.3's stop().
const stopJoinBound = time.Second

// Stream is a CameraStream: one FrameSource, a producer goroutine, a set of
// subscribed ClientSinks, and a cached last-encoded frame.
type Stream struct {
	name           string
	src            model.SourceRef
	newFrameSource func() source.FrameSource
	cfg            config.Stream
	logger         *zap.Logger
	buffer         *ringBuffer

	mu            sync.Mutex
	running       bool
	clients       map[uuidKey]*model.ClientSink
	lastEncoded   *model.EncodedFrame
	lastFrameTime time.Time

	cancel       context.CancelFunc
	producerDone chan struct{}
	activeSource source.FrameSource
}

type uuidKey = [16]byte

// New builds a Stream for name/src. newFrameSource is called once per
// start() (and again on every restart) so a fresh FrameSource is opened
// each run, per spec.md §4.3's restart semantics.
func New(name string, src model.SourceRef, newFrameSource func() source.FrameSource, cfg config.Stream, logger *zap.Logger) *Stream {
	return &Stream{
		name:           name,
		src:            src,
		newFrameSource: newFrameSource,
		cfg:            cfg,
		logger:         logger,
		buffer:         newRingBuffer(cfg.MaxBufferSize),
		clients:        make(map[uuidKey]*model.ClientSink),
	}
}

// Name returns the camera's immutable name.
func (s *Stream) Name() string { return s.name }

// Source returns the camera's immutable source reference.
func (s *Stream) Source() model.SourceRef { return s.src }

// Start is idempotent: if the stream is not already running it launches a
// fresh producer task (I1).
func (s *Stream) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	done := make(chan struct{})
	s.producerDone = done
	fs := s.newFrameSource()
	s.activeSource = fs
	s.mu.Unlock()

	go s.runProducer(ctx, fs, done)
}

// Stop is idempotent: it requests producer shutdown and joins with a
// bounded wait. If the producer does not join within stopJoinBound it is
// abandoned and its FrameSource is forcibly closed (spec.md §5/§7), so a
// blocked upstream read can never keep holding the socket/device open from
// the caller's perspective. No further broadcasts occur once Stop returns.
func (s *Stream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.producerDone
	fs := s.activeSource
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
		case <-time.After(stopJoinBound):
			s.logger.Warn("producer did not join within bound, force-closing source",
				zap.String("camera", s.name))
			if fs != nil {
				if err := fs.Close(); err != nil {
					s.logger.Warn("force-close of abandoned source failed",
						zap.String("camera", s.name), zap.Error(err))
				}
			}
		}
	}
}

// Subscribe allocates a sink, inserts it into the client set and, if a
// cached frame exists, non-blockingly offers it immediately (spec.md §4.3:
// instant first paint for a late joiner).
func (s *Stream) Subscribe() *model.ClientSink {
	sink := model.NewClientSink(s.cfg.ClientQueueSize)

	s.mu.Lock()
	s.clients[uuidKey(sink.ID)] = sink
	cached := s.lastEncoded
	s.mu.Unlock()

	if cached != nil {
		sink.Offer(cached)
	}

	metrics.ActiveClients.WithLabelValues(s.name).Inc()
	return sink
}

// Unsubscribe idempotently removes sink from the client set. After it
// returns the producer makes no further offers to that sink (I4).
func (s *Stream) Unsubscribe(sink *model.ClientSink) {
	s.mu.Lock()
	_, existed := s.clients[uuidKey(sink.ID)]
	delete(s.clients, uuidKey(sink.ID))
	s.mu.Unlock()

	if existed {
		metrics.ActiveClients.WithLabelValues(s.name).Dec()
	}
}

// Status projects the current state for the HTTP adapter.
func (s *Stream) Status() model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Status{
		Name:          s.name,
		Source:        s.src.String(),
		Running:       s.running,
		ClientCount:   len(s.clients),
		BufferSize:    s.buffer.size(),
		LastFrameTime: s.lastFrameTime,
	}
}

// runProducer is the background task described in spec.md §4.3.
func (s *Stream) runProducer(ctx context.Context, fs source.FrameSource, done chan struct{}) {
	defer close(done)

	if err := fs.Open(ctx); err != nil {
		s.logger.Warn("upstream open failed, stream stays running with no frames",
			zap.String("camera", s.name), zap.Error(err))
		return
	}
	defer fs.Close()

	for s.isCurrent(fs) {
		frame, err := fs.Read(ctx)

		// fs.Read may block well past a Stop()/Start() cycle (real upstream
		// reads are not always promptly cancellable). Re-check immediately
		// after the blocking call returns so an abandoned producer never
		// publishes against a Stream a newer producer already owns (I1).
		if !s.isCurrent(fs) {
			return
		}

		if err != nil {
			metrics.ReadErrors.WithLabelValues(s.name).Inc()
			if sleepOrDone(ctx, readBackoff) {
				return
			}
			continue
		}

		now := time.Now()
		s.mu.Lock()
		last := s.lastFrameTime
		s.mu.Unlock()
		if !last.IsZero() && now.Sub(last) < s.cfg.FrameInterval() {
			if sleepOrDone(ctx, pacingSleep) {
				return
			}
			continue
		}

		encoded, err := encodeFrame(frame, s.cfg.JPEGQuality)
		if err != nil {
			s.logger.Debug("encode failed, skipping frame",
				zap.String("camera", s.name), zap.Error(err))
			continue
		}

		if !s.isCurrent(fs) {
			return
		}
		s.publish(encoded)

		if sleepOrDone(ctx, residual(now, s.cfg.FrameInterval())) {
			return
		}
	}
}

// publish atomically updates the cache (I2) and broadcasts to a snapshot of
// subscribers (I3, I5) without holding the lock during the offer loop.
func (s *Stream) publish(frame *model.EncodedFrame) {
	s.mu.Lock()
	s.lastEncoded = frame
	s.lastFrameTime = frame.Timestamp
	snapshot := make([]*model.ClientSink, 0, len(s.clients))
	for _, sink := range s.clients {
		snapshot = append(snapshot, sink)
	}
	s.mu.Unlock()

	s.buffer.push(frame)
	metrics.FramesProduced.WithLabelValues(s.name).Inc()

	for _, sink := range snapshot {
		if !sink.Offer(frame) {
			metrics.FramesDropped.WithLabelValues(s.name).Inc()
		}
	}
}

// isCurrent reports whether fs is still the Stream's active FrameSource and
// the Stream is still running — i.e. whether the calling producer goroutine
// is still the one and only legitimate producer for this Stream (I1).
func (s *Stream) isCurrent(fs source.FrameSource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.activeSource == fs
}

func encodeFrame(img image.Image, quality int) (*model.EncodedFrame, error) {
	data, err := encoder.Encode(img, quality)
	if err != nil {
		return nil, fmt.Errorf("camera: encode: %w", err)
	}
	return &model.EncodedFrame{Data: data, Timestamp: time.Now()}, nil
}

// residual is the remaining time until start+interval, never
// negative — spec.md §4.3 step 2f: "sleep for the residual of frame_interval
// measured from now, so the producer paces against the clock".
func residual(start time.Time, interval time.Duration) time.Duration {
	elapsed := time.Since(start)
	if elapsed >= interval {
		return 0
	}
	return interval - elapsed
}

// sleepOrDone sleeps for d unless ctx is cancelled first, returning true if
// the context ended the wait early (the caller should stop the loop).
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-ctx.Done():
		return true
	}
}
