package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/bluenviron/gortsplib/v4/pkg/format/rtpmjpeg"
	"github.com/pion/rtp"
)

// socketTimeout mirrors spec.md §4.1's "socket-level timeout around 2
// seconds" hint for RTSP sources.
const socketTimeout = 2 * time.Second

// rtspChanDepth is the 1-frame decoder buffer called for in spec.md §4.1;
// a deeper channel would let stale frames pile up ahead of pacing.
const rtspChanDepth = 1

// RTSPSource captures decoded frames from an RTSP camera over TCP
// transport, depacketizing an M-JPEG RTP payload straight into JPEG bytes
// and decoding those into the opaque image.Image the core deals with.
//
// Grounded on other_examples/2b02b0d3_..._rtsp_client.go and
// other_examples/7a29a5ef_nicksanford-viamrtsp_rtsp.go's Describe / SetupAll
// / OnPacketRTP / Play sequence.
type RTSPSource struct {
	url string

	mu     sync.Mutex
	client *gortsplib.Client

	frames chan image.Image
	errs   chan error
}

// NewRTSPSource builds a source for the given RTSP URL.
func NewRTSPSource(url string) *RTSPSource {
	return &RTSPSource{
		url:    url,
		frames: make(chan image.Image, rtspChanDepth),
		errs:   make(chan error, 1),
	}
}

// Open connects, negotiates TCP transport, locates an M-JPEG media and
// starts playback. It satisfies FrameSource.Open.
func (s *RTSPSource) Open(ctx context.Context) error {
	u, err := base.ParseURL(s.url)
	if err != nil {
		return fmt.Errorf("%w: parse url: %w", ErrOpenFailed, err)
	}

	transport := gortsplib.TransportTCP
	client := &gortsplib.Client{
		Transport:   &transport,
		ReadTimeout: socketTimeout,
	}

	desc, _, err := client.Describe(u)
	if err != nil {
		return fmt.Errorf("%w: describe: %w", ErrOpenFailed, err)
	}

	media, forma := findMJPEGMedia(desc)
	if media == nil {
		client.Close()
		return fmt.Errorf("%w: no usable video media in stream", ErrOpenFailed)
	}

	if err := client.SetupAll(desc.BaseURL, desc.Medias); err != nil {
		client.Close()
		return fmt.Errorf("%w: setup: %w", ErrOpenFailed, err)
	}

	decoder := &rtpmjpeg.Decoder{}
	if err := decoder.Init(); err != nil {
		client.Close()
		return fmt.Errorf("%w: decoder init: %w", ErrOpenFailed, err)
	}

	client.OnPacketRTP(media, forma, func(pkt *rtp.Packet) {
		jpegBytes, err := decoder.Decode(pkt)
		if err != nil || !validJPEG(jpegBytes) {
			return
		}
		img, _, err := image.Decode(bytes.NewReader(jpegBytes))
		if err != nil {
			return
		}
		select {
		case s.frames <- img:
		default:
			// channel full: drop, matching the 1-frame decoder buffer hint
		}
	})

	if _, err := client.Play(nil); err != nil {
		client.Close()
		return fmt.Errorf("%w: play: %w", ErrOpenFailed, err)
	}

	go func() {
		err := client.Wait()
		select {
		case s.errs <- err:
		default:
		}
	}()

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	return nil
}

// Read blocks until the next frame is decoded or the connection reports an
// error.
func (s *RTSPSource) Read(ctx context.Context) (image.Image, error) {
	select {
	case img := <-s.frames:
		return img, nil
	case err := <-s.errs:
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(socketTimeout):
		return nil, fmt.Errorf("%w: no frame within %s", ErrReadFailed, socketTimeout)
	}
}

// Close releases the RTSP connection. Idempotent.
func (s *RTSPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	s.client.Close()
	s.client = nil
	return nil
}

// findMJPEGMedia locates the first M-JPEG video media in the session
// description, falling back to the first video media otherwise — the
// decode backend is opaque per spec.md §1, so any depacketized payload is
// handed to image.Decode without assuming a specific codec.
func findMJPEGMedia(desc *description.Session) (*description.Media, format.Format) {
	var fallbackMedia *description.Media
	var fallbackFormat format.Format

	for _, media := range desc.Medias {
		for _, forma := range media.Formats {
			if _, ok := forma.(*format.MJPEG); ok {
				return media, forma
			}
			if fallbackMedia == nil && media.Type == description.MediaTypeVideo {
				fallbackMedia = media
				fallbackFormat = forma
			}
		}
	}
	return fallbackMedia, fallbackFormat
}
