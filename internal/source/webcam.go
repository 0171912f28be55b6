package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"sync"
	"time"

	"github.com/blackjack/webcam"
)

// webcamFrameTimeoutSecs and webcamMaxTimeouts mirror the teacher's sibling
// example (lsnow99/cam-server's camera.go): wait a handful of seconds per
// frame, and have Read report a read error after repeated timeouts.
const (
	webcamFrameTimeoutSecs = 2
	webcamMaxTimeouts      = 10
)

var (
	pixelFormatMJPG webcam.PixelFormat
	pixelFormatPJPG webcam.PixelFormat
	initPixelFormatsOnce sync.Once
)

func initPixelFormats() {
	initPixelFormatsOnce.Do(func() {
		pixelFormatMJPG = fourCC('M', 'J', 'P', 'G')
		pixelFormatPJPG = fourCC('P', 'J', 'P', 'G')
	})
}

func fourCC(a, b, c, d byte) webcam.PixelFormat {
	return webcam.PixelFormat(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// WebcamSource captures decoded frames from a local V4L2 device, adapted
// from lsnow99/cam-server's StreamWorker: open the device, request a
// 1-frame driver buffer, and decode whatever MJPG/PJPG bytes the device
// hands back.
type WebcamSource struct {
	index int

	mu  sync.Mutex
	cam *webcam.Webcam
}

// NewWebcamSource builds a source for /dev/video{index}.
func NewWebcamSource(index int) *WebcamSource {
	return &WebcamSource{index: index}
}

// Open opens the device and negotiates a JPEG-ish pixel format with a
// minimal driver buffer.
func (s *WebcamSource) Open(ctx context.Context) error {
	initPixelFormats()

	device := fmt.Sprintf("/dev/video%d", s.index)
	cam, err := webcam.Open(device)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrOpenFailed, device, err)
	}

	if err := negotiateFormat(cam); err != nil {
		cam.Close()
		return fmt.Errorf("%w: negotiate format: %w", ErrOpenFailed, err)
	}

	if err := cam.SetBufferCount(1); err != nil {
		cam.Close()
		return fmt.Errorf("%w: set buffer count: %w", ErrOpenFailed, err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return fmt.Errorf("%w: start streaming: %w", ErrOpenFailed, err)
	}

	s.mu.Lock()
	s.cam = cam
	s.mu.Unlock()

	return nil
}

// negotiateFormat picks MJPG, falling back to PJPG, whichever the device
// supports; both are JPEG-compatible payloads decodable by image/jpeg.
func negotiateFormat(cam *webcam.Webcam) error {
	formats := cam.GetSupportedFormats()
	for _, pf := range []webcam.PixelFormat{pixelFormatMJPG, pixelFormatPJPG} {
		if _, ok := formats[pf]; !ok {
			continue
		}
		sizes := cam.GetSupportedFrameSizes(pf)
		if len(sizes) == 0 {
			continue
		}
		size := sizes[0]
		_, _, _, err := cam.SetImageFormat(pf, size.MaxWidth, size.MaxHeight)
		return err
	}
	return fmt.Errorf("no MJPG/PJPG pixel format supported")
}

// Read blocks until the next frame arrives, retrying transient timeouts per
// the teacher sibling's failure policy.
func (s *WebcamSource) Read(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	cam := s.cam
	s.mu.Unlock()
	if cam == nil {
		return nil, fmt.Errorf("%w: device not open", ErrReadFailed)
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		err := cam.WaitForFrame(webcamFrameTimeoutSecs)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			failures++
			if failures >= webcamMaxTimeouts {
				return nil, fmt.Errorf("%w: repeated frame timeouts: %w", ErrReadFailed, err)
			}
			continue
		default:
			return nil, fmt.Errorf("%w: wait for frame: %w", ErrReadFailed, err)
		}

		raw, err := cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("%w: read frame: %w", ErrReadFailed, err)
		}
		if len(raw) == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: decode frame: %w", ErrReadFailed, err)
		}
		return img, nil
	}
}

// Close stops streaming and releases the device. Idempotent.
func (s *WebcamSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cam == nil {
		return nil
	}
	s.cam.StopStreaming()
	err := s.cam.Close()
	s.cam = nil
	return err
}
