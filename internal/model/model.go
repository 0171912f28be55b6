// Package model holds the data types shared across the capture, camera and
// HTTP layers.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceKind distinguishes the two upstream capture mechanisms the relay
// supports.
type SourceKind int

const (
	// SourceWebcam addresses a local V4L2 device by index.
	SourceWebcam SourceKind = iota
	// SourceRTSP addresses a remote RTSP camera by URL.
	SourceRTSP
)

// SourceRef is the tagged variant described in spec.md §3: a camera is
// backed either by a local webcam index or a remote RTSP URL, never both.
type SourceRef struct {
	Kind        SourceKind
	WebcamIndex int
	RTSPURL     string
}

// NewWebcamRef builds a SourceRef addressing a local device.
func NewWebcamRef(index int) SourceRef {
	return SourceRef{Kind: SourceWebcam, WebcamIndex: index}
}

// NewRTSPRef builds a SourceRef addressing a remote RTSP URL.
func NewRTSPRef(url string) SourceRef {
	return SourceRef{Kind: SourceRTSP, RTSPURL: url}
}

// String renders the source for logging and the status API.
func (s SourceRef) String() string {
	if s.Kind == SourceWebcam {
		return fmt.Sprintf("webcam:%d", s.WebcamIndex)
	}
	return s.RTSPURL
}

// CameraDescriptor is the immutable identity of a registered camera.
type CameraDescriptor struct {
	Name   string
	Source SourceRef
}

// EncodedFrame is an immutable JPEG byte buffer. Once produced it is never
// mutated, and the same pointer is handed to every subscribed ClientSink so
// I5 (shared-encode, byte-identical delivery) holds without copying.
type EncodedFrame struct {
	Data      []byte
	Timestamp time.Time
}

// ClientSink is a bounded FIFO representing one HTTP viewer. The producer
// only ever performs non-blocking offers against Frames (I3); Done is closed
// by the HTTP adapter when the underlying request ends.
type ClientSink struct {
	ID     uuid.UUID
	Frames chan *EncodedFrame
	Done   chan struct{}
}

// NewClientSink allocates a sink with the given buffer capacity.
func NewClientSink(capacity int) *ClientSink {
	return &ClientSink{
		ID:     uuid.New(),
		Frames: make(chan *EncodedFrame, capacity),
		Done:   make(chan struct{}),
	}
}

// Offer performs a non-blocking send, dropping the frame if the sink is
// full. Returns true if the frame was queued.
func (c *ClientSink) Offer(frame *EncodedFrame) bool {
	select {
	case c.Frames <- frame:
		return true
	default:
		return false
	}
}

// Status is the projection returned by CameraStream.Status and exposed via
// the HTTP adapter.
type Status struct {
	Name          string
	Source        string
	Running       bool
	ClientCount   int
	BufferSize    int
	LastFrameTime time.Time
}
