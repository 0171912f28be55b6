package model

import "testing"

func TestClientSinkOfferNonBlocking(t *testing.T) {
	sink := NewClientSink(1)
	f1 := &EncodedFrame{Data: []byte("a")}
	f2 := &EncodedFrame{Data: []byte("b")}

	if !sink.Offer(f1) {
		t.Fatal("expected first offer to succeed")
	}
	if sink.Offer(f2) {
		t.Fatal("expected second offer to fail against a full queue")
	}

	got := <-sink.Frames
	if string(got.Data) != "a" {
		t.Fatalf("expected frame %q, got %q", "a", got.Data)
	}
}

func TestSourceRefString(t *testing.T) {
	webcam := NewWebcamRef(2)
	if webcam.String() != "webcam:2" {
		t.Fatalf("unexpected webcam string: %q", webcam.String())
	}

	rtsp := NewRTSPRef("rtsp://example/cam")
	if rtsp.String() != "rtsp://example/cam" {
		t.Fatalf("unexpected rtsp string: %q", rtsp.String())
	}
}
