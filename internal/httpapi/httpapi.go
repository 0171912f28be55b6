// Package httpapi is the HTTP adapter from spec.md §4.5/§6: it exposes the
// MJPEG video feed and the JSON status/restart surface over a
// manager.Manager, translating each HTTP response into a fresh ClientSink
// subscription.
package httpapi

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bellanda/local-cameras-view/internal/config"
	"github.com/bellanda/local-cameras-view/internal/manager"
	"github.com/bellanda/local-cameras-view/internal/model"
)

// frameBoundary is the bit-exact MJPEG part delimiter from spec.md §6.
const frameBoundary = "--frame\r\n" +
	"Content-Type: image/jpeg\r\n" +
	"\r\n"

// Server wires a manager.Manager to the spec.md §6 HTTP surface.
type Server struct {
	mgr    *manager.Manager
	cfg    config.Stream
	logger *zap.Logger
	mux    *http.ServeMux

	blackFrameOnce sync.Once
	blackFrame     []byte
}

// New builds a Server and registers its routes.
func New(mgr *manager.Manager, cfg config.Stream, logger *zap.Logger) *Server {
	s := &Server{mgr: mgr, cfg: cfg, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the CORS-wrapped http.Handler to pass to http.Server.
func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /video_feed/{name}", s.handleVideoFeed)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/cameras/{name}/status", s.handleCameraStatus)
	s.mux.HandleFunc("POST /api/cameras/{name}/restart", s.handleRestart)
	s.mux.Handle("GET /metrics", promHandler())
}

// handleVideoFeed streams /video_feed/{name} as described in spec.md §6:
// one MJPEG part per delivered frame, re-sending the last frame this
// response wrote (or a synthetic black frame if it has written none) when
// nothing new arrives within frame_timeout. The fallback is not read from
// the stream's own cache, which may hold a newer frame this client dropped.
func (s *Server) handleVideoFeed(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	st := s.mgr.Get(name)
	if st == nil {
		http.NotFound(w, r)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)

	sink := st.Subscribe()
	defer close(sink.Done)
	defer st.Unsubscribe(sink)

	ctx := r.Context()
	timeout := s.cfg.FrameTimeout()
	var lastSent []byte

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-sink.Frames:
			lastSent = frame.Data
			if !s.writePart(w, flusher, frame.Data) {
				return
			}
		case <-time.After(timeout):
			fallback := lastSent
			if fallback == nil {
				fallback = s.getBlackFrame()
			}
			if !s.writePart(w, flusher, fallback) {
				return
			}
		}
	}
}

func (s *Server) writePart(w http.ResponseWriter, flusher http.Flusher, data []byte) bool {
	if _, err := w.Write([]byte(frameBoundary)); err != nil {
		return false
	}
	if _, err := w.Write(data); err != nil {
		return false
	}
	if _, err := w.Write([]byte("\r\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

// getBlackFrame lazily encodes the synthetic 640x480 black JPEG used as the
// last-resort keep-alive when a stream has never produced a frame.
func (s *Server) getBlackFrame() []byte {
	s.blackFrameOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 640, 480))
		black := color.RGBA{A: 255}
		for y := 0; y < 480; y++ {
			for x := 0; x < 640; x++ {
				img.Set(x, y, black)
			}
		}
		var buf bufWriter
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.cfg.JPEGQuality}); err != nil {
			s.logger.Error("failed to encode fallback black frame", zap.Error(err))
			return
		}
		s.blackFrame = buf.data
	})
	return s.blackFrame
}

// bufWriter is a minimal io.Writer sink, avoiding a bytes.Buffer import for
// a one-shot encode.
type bufWriter struct{ data []byte }

func (b *bufWriter) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

type statusResponse struct {
	System       string                  `json:"system"`
	Status       string                  `json:"status"`
	TotalCameras int                     `json:"total_cameras"`
	TotalClients int                     `json:"total_clients"`
	Cameras      map[string]cameraStatus `json:"cameras"`
}

type cameraStatus struct {
	CameraName    string    `json:"camera_name"`
	RTSPURL       string    `json:"rtsp_url"`
	IsRunning     bool      `json:"is_running"`
	Clients       int       `json:"clients"`
	BufferSize    int       `json:"buffer_size"`
	LastFrameTime time.Time `json:"last_frame_time"`
}

func toCameraStatus(st model.Status) cameraStatus {
	return cameraStatus{
		CameraName:    st.Name,
		RTSPURL:       st.Source,
		IsRunning:     st.Running,
		Clients:       st.ClientCount,
		BufferSize:    st.BufferSize,
		LastFrameTime: st.LastFrameTime,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	all := s.mgr.Status()
	cameras := make(map[string]cameraStatus, len(all))
	totalClients := 0
	for _, st := range all {
		cameras[st.Name] = toCameraStatus(st)
		totalClients += st.ClientCount
	}
	writeJSON(w, http.StatusOK, statusResponse{
		System:       "local-cameras-view",
		Status:       "ok",
		TotalCameras: len(all),
		TotalClients: totalClients,
		Cameras:      cameras,
	})
}

func (s *Server) handleCameraStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	st := s.mgr.Get(name)
	if st == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, toCameraStatus(st.Status()))
}

type restartResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.mgr.Restart(name); err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, restartResponse{
		Message: fmt.Sprintf("camera %q restarting", name),
		Status:  "restarting",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
