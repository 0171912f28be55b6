// Package manager holds the process-wide registry of camera streams
// described in spec.md §4.4: add/get/remove/status/stop_all over a set of
// camera.Stream actors, never blocking on any single stream's producer.
package manager

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/bellanda/local-cameras-view/internal/camera"
	"github.com/bellanda/local-cameras-view/internal/config"
	"github.com/bellanda/local-cameras-view/internal/model"
	"github.com/bellanda/local-cameras-view/internal/source"
)

// Manager is the StreamManager: a registry keyed by camera name, guarded by
// its own mutex that is never held while a camera.Stream does I/O.
type Manager struct {
	cfg    config.Stream
	logger *zap.Logger

	mu      sync.RWMutex
	streams map[string]*camera.Stream
}

// New builds an empty Manager.
func New(cfg config.Stream, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		streams: make(map[string]*camera.Stream),
	}
}

// Add registers and starts a stream for name/src, building a fresh
// FrameSource from ref on every start (including future restarts). If name
// is already registered, Add leaves the existing stream untouched and
// returns an error; re-adding is not a silent no-op.
func (m *Manager) Add(name string, ref model.SourceRef) error {
	m.mu.Lock()
	if _, exists := m.streams[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("manager: camera %q already registered", name)
	}
	newSource := func() source.FrameSource { return frameSourceFor(ref) }
	st := camera.New(name, ref, newSource, m.cfg, m.logger)
	m.streams[name] = st
	m.mu.Unlock()

	st.Start()
	return nil
}

// Get returns the named stream, or nil if unknown.
func (m *Manager) Get(name string) *camera.Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streams[name]
}

// Remove stops and unregisters the named stream.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	st, exists := m.streams[name]
	if exists {
		delete(m.streams, name)
	}
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("manager: camera %q not found", name)
	}
	st.Stop()
	return nil
}

// Restart stops and starts the named stream in place, opening a fresh
// FrameSource — the HTTP adapter's POST /api/cameras/{name}/restart.
func (m *Manager) Restart(name string) error {
	m.mu.RLock()
	st, exists := m.streams[name]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("manager: camera %q not found", name)
	}
	st.Stop()
	st.Start()
	return nil
}

// Status returns every registered stream's status, sorted by name for
// stable output.
func (m *Manager) Status() []model.Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.streams))
	snapshot := make(map[string]*camera.Stream, len(m.streams))
	for name, st := range m.streams {
		names = append(names, name)
		snapshot[name] = st
	}
	m.mu.RUnlock()

	sort.Strings(names)
	out := make([]model.Status, 0, len(names))
	for _, name := range names {
		out = append(out, snapshot[name].Status())
	}
	return out
}

// StopAll stops every registered stream, then clears the registry (spec.md
// §4.4: "stop() every stream, then clear the map") so a stopped camera is no
// longer reported by Get()/Status() and its name can be re-registered by a
// later Add(). Each Stop() is individually bounded (camera.stopJoinBound),
// so StopAll as a whole is bounded by len(streams)*that bound in the worst
// case — spec.md §4.6's process shutdown contract.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := make([]*camera.Stream, 0, len(m.streams))
	for _, st := range m.streams {
		all = append(all, st)
	}
	m.streams = make(map[string]*camera.Stream)
	m.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(all))
	for _, st := range all {
		go func(st *camera.Stream) {
			defer wg.Done()
			st.Stop()
		}(st)
	}
	wg.Wait()
}

// frameSourceFor builds the concrete FrameSource for a SourceRef, per
// spec.md §4.1's two built-in kinds.
func frameSourceFor(ref model.SourceRef) source.FrameSource {
	switch ref.Kind {
	case model.SourceRTSP:
		return source.NewRTSPSource(ref.RTSPURL)
	case model.SourceWebcam:
		return source.NewWebcamSource(ref.WebcamIndex)
	default:
		return source.NewMockSource(0)
	}
}
