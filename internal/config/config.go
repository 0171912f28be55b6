package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds every tunable named in spec.md §6, parsed from the
// environment the same way the teacher's Config does (caarlos0/env struct
// tags with envDefault), split into Server (ambient) and Stream (the
// per-camera defaults spec.md §6 enumerates).
type Config struct {
	Server Server
	Stream Stream
}

// Server holds process-wide, non-camera settings.
type Server struct {
	Port            string `env:"PORT" envDefault:"8080"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownSeconds int    `env:"SHUTDOWN_SECONDS" envDefault:"1"`
}

// Stream holds the spec.md §6 configuration keys, one set shared by every
// CameraStream (per-camera overrides are out of scope, matching the
// teacher's single global Server config).
type Stream struct {
	MaxBufferSize        int     `env:"MAX_BUFFER_SIZE" envDefault:"30"`
	TargetFPS            int     `env:"TARGET_FPS" envDefault:"30"`
	JPEGQuality          int     `env:"JPEG_QUALITY" envDefault:"85"`
	FrameTimeoutSeconds  float64 `env:"FRAME_TIMEOUT" envDefault:"30.0"`
	ClientQueueSize      int     `env:"CLIENT_QUEUE_SIZE" envDefault:"10"`
	KeepaliveIntervalSec float64 `env:"KEEPALIVE_INTERVAL" envDefault:"5.0"`
}

// FrameInterval is 1/target_fps, the pacing interval from spec.md §3.
func (s Stream) FrameInterval() time.Duration {
	if s.TargetFPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(s.TargetFPS)
}

// FrameTimeout is the per-client keep-alive deadline from spec.md §6.
func (s Stream) FrameTimeout() time.Duration {
	return time.Duration(s.FrameTimeoutSeconds * float64(time.Second))
}

// KeepaliveInterval is advisory per spec.md §9's Open Question; frame_timeout
// remains the single normative bound.
func (s Stream) KeepaliveInterval() time.Duration {
	return time.Duration(s.KeepaliveIntervalSec * float64(time.Second))
}

// New parses Config from the environment.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}
