package audio

import (
	"fmt"
	"sync"
	"time"
)

// SilentDevice keeps playback timing without any audio hardware. It is used for
// headless runs and muted sessions; the end notification fires when the buffer
// would have finished at the current rate.
type SilentDevice struct {
	clock Clock
}

func NewSilentDevice(clock Clock) *SilentDevice {
	return &SilentDevice{clock: clock}
}

func (d *SilentDevice) Start(buf *Buffer, offset, rate float64, onEnded func()) (Source, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrMalformedAudio)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("invalid playback rate %v", rate)
	}

	src := &silentSource{
		clock:    d.clock,
		duration: buf.Duration(),
		offset:   offset,
		started:  d.clock.Now(),
		rate:     rate,
		onEnded:  onEnded,
	}
	src.mu.Lock()
	src.schedule()
	src.mu.Unlock()
	return src, nil
}

type silentSource struct {
	mu       sync.Mutex
	clock    Clock
	duration float64
	offset   float64
	started  float64
	rate     float64
	timer    *time.Timer
	stopped  bool
	onEnded  func()
}

// schedule must be called with mu held.
func (s *silentSource) schedule() {
	if s.timer != nil {
		s.timer.Stop()
	}
	remaining := (s.duration - s.offset) / s.rate
	if remaining < 0 {
		remaining = 0
	}
	s.timer = time.AfterFunc(time.Duration(remaining*float64(time.Second)), s.fire)
}

func (s *silentSource) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	fn := s.onEnded
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (s *silentSource) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	now := s.clock.Now()
	s.offset += (now - s.started) * s.rate
	s.started = now
	s.rate = rate
	s.schedule()
}

func (s *silentSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}
