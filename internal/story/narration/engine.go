// Package narration plays decoded narration with a pausable, rate-adjustable clock and
// fetches narration through the memory tier, the persistent store and the generator in
// that order.
package narration

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"nestnarrator/internal/story/audio"
	"nestnarrator/internal/story/cache"
	"nestnarrator/internal/story/tts"
)

// Options wires the engine to its collaborators. Device, Clock and Generator are
// required.
type Options struct {
	Device       audio.Device
	Clock        audio.Clock
	Generator    tts.Generator
	Memory       *cache.Memory
	Store        cache.Store
	DefaultVoice string
	Rate         float64
	// SampleRate of generated and stored audio. Zero means the narration rate.
	SampleRate int
	Logger     logrus.FieldLogger
}

// Engine owns the output device and the current buffer. At most one source is
// attached at any time.
type Engine struct {
	device     audio.Device
	clock      audio.Clock
	generator  tts.Generator
	memory     *cache.Memory
	store      cache.Store
	voice      string
	sampleRate int
	log        logrus.FieldLogger

	mu        sync.Mutex
	state     State
	buffer    *audio.Buffer
	source    audio.Source
	pausedAt  float64
	startedAt float64
	rate      float64
	onEnded   func()
	// session increments whenever the attached source is replaced or released, so a
	// late end notification can tell it is stale.
	session uint64
	// fetchGen increments for every fetch that takes over the engine.
	fetchGen uint64
}

func New(opts Options) *Engine {
	e := &Engine{
		device:     opts.Device,
		clock:      opts.Clock,
		generator:  opts.Generator,
		memory:     opts.Memory,
		store:      opts.Store,
		voice:      opts.DefaultVoice,
		sampleRate: opts.SampleRate,
		log:        opts.Logger,
		rate:       1,
	}
	if e.memory == nil {
		e.memory = cache.NewMemory()
	}
	if e.store == nil {
		e.store = cache.NopStore{}
	}
	if e.voice == "" {
		e.voice = tts.DefaultVoice
	}
	if e.sampleRate <= 0 {
		e.sampleRate = audio.NarrationSampleRate
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	if validRate(opts.Rate) {
		e.rate = opts.Rate
	}
	return e
}

func validRate(rate float64) bool {
	return rate > 0 && !math.IsNaN(rate) && !math.IsInf(rate, 0)
}

// SetOnEnded replaces the completion subscriber. Nil clears it.
func (e *Engine) SetOnEnded(fn func()) {
	e.mu.Lock()
	e.onEnded = fn
	e.mu.Unlock()
}

// Play starts the current buffer, resuming from the paused position when paused and
// from the beginning otherwise. Without a buffer it does nothing.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playLocked()
}

func (e *Engine) playLocked() {
	if e.buffer == nil {
		return
	}

	offset := 0.0
	if e.state == Paused {
		offset = e.pausedAt
	}
	prev := e.state
	e.releaseLocked()

	session := e.session
	src, err := e.device.Start(e.buffer, offset, e.rate, func() { e.handleEnded(session) })
	if err != nil {
		e.log.WithError(err).Warn("Could not start narration playback")
		if prev != Paused {
			e.state = Idle
		}
		return
	}

	e.source = src
	e.startedAt = e.clock.Now() - offset/e.rate
	e.state = Playing
}

// releaseLocked detaches the current source. Any end notification it still delivers
// belongs to a dead session.
func (e *Engine) releaseLocked() {
	e.session++
	if e.source != nil {
		e.source.Stop()
		e.source = nil
	}
}

// Pause freezes the position. It is a no-op unless playing.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Playing {
		return
	}
	e.pausedAt = e.positionLocked()
	e.releaseLocked()
	e.state = Paused
}

// Stop releases the output and rewinds. Stopping while a fetch is loading abandons
// that fetch's claim on the engine; its audio is still cached.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Idle && e.source == nil {
		return
	}
	if e.state == Loading {
		e.fetchGen++
	}
	e.releaseLocked()
	e.state = Idle
	e.pausedAt = 0
}

// SetRate changes the speed multiplier. While playing the position is carried across
// the change. Non-positive rates are ignored.
func (e *Engine) SetRate(rate float64) {
	if !validRate(rate) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Playing {
		now := e.clock.Now()
		pos := (now - e.startedAt) * e.rate
		e.startedAt = now - pos/rate
		if e.source != nil {
			e.source.SetRate(rate)
		}
	}
	e.rate = rate
}

func (e *Engine) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentTime is the playback position in buffer seconds.
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

func (e *Engine) positionLocked() float64 {
	switch e.state {
	case Paused:
		return e.pausedAt
	case Playing:
		pos := (e.clock.Now() - e.startedAt) * e.rate
		if pos < 0 {
			return 0
		}
		if d := e.durationLocked(); pos > d {
			return d
		}
		return pos
	default:
		return 0
	}
}

func (e *Engine) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.durationLocked()
}

func (e *Engine) durationLocked() float64 {
	if e.buffer == nil {
		return 0
	}
	return e.buffer.Duration()
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		IsPlaying:   e.state == Playing,
		IsPaused:    e.state == Paused,
		IsLoading:   e.state == Loading,
		HasBuffer:   e.buffer != nil,
		CurrentTime: e.positionLocked(),
		Duration:    e.durationLocked(),
		Rate:        e.rate,
	}
}

func (e *Engine) handleEnded(session uint64) {
	e.mu.Lock()
	if session != e.session || e.state != Playing {
		e.mu.Unlock()
		return
	}
	e.session++
	e.source = nil
	e.state = Idle
	e.pausedAt = 0
	fn := e.onEnded
	e.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// FetchNarration makes the narration for text the current buffer, starting it when
// autoplay is set. A fetch without autoplay issued while something is playing or
// paused only warms the caches. A newer fetch supersedes an older one, whose result
// is cached but never installed.
func (e *Engine) FetchNarration(ctx context.Context, text, voice string, autoplay bool) error {
	if voice == "" {
		voice = e.voice
	}
	key := cache.Key(voice, text)
	log := e.log.WithFields(logrus.Fields{"key": key, "autoplay": autoplay})

	e.mu.Lock()
	takesOver := autoplay || e.state == Idle || e.state == Loading
	var gen uint64
	if takesOver {
		e.fetchGen++
		gen = e.fetchGen
	}
	if buf, ok := e.memory.Get(key); ok {
		if takesOver {
			e.installLocked(buf, autoplay)
		}
		e.mu.Unlock()
		log.Debug("Narration served from memory")
		return nil
	}
	if takesOver {
		e.releaseLocked()
		e.buffer = nil
		e.pausedAt = 0
		e.state = Loading
	}
	e.mu.Unlock()

	buf, err := e.load(ctx, key, text, voice, log)
	if err != nil {
		e.mu.Lock()
		if takesOver && gen == e.fetchGen && e.state == Loading {
			e.state = Idle
		}
		e.mu.Unlock()
		log.WithError(err).Warn("Narration fetch failed")
		return err
	}
	e.memory.Put(key, buf)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !takesOver {
		return nil
	}
	if gen != e.fetchGen {
		log.Debug("Discarding superseded narration")
		return nil
	}
	e.installLocked(buf, autoplay)
	return nil
}

// load reads the persistent store and falls back to one generator call.
func (e *Engine) load(ctx context.Context, key, text, voice string, log logrus.FieldLogger) (*audio.Buffer, error) {
	data, found, err := e.store.GetAudio(ctx, key)
	if err != nil {
		log.WithError(err).Warn("Narration store read failed")
	} else if found {
		buf, derr := e.decode(data)
		if derr == nil {
			log.Debug("Narration served from store")
			return buf, nil
		}
		log.WithError(derr).Warn("Stored narration is corrupt, regenerating")
	}

	data, err = e.generator.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	buf, err := e.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode narration: %w", err)
	}

	if err := e.store.SaveAudio(ctx, key, data); err != nil {
		log.WithError(err).Warn("Failed to persist narration")
	}
	log.WithField("duration", buf.Duration()).Info("Narration generated")
	return buf, nil
}

func (e *Engine) decode(data []byte) (*audio.Buffer, error) {
	return audio.Decode(data, e.sampleRate, audio.NarrationChannels)
}

func (e *Engine) installLocked(buf *audio.Buffer, autoplay bool) {
	e.releaseLocked()
	e.buffer = buf
	e.pausedAt = 0
	e.state = Idle
	if autoplay {
		e.playLocked()
	}
}
