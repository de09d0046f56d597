package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"github.com/sirupsen/logrus"
)

// SpeakerConfig configures the beep speaker device.
type SpeakerConfig struct {
	SampleRate int
	// Buffer is the speaker latency.
	Buffer time.Duration
	// Quality is the resampler quality, 1 to 64.
	Quality int
	// Volume is a linear gain, 1.0 leaves samples untouched.
	Volume float64
}

// SpeakerDevice plays buffers through the system speaker. The speaker is opened on the
// first Start so audio hardware is only touched once the user asks for playback.
type SpeakerDevice struct {
	config SpeakerConfig

	mu          sync.Mutex
	initialized bool
}

func NewSpeakerDevice(config SpeakerConfig) *SpeakerDevice {
	if config.SampleRate <= 0 {
		config.SampleRate = NarrationSampleRate
	}
	if config.Buffer <= 0 {
		config.Buffer = 100 * time.Millisecond
	}
	if config.Quality < 1 || config.Quality > 64 {
		config.Quality = 4
	}
	return &SpeakerDevice{config: config}
}

func (d *SpeakerDevice) init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}
	sr := beep.SampleRate(d.config.SampleRate)
	if err := speaker.Init(sr, sr.N(d.config.Buffer)); err != nil {
		return fmt.Errorf("failed to open speaker: %w", err)
	}
	d.initialized = true
	logrus.WithFields(logrus.Fields{
		"sample_rate": d.config.SampleRate,
		"buffer":      d.config.Buffer,
	}).Debug("Speaker initialized")
	return nil
}

func (d *SpeakerDevice) Start(buf *Buffer, offset, rate float64, onEnded func()) (Source, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrMalformedAudio)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("invalid playback rate %v", rate)
	}
	if err := d.init(); err != nil {
		return nil, err
	}

	var stream beep.Streamer = buf.Streamer(offsetFrame(buf, offset))
	if buf.SampleRate != d.config.SampleRate {
		stream = beep.Resample(d.config.Quality, beep.SampleRate(buf.SampleRate), beep.SampleRate(d.config.SampleRate), stream)
	}
	resampler := beep.ResampleRatio(d.config.Quality, rate, stream)

	gain := &effects.Volume{
		Streamer: resampler,
		Base:     2,
		Volume:   volumeExponent(d.config.Volume),
		Silent:   d.config.Volume <= 0,
	}

	src := &speakerSource{resampler: resampler}
	src.ctrl = &beep.Ctrl{Streamer: beep.Seq(gain, beep.Callback(func() {
		// runs on the speaker goroutine with the speaker locked
		if src.stopped || onEnded == nil {
			return
		}
		go onEnded()
	}))}

	speaker.Play(src.ctrl)
	return src, nil
}

func volumeExponent(volume float64) float64 {
	if volume <= 0 {
		return 0
	}
	return math.Log2(volume)
}

type speakerSource struct {
	ctrl      *beep.Ctrl
	resampler *beep.Resampler
	stopped   bool
}

func (s *speakerSource) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	speaker.Lock()
	s.resampler.SetRatio(rate)
	speaker.Unlock()
}

func (s *speakerSource) Stop() {
	speaker.Lock()
	s.stopped = true
	s.ctrl.Streamer = nil
	speaker.Unlock()
}
