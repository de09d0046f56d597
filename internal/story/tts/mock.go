package tts

import (
	"context"
	"math"
	"strings"
	"time"

	"nestnarrator/internal/story/audio"
)

// MockGenerator renders a quiet tone whose length follows the word count. It needs no
// network or speech engine.
type MockGenerator struct {
	SampleRate     int
	WordsPerSecond float64
	// Delay simulates generation latency.
	Delay time.Duration
}

func NewMockGenerator(sampleRate int) *MockGenerator {
	if sampleRate <= 0 {
		sampleRate = audio.NarrationSampleRate
	}
	return &MockGenerator{SampleRate: sampleRate, WordsPerSecond: 2.5}
}

func (m *MockGenerator) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	words := len(strings.Fields(text))
	if words == 0 {
		return nil, ErrEmptyAudio
	}

	wps := m.WordsPerSecond
	if wps <= 0 {
		wps = 2.5
	}
	frames := int(float64(words) / wps * float64(m.SampleRate))

	samples := make([]float64, frames)
	for i := range samples {
		samples[i] = 0.1 * math.Sin(2*math.Pi*220*float64(i)/float64(m.SampleRate))
	}
	return audio.EncodePCM(samples), nil
}
