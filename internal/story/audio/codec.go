// Package audio turns narration payloads into playable buffers and drives the output device.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Narration audio arrives as raw 16-bit little endian PCM, mono, 24 kHz.
const (
	NarrationSampleRate = 24000
	NarrationChannels   = 1
	bytesPerSample      = 2
)

var (
	// ErrMalformedAudio is returned when a payload cannot be read as PCM of the declared shape.
	ErrMalformedAudio = errors.New("malformed audio")
	// ErrDecoding is returned when a transport encoded payload is invalid.
	ErrDecoding = errors.New("invalid audio encoding")
)

// Buffer is a decoded, immutable, fixed-rate sequence of normalized samples.
type Buffer struct {
	SampleRate int
	// Channels holds one slice per channel, each value in [-1.0, 1.0].
	Channels [][]float32
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration is always derived from the frame count, never stored.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Length is Duration as a time.Duration, for display.
func (b *Buffer) Length() time.Duration {
	return time.Duration(b.Duration() * float64(time.Second))
}

// Decode interprets data as little endian signed 16-bit interleaved PCM.
func Decode(data []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrMalformedAudio, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrMalformedAudio, channels)
	}

	frameSize := bytesPerSample * channels
	if len(data)%frameSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not aligned to %d-byte frames",
			ErrMalformedAudio, len(data), frameSize)
	}

	frames := len(data) / frameSize
	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * bytesPerSample
			sample := int16(binary.LittleEndian.Uint16(data[off:]))
			buf.Channels[ch][i] = float32(sample) / 32768.0
		}
	}

	return buf, nil
}

// DecodeNarration decodes a payload in the narration format.
func DecodeNarration(data []byte) (*Buffer, error) {
	return Decode(data, NarrationSampleRate, NarrationChannels)
}

// EncodePCM quantizes mono samples in [-1.0, 1.0] to 16-bit little endian PCM.
func EncodePCM(samples []float64) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(quantize(v)))
	}
	return out
}

func quantize(v float64) int16 {
	s := math.Round(v * 32768.0)
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int16(s)
}

// EncodeBase64 is the transport encoding used for PCM over JSON.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 reverses EncodeBase64.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoding, err)
	}
	return data, nil
}
