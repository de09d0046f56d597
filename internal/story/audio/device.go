package audio

import (
	"time"

	"github.com/faiface/beep"
)

// Clock reports a monotonic time in seconds. Playback positions are derived from it.
type Clock interface {
	Now() float64
}

// Device attaches buffers to the audio output.
type Device interface {
	// Start plays buf from offset seconds at the given rate. onEnded is called once
	// when the buffer runs out, never after Stop.
	Start(buf *Buffer, offset, rate float64, onEnded func()) (Source, error)
}

// Source is a single attached output node.
type Source interface {
	SetRate(rate float64)
	Stop()
}

// WallClock measures seconds since it was created.
type WallClock struct {
	epoch time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{epoch: time.Now()}
}

func (c *WallClock) Now() float64 {
	return time.Since(c.epoch).Seconds()
}

// Format returns the beep format the buffer plays back in.
func (b *Buffer) Format() beep.Format {
	channels := len(b.Channels)
	if channels > 2 {
		channels = 2
	}
	return beep.Format{
		SampleRate:  beep.SampleRate(b.SampleRate),
		NumChannels: channels,
		Precision:   bytesPerSample,
	}
}

// Streamer streams the buffer from frame onwards. Mono buffers are written to both
// speaker channels.
func (b *Buffer) Streamer(from int) beep.Streamer {
	if from < 0 {
		from = 0
	}
	pos := from
	total := b.Frames()
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= total {
			return 0, false
		}
		for i := range samples {
			if pos >= total {
				break
			}
			left := float64(b.Channels[0][pos])
			right := left
			if len(b.Channels) > 1 {
				right = float64(b.Channels[1][pos])
			}
			samples[i][0] = left
			samples[i][1] = right
			pos++
			n++
		}
		return n, true
	})
}

func offsetFrame(buf *Buffer, offset float64) int {
	frame := int(offset * float64(buf.SampleRate))
	if frame < 0 {
		return 0
	}
	if frame > buf.Frames() {
		return buf.Frames()
	}
	return frame
}
