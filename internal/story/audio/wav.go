package audio

import (
	"bytes"
	"fmt"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// PCMFromWAV converts a WAV file to mono 16-bit PCM at sampleRate. Stereo input is
// downmixed by averaging both channels.
func PCMFromWAV(data []byte, sampleRate int) ([]byte, error) {
	stream, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAudio, err)
	}
	defer stream.Close()

	var s beep.Streamer = stream
	if int(format.SampleRate) != sampleRate {
		s = beep.Resample(4, format.SampleRate, beep.SampleRate(sampleRate), stream)
	}

	var samples []float64
	chunk := make([][2]float64, 512)
	for {
		n, ok := s.Stream(chunk)
		for i := 0; i < n; i++ {
			if format.NumChannels > 1 {
				samples = append(samples, (chunk[i][0]+chunk[i][1])/2)
			} else {
				samples = append(samples, chunk[i][0])
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAudio, err)
	}

	return EncodePCM(samples), nil
}
