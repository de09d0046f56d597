// Package tts produces narration audio for story text.
package tts

import (
	"context"
	"time"
)

// Config selects and tunes a generator.
type Config struct {
	Type       string
	Voice      string
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	SampleRate int
	Retries    int
	RetryDelay time.Duration
}

// Generator turns text into raw narration audio: 16-bit little endian mono PCM at the
// narration sample rate.
type Generator interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// VoiceInfo describes a narrator voice.
type VoiceInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultVoice is used whenever a request names no voice.
const DefaultVoice = "Kore"

// Voices lists the narrator voices offered to readers.
var Voices = []VoiceInfo{
	{Name: "Puck", Description: "Playful and bright"},
	{Name: "Charon", Description: "Deep and calm"},
	{Name: "Kore", Description: "Warm and gentle"},
	{Name: "Fenrir", Description: "Bold and adventurous"},
	{Name: "Aoede", Description: "Soft and lyrical"},
	{Name: "Zephyr", Description: "Light and airy"},
	{Name: "Leda", Description: "Soothing and slow"},
}

// IsVoice reports whether name is one of Voices.
func IsVoice(name string) bool {
	for _, v := range Voices {
		if v.Name == name {
			return true
		}
	}
	return false
}
