package tts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"nestnarrator/internal/story/audio"
)

const narrationPath = "/api/generate-narration"

type narrationRequest struct {
	Text      string `json:"text"`
	VoiceName string `json:"voiceName"`
}

type narrationResponse struct {
	AudioData string `json:"audioData"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPGenerator asks a narration proxy for base64 PCM over JSON.
type HTTPGenerator struct {
	client *resty.Client
}

func NewHTTPGenerator(endpoint, apiKey string, timeout time.Duration) (*HTTPGenerator, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("narration endpoint required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &HTTPGenerator{client: client}, nil
}

func (g *HTTPGenerator) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	var (
		result  narrationResponse
		failure errorResponse
	)

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(narrationRequest{Text: text, VoiceName: voice}).
		SetResult(&result).
		SetError(&failure).
		Post(narrationPath)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		msg := failure.Error
		if msg == "" {
			msg = "TTS synthesis failed"
		}
		return nil, &UpstreamError{Status: resp.StatusCode(), Message: msg}
	}

	if result.AudioData == "" {
		return nil, ErrEmptyAudio
	}

	data, err := audio.DecodeBase64(result.AudioData)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"voice": voice,
		"chars": len(text),
		"bytes": len(data),
	}).Debug("Narration generated")
	return data, nil
}
