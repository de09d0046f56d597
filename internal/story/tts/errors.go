package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"nestnarrator/internal/story/audio"
)

// ErrEmptyAudio is returned when a generator answers without any audio.
var ErrEmptyAudio = errors.New("no audio data received")

// TransportError is a failure to reach the generation endpoint.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("narration transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError is a non-2xx answer from the generation endpoint.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("narration failed with status %d", e.Status)
	}
	return fmt.Sprintf("narration failed with status %d: %s", e.Status, e.Message)
}

// Retryable reports whether the status is server overload or rate limiting.
func (e *UpstreamError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Kind is the class of a narration failure, as shown to readers.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindRateLimited
	KindBadRequest
	KindUnauthorized
	KindServer
	KindMalformedAudio
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindServer:
		return "server"
	case KindMalformedAudio:
		return "malformed_audio"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify maps an error from a generator or the codec to its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		switch {
		case upstream.Status == http.StatusTooManyRequests:
			return KindRateLimited
		case upstream.Status == http.StatusUnauthorized || upstream.Status == http.StatusForbidden:
			return KindUnauthorized
		case upstream.Status >= 500:
			return KindServer
		case upstream.Status >= 400:
			return KindBadRequest
		}
		return KindUnknown
	}

	var transport *TransportError
	if errors.As(err, &transport) {
		return KindTransport
	}
	if errors.Is(err, audio.ErrMalformedAudio) || errors.Is(err, audio.ErrDecoding) {
		return KindMalformedAudio
	}
	if errors.Is(err, ErrEmptyAudio) {
		return KindServer
	}
	return KindUnknown
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Status
	}
	return 0
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Retryable()
	}
	var transport *TransportError
	return errors.As(err, &transport)
}
