package nest

import (
	"nestnarrator/internal/story/tts"
)

// FriendlyError turns a narration failure into copy for readers.
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}
	switch tts.Classify(err) {
	case tts.KindRateLimited:
		return "The narrator is very busy. Please wait 30 seconds and try again."
	case tts.KindBadRequest:
		return "The narrator got confused by this story. Please try a different part."
	case tts.KindUnauthorized:
		return "API access denied. Please check your narration API key."
	case tts.KindServer:
		return "AI service temporarily down. Please try again in a few minutes."
	case tts.KindTransport:
		return "Could not reach the narration service. Check your internet connection."
	case tts.KindMalformedAudio:
		return "The narration audio was damaged. Please try again."
	case tts.KindCanceled:
		return "Narration cancelled."
	default:
		return "Something went wrong with the narration: " + err.Error()
	}
}
