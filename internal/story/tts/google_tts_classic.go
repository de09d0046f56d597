package tts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"nestnarrator/internal/story/audio"
)

// Google rejects inputs over 5000 bytes.
const googleChunkLimit = 4800

// GoogleClassicGenerator synthesizes with Google Cloud Text-to-Speech as LINEAR16.
type GoogleClassicGenerator struct {
	client     *texttospeech.Client
	sampleRate int
}

func newGoogleClassicGenerator(ctx context.Context, sampleRate int) (*GoogleClassicGenerator, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}
	return &GoogleClassicGenerator{client: client, sampleRate: sampleRate}, nil
}

func (g *GoogleClassicGenerator) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	var pcm []byte
	chunks := splitIntoChunks(text, googleChunkLimit)

	for i, chunk := range chunks {
		req := &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: languageCode(voice),
				Name:         googleVoiceName(voice),
			},
			AudioConfig: &texttospeechpb.AudioConfig{
				AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
				SampleRateHertz: int32(g.sampleRate),
			},
		}

		resp, err := g.client.SynthesizeSpeech(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d: %w", i, grpcError(err))
		}

		// LINEAR16 answers carry a WAV header
		samples, err := audio.PCMFromWAV(resp.AudioContent, g.sampleRate)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		pcm = append(pcm, samples...)

		logrus.WithFields(logrus.Fields{
			"chunk": i + 1,
			"total": len(chunks),
			"voice": voice,
		}).Debug("Synthesized narration chunk")
	}

	if len(pcm) == 0 {
		return nil, ErrEmptyAudio
	}
	return pcm, nil
}

func (g *GoogleClassicGenerator) Close() error {
	return g.client.Close()
}

// googleVoiceName maps narrator names onto Chirp voices; full Google voice names
// pass through.
func googleVoiceName(voice string) string {
	if strings.Count(voice, "-") >= 2 {
		return voice
	}
	if voice == "" {
		voice = DefaultVoice
	}
	return "en-US-Chirp3-HD-" + voice
}

func languageCode(voice string) string {
	parts := strings.Split(voice, "-")
	if len(parts) >= 3 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}

// grpcError lifts gRPC status codes into the upstream taxonomy.
func grpcError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &TransportError{Err: err}
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return &UpstreamError{Status: 429, Message: st.Message()}
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return &UpstreamError{Status: 400, Message: st.Message()}
	case codes.Unauthenticated:
		return &UpstreamError{Status: 401, Message: st.Message()}
	case codes.PermissionDenied:
		return &UpstreamError{Status: 403, Message: st.Message()}
	case codes.NotFound:
		return &UpstreamError{Status: 404, Message: st.Message()}
	case codes.Canceled:
		return context.Canceled
	case codes.Unavailable, codes.DeadlineExceeded:
		return &TransportError{Err: err}
	default:
		return &UpstreamError{Status: 500, Message: st.Message()}
	}
}

func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text) // safe for UTF-8
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
