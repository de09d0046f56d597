package tts

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"nestnarrator/internal/story/audio"
)

type GeneratorType string

const (
	GeneratorTypeMock          GeneratorType = "mock"
	GeneratorTypeESpeak        GeneratorType = "espeak"
	GeneratorTypeGoogleClassic GeneratorType = "googleclassic"
	GeneratorTypeHTTP          GeneratorType = "http"
	GeneratorTypeAuto          GeneratorType = "auto" // Automatically choose best available
)

func (g GeneratorType) String() string {
	return string(g)
}

// NewGenerator builds the generator named by config.Type and wraps it with the retry
// policy from config.
func NewGenerator(ctx context.Context, config Config) (Generator, error) {
	if config.SampleRate <= 0 {
		config.SampleRate = audio.NarrationSampleRate
	}

	kind := GeneratorType(config.Type)
	if kind == GeneratorTypeAuto || kind == "" {
		kind = bestAvailable(config)
		logrus.WithField("generator", kind).Info("Selected narration generator")
	}

	var (
		gen Generator
		err error
	)
	switch kind {
	case GeneratorTypeMock:
		gen = NewMockGenerator(config.SampleRate)
	case GeneratorTypeHTTP:
		gen, err = NewHTTPGenerator(config.Endpoint, config.APIKey, config.Timeout)
	case GeneratorTypeGoogleClassic:
		gen, err = newGoogleClassicGenerator(ctx, config.SampleRate)
	case GeneratorTypeESpeak:
		gen, err = newESpeakGenerator(config.SampleRate)
	default:
		return nil, fmt.Errorf("unsupported TTS generator type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	policy := DefaultRetryPolicy()
	if config.Retries >= 0 {
		policy.Retries = config.Retries
	}
	if config.RetryDelay > 0 {
		policy.InitialDelay = config.RetryDelay
	}
	return WithRetry(gen, policy), nil
}

// bestAvailable prefers a configured proxy, then Google, then a local eSpeak.
func bestAvailable(config Config) GeneratorType {
	if config.Endpoint != "" {
		return GeneratorTypeHTTP
	}
	if hasGoogleCredentials() {
		return GeneratorTypeGoogleClassic
	}
	if _, err := findESpeakExecutable(); err == nil {
		return GeneratorTypeESpeak
	}
	return GeneratorTypeMock
}

// AvailableGenerators returns generators usable on this machine.
func AvailableGenerators(config Config) []GeneratorType {
	gens := []GeneratorType{GeneratorTypeMock}
	if config.Endpoint != "" {
		gens = append(gens, GeneratorTypeHTTP)
	}
	if hasGoogleCredentials() {
		gens = append(gens, GeneratorTypeGoogleClassic)
	}
	if _, err := findESpeakExecutable(); err == nil {
		gens = append(gens, GeneratorTypeESpeak)
	}
	return gens
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
