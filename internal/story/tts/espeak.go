package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"nestnarrator/internal/story/audio"
)

// ESpeakGenerator renders narration offline with eSpeak/eSpeak-NG.
type ESpeakGenerator struct {
	path       string
	sampleRate int
}

func newESpeakGenerator(sampleRate int) (*ESpeakGenerator, error) {
	path, err := findESpeakExecutable()
	if err != nil {
		return nil, err
	}
	if err := exec.Command(path, "--version").Run(); err != nil {
		return nil, fmt.Errorf("%s --version: %w", filepath.Base(path), err)
	}
	return &ESpeakGenerator{path: path, sampleRate: sampleRate}, nil
}

// espeakBinaries is the lookup order; eSpeak NG ships under its own name.
var espeakBinaries = []string{"espeak-ng", "espeak"}

func findESpeakExecutable() (string, error) {
	for _, name := range espeakBinaries {
		path, err := exec.LookPath(name)
		if err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %s found in PATH", strings.Join(espeakBinaries, ", "))
}

func (e *ESpeakGenerator) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "nestnarrator-espeak-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "narration.wav")
	args := append(espeakArgs(voice), "-w", out, "--stdin")

	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdin = strings.NewReader(text)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("eSpeak failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	wavData, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read eSpeak output: %w", err)
	}

	pcm, err := audio.PCMFromWAV(wavData, e.sampleRate)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, ErrEmptyAudio
	}

	logrus.WithFields(logrus.Fields{
		"voice": voice,
		"bytes": len(pcm),
	}).Debug("eSpeak narration rendered")
	return pcm, nil
}

// espeakArgs keeps eSpeak on its own default voice for narrator names it does not know.
func espeakArgs(voice string) []string {
	if voice == "" || voice == "default" || IsVoice(voice) {
		return nil
	}
	return []string{"-v", voice}
}

// ESpeakVoices lists the voices installed with eSpeak.
func ESpeakVoices(ctx context.Context) ([]string, error) {
	path, err := findESpeakExecutable()
	if err != nil {
		return nil, err
	}
	out, err := exec.CommandContext(ctx, path, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("list eSpeak voices: %w", err)
	}
	return parseESpeakVoices(string(out)), nil
}

// parseESpeakVoices reads the VoiceName column of `espeak --voices`, skipping the
// header row.
func parseESpeakVoices(output string) []string {
	var names []string
	header := true
	for _, row := range strings.Split(output, "\n") {
		cols := strings.Fields(row)
		if len(cols) == 0 {
			continue
		}
		if header {
			header = false
			continue
		}
		if len(cols) > 3 {
			names = append(names, cols[3])
		}
	}
	return names
}
