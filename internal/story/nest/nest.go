package nest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"nestnarrator/internal/cli/scheme/colours"
	"nestnarrator/internal/config"
	"nestnarrator/internal/domain/library"
	"nestnarrator/internal/domain/story"
	"nestnarrator/internal/story/audio"
	"nestnarrator/internal/story/cache"
	"nestnarrator/internal/story/narration"
	"nestnarrator/internal/story/playback"
	"nestnarrator/internal/story/tts"
)

// Narrator is the main application: one engine, one adapter and the story shelf.
type Narrator struct {
	cfg     *config.Config
	Engine  *narration.Engine
	adapter *playback.Adapter
	shelf   *library.Shelf
	store   cache.Store

	in  io.Reader
	out io.Writer

	// advanceDelay is the pause before sleep mode moves to the next part.
	advanceDelay time.Duration

	ctx    context.Context
	Cancel context.CancelFunc
}

// Deps carries the collaborators of a Narrator. Zero fields are built from config.
type Deps struct {
	Device    audio.Device
	Clock     audio.Clock
	Generator tts.Generator
	Store     cache.Store
	Shelf     *library.Shelf
	In        io.Reader
	Out       io.Writer
}

func NewNarrator(cfg *config.Config) (*Narrator, error) {
	return New(cfg, Deps{})
}

func New(cfg *config.Config, deps Deps) (*Narrator, error) {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Narrator{
		cfg:          cfg,
		in:           deps.In,
		out:          deps.Out,
		advanceDelay: 500 * time.Millisecond,
		ctx:          ctx,
		Cancel:       cancel,
	}
	if n.in == nil {
		n.in = os.Stdin
	}
	if n.out == nil {
		n.out = os.Stdout
	}
	n.out = &syncWriter{w: n.out}

	clock := deps.Clock
	if clock == nil {
		clock = audio.NewWallClock()
	}

	device := deps.Device
	if device == nil {
		device = newDevice(cfg, clock)
	}

	n.store = deps.Store
	if n.store == nil {
		store, err := cache.NewStore(cfg.Cache.Store())
		if err != nil {
			logrus.WithError(err).Warn("Persistent narration cache unavailable, continuing without it")
			store = cache.NopStore{}
		}
		n.store = store
	}

	gen := deps.Generator
	if gen == nil {
		var err error
		gen, err = tts.NewGenerator(ctx, cfg.TTS.Generator())
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create narration generator: %w", err)
		}
	}

	n.shelf = deps.Shelf
	if n.shelf == nil {
		shelf, err := library.NewShelf(cfg.Library.Path)
		if err != nil {
			cancel()
			return nil, err
		}
		n.shelf = shelf
	}

	n.Engine = narration.New(narration.Options{
		Device:       device,
		Clock:        clock,
		Generator:    gen,
		Memory:       cache.NewMemory(),
		Store:        n.store,
		DefaultVoice: cfg.TTS.Voice,
		Rate:         cfg.TTS.Speed,
		SampleRate:   cfg.TTS.SampleRate,
		Logger:       logrus.WithField("component", "narration"),
	})
	n.adapter = playback.NewAdapter(n.Engine, cfg.Display.Refresh)
	return n, nil
}

// syncWriter serialises writes from the render loop and the command loop.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func newDevice(cfg *config.Config, clock audio.Clock) audio.Device {
	if cfg.Audio.Output == "none" {
		return audio.NewSilentDevice(clock)
	}
	return audio.NewSpeakerDevice(audio.SpeakerConfig{
		SampleRate: cfg.TTS.SampleRate,
		Buffer:     cfg.Audio.Buffer,
		Quality:    cfg.Audio.Quality,
		Volume:     cfg.TTS.Volume,
	})
}

// Stop silences narration and closes the persistent store.
func (n *Narrator) Stop() {
	n.adapter.SetActive(false)
	n.Engine.Stop()
	if c, ok := n.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close narration cache")
		}
	}
}

func (n *Narrator) ShowWelcome() {
	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "🌙 Welcome to NestNarrator! 🌙")
	fmt.Fprintln(n.out)
	colours.Info.Fprintln(n.out, "📚 Available commands:")
	fmt.Fprintln(n.out, "  • nestnarrator narrate  - Read any text aloud")
	fmt.Fprintln(n.out, "  • nestnarrator read     - Read a saved story part by part")
	fmt.Fprintln(n.out, "  • nestnarrator preload  - Prepare narration for offline listening")
	fmt.Fprintln(n.out, "  • nestnarrator library  - Manage your story shelf")
	fmt.Fprintln(n.out, "  • nestnarrator cache    - Inspect the narration cache")
	fmt.Fprintln(n.out, "  • nestnarrator voices   - List narrator voices")
	fmt.Fprintln(n.out, "  • nestnarrator settings - Show narration settings")
	fmt.Fprintln(n.out)
	colours.Prompt.Fprintln(n.out, "✨ Ready for a bedtime story? ✨")
}

// Narrate reads text, or the file named by --file, aloud.
func (n *Narrator) Narrate(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read text file: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to narrate")
	}

	voice, _ := cmd.Flags().GetString("voice")
	return n.Read(n.ctx, story.FromText("Narration", strings.TrimSpace(text)), ReadOptions{Voice: voice})
}

// ReadStory reads a story from the shelf or a JSON file.
func (n *Narrator) ReadStory(cmd *cobra.Command, args []string) error {
	s, err := n.resolveStory(args)
	if err != nil {
		return err
	}

	voice, _ := cmd.Flags().GetString("voice")
	sleep, _ := cmd.Flags().GetBool("sleep")
	return n.Read(n.ctx, s, ReadOptions{
		Voice: voice,
		Sleep: sleep || s.Mode == story.ModeSleep,
	})
}

// Preload fetches narration for every part without playing it.
func (n *Narrator) Preload(cmd *cobra.Command, args []string) error {
	s, err := n.resolveStory(args)
	if err != nil {
		return err
	}
	voice, _ := cmd.Flags().GetString("voice")

	colours.Info.Fprintf(n.out, "🌐 Preparing %d parts of %q...\n", len(s.Parts), s.Title)
	failed := 0
	for i := range s.Parts {
		if err := n.Engine.FetchNarration(n.ctx, s.NarrationText(i), voice, false); err != nil {
			failed++
			colours.Error.Fprintf(n.out, "❌ Part %d: %s\n", i+1, FriendlyError(err))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			continue
		}
		colours.Success.Fprintf(n.out, "✅ Part %d ready\n", i+1)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d parts could not be prepared", failed, len(s.Parts))
	}
	colours.Success.Fprintln(n.out, "✨ Story ready for offline listening!")
	return nil
}

func (n *Narrator) resolveStory(args []string) (*story.Full, error) {
	if len(args) == 0 {
		entries, err := n.shelf.List()
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.New("the story shelf is empty, add one with 'nestnarrator library add <file>'")
		}
		return &entries[0].Story, nil
	}

	if _, err := os.Stat(args[0]); err == nil {
		return story.Load(args[0])
	}
	entry, err := n.shelf.Get(args[0])
	if err != nil {
		return nil, err
	}
	return &entry.Story, nil
}

func (n *Narrator) ListLibrary(cmd *cobra.Command, args []string) error {
	entries, err := n.shelf.List()
	if err != nil {
		return err
	}

	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "📚 Your Story Shelf 📚")
	fmt.Fprintln(n.out)
	if len(entries) == 0 {
		colours.Warning.Fprintln(n.out, "🔍 No stories saved yet.")
		return nil
	}

	for i, e := range entries {
		fmt.Fprintf(n.out, "  %d. ", i+1)
		colours.Title.Fprintf(n.out, "%s", e.Story.Title)
		fmt.Fprintf(n.out, " (%d parts", len(e.Story.Parts))
		if e.Story.Mode != "" {
			fmt.Fprintf(n.out, ", %s", e.Story.Mode)
		}
		fmt.Fprintln(n.out, ")")
		fmt.Fprintf(n.out, "     🕐 %s", e.Timestamp.Format("2006-01-02 15:04"))
		if e.Feedback != nil {
			fmt.Fprintf(n.out, " | %s", strings.Repeat("⭐", e.Feedback.Rating))
		}
		fmt.Fprintln(n.out)
		colours.Info.Fprintf(n.out, "     ID: %s\n", e.ID)
		fmt.Fprintln(n.out)
	}
	colours.Success.Fprintf(n.out, "✨ %d stories on the shelf ✨\n", len(entries))
	return nil
}

func (n *Narrator) AddToLibrary(cmd *cobra.Command, args []string) error {
	s, err := story.Load(args[0])
	if err != nil {
		return err
	}
	id, err := n.shelf.Save(s)
	if err != nil {
		return err
	}
	colours.Success.Fprintf(n.out, "✅ Saved %q (ID: %s)\n", s.Title, id)
	return nil
}

func (n *Narrator) RemoveFromLibrary(cmd *cobra.Command, args []string) error {
	if err := n.shelf.Delete(args[0]); err != nil {
		return err
	}
	colours.Success.Fprintln(n.out, "🗑️  Story removed")
	return nil
}

func (n *Narrator) RateStory(cmd *cobra.Command, args []string) error {
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("rating must be a number: %w", err)
	}
	note := strings.Join(args[2:], " ")
	if err := n.shelf.UpdateFeedback(args[0], rating, note); err != nil {
		return err
	}
	colours.Success.Fprintf(n.out, "%s Thanks for the feedback!\n", strings.Repeat("⭐", rating))
	return nil
}

func (n *Narrator) inspector() (cache.Inspector, error) {
	inspector, ok := n.store.(cache.Inspector)
	if !ok {
		return nil, errors.New("the narration cache is disabled")
	}
	return inspector, nil
}

func (n *Narrator) ShowCacheStatus(cmd *cobra.Command, args []string) error {
	inspector, err := n.inspector()
	if err != nil {
		return err
	}
	stats, err := inspector.Stats(n.ctx)
	if err != nil {
		return fmt.Errorf("failed to get cache info: %w", err)
	}

	colours.Title.Fprintln(n.out, "📊 Narration Cache Status")
	colours.Info.Fprintf(n.out, "🗄️  Backend: %s\n", stats.Backend)
	colours.Info.Fprintf(n.out, "📁 Location: %s\n", stats.Location)
	colours.Info.Fprintf(n.out, "🎧 Narrations: %d\n", stats.Entries)
	colours.Info.Fprintf(n.out, "📏 Size: %d bytes\n", stats.Bytes)
	return nil
}

func (n *Narrator) ClearCache(cmd *cobra.Command, args []string) error {
	inspector, err := n.inspector()
	if err != nil {
		return err
	}
	if err := inspector.Clear(n.ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	colours.Success.Fprintln(n.out, "✅ Narration cache cleared")
	return nil
}

func (n *Narrator) ListVoices(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "🎤 Narrator Voices 🎤")
	fmt.Fprintln(n.out)
	for _, v := range tts.Voices {
		marker := "  "
		if v.Name == n.cfg.TTS.Voice {
			marker = "▶ "
		}
		fmt.Fprint(n.out, marker)
		colours.Title.Fprintf(n.out, "%-8s", v.Name)
		fmt.Fprintf(n.out, " %s\n", v.Description)
	}

	if voices, err := tts.ESpeakVoices(n.ctx); err == nil && len(voices) > 0 {
		fmt.Fprintln(n.out)
		colours.Info.Fprintf(n.out, "🗣️  %d eSpeak voices installed (use with tts.type=espeak)\n", len(voices))
	}
	return nil
}

func (n *Narrator) ShowSettings(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "⚙️ Narration Settings ⚙️")
	fmt.Fprintln(n.out)

	colours.Prompt.Fprintln(n.out, "🎤 Voice Settings:")
	fmt.Fprintf(n.out, "  • Generator: %s\n", n.cfg.TTS.Type)
	fmt.Fprintf(n.out, "  • Voice: %s\n", n.cfg.TTS.Voice)
	fmt.Fprintf(n.out, "  • Speed: %.2fx\n", n.Engine.Rate())
	fmt.Fprintf(n.out, "  • Volume: %.0f%%\n", n.cfg.TTS.Volume*100)
	fmt.Fprintf(n.out, "  • Retries: %d (starting at %s)\n", n.cfg.TTS.Retries, n.cfg.TTS.RetryDelay)
	fmt.Fprintln(n.out)

	colours.Prompt.Fprintln(n.out, "💾 Storage:")
	fmt.Fprintf(n.out, "  • Cache: %s\n", n.cfg.Cache.Type)
	fmt.Fprintf(n.out, "  • Library: %s\n", n.cfg.Library.Path)
	fmt.Fprintf(n.out, "  • Output: %s\n", n.cfg.Audio.Output)
	fmt.Fprintln(n.out)

	available := make([]string, 0)
	for _, g := range tts.AvailableGenerators(n.cfg.TTS.Generator()) {
		available = append(available, g.String())
	}
	colours.Info.Fprintf(n.out, "💡 Generators available here: %s\n", strings.Join(available, ", "))
	return nil
}
