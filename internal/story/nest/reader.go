package nest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nestnarrator/internal/cli/scheme/colours"
	"nestnarrator/internal/domain/story"
	"nestnarrator/internal/story/highlight"
	"nestnarrator/internal/story/narration"
	"nestnarrator/internal/story/playback"
)

const (
	rateStep = 0.25
	minRate  = 0.5
	maxRate  = 2.0
)

// ReadOptions tune a reading session.
type ReadOptions struct {
	Voice string
	// Sleep moves to the next part on its own when a part finishes.
	Sleep bool
}

// session is one story being read. Parts change only on the Read loop goroutine.
type session struct {
	n     *Narrator
	story *story.Full
	opts  ReadOptions

	mu     sync.Mutex
	part   int
	gen    uint64
	window highlight.Window
	text   string

	advance  chan int
	finished chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// Read narrates s part by part until the last part ends, the reader quits or ctx is
// done. Keyboard commands are read from the narrator's input.
func (n *Narrator) Read(ctx context.Context, s *story.Full, opts ReadOptions) error {
	if err := s.Validate(); err != nil {
		return err
	}

	sess := &session{
		n:        n,
		story:    s,
		opts:     opts,
		part:     -1,
		advance:  make(chan int, 1),
		finished: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(ctx)
	n.Engine.SetOnEnded(sess.ended)
	unsubscribe := n.adapter.Subscribe(sess.render)
	defer func() {
		cancel()
		sess.wg.Wait()
		n.Engine.SetOnEnded(nil)
		unsubscribe()
		n.adapter.SetActive(false)
		n.Engine.Stop()
	}()

	fmt.Fprintln(n.out)
	colours.Title.Fprintf(n.out, "📖 %s\n", s.Title)
	if opts.Sleep {
		colours.Info.Fprintln(n.out, "😴 Sleep mode: parts follow one another automatically")
	}
	colours.Info.Fprintln(n.out, "💡 p pause/resume · s stop · n next · b back · + faster · - slower · q quit")

	commands := readCommands(ctx, n.in)
	sess.start(ctx, 0)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.finished:
			fmt.Fprintln(n.out)
			colours.Success.Fprintln(n.out, "✅ Story finished! 🌟")
			colours.Prompt.Fprintln(n.out, "😴 Sleep tight! 🌙")
			return nil
		case i := <-sess.advance:
			sess.start(ctx, i)
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if quit := sess.handle(ctx, cmd); quit {
				fmt.Fprintln(n.out)
				colours.Warning.Fprintln(n.out, "👋 Maybe next time! Sweet dreams! 🌙")
				return nil
			}
		}
	}
}

// start shows part i and narrates it. The fetch runs in the background so commands
// keep flowing while it loads.
func (s *session) start(ctx context.Context, i int) {
	if i < 0 || i >= len(s.story.Parts) {
		return
	}

	s.n.adapter.SetActive(false)

	text := s.story.NarrationText(i)
	s.mu.Lock()
	s.part = i
	s.gen++
	gen := s.gen
	s.text = text
	s.window = highlight.Window{}
	s.mu.Unlock()

	fmt.Fprintln(s.n.out)
	colours.Prompt.Fprintf(s.n.out, "~ Part %d of %d ~\n", i+1, len(s.story.Parts))
	fmt.Fprintln(s.n.out, s.story.Parts[i].Text)
	if s.story.IsLastPart(i) {
		s.showExtras()
	}
	colours.Info.Fprintln(s.n.out, "🎧 Preparing narration...")

	s.wg.Add(1)
	go s.narrate(ctx, gen, i, text)
}

func (s *session) narrate(ctx context.Context, gen uint64, i int, text string) {
	defer s.wg.Done()

	err := s.n.Engine.FetchNarration(ctx, text, s.opts.Voice, true)
	if !s.current(gen) {
		return
	}
	if err != nil {
		if ctx.Err() == nil {
			colours.Error.Fprintf(s.n.out, "\n❌ %s\n", FriendlyError(err))
		}
		return
	}
	if s.n.Engine.State() == narration.Playing {
		s.n.adapter.SetActive(true)
	}

	if next := i + 1; next < len(s.story.Parts) {
		if err := s.n.Engine.FetchNarration(ctx, s.story.NarrationText(next), s.opts.Voice, false); err != nil {
			logrus.WithError(err).WithField("part", next).Warn("Preload failed")
		}
	}
}

func (s *session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

func (s *session) currentPart() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.part
}

// ended runs when a part's narration finishes on its own.
func (s *session) ended() {
	s.n.adapter.SetActive(false)

	i := s.currentPart()
	if s.story.IsLastPart(i) {
		s.once.Do(func() { close(s.finished) })
		return
	}
	if !s.opts.Sleep {
		colours.Info.Fprintln(s.n.out, "\n⏭️  Press n for the next part")
		return
	}

	time.AfterFunc(s.n.advanceDelay, func() {
		if s.currentPart() != i {
			return
		}
		select {
		case s.advance <- i + 1:
		default:
		}
	})
}

// handle applies one keyboard command and reports whether the reader quit.
func (s *session) handle(ctx context.Context, cmd string) bool {
	e := s.n.Engine
	switch cmd {
	case "":
	case "p", "pause":
		s.toggle(ctx)
	case "s", "stop":
		s.n.adapter.SetActive(false)
		e.Stop()
		colours.Warning.Fprintln(s.n.out, "\n⏹️  Stopped")
	case "n", "next":
		if i := s.currentPart(); !s.story.IsLastPart(i) {
			e.Stop()
			s.start(ctx, i+1)
		}
	case "b", "back":
		if i := s.currentPart(); i > 0 {
			e.Stop()
			s.start(ctx, i-1)
		}
	case "+", "faster":
		s.n.adapter.SetRate(clampRate(e.Rate() + rateStep))
		colours.Info.Fprintf(s.n.out, "\n⏩ Speed %.2fx\n", e.Rate())
	case "-", "slower":
		s.n.adapter.SetRate(clampRate(e.Rate() - rateStep))
		colours.Info.Fprintf(s.n.out, "\n⏪ Speed %.2fx\n", e.Rate())
	case "q", "quit":
		return true
	default:
		colours.Info.Fprintln(s.n.out, "\nℹ️  Use p, s, n, b, +, - or q")
	}
	return false
}

// toggle pauses, resumes, or restarts narration of the current part.
func (s *session) toggle(ctx context.Context) {
	e := s.n.Engine
	snap := e.Snapshot()
	switch {
	case snap.IsPaused:
		e.Play()
		s.n.adapter.SetActive(true)
		colours.Success.Fprintln(s.n.out, "\n▶️  Resumed")
	case snap.IsPlaying:
		s.n.adapter.SetActive(false)
		e.Pause()
		colours.Warning.Fprintln(s.n.out, "\n⏸️  Paused")
	case snap.IsLoading:
	default:
		s.start(ctx, s.currentPart())
	}
}

func clampRate(rate float64) float64 {
	if rate < minRate {
		return minRate
	}
	if rate > maxRate {
		return maxRate
	}
	return rate
}

func (s *session) showExtras() {
	st := s.story
	if st.Lesson != "" {
		colours.Info.Fprintf(s.n.out, "💡 Lesson: %s\n", st.Lesson)
	}
	if st.Joke != "" {
		colours.Info.Fprintf(s.n.out, "😄 Joke: %s\n", st.Joke)
	}
	if st.VocabWord.Word != "" {
		colours.Info.Fprintf(s.n.out, "📘 Word of the day: %s (%s)\n", st.VocabWord.Word, st.VocabWord.Definition)
	}
	if st.TomorrowHook != "" {
		colours.Info.Fprintf(s.n.out, "🌅 %s\n", st.TomorrowHook)
	}
	if st.RewardBadge.Title != "" {
		colours.Success.Fprintf(s.n.out, "%s %s: %s\n", st.RewardBadge.Emoji, st.RewardBadge.Title, st.RewardBadge.Description)
	}
}

// render draws the active sentence with the spoken word highlighted.
func (s *session) render(f playback.Frame) {
	s.mu.Lock()
	if s.window.Duration != f.Duration {
		s.window = highlight.Partition(s.text, f.Duration)
	}
	w := s.window
	s.mu.Unlock()

	line := renderLine(w, w.Locate(f.CurrentTime))
	fmt.Fprintf(s.n.out, "\r\033[2K%s %s", line, colours.Dim.Sprintf("%s / %s %.2fx",
		clock(f.CurrentTime), clock(f.Duration), f.Rate))
}

// lineWords bounds how many words around the active one are drawn.
const lineWords = 6

func renderLine(w highlight.Window, pos highlight.Position) string {
	if !pos.Active() {
		return ""
	}
	tokens := w.Sentences[pos.Sentence].Tokens
	from, to := 0, len(tokens)
	if len(tokens) > 4*lineWords {
		from = max(0, pos.Token-2*lineWords)
		to = min(len(tokens), pos.Token+2*lineWords+1)
	}

	var b strings.Builder
	for i := from; i < to; i++ {
		text := strings.ReplaceAll(tokens[i].Text, "\n", " ")
		if i == pos.Token && !tokens[i].Space {
			b.WriteString(colours.Word.Sprint(text))
		} else {
			b.WriteString(colours.Sentence.Sprint(text))
		}
	}
	return strings.TrimSpace(b.String())
}

func clock(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// readCommands turns input lines into trimmed lower-case commands.
func readCommands(ctx context.Context, in io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case out <- strings.ToLower(strings.TrimSpace(scanner.Text())):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
