package narration

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestnarrator/internal/story/audio"
	"nestnarrator/internal/story/cache"
	"nestnarrator/internal/story/tts"
)

type fakeClock struct {
	mu  sync.Mutex
	now float64
}

func (c *fakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d float64) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

type fakeSource struct {
	buf     *audio.Buffer
	offset  float64
	rate    float64
	stopped bool
	onEnded func()
}

func (s *fakeSource) SetRate(rate float64) { s.rate = rate }
func (s *fakeSource) Stop()                { s.stopped = true }

type fakeDevice struct {
	mu      sync.Mutex
	sources []*fakeSource
}

func (d *fakeDevice) Start(buf *audio.Buffer, offset, rate float64, onEnded func()) (audio.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	src := &fakeSource{buf: buf, offset: offset, rate: rate, onEnded: onEnded}
	d.sources = append(d.sources, src)
	return src, nil
}

func (d *fakeDevice) last() *fakeSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sources) == 0 {
		return nil
	}
	return d.sources[len(d.sources)-1]
}

func (d *fakeDevice) attached() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.sources {
		if !s.stopped {
			n++
		}
	}
	return n
}

type fakeGenerator struct {
	mu    sync.Mutex
	audio []byte
	err   error
	calls int
}

func (g *fakeGenerator) Synthesize(context.Context, string, string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.audio, g.err
}

type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	saveErr error
	gets    int
	saves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) GetAudio(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	data, ok := s.data[key]
	return data, ok, nil
}

func (s *fakeStore) SaveAudio(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[key] = data
	return nil
}

// seconds of silence in the narration format
func pcmSeconds(seconds float64) []byte {
	return make([]byte, int(seconds*audio.NarrationSampleRate)*2)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type harness struct {
	engine *Engine
	clock  *fakeClock
	device *fakeDevice
	gen    *fakeGenerator
	store  *fakeStore
	memory *cache.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:  &fakeClock{now: 100},
		device: &fakeDevice{},
		gen:    &fakeGenerator{audio: pcmSeconds(10)},
		store:  newFakeStore(),
		memory: cache.NewMemory(),
	}
	h.engine = New(Options{
		Device:    h.device,
		Clock:     h.clock,
		Generator: h.gen,
		Memory:    h.memory,
		Store:     h.store,
		Logger:    quietLogger(),
	})
	return h
}

func (h *harness) load(t *testing.T, autoplay bool) {
	t.Helper()
	require.NoError(t, h.engine.FetchNarration(context.Background(), "Once upon a time.", "Kore", autoplay))
}

func TestPlayWithoutBufferIsNoop(t *testing.T) {
	h := newHarness(t)
	h.engine.Play()
	assert.Equal(t, Idle, h.engine.State())
	assert.Nil(t, h.device.last())
}

func TestFetchAutoplayStartsPlayback(t *testing.T) {
	h := newHarness(t)
	h.load(t, true)

	snap := h.engine.Snapshot()
	assert.True(t, snap.IsPlaying)
	assert.True(t, snap.HasBuffer)
	assert.InDelta(t, 10.0, snap.Duration, 1e-9)
	assert.Equal(t, 1, h.gen.calls)
	assert.Equal(t, 1, h.store.saves)
	assert.Equal(t, 1, h.memory.Len())
}

func TestFetchWithoutAutoplayLeavesIdleWithBuffer(t *testing.T) {
	h := newHarness(t)
	h.load(t, false)

	snap := h.engine.Snapshot()
	assert.False(t, snap.IsPlaying)
	assert.True(t, snap.HasBuffer)
	assert.Equal(t, 0.0, snap.CurrentTime)
	assert.Nil(t, h.device.last())
}

func TestCachePrecedenceMemoryFirst(t *testing.T) {
	h := newHarness(t)
	key := cache.Key("Kore", "Once upon a time.")
	memBuf, err := audio.DecodeNarration(pcmSeconds(2))
	require.NoError(t, err)
	h.memory.Put(key, memBuf)
	h.store.data[key] = pcmSeconds(5)

	h.load(t, true)

	assert.Same(t, memBuf, h.device.last().buf)
	assert.Equal(t, 0, h.store.gets)
	assert.Equal(t, 0, h.gen.calls)
}

func TestCachePersistentTierBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	key := cache.Key("Kore", "Once upon a time.")
	h.store.data[key] = pcmSeconds(3)

	h.load(t, true)

	assert.InDelta(t, 3.0, h.engine.Duration(), 1e-9)
	assert.Equal(t, 0, h.gen.calls)
	assert.Equal(t, 1, h.memory.Len())
}

func TestCorruptStoredAudioFallsBackToGenerator(t *testing.T) {
	h := newHarness(t)
	key := cache.Key("Kore", "Once upon a time.")
	h.store.data[key] = []byte{1, 2, 3}

	h.load(t, true)

	assert.Equal(t, 1, h.gen.calls)
	assert.InDelta(t, 10.0, h.engine.Duration(), 1e-9)
}

func TestStoreFailuresNeverReachCaller(t *testing.T) {
	h := newHarness(t)
	h.store.getErr = errors.New("disk on fire")
	h.store.saveErr = errors.New("disk on fire")

	h.load(t, true)

	assert.Equal(t, Playing, h.engine.State())
	assert.Equal(t, 1, h.gen.calls)
}

func TestFetchFailureLeavesIdleWithoutBuffer(t *testing.T) {
	h := newHarness(t)
	h.load(t, true)

	h.gen.err = &tts.UpstreamError{Status: 429}
	err := h.engine.FetchNarration(context.Background(), "A different story entirely.", "Kore", true)
	require.Error(t, err)
	assert.Equal(t, tts.KindRateLimited, tts.Classify(err))

	snap := h.engine.Snapshot()
	assert.False(t, snap.IsPlaying)
	assert.False(t, snap.IsLoading)
	assert.False(t, snap.HasBuffer)
	assert.Equal(t, 0, h.device.attached())
}

func TestMalformedGeneratedAudioIsNotPersisted(t *testing.T) {
	h := newHarness(t)
	h.gen.audio = []byte{1, 2, 3}

	err := h.engine.FetchNarration(context.Background(), "Odd.", "Kore", true)
	require.ErrorIs(t, err, audio.ErrMalformedAudio)
	assert.Equal(t, 0, h.store.saves)
	assert.Equal(t, 0, h.memory.Len())
	assert.Equal(t, Idle, h.engine.State())
}

func TestEmptyVoiceUsesDefault(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.FetchNarration(context.Background(), "Hello.", "", false))
	_, ok := h.memory.Get(cache.Key(tts.DefaultVoice, "Hello."))
	assert.True(t, ok)
}

func TestRateChangeContinuity(t *testing.T) {
	h := newHarness(t)
	h.load(t, true)

	h.clock.Advance(2)
	assert.InDelta(t, 2.0, h.engine.CurrentTime(), 1e-9)

	h.engine.SetRate(1.5)
	assert.InDelta(t, 2.0, h.engine.CurrentTime(), 1e-9)
	assert.Equal(t, 1.5, h.device.last().rate)

	h.clock.Advance(2)
	assert.InDelta(t, 5.0, h.engine.CurrentTime(), 1e-9)

	h.engine.SetRate(0.5)
	h.clock.Advance(2)
	assert.InDelta(t, 6.0, h.engine.CurrentTime(), 1e-9)
}

func TestSetRateIgnoresInvalidValues(t *testing.T) {
	h := newHarness(t)
	h.engine.SetRate(0)
	h.engine.SetRate(-1)
	assert.Equal(t, 1.0, h.engine.Rate())
}

func TestSetRateWhileIdleAppliesOnPlay(t *testing.T) {
	h := newHarness(t)
	h.load(t, false)
	h.engine.SetRate(2)
	h.engine.Play()

	assert.Equal(t, 2.0, h.device.last().rate)
	h.clock.Advance(1)
	assert.InDelta(t, 2.0, h.engine.CurrentTime(), 1e-9)
}

func TestPauseResumePreservesPosition(t *testing.T) {
	h := newHarness(t)
	h.load(t, true)
	h.engine.SetRate(1.25)

	h.clock.Advance(4)
	h.engine.Pause()
	assert.Equal(t, Paused, h.engine.State())
	assert.InDelta(t, 5.0, h.engine.CurrentTime(), 1e-9)
	assert.True(t, h.device.last().stopped)

	h.clock.Advance(1000)
	assert.InDelta(t, 5.0, h.engine.CurrentTime(), 1e-9)

	h.engine.Play()
	assert.InDelta(t, 5.0, h.engine.CurrentTime(), 1e-9)
	assert.InDelta(t, 5.0, h.device.last().offset, 1e-9)

	h.clock.Advance(2)
	assert.InDelta(t, 7.5, h.engine.CurrentTime(), 1e-9)
}

func TestPauseWhenNotPlayingIsNoop(t *testing.T) {
	h := newHarness(t)
	h.engine.Pause()
	assert.Equal(t, Idle, h.engine.State())

	h.load(t, false)
	h.engine.Pause()
	assert.Equal(t, Idle, h.engine.State())
}

func TestCurrentTimeClampsToDuration(t *testing.T) {
	h := newHarness(t)
	h.load(t, true)
	h.clock.Advance(60)
	assert.InDelta(t, 10.0, h.engine.CurrentTime(), 1e-9)
}

func TestPlayWhilePlayingRestartsWithOneSource(t *testing.T) {
	h := newHarness(t)
	h.load(t, true)
	h.clock.Advance(3)

	h.engine.Play()
	assert.Equal(t, 1, h.device.attached())
	assert.Equal(t, 0.0, h.engine.CurrentTime())
}

func TestNaturalEndNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	var ended int
	h.engine.SetOnEnded(func() { ended++ })
	h.load(t, true)

	src := h.device.last()
	src.onEnded()
	assert.Equal(t, 1, ended)
	assert.Equal(t, Idle, h.engine.State())
	assert.Equal(t, 0.0, h.engine.CurrentTime())

	h.engine.Stop()
	src.onEnded()
	assert.Equal(t, 1, ended)
}

func TestStopNeverNotifies(t *testing.T) {
	h := newHarness(t)
	var ended int
	h.engine.SetOnEnded(func() { ended++ })
	h.load(t, true)

	src := h.device.last()
	h.engine.Stop()
	src.onEnded()
	assert.Equal(t, 0, ended)
	assert.True(t, src.stopped)
	assert.Equal(t, Idle, h.engine.State())
}

func TestStaleSessionEndIsIgnored(t *testing.T) {
	h := newHarness(t)
	var ended int
	h.engine.SetOnEnded(func() { ended++ })
	h.load(t, true)

	old := h.device.last()
	h.engine.Pause()
	h.engine.Play()
	old.onEnded()

	assert.Equal(t, 0, ended)
	assert.Equal(t, Playing, h.engine.State())
}

func TestClearedSubscriberIsNotCalled(t *testing.T) {
	h := newHarness(t)
	var ended int
	h.engine.SetOnEnded(func() { ended++ })
	h.engine.SetOnEnded(nil)
	h.load(t, true)

	h.device.last().onEnded()
	assert.Equal(t, 0, ended)
	assert.Equal(t, Idle, h.engine.State())
}

func TestStopOnIdleIsIdempotent(t *testing.T) {
	h := newHarness(t)
	assert.NotPanics(t, func() {
		h.engine.Stop()
		h.engine.Stop()
	})
	assert.Equal(t, Idle, h.engine.State())
	assert.Equal(t, Snapshot{Rate: 1}, h.engine.Snapshot())
}

func TestStopFromPausedRewinds(t *testing.T) {
	h := newHarness(t)
	h.load(t, true)
	h.clock.Advance(3)
	h.engine.Pause()
	h.engine.Stop()

	assert.Equal(t, Idle, h.engine.State())
	h.engine.Play()
	assert.Equal(t, 0.0, h.device.last().offset)
}

func TestPreloadWhilePlayingOnlyWarmsCache(t *testing.T) {
	h := newHarness(t)
	h.load(t, true)
	playing := h.device.last()

	require.NoError(t, h.engine.FetchNarration(context.Background(), "The next part.", "Kore", false))

	assert.Equal(t, Playing, h.engine.State())
	assert.Same(t, playing, h.device.last())
	assert.False(t, playing.stopped)
	assert.Equal(t, 2, h.memory.Len())
}

// blockingGenerator parks every call until released, keyed by text.
type blockingGenerator struct {
	mu      sync.Mutex
	release map[string]chan struct{}
	started chan string
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{release: make(map[string]chan struct{}), started: make(chan string, 4)}
}

func (g *blockingGenerator) gate(text string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.release[text]
	if !ok {
		ch = make(chan struct{})
		g.release[text] = ch
	}
	return ch
}

func (g *blockingGenerator) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	gate := g.gate(text)
	g.started <- text
	select {
	case <-gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	seconds := 1.0
	if text == "new" {
		seconds = 2
	}
	return pcmSeconds(seconds), nil
}

func TestSupersededFetchDoesNotClobberNewerBuffer(t *testing.T) {
	h := newHarness(t)
	gen := newBlockingGenerator()
	h.engine.generator = gen

	oldDone := make(chan error, 1)
	go func() {
		oldDone <- h.engine.FetchNarration(context.Background(), "old", "Kore", true)
	}()
	require.Equal(t, "old", <-gen.started)

	newDone := make(chan error, 1)
	go func() {
		newDone <- h.engine.FetchNarration(context.Background(), "new", "Kore", true)
	}()
	require.Equal(t, "new", <-gen.started)

	close(gen.gate("new"))
	require.NoError(t, <-newDone)
	assert.Equal(t, Playing, h.engine.State())
	assert.InDelta(t, 2.0, h.engine.Duration(), 1e-9)

	close(gen.gate("old"))
	require.NoError(t, <-oldDone)

	assert.Equal(t, Playing, h.engine.State())
	assert.InDelta(t, 2.0, h.engine.Duration(), 1e-9)
	assert.Equal(t, 1, h.device.attached())
	_, cached := h.memory.Get(cache.Key("Kore", "old"))
	assert.True(t, cached)
}

func TestStopWhileLoadingAbandonsPlayback(t *testing.T) {
	h := newHarness(t)
	gen := newBlockingGenerator()
	h.engine.generator = gen

	done := make(chan error, 1)
	go func() {
		done <- h.engine.FetchNarration(context.Background(), "old", "Kore", true)
	}()
	<-gen.started
	assert.True(t, h.engine.Snapshot().IsLoading)

	h.engine.Stop()
	close(gen.gate("old"))
	require.NoError(t, <-done)

	assert.Equal(t, Idle, h.engine.State())
	assert.False(t, h.engine.Snapshot().HasBuffer)
	assert.Nil(t, h.device.last())
}
