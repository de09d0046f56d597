// Package playback republishes the narration clock at display refresh cadence.
package playback

import (
	"sync"
	"time"
)

// DefaultInterval is the terminal refresh cadence.
const DefaultInterval = 50 * time.Millisecond

// Source is the clock being sampled.
type Source interface {
	CurrentTime() float64
	Duration() float64
	SetRate(rate float64)
	Rate() float64
}

// Frame is one published sample.
type Frame struct {
	CurrentTime float64
	Duration    float64
	Rate        float64
}

// Adapter polls a Source while active. Inactive adapters run no loop at all.
type Adapter struct {
	src      Source
	interval time.Duration

	mu          sync.Mutex
	frame       Frame
	active      bool
	gen         uint64
	stop        chan struct{}
	done        chan struct{}
	subscribers map[uint64]func(Frame)
	nextSub     uint64
}

func NewAdapter(src Source, interval time.Duration) *Adapter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Adapter{
		src:         src,
		interval:    interval,
		frame:       Frame{Rate: src.Rate()},
		subscribers: make(map[uint64]func(Frame)),
	}
}

// Subscribe registers fn for every published frame. The returned func removes it.
func (a *Adapter) Subscribe(fn func(Frame)) (cancel func()) {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subscribers[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subscribers, id)
		a.mu.Unlock()
	}
}

// Frame returns the latest published sample.
func (a *Adapter) Frame() Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frame
}

func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// SetActive starts the polling loop, or stops it and publishes a zero position.
// Deactivation waits for the loop to exit, so it must not be called from a
// subscriber.
func (a *Adapter) SetActive(active bool) {
	a.mu.Lock()
	if active == a.active {
		a.mu.Unlock()
		return
	}
	a.active = active
	a.gen++

	if active {
		a.stop = make(chan struct{})
		a.done = make(chan struct{})
		go a.loop(a.gen, a.stop, a.done)
		a.mu.Unlock()
		return
	}

	stop, done := a.stop, a.done
	a.stop, a.done = nil, nil
	a.mu.Unlock()

	close(stop)
	<-done

	a.mu.Lock()
	a.frame.CurrentTime = 0
	a.frame.Duration = a.src.Duration()
	frame := a.frame
	subs := a.subscribersLocked()
	a.mu.Unlock()
	publish(subs, frame)
}

// SetRate updates the engine and the cached rate together.
func (a *Adapter) SetRate(rate float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.src.SetRate(rate)
	a.frame.Rate = a.src.Rate()
}

func (a *Adapter) Rate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frame.Rate
}

func (a *Adapter) loop(gen uint64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.sample(gen)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.sample(gen)
		}
	}
}

func (a *Adapter) sample(gen uint64) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.frame.CurrentTime = a.src.CurrentTime()
	a.frame.Duration = a.src.Duration()
	frame := a.frame
	subs := a.subscribersLocked()
	a.mu.Unlock()

	publish(subs, frame)
}

func (a *Adapter) subscribersLocked() []func(Frame) {
	subs := make([]func(Frame), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func publish(subs []func(Frame), frame Frame) {
	for _, fn := range subs {
		fn(frame)
	}
}
