package narration

// State is the playback state of the engine.
type State int

const (
	Idle State = iota
	Loading
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// Snapshot is a consistent view of the engine for the presentation layer.
type Snapshot struct {
	IsPlaying   bool
	IsPaused    bool
	IsLoading   bool
	HasBuffer   bool
	CurrentTime float64
	Duration    float64
	Rate        float64
}
