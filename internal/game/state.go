// Package game implements the Speed Color session: a player watches a color change every second
// and clicks whenever it matches the target color, faster clicks scoring more.
package game

import (
	"slices"
	"time"

	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/scoring"
)

const (
	// Duration is the number of countdown ticks a session lasts.
	Duration = 30

	TickPeriod    = time.Second
	RefreshPeriod = time.Second
)

type Status int

const (
	StatusReady Status = iota
	StatusPlaying
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

type Color string

const (
	Red    Color = "red"
	Blue   Color = "blue"
	Green  Color = "green"
	Yellow Color = "yellow"
	Purple Color = "purple"
	Pink   Color = "pink"
)

var Palette = []Color{Red, Blue, Green, Yellow, Purple, Pink}

// State is one session. It is a plain value: transitions return a new State and never modify
// the one they were given.
type State struct {
	Status Status
	Score  int64
	Level  int
	Target Color
	// Current is the color on display since ShownAt.
	Current       Color
	ShownAt       time.Time
	TimeLeft      int
	ReactionTimes []time.Duration
	CorrectClicks int
	TotalClicks   int
	// BestTime is the fastest correct reaction, zero until there is one.
	BestTime time.Duration
}

func New() State {
	return State{
		Status:   StatusReady,
		Level:    1,
		TimeLeft: Duration,
	}
}

type Event interface {
	apply(s State) State
}

// Start begins a session from ready.
type Start struct {
	Target  Color
	Current Color
	At      time.Time
}

// Restart begins a new session from finished, going straight to playing.
type Restart struct {
	Target  Color
	Current Color
	At      time.Time
}

// Tick is one step of the countdown.
type Tick struct{}

// Refresh replaces the color on display.
type Refresh struct {
	Color Color
	At    time.Time
}

type Click struct {
	At time.Time
}

// Apply returns the state after e. Events that make no sense in the current status are ignored.
func Apply(s State, e Event) State {
	return e.apply(s)
}

func (e Start) apply(s State) State {
	if s.Status != StatusReady {
		return s
	}

	return begin(s, e.Target, e.Current, e.At)
}

func (e Restart) apply(s State) State {
	if s.Status != StatusFinished {
		return s
	}

	return begin(s, e.Target, e.Current, e.At)
}

func begin(s State, target, current Color, at time.Time) State {
	s.Status = StatusPlaying
	s.Target = target
	s.Current = current
	s.ShownAt = at
	s.TimeLeft = Duration
	s.Score = 0
	s.ReactionTimes = nil
	s.CorrectClicks = 0
	s.TotalClicks = 0
	s.BestTime = 0
	return s
}

func (Tick) apply(s State) State {
	if s.Status != StatusPlaying {
		return s
	}

	if s.TimeLeft <= 1 {
		s.Status = StatusFinished
		s.TimeLeft = 0
		return s
	}

	s.TimeLeft--
	return s
}

func (e Refresh) apply(s State) State {
	if s.Status != StatusPlaying {
		return s
	}

	s.Current = e.Color
	s.ShownAt = e.At
	return s
}

func (e Click) apply(s State) State {
	if s.Status != StatusPlaying {
		return s
	}

	s.TotalClicks++
	if s.Current != s.Target {
		return s
	}

	rt := e.At.Sub(s.ShownAt)
	s.CorrectClicks++
	s.Score += scoring.ClickPoints(rt)
	s.ReactionTimes = append(slices.Clip(s.ReactionTimes), rt)
	if s.BestTime == 0 || rt < s.BestTime {
		s.BestTime = rt
	}

	return s
}

// Result is what a finished session submits as a record.
type Result struct {
	Score        int64
	GameType     string
	ReactionTime float64
	Level        int
	Accuracy     float64
}

// Result reports the record of a finished session. Sessions that scored nothing have none.
func (s State) Result() (Result, bool) {
	if s.Status != StatusFinished || s.Score <= 0 {
		return Result{}, false
	}

	ms := make([]int64, 0, len(s.ReactionTimes))
	for _, rt := range s.ReactionTimes {
		ms = append(ms, rt.Milliseconds())
	}

	return Result{
		Score:        s.Score,
		GameType:     domain.GameTypeSpeedColor,
		ReactionTime: float64(scoring.Mean(ms)),
		Level:        s.Level,
		Accuracy:     scoring.Accuracy(s.CorrectClicks, s.TotalClicks),
	}, true
}
