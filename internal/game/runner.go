package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Submitter stores the result of a finished session.
type Submitter interface {
	Submit(ctx context.Context, r Result) error
}

type Config struct {
	Submitter     Submitter
	NewTickerFunc func(d time.Duration) Ticker
	Now           func() time.Time
	// Pick returns a palette color, uniformly at random by default.
	Pick func() Color
	// OnChange is called after every transition.
	OnChange func(s State)
	// OnSubmit is called with the outcome of every submission.
	OnSubmit func(r Result, err error)
}

// Runner plays sessions in real time: it owns the countdown and color refresh tickers and sends
// the result of each finished session. Close releases everything the runner started.
type Runner struct {
	submitter Submitter
	newTicker func(d time.Duration) Ticker
	now       func() time.Time
	pick      func() Color
	onChange  func(s State)
	onSubmit  func(r Result, err error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(c Config) *Runner {
	r := &Runner{
		submitter: c.Submitter,
		newTicker: c.NewTickerFunc,
		now:       c.Now,
		pick:      c.Pick,
		onChange:  c.OnChange,
		onSubmit:  c.OnSubmit,
	}

	if r.newTicker == nil {
		r.newTicker = newTimeTicker
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.pick == nil {
		r.pick = func() Color { return Palette[rand.IntN(len(Palette))] }
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// Play starts s, or restarts it when finished, and runs it until the countdown is over. A
// canceled ctx abandons the session without submitting anything. Clicks are read from clicks
// until it is closed.
func (r *Runner) Play(ctx context.Context, s State, clicks <-chan struct{}) (State, error) {
	switch s.Status {
	case StatusReady:
		s = r.apply(s, Start{Target: r.pick(), Current: r.pick(), At: r.now()})
	case StatusFinished:
		s = r.apply(s, Restart{Target: r.pick(), Current: r.pick(), At: r.now()})
	default:
		return s, fmt.Errorf("game: session is already %s", s.Status)
	}

	s, err := r.loop(ctx, s, clicks)
	if err != nil {
		return s, err
	}

	if res, ok := s.Result(); ok {
		r.submit(res)
	}

	return s, nil
}

// loop returns once s leaves playing. Both tickers are stopped on every return path.
func (r *Runner) loop(ctx context.Context, s State, clicks <-chan struct{}) (State, error) {
	countdown := r.newTicker(TickPeriod)
	defer countdown.Stop()

	refresh := r.newTicker(RefreshPeriod)
	defer refresh.Stop()

	for s.Status == StatusPlaying {
		select {
		case <-ctx.Done():
			return s, ctx.Err()

		case <-r.ctx.Done():
			return s, fmt.Errorf("game: runner closed")

		case <-countdown.C():
			s = r.apply(s, Tick{})

		case <-refresh.C():
			s = r.apply(s, Refresh{Color: r.pick(), At: r.now()})

		case _, ok := <-clicks:
			if !ok {
				clicks = nil
				continue
			}
			s = r.apply(s, Click{At: r.now()})
		}
	}

	return s, nil
}

func (r *Runner) apply(s State, e Event) State {
	s = Apply(s, e)
	if r.onChange != nil {
		r.onChange(s)
	}

	return s
}

// submit sends res in the background. A failure is logged and reported, the session stays
// finished.
func (r *Runner) submit(res Result) {
	if r.submitter == nil {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		err := r.submitter.Submit(r.ctx, res)
		if err != nil {
			slog.ErrorContext(r.ctx, "game: submit result failed",
				"score", res.Score,
				"error", err,
			)
		}

		if r.onSubmit != nil {
			r.onSubmit(res, err)
		}
	}()
}

// Wait blocks until pending submissions are done.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels pending submissions and waits for them to return.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}
