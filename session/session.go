// Package session drives a trustee: it polls the board, steps the trustee
// with the new entries and posts what the trustee produced.
//
// A session owns its trustee. The state of the trustee only moves forward
// once its output has been posted: if the board cannot be reached, the
// trustee goes back to where it was and the same entries are stepped again
// on the next tick.
package session

import (
	"context"
	"time"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/board"
	"go.dedis.ch/conclave/message"
	"go.dedis.ch/conclave/trustee"
)

// Defaults of Options.
const (
	DefaultInterval   = 2 * time.Second
	DefaultMaxBackoff = time.Minute
)

// Options of a session.
type Options struct {
	// Interval between two polls of the board.
	Interval time.Duration
	// MaxBackoff is the longest delay between two polls after transport
	// errors.
	MaxBackoff time.Duration
	// OnAction is called with every action of the trustee, once the step
	// that produced it is committed.
	OnAction func(trustee.Action)
	// StopOnComplete makes Run return once the trustee is complete.
	StopOnComplete bool
	// Metrics default to NopMetrics.
	Metrics *Metrics
}

// Session runs one trustee against one board.
type Session struct {
	trustee *trustee.Trustee
	board   board.Board
	opts    Options
	metrics *boardMetrics
	notify  chan struct{}
}

// New returns a session of the trustee on the board.
func New(t *trustee.Trustee, b board.Board, opts Options) *Session {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxBackoff < opts.Interval {
		opts.MaxBackoff = DefaultMaxBackoff
		if opts.MaxBackoff < opts.Interval {
			opts.MaxBackoff = opts.Interval
		}
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics()
	}
	return &Session{
		trustee: t,
		board:   b,
		opts:    opts,
		metrics: opts.Metrics.forBoard(t.Board()),
		notify:  make(chan struct{}, 1),
	}
}

// Trustee returns the trustee of the session.
func (s *Session) Trustee() *trustee.Trustee {
	return s.trustee
}

// Notify wakes up a running session before its next poll.
func (s *Session) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Tick polls the board once, steps the trustee and posts its output. It
// returns the number of posted messages. If it fails, the trustee is left
// in the state it had before.
func (s *Session) Tick(ctx context.Context) (int, error) {
	name := s.trustee.Board()
	entries, err := s.board.GetMessages(ctx, name, s.trustee.Watermark())
	if err != nil {
		s.metrics.transportErrors.Add(1)
		return 0, err
	}

	snap := s.trustee.Snapshot()
	out, actions, err := s.trustee.Step(entries)
	if err != nil {
		return 0, err
	}
	if len(out) > 0 {
		msgs := make([]message.Message, len(out))
		for i, m := range out {
			msgs[i] = *m
		}
		if _, err := s.board.SendMessages(ctx, name, msgs); err != nil {
			s.trustee.Restore(snap)
			s.metrics.transportErrors.Add(1)
			return 0, err
		}
		s.metrics.messagesSent.Add(float64(len(out)))
		log.Lvlf3("%s: %s posted %d messages", name, s.trustee.Name(), len(out))
	}
	s.metrics.steps.Add(1)
	s.metrics.phase.Set(float64(s.trustee.Phase()))

	for _, a := range actions {
		if a.Kind == trustee.CryptographicFault {
			s.metrics.faults.Add(1)
		}
		if s.opts.OnAction != nil {
			s.opts.OnAction(a)
		}
	}
	return len(out), nil
}

// Run ticks until the context is done, the trustee raised a fault or a
// configuration error happened. Transport errors are retried with a
// growing delay. If the options ask for it, Run also returns once the
// trustee is complete.
func (s *Session) Run(ctx context.Context) error {
	name := s.trustee.Board()
	delay := s.opts.Interval
	for {
		posted, err := s.Tick(ctx)
		switch {
		case err == nil:
			delay = s.opts.Interval
			if posted > 0 {
				// Read our own messages back right away.
				delay = 0
			}
		case ctx.Err() != nil:
			return nil
		case xerrors.Is(err, conclave.ErrTransport):
			delay = s.backoff(delay)
			log.Warnf("%s: %s retries in %v: %v", name, s.trustee.Name(), delay, err)
		default:
			log.Errorf("%s: %s stops: %v", name, s.trustee.Name(), err)
			return err
		}

		if f := s.trustee.Fault(); f != nil {
			return f
		}
		if s.opts.StopOnComplete && s.trustee.Phase() == trustee.Complete {
			log.Lvlf1("%s: %s is complete", name, s.trustee.Name())
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (s *Session) backoff(delay time.Duration) time.Duration {
	delay *= 2
	if delay < s.opts.Interval {
		delay = s.opts.Interval
	}
	if delay > s.opts.MaxBackoff {
		delay = s.opts.MaxBackoff
	}
	return delay
}
