package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/phanxgames/kalcame/eventloop"
)

// State is the negotiation state of a Session.
type State uint8

const (
	Requesting State = iota // waiting for the device to answer
	Granted                 // tracks are live and exposed through Handle
	Denied                  // refused; ErrorMessage explains why
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Requesting:
		return "requesting"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Option configures Open.
type Option func(*options)

type options struct {
	constraints Constraints
	timeout     time.Duration
	clock       clock.Clock
}

// WithConstraints replaces DefaultConstraints.
func WithConstraints(c Constraints) Option {
	return func(o *options) { o.constraints = c }
}

// WithTimeout denies the session with ErrTimeout if the device has not
// answered within d. Zero (the default) waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithClock sets the clock used for the timeout.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// Session is one negotiation for camera access and the owner of whatever
// it is granted. State, Handle and ErrorMessage must be read on the
// goroutine that drains the poster; Close may be called from the same
// goroutine only.
type Session struct {
	id     string
	poster eventloop.Poster
	cancel context.CancelFunc
	timer  clock.Timer

	state  State
	handle *Handle
	err    error

	// mu guards the handoff between the negotiation goroutine and Close.
	mu       sync.Mutex
	closed   bool
	settled  bool
	inflight []Track
	done     chan struct{}
}

// Open starts negotiating with dev and returns immediately with a session
// in the Requesting state. The outcome is applied on a later turn of the
// loop behind poster.
func Open(ctx context.Context, dev Device, poster eventloop.Poster, opts ...Option) *Session {
	o := options{
		constraints: DefaultConstraints(),
		clock:       clock.WallClock,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:     uuid.NewString(),
		poster: poster,
		cancel: cancel,
		state:  Requesting,
		done:   make(chan struct{}),
	}
	logger.Debugf("session %s: requesting %s camera %dx%d", s.id, o.constraints.Facing, o.constraints.Width, o.constraints.Height)

	if o.timeout > 0 {
		s.timer = o.clock.AfterFunc(o.timeout, func() {
			poster.Post(func() {
				s.settle(errors.Annotatef(ErrTimeout, "no answer after %v", o.timeout))
			})
		})
	}

	go s.negotiate(ctx, dev, o.constraints)
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// State returns the current negotiation state.
func (s *Session) State() State { return s.state }

// Handle returns the live track set. It is non-nil iff State is Granted.
func (s *Session) Handle() *Handle { return s.handle }

// Err returns the refusal reason when State is Denied.
func (s *Session) Err() error { return s.err }

// ErrorMessage returns a human-readable refusal reason when State is
// Denied, and "" otherwise.
func (s *Session) ErrorMessage() string {
	if s.state != Denied || s.err == nil {
		return ""
	}
	return s.err.Error()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Done is closed once the negotiation goroutine has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops every track the session holds or will receive. It is safe to
// call more than once and in any state. A grant that arrives after Close
// is stopped immediately and never exposed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.inflight
	s.inflight = nil
	s.mu.Unlock()

	s.cancel()
	if s.timer != nil {
		s.timer.Stop()
	}
	if len(pending) > 0 {
		logger.Debugf("session %s: stopping %d undelivered track(s)", s.id, len(pending))
		stopTracks(pending)
	}
	if s.handle != nil {
		s.handle.stop()
	}
	logger.Debugf("session %s: closed in state %s", s.id, s.state)
}

func (s *Session) negotiate(ctx context.Context, dev Device, c Constraints) {
	defer close(s.done)

	tracks, err := dev.Acquire(ctx, c)

	s.mu.Lock()
	if s.closed || s.settled {
		s.mu.Unlock()
		if len(tracks) > 0 {
			logger.Debugf("session %s: discarding %d late track(s)", s.id, len(tracks))
			stopTracks(tracks)
		}
		return
	}
	s.inflight = tracks
	s.mu.Unlock()

	s.poster.Post(func() { s.settle(err) })
}

// settle applies the negotiation outcome. Tracks come from inflight rather
// than the closure so Close can claim them if the loop never runs again.
func (s *Session) settle(err error) {
	s.mu.Lock()
	if s.closed || s.settled {
		tracks := s.inflight
		s.inflight = nil
		s.mu.Unlock()
		stopTracks(tracks)
		return
	}
	s.settled = true
	tracks := s.inflight
	s.inflight = nil
	s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}

	switch {
	case err != nil:
		stopTracks(tracks)
		s.cancel()
		s.deny(err)
	case len(tracks) == 0:
		s.deny(errors.Annotate(ErrNotFound, "device returned no tracks"))
	default:
		s.state = Granted
		s.handle = &Handle{tracks: tracks}
		logger.Infof("session %s: granted %q", s.id, tracks[0].Label())
	}
}

func (s *Session) deny(err error) {
	s.state = Denied
	s.err = denied(err)
	logger.Warningf("session %s: denied: %v", s.id, err)
}
