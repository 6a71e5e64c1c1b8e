// Package camera negotiates access to a video capture device and owns the
// resulting live tracks.
//
// A [Device] is the platform media-access boundary: one asynchronous request
// that yields a set of live [Track]s or a refusal. A [Session] wraps a single
// such request. It starts in [Requesting], settles exactly once into
// [Granted] or [Denied], and stops every track it ever received when closed:
//
//	sess := camera.Open(ctx, dev, queue)
//	defer sess.Close()
//	// ... each frame, on the UI goroutine:
//	queue.Drain()
//	if h := sess.Handle(); h != nil {
//		frame, ok := h.LatestFrame()
//		// ...
//	}
//
// Results are delivered through an [eventloop.Poster], so state changes are
// observed on the goroutine that drains the queue.
package camera

import (
	"context"
	"image"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("kalcame.camera")

// Access failures. A denied session's error satisfies errors.Is for
// ErrAccessDenied and for the specific reason when one is known.
const (
	ErrAccessDenied = errors.ConstError("camera access denied")
	ErrPermission   = errors.ConstError("camera permission refused")
	ErrNotFound     = errors.ConstError("no compatible camera found")
	ErrBusy         = errors.ConstError("camera is in use by another session")
	ErrTimeout      = errors.ConstError("camera request timed out")
)

// Facing is an advisory hint for which physical camera to use.
type Facing string

const (
	FacingEnvironment Facing = "environment" // rear camera
	FacingUser        Facing = "user"        // front camera
)

// Constraints describe the requested capture. Audio is never requested.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
	FPS    float64
}

// DefaultConstraints requests the environment-facing camera at 1280x720.
func DefaultConstraints() Constraints {
	return Constraints{
		Facing: FacingEnvironment,
		Width:  1280,
		Height: 720,
		FPS:    30,
	}
}

// Frame is a decoded video frame. Seq increases with every new frame a
// track produces; consumers compare it to skip re-uploading unchanged
// frames.
type Frame struct {
	Seq   uint64
	Image *image.RGBA
}

// Track is one live media track.
type Track interface {
	// ID uniquely identifies the track.
	ID() string
	// Label is a human-readable device description.
	Label() string
	// LatestFrame returns the most recent frame, or false if none has
	// arrived yet or the track is stopped.
	LatestFrame() (Frame, bool)
	// Stop releases the underlying hardware. Implementations must tolerate
	// repeated calls.
	Stop()
	// Live reports whether the track has not been stopped.
	Live() bool
}

// Device acquires tracks. Acquire may block until the platform (or the
// user, answering a permission prompt) decides; it should return promptly
// once ctx is cancelled. On refusal it returns an error wrapping one of
// ErrPermission, ErrNotFound or ErrBusy when the reason is known.
type Device interface {
	Acquire(ctx context.Context, c Constraints) ([]Track, error)
}

// DeviceFunc adapts a function to the Device interface.
type DeviceFunc func(ctx context.Context, c Constraints) ([]Track, error)

// Acquire calls f.
func (f DeviceFunc) Acquire(ctx context.Context, c Constraints) ([]Track, error) {
	return f(ctx, c)
}

// Handle is the live track set of a granted session. It is borrowed by
// renderers; only the owning Session stops it.
type Handle struct {
	tracks  []Track
	stopped bool
}

// Tracks returns the granted tracks. The slice must not be mutated.
func (h *Handle) Tracks() []Track { return h.tracks }

// Video returns the first track, or nil.
func (h *Handle) Video() Track {
	if len(h.tracks) == 0 {
		return nil
	}
	return h.tracks[0]
}

// LatestFrame returns the newest frame of the video track.
func (h *Handle) LatestFrame() (Frame, bool) {
	if h == nil || h.stopped {
		return Frame{}, false
	}
	if v := h.Video(); v != nil {
		return v.LatestFrame()
	}
	return Frame{}, false
}

// Live reports whether any track is still running.
func (h *Handle) Live() bool {
	if h == nil || h.stopped {
		return false
	}
	for _, t := range h.tracks {
		if t.Live() {
			return true
		}
	}
	return false
}

func (h *Handle) stop() {
	if h.stopped {
		return
	}
	h.stopped = true
	stopTracks(h.tracks)
}

func stopTracks(tracks []Track) {
	for _, t := range tracks {
		if t != nil {
			t.Stop()
		}
	}
}

// accessError marks a refusal as ErrAccessDenied while keeping the
// device's own reason in the chain.
type accessError struct {
	cause error
}

func (e *accessError) Error() string { return e.cause.Error() }

func (e *accessError) Unwrap() []error { return []error{ErrAccessDenied, e.cause} }

func denied(cause error) error {
	if cause == nil {
		cause = ErrAccessDenied
	}
	return &accessError{cause: cause}
}
