// Package gstcam captures from a local camera through GStreamer.
//
// The pipeline is
//
//	v4l2src|autovideosrc → videoconvert → videoscale → videorate →
//	capsfilter(RGBA, WxH, fps) → appsink
//
// and each appsink sample replaces the track's latest frame. Nothing is
// queued: a slow renderer sees fewer frames, never stale ones.
package gstcam

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/phanxgames/kalcame/camera"
)

var logger = loggo.GetLogger("kalcame.camera.gst")

// Config selects the capture source.
type Config struct {
	// Device is a V4L2 device path such as /dev/video0. Empty picks a
	// source with autovideosrc.
	Device string
	// StartTimeout bounds how long Acquire waits for PLAYING.
	StartTimeout time.Duration
	// Clock measures StartTimeout. Defaults to clock.WallClock.
	Clock clock.Clock
}

// Device implements camera.Device on top of GStreamer.
type Device struct {
	cfg Config
}

// New returns a GStreamer-backed device.
func New(cfg Config) *Device {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Device{cfg: cfg}
}

// Acquire builds and starts a capture pipeline. The facing hint has no
// V4L2 equivalent and only shows up in the track label.
func (d *Device) Acquire(ctx context.Context, c camera.Constraints) ([]camera.Track, error) {
	gst.Init(nil)

	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		w, h = 1280, 720
	}
	fps := c.FPS
	if fps <= 0 {
		fps = 30
	}

	pipeline, sink, err := d.buildPipeline(w, h, fps)
	if err != nil {
		return nil, errors.Annotate(camera.ErrNotFound, err.Error())
	}

	t := &track{
		id:       uuid.NewString(),
		label:    d.label(c.Facing),
		pipeline: pipeline,
		width:    w,
		height:   h,
	}
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: t.onSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		cause := d.drainError(pipeline, err)
		t.Stop()
		return nil, cause
	}
	if err := d.waitPlaying(ctx, pipeline); err != nil {
		t.Stop()
		return nil, err
	}
	logger.Infof("capturing from %s at %dx%d@%.0f", t.label, w, h, fps)
	return []camera.Track{t}, nil
}

func (d *Device) label(f camera.Facing) string {
	src := d.cfg.Device
	if src == "" {
		src = "autovideosrc"
	}
	return fmt.Sprintf("%s (%s)", src, f)
}

func (d *Device) buildPipeline(w, h int, fps float64) (*gst.Pipeline, *app.Sink, error) {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, nil, errors.Annotate(err, "creating pipeline")
	}

	var src *gst.Element
	if d.cfg.Device != "" {
		src, err = gst.NewElement("v4l2src")
		if err != nil {
			return nil, nil, errors.Annotate(err, "creating v4l2src")
		}
		src.SetProperty("device", d.cfg.Device)
	} else {
		src, err = gst.NewElement("autovideosrc")
		if err != nil {
			return nil, nil, errors.Annotate(err, "creating autovideosrc")
		}
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, nil, errors.Annotate(err, "creating videoconvert")
	}
	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, nil, errors.Annotate(err, "creating videoscale")
	}
	rate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, nil, errors.Annotate(err, "creating videorate")
	}
	rate.SetProperty("drop-only", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, nil, errors.Annotate(err, "creating capsfilter")
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(
		fmt.Sprintf("video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1", w, h, int(fps+0.5)),
	))

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, nil, errors.Annotate(err, "creating appsink")
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)

	if err := pipeline.AddMany(src, converter, scaler, rate, capsfilter, sink.Element); err != nil {
		return nil, nil, errors.Annotate(err, "adding elements")
	}
	if err := gst.ElementLinkMany(src, converter, scaler, rate, capsfilter, sink.Element); err != nil {
		return nil, nil, errors.Annotate(err, "linking elements")
	}
	return pipeline, sink, nil
}

// waitPlaying polls the bus until the pipeline plays, errors, or ctx ends.
func (d *Device) waitPlaying(ctx context.Context, pipeline *gst.Pipeline) error {
	bus := pipeline.GetPipelineBus()
	deadline := d.cfg.Clock.Now().Add(d.cfg.StartTimeout)
	for {
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		default:
		}
		if d.expired(deadline) {
			return errors.Annotatef(camera.ErrNotFound, "pipeline did not start within %v", d.cfg.StartTimeout)
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			logger.Debugf("pipeline error: %s (%s)", gerr.Error(), gerr.DebugString())
			return classify(gerr.Error() + " " + gerr.DebugString())
		case gst.MessageStateChanged:
			if msg.Source() != pipeline.GetName() {
				continue
			}
			if _, newState := msg.ParseStateChanged(); newState == gst.StatePlaying {
				return nil
			}
		}
	}
}

func (d *Device) expired(deadline time.Time) bool {
	return d.cfg.Clock.Now().After(deadline)
}

// drainError looks for the bus error explaining a failed state change.
func (d *Device) drainError(pipeline *gst.Pipeline, stateErr error) error {
	bus := pipeline.GetPipelineBus()
	for i := 0; i < 20; i++ {
		msg := bus.TimedPop(10 * time.Millisecond)
		if msg == nil {
			continue
		}
		if msg.Type() == gst.MessageError {
			gerr := msg.ParseError()
			return classify(gerr.Error() + " " + gerr.DebugString())
		}
	}
	return classify(stateErr.Error())
}

// classify maps GStreamer/V4L2 error text onto the camera reasons.
func classify(text string) error {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "not authorized"):
		return errors.Annotate(camera.ErrPermission, text)
	case strings.Contains(lower, "busy"):
		return errors.Annotate(camera.ErrBusy, text)
	case strings.Contains(lower, "cannot identify device"),
		strings.Contains(lower, "no such file"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "not a capture device"):
		return errors.Annotate(camera.ErrNotFound, text)
	default:
		return errors.New(text)
	}
}

type track struct {
	id       string
	label    string
	pipeline *gst.Pipeline
	width    int
	height   int

	mu      sync.Mutex
	frame   camera.Frame
	stopped bool
}

func (t *track) ID() string    { return t.id }
func (t *track) Label() string { return t.label }

func (t *track) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

func (t *track) LatestFrame() (camera.Frame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.frame.Image == nil {
		return camera.Frame{}, false
	}
	return t.frame, true
}

func (t *track) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	if err := t.pipeline.SetState(gst.StateNull); err != nil {
		logger.Warningf("stopping %s: %v", t.label, err)
	}
	logger.Debugf("stopped %s", t.label)
}

// onSample copies the sample into a fresh RGBA image; GStreamer reuses the
// buffer once the callback returns.
func (t *track) onSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	want := t.width * t.height * 4
	if len(data) < want {
		buffer.Unmap()
		logger.Tracef("short buffer: %d bytes, want %d", len(data), want)
		return gst.FlowOK
	}
	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	copy(img.Pix, data[:want])
	buffer.Unmap()

	t.mu.Lock()
	if !t.stopped {
		t.frame = camera.Frame{Seq: t.frame.Seq + 1, Image: img}
	}
	t.mu.Unlock()
	return gst.FlowOK
}
