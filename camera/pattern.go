package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
)

// PatternDevice is a synthetic camera producing animated color bars. It
// stands in for hardware on machines without a camera and can simulate a
// slow permission prompt, a refusal, or exclusive access.
type PatternDevice struct {
	// Latency delays every Acquire, as a pending permission prompt would.
	Latency time.Duration
	// Deny, when set, is returned by Acquire instead of a track.
	Deny error
	// Exclusive makes a second Acquire fail with ErrBusy while a track
	// from this device is live.
	Exclusive bool
	// Clock drives latency and animation. Defaults to the wall clock.
	Clock clock.Clock

	mu   sync.Mutex
	held int
}

// Acquire implements Device.
func (d *PatternDevice) Acquire(ctx context.Context, c Constraints) ([]Track, error) {
	clk := d.clock()
	if d.Latency > 0 {
		select {
		case <-clk.After(d.Latency):
		case <-ctx.Done():
			return nil, errors.Trace(ctx.Err())
		}
	}
	if d.Deny != nil {
		return nil, d.Deny
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Exclusive && d.held > 0 {
		return nil, errors.Annotate(ErrBusy, "pattern device already held")
	}
	d.held++

	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		w, h = 640, 360
	}
	fps := c.FPS
	if fps <= 0 {
		fps = 30
	}
	interval := time.Duration(float64(time.Second) / fps)
	if interval <= 0 {
		interval = time.Millisecond
	}
	t := &patternTrack{
		id:       uuid.NewString(),
		label:    "pattern (" + string(c.Facing) + ")",
		clock:    clk,
		start:    clk.Now(),
		interval: interval,
		img:      image.NewRGBA(image.Rect(0, 0, w, h)),
		release:  d.release,
	}
	t.live.Store(true)
	return []Track{t}, nil
}

// Held returns the number of live tracks handed out.
func (d *PatternDevice) Held() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.held
}

func (d *PatternDevice) clock() clock.Clock {
	if d.Clock == nil {
		return clock.WallClock
	}
	return d.Clock
}

func (d *PatternDevice) release() {
	d.mu.Lock()
	d.held--
	d.mu.Unlock()
}

type patternTrack struct {
	id       string
	label    string
	clock    clock.Clock
	start    time.Time
	interval time.Duration
	img      *image.RGBA
	release  func()

	live     atomic.Bool
	stopOnce sync.Once
	seq      uint64
}

func (t *patternTrack) ID() string    { return t.id }
func (t *patternTrack) Label() string { return t.label }
func (t *patternTrack) Live() bool    { return t.live.Load() }

func (t *patternTrack) Stop() {
	t.stopOnce.Do(func() {
		t.live.Store(false)
		if t.release != nil {
			t.release()
		}
	})
}

// LatestFrame renders the bars for the current frame slot. The bars scroll
// one column per frame so a frozen feed is easy to spot.
func (t *patternTrack) LatestFrame() (Frame, bool) {
	if !t.Live() {
		return Frame{}, false
	}
	slot := uint64(t.clock.Now().Sub(t.start)/t.interval) + 1
	if slot != t.seq {
		t.seq = slot
		drawBars(t.img, int(slot))
	}
	return Frame{Seq: t.seq, Image: t.img}, true
}

var barColors = [...]color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

func drawBars(img *image.RGBA, offset int) {
	b := img.Bounds()
	w := b.Dx()
	barW := w / len(barColors)
	if barW == 0 {
		barW = 1
	}
	for x := 0; x < w; x++ {
		c := barColors[((x+offset)/barW)%len(barColors)]
		for y := 0; y < b.Dy(); y++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			img.Pix[i+0] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
		}
	}
}
