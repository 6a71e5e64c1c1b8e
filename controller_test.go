package kalcame

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/errors"
	"go.uber.org/goleak"

	"github.com/phanxgames/kalcame/camera"
	"github.com/phanxgames/kalcame/dialog"
	"github.com/phanxgames/kalcame/eventloop"
	"github.com/phanxgames/kalcame/i18n"
	"github.com/phanxgames/kalcame/imageres"
)

func pngBlob(t *testing.T, name string, w, h int) imageres.Blob {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return imageres.Blob{Name: name, Type: "image/png", Data: buf.Bytes()}
}

func newResource(t *testing.T, store *imageres.Store, name string) *imageres.Resource {
	t.Helper()
	r, err := store.Create(pngBlob(t, name, 4, 3))
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return r
}

func englishLocalizer() i18n.Localizer {
	return i18n.NewTranslator(i18n.Builtin(), "en", nil)
}

// stubTrack records Stop calls.
type stubTrack struct {
	stops atomic.Int32
}

func (t *stubTrack) ID() string    { return "stub" }
func (t *stubTrack) Label() string { return "stub" }
func (t *stubTrack) Live() bool    { return t.stops.Load() == 0 }
func (t *stubTrack) Stop()         { t.stops.Add(1) }

func (t *stubTrack) LatestFrame() (camera.Frame, bool) {
	if !t.Live() {
		return camera.Frame{}, false
	}
	return camera.Frame{Seq: 1, Image: image.NewRGBA(image.Rect(0, 0, 2, 2))}, true
}

// promptDevice holds Acquire open until the test answers. Like a real
// permission prompt it ignores cancellation.
type promptDevice struct {
	track  *stubTrack
	answer chan error
}

func newPromptDevice() *promptDevice {
	return &promptDevice{track: &stubTrack{}, answer: make(chan error, 1)}
}

func (d *promptDevice) Acquire(context.Context, camera.Constraints) ([]camera.Track, error) {
	if err := <-d.answer; err != nil {
		return nil, err
	}
	return []camera.Track{d.track}, nil
}

// settle waits for the negotiation goroutine and runs the loop until it
// is idle.
func settle(t *testing.T, q *eventloop.Queue, s *camera.Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("camera negotiation did not finish")
	}
	for i := 0; i < 10 && q.Len() > 0; i++ {
		q.Drain()
	}
}

func newTestController(dev camera.Device, q *eventloop.Queue, mutate func(*ControllerConfig)) *Controller {
	cfg := ControllerConfig{
		Device:         dev,
		Poster:         q,
		Localizer:      englishLocalizer(),
		DefaultOpacity: DefaultOpacity,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewController(context.Background(), cfg)
}

func TestClampOpacity(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{-0.5, 0},
		{1.5, 1},
		{math.Inf(1), 1},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := ClampOpacity(tt.in); got != tt.want {
			t.Errorf("ClampOpacity(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestControllerStartsSelecting(t *testing.T) {
	c := newTestController(nil, &eventloop.Queue{}, nil)
	if c.State() != Selecting {
		t.Errorf("State = %s, want selecting", c.State())
	}
	if c.Resource() != nil {
		t.Error("Resource should be nil before a selection")
	}
	if c.Opacity() != DefaultOpacity {
		t.Errorf("Opacity = %v, want %v", c.Opacity(), DefaultOpacity)
	}
}

func TestSelectImageOnlyFromSelecting(t *testing.T) {
	store := imageres.NewStore()
	c := newTestController(nil, &eventloop.Queue{}, nil)
	c.Mount()

	first := newResource(t, store, "a.png")
	if err := c.SelectImage(first); err != nil {
		t.Fatalf("SelectImage: %v", err)
	}
	second := newResource(t, store, "b.png")
	err := c.SelectImage(second)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second SelectImage error = %v, want ErrInvalidTransition", err)
	}
	if !second.Revoked() {
		t.Error("refused resource should be revoked")
	}
	if c.Resource() != first || first.Revoked() {
		t.Error("held resource should be untouched by a refused selection")
	}
	if store.Live() != 1 {
		t.Errorf("Live = %d, want 1", store.Live())
	}
}

func TestDefaultOpacityZeroIsKept(t *testing.T) {
	store := imageres.NewStore()
	c := newTestController(nil, &eventloop.Queue{}, func(cfg *ControllerConfig) { cfg.DefaultOpacity = 0 })
	if c.Opacity() != 0 {
		t.Errorf("Opacity = %v, want 0", c.Opacity())
	}
	c.SetOpacity(0.7)
	if err := c.SelectImage(newResource(t, store, "a.png")); err != nil {
		t.Fatal(err)
	}
	if c.Opacity() != 0 {
		t.Errorf("Opacity after select = %v, want the configured 0", c.Opacity())
	}
}

func TestGoBackOnlyFromTracing(t *testing.T) {
	c := newTestController(nil, &eventloop.Queue{}, nil)
	if err := c.GoBack(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("GoBack from selecting = %v, want ErrInvalidTransition", err)
	}
}

func TestPickBackPick(t *testing.T) {
	store := imageres.NewStore()
	c := newTestController(nil, &eventloop.Queue{}, nil)
	c.Mount()

	var uris []string
	for i, name := range []string{"a.png", "b.png", "c.png"} {
		r := newResource(t, store, name)
		if err := c.SelectImage(r); err != nil {
			t.Fatalf("SelectImage(%s): %v", name, err)
		}
		if c.Opacity() != DefaultOpacity {
			t.Errorf("pick %d: Opacity = %v, want default", i, c.Opacity())
		}
		if store.Live() != 1 {
			t.Errorf("pick %d: Live = %d, want 1", i, store.Live())
		}
		uris = append(uris, r.URI())
		c.SetOpacity(0.9)

		if err := c.GoBack(); err != nil {
			t.Fatalf("GoBack: %v", err)
		}
		if !r.Revoked() {
			t.Errorf("pick %d: resource not revoked after back", i)
		}
		if _, ok := store.Resolve(r.URI()); ok {
			t.Errorf("pick %d: revoked URI still resolves", i)
		}
		if store.Live() != 0 {
			t.Errorf("pick %d: Live = %d after back, want 0", i, store.Live())
		}
	}
	if uris[0] == uris[1] || uris[1] == uris[2] {
		t.Errorf("each pick should get a fresh URI, got %v", uris)
	}
}

func TestResourceRevokedBeforeSelectingObservable(t *testing.T) {
	store := imageres.NewStore()
	c := newTestController(nil, &eventloop.Queue{}, nil)
	r := newResource(t, store, "a.png")
	if err := c.SelectImage(r); err != nil {
		t.Fatal(err)
	}
	var revokedWhenSelecting bool
	c.OnChange(func() {
		if c.State() == Selecting {
			revokedWhenSelecting = r.Revoked()
		}
	})
	if err := c.GoBack(); err != nil {
		t.Fatal(err)
	}
	if !revokedWhenSelecting {
		t.Error("listener saw Selecting before the resource was revoked")
	}
}

func TestSetOpacityClamps(t *testing.T) {
	c := newTestController(nil, &eventloop.Queue{}, nil)
	var changes int
	c.OnChange(func() { changes++ })
	if got := c.SetOpacity(3); got != 1 {
		t.Errorf("SetOpacity(3) = %v, want 1", got)
	}
	if got := c.SetOpacity(math.NaN()); got != 0 {
		t.Errorf("SetOpacity(NaN) = %v, want 0", got)
	}
	c.SetOpacity(0)
	if changes != 2 {
		t.Errorf("changes = %d, want 2 (unchanged value should not notify)", changes)
	}
}

func TestEagerPolicyOpensOnMount(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := &eventloop.Queue{}
	dev := &camera.PatternDevice{}
	c := newTestController(dev, q, nil)
	c.Mount()
	c.Mount()
	s := c.Session()
	if s == nil {
		t.Fatal("eager policy should open the session on mount")
	}
	settle(t, q, s)
	if s.State() != camera.Granted {
		t.Fatalf("State = %s, want granted", s.State())
	}
	c.Unmount()
	if dev.Held() != 0 {
		t.Errorf("Held = %d after unmount, want 0", dev.Held())
	}
}

func TestLazyPolicyOpensOnFirstSelect(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := &eventloop.Queue{}
	store := imageres.NewStore()
	dev := &camera.PatternDevice{}
	c := newTestController(dev, q, func(cfg *ControllerConfig) { cfg.Policy = CameraLazy })
	c.Mount()
	if c.Session() != nil {
		t.Fatal("lazy policy should not open on mount")
	}
	if err := c.SelectImage(newResource(t, store, "a.png")); err != nil {
		t.Fatal(err)
	}
	s := c.Session()
	if s == nil {
		t.Fatal("lazy policy should open on first select")
	}
	settle(t, q, s)
	if err := c.GoBack(); err != nil {
		t.Fatal(err)
	}
	if err := c.SelectImage(newResource(t, store, "b.png")); err != nil {
		t.Fatal(err)
	}
	if c.Session() != s {
		t.Error("session should be reused for the controller lifetime")
	}
	c.Unmount()
}

func TestDeniedScenario(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := &eventloop.Queue{}
	store := imageres.NewStore()
	dev := &camera.PatternDevice{Deny: errors.Annotate(camera.ErrPermission, "user dismissed the prompt")}
	c := newTestController(dev, q, nil)
	c.Mount()
	settle(t, q, c.Session())

	s := c.Session()
	if s.State() != camera.Denied {
		t.Fatalf("State = %s, want denied", s.State())
	}
	if s.ErrorMessage() == "" {
		t.Error("denied session should carry a message")
	}
	if !errors.Is(s.Err(), camera.ErrAccessDenied) || !errors.Is(s.Err(), camera.ErrPermission) {
		t.Errorf("Err = %v, want ErrAccessDenied and ErrPermission", s.Err())
	}

	// The image can still be selected and traced without video.
	r := newResource(t, store, "a.png")
	if err := c.SelectImage(r); err != nil {
		t.Fatalf("SelectImage with denied camera: %v", err)
	}
	if c.State() != Tracing {
		t.Errorf("State = %s, want tracing", c.State())
	}
	c.Unmount()
	if !r.Revoked() {
		t.Error("Unmount should revoke the held resource")
	}
}

func TestTeardownBeforeGrant(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := &eventloop.Queue{}
	dev := newPromptDevice()
	c := newTestController(dev, q, nil)
	c.Mount()
	s := c.Session()
	if s.State() != camera.Requesting {
		t.Fatalf("State = %s, want requesting", s.State())
	}
	c.Unmount()

	// The grant lands after teardown and the loop is never drained again.
	dev.answer <- nil
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("negotiation did not finish")
	}
	if s.Handle() != nil {
		t.Error("late grant must not be exposed")
	}
	if n := dev.track.stops.Load(); n != 1 {
		t.Errorf("late track stopped %d times, want 1", n)
	}
	q.Drain()
	q.Drain()
	if n := dev.track.stops.Load(); n != 1 {
		t.Errorf("draining after teardown stopped the track again (stops=%d)", n)
	}
	if s.State() == camera.Granted {
		t.Error("closed session must never become granted")
	}
}

func TestUnmountIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := &eventloop.Queue{}
	store := imageres.NewStore()
	dev := newPromptDevice()
	c := newTestController(dev, q, nil)
	c.Mount()
	dev.answer <- nil
	settle(t, q, c.Session())

	r := newResource(t, store, "a.png")
	if err := c.SelectImage(r); err != nil {
		t.Fatal(err)
	}
	c.Unmount()
	c.Unmount()
	if _, revoked := store.Stats(); revoked != 1 {
		t.Errorf("revoked = %d, want 1", revoked)
	}
	if n := dev.track.stops.Load(); n != 1 {
		t.Errorf("track stopped %d times, want 1", n)
	}
	if !c.Unmounted() {
		t.Error("Unmounted = false")
	}

	late := newResource(t, store, "b.png")
	if err := c.SelectImage(late); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SelectImage after unmount = %v, want ErrInvalidTransition", err)
	}
	if !late.Revoked() {
		t.Error("resource refused after unmount should be revoked")
	}
	if store.Live() != 0 {
		t.Errorf("Live = %d, want 0", store.Live())
	}
}

func TestRequestBackConfirm(t *testing.T) {
	store := imageres.NewStore()
	dialogs := dialog.New()
	c := newTestController(nil, &eventloop.Queue{}, func(cfg *ControllerConfig) {
		cfg.ConfirmBack = true
		cfg.Dialogs = dialogs
	})
	r := newResource(t, store, "a.png")
	if err := c.SelectImage(r); err != nil {
		t.Fatal(err)
	}

	c.RequestBack()
	req := dialogs.Current()
	if req == nil || req.Kind != dialog.KindConfirm {
		t.Fatalf("Current = %+v, want a confirm dialog", req)
	}
	if req.Config.Title != "Change image?" {
		t.Errorf("Title = %q", req.Config.Title)
	}
	dialogs.Resolve(false)
	if c.State() != Tracing || r.Revoked() {
		t.Fatal("cancelled back should keep tracing")
	}

	c.RequestBack()
	dialogs.Resolve(true)
	if c.State() != Selecting || !r.Revoked() {
		t.Errorf("confirmed back: state %s, revoked %v", c.State(), r.Revoked())
	}
}

func TestRequestBackWithoutConfirm(t *testing.T) {
	store := imageres.NewStore()
	c := newTestController(nil, &eventloop.Queue{}, nil)
	if err := c.SelectImage(newResource(t, store, "a.png")); err != nil {
		t.Fatal(err)
	}
	c.RequestBack()
	if c.State() != Selecting {
		t.Errorf("State = %s, want selecting", c.State())
	}
	// Backing out of Selecting is logged, not fatal.
	c.RequestBack()
}
