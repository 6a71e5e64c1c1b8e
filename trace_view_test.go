package kalcame

import (
	"math"
	"testing"
	"time"

	"github.com/phanxgames/kalcame/imageres"
)

func newBareTraceView(store *imageres.Store, opacity *float64) *TraceView {
	v := NewTraceView(TraceViewConfig{
		Theme:      *testTheme(),
		Localizer:  englishLocalizer(),
		Resolve:    store.Resolve,
		Transition: DefaultTransition,
		OnOpacity:  func(o float64) { *opacity = o },
	})
	v.Layout(800, 600)
	return v
}

func TestTraceViewRender(t *testing.T) {
	store := imageres.NewStore()
	var got float64
	v := newBareTraceView(store, &got)
	r := newResource(t, store, "a.png")

	v.Render(TraceProps{Resource: r, Opacity: 1.7})
	ref := v.Root().Find("reference")
	if !ref.Visible || ref.Alpha != 1 {
		t.Errorf("reference visible=%v alpha=%v, want visible at 1", ref.Visible, ref.Alpha)
	}
	if ref.Interactable {
		t.Error("reference must never be interactable")
	}
	if v.Denied() {
		t.Error("no session should mean no banner")
	}
	if fill := v.Root().Find("opacity-fill"); fill.Width != sliderWidth {
		t.Errorf("fill width = %v, want %v", fill.Width, float64(sliderWidth))
	}

	r.Revoke()
	v.Render(TraceProps{Resource: r, Opacity: 0.5})
	if ref.Visible {
		t.Error("a revoked resource should not be shown")
	}
}

func TestTraceViewTransition(t *testing.T) {
	tests := []struct {
		name       string
		transition time.Duration
		immediate  bool
	}{
		{"zero jumps", 0, true},
		{"stock fades", DefaultTransition, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := imageres.NewStore()
			v := NewTraceView(TraceViewConfig{
				Theme:      *testTheme(),
				Localizer:  englishLocalizer(),
				Resolve:    store.Resolve,
				Transition: tt.transition,
			})
			r := newResource(t, store, "a.png")
			v.Render(TraceProps{Resource: r, Opacity: 0})
			v.Render(TraceProps{Resource: r, Opacity: 1})
			ref := v.Root().Find("reference")
			if got := ref.Alpha == 1; got != tt.immediate {
				t.Errorf("alpha = %v right after the change, immediate = %v", ref.Alpha, tt.immediate)
			}
			v.update(2 * DefaultTransition.Seconds())
			if ref.Alpha != 1 {
				t.Errorf("alpha = %v after the transition, want 1", ref.Alpha)
			}
		})
	}
}

func TestTraceViewSlideQuantizes(t *testing.T) {
	store := imageres.NewStore()
	var got float64
	v := newBareTraceView(store, &got)
	tests := []struct {
		x, want float64
	}{
		{0, 0},
		{sliderWidth / 2, 0.5},
		{sliderWidth * 0.333, 0.33},
		{-50, 0},
		{sliderWidth * 2, 1},
	}
	for _, tt := range tests {
		v.slide(tt.x)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("slide(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestTraceViewRelabel(t *testing.T) {
	loc := englishLocalizer()
	v := NewTraceView(TraceViewConfig{
		Theme:     *testTheme(),
		Localizer: loc,
		Resolve:   imageres.NewStore().Resolve,
	})
	if err := loc.SetLanguage("fr"); err != nil {
		t.Fatal(err)
	}
	v.Relabel()
	if txt := v.Root().Find("change-image-label").Text(); txt != "Changer l'Image" {
		t.Errorf("change label = %q", txt)
	}
	if txt := v.Root().Find("go-back-label").Text(); txt != "Retour" {
		t.Errorf("go back label = %q", txt)
	}
}
