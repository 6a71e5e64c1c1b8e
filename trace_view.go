package kalcame

import (
	"image"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tanema/gween/ease"

	"github.com/phanxgames/kalcame/camera"
	"github.com/phanxgames/kalcame/i18n"
	"github.com/phanxgames/kalcame/imageres"
	"github.com/phanxgames/kalcame/scene"
)

// DefaultTransition is the stock length of an opacity change.
const DefaultTransition = 150 * time.Millisecond

const (
	controlsHeight = 72
	sliderWidth    = 240
	sliderHeight   = 24
	buttonWidth    = 180
	buttonHeight   = 40
	bannerHeight   = 96
	padding        = 16
)

// TraceProps is everything TraceView renders from.
type TraceProps struct {
	// Session is borrowed; TraceView never closes it. It only drives the
	// error banner; the feed itself is drawn by CameraLayer.
	Session *camera.Session
	// Resource is borrowed; TraceView never revokes it.
	Resource *imageres.Resource
	Opacity  float64
}

// TraceViewConfig wires a TraceView.
type TraceViewConfig struct {
	Theme     Theme
	Localizer i18n.Localizer
	// Resolve maps a resource URI to its decoded image, usually
	// (*imageres.Store).Resolve.
	Resolve func(uri string) (image.Image, bool)
	// Transition is the opacity animation length. Zero disables it.
	Transition time.Duration

	OnOpacity func(float64)
	OnChange  func()
	OnBack    func()
}

// TraceView stacks the reference image and the controls over the camera
// layer.
//
//	root
//	├── reference       FitContain, alpha = opacity, never interactable
//	├── controls        slider and change-image button
//	└── error-banner    shown when the camera was denied
type TraceView struct {
	cfg  TraceViewConfig
	root *scene.Node

	reference *scene.Node

	controls     *scene.Node
	panel        *scene.Node
	opacityLabel *scene.Node
	track        *scene.Node
	fill         *scene.Node
	change       *button

	banner       *scene.Node
	bannerText   *scene.Node
	bannerDetail *scene.Node
	back         *button

	props  TraceProps
	target float64
	tween  *scene.TweenGroup

	refURI     string
	refPending image.Image
	refRelease bool
	refImage   *ebiten.Image

	w, h float64
}

// NewTraceView builds the view's subtree. Add Root to a scene to show it.
func NewTraceView(cfg TraceViewConfig) *TraceView {
	v := &TraceView{cfg: cfg}
	th := cfg.Theme
	loc := cfg.Localizer

	v.root = scene.NewContainer("trace-view")
	v.root.Interactable = true
	v.root.OnUpdate = v.update

	v.reference = scene.NewSprite("reference", nil)
	v.reference.Fit = scene.FitContain
	v.reference.Interactable = false
	v.reference.Alpha = 0
	v.reference.SetZIndex(1)

	v.controls = scene.NewContainer("controls")
	v.controls.Interactable = true
	v.controls.SetZIndex(2)
	v.panel = scene.NewRect("controls-panel", 0, controlsHeight, th.Surface)
	v.opacityLabel = newLabel("opacity-label", loc.T("opacity"), th.Small, th.Muted, scene.TextAlignLeft)
	v.track = scene.NewRect("opacity-slider", sliderWidth, sliderHeight, th.Muted.WithAlpha(0.5))
	v.track.Interactable = true
	v.track.OnPointerDown = func(ctx scene.PointerContext) { v.slide(ctx.LocalX) }
	v.track.OnDrag = func(ctx scene.DragContext) { v.slide(ctx.LocalX) }
	v.fill = scene.NewRect("opacity-fill", 0, sliderHeight, th.Accent)
	v.track.AddChild(v.fill)
	v.change = newButton("change-image", loc.T("changeImage"), th.Body, buttonWidth, buttonHeight, th.Accent, th.AccentHot, func() {
		if v.cfg.OnChange != nil {
			v.cfg.OnChange()
		}
	})
	v.controls.AddChild(v.panel)
	v.controls.AddChild(v.opacityLabel)
	v.controls.AddChild(v.track)
	v.controls.AddChild(v.change.node)

	v.banner = scene.NewRect("error-banner", 0, bannerHeight, th.Danger)
	v.banner.Interactable = true
	v.banner.Visible = false
	v.banner.SetZIndex(3)
	v.bannerText = newLabel("error-text", loc.T("cameraError"), th.Body, scene.ColorWhite, scene.TextAlignLeft)
	v.bannerDetail = newLabel("error-detail", "", th.Small, scene.ColorWhite.WithAlpha(0.8), scene.TextAlignLeft)
	v.back = newButton("go-back", loc.T("goBack"), th.Body, buttonWidth, buttonHeight, scene.RGB(0xff, 0xff, 0xff).WithAlpha(0.2), scene.RGB(0xff, 0xff, 0xff).WithAlpha(0.35), func() {
		if v.cfg.OnBack != nil {
			v.cfg.OnBack()
		}
	})
	v.banner.AddChild(v.bannerText)
	v.banner.AddChild(v.bannerDetail)
	v.banner.AddChild(v.back.node)

	v.root.AddChild(v.reference)
	v.root.AddChild(v.controls)
	v.root.AddChild(v.banner)
	return v
}

// Root returns the view's subtree.
func (v *TraceView) Root() *scene.Node { return v.root }

// Layout sizes the view to w by h.
func (v *TraceView) Layout(w, h float64) {
	if w == v.w && h == v.h {
		return
	}
	v.w, v.h = w, h
	v.reference.SetSize(w, h)

	v.controls.SetPosition(0, h-controlsHeight)
	v.panel.SetSize(w, controlsHeight)
	v.opacityLabel.SetPosition(padding, (controlsHeight-sliderHeight)/2-18)
	v.track.SetPosition(padding, (controlsHeight-sliderHeight)/2+6)
	v.change.node.SetPosition(math.Max(padding+sliderWidth+padding, w-buttonWidth-padding), (controlsHeight-buttonHeight)/2)

	v.banner.SetSize(w, bannerHeight)
	v.bannerText.SetPosition(padding, padding)
	v.bannerDetail.SetPosition(padding, padding+28)
	v.back.node.SetPosition(math.Max(padding, w-buttonWidth-padding), (bannerHeight-buttonHeight)/2)
	v.bannerText.Width = w - buttonWidth - 3*padding
}

// Render updates the view from props. It is cheap to call every time the
// controller changes.
func (v *TraceView) Render(p TraceProps) {
	p.Opacity = ClampOpacity(p.Opacity)
	v.props = p

	uri := ""
	if p.Resource != nil && !p.Resource.Revoked() {
		uri = p.Resource.URI()
	}
	if uri != v.refURI {
		v.setReference(uri)
		// A new image starts at its opacity rather than fading in.
		v.tween = nil
		v.target = p.Opacity
		v.reference.SetAlpha(p.Opacity)
	} else if p.Opacity != v.target {
		v.animateTo(p.Opacity)
	}
	v.fill.SetSize(sliderWidth*p.Opacity, sliderHeight)

	v.renderCamera()
}

// Relabel re-reads every visible string from the localizer.
func (v *TraceView) Relabel() {
	loc := v.cfg.Localizer
	v.opacityLabel.SetText(loc.T("opacity"))
	v.change.setText(loc.T("changeImage"))
	v.bannerText.SetText(loc.T("cameraError"))
	v.back.setText(loc.T("goBack"))
}

// Target returns the opacity the reference layer is moving towards.
func (v *TraceView) Target() float64 { return v.target }

// Denied reports whether the error banner is showing.
func (v *TraceView) Denied() bool { return v.banner.Visible }

func (v *TraceView) setReference(uri string) {
	v.refURI = uri
	v.refPending = nil
	if uri == "" {
		v.refRelease = true
		v.reference.Visible = false
		return
	}
	img, ok := v.cfg.Resolve(uri)
	if !ok {
		logger.Warningf("reference %s no longer resolves", uri)
		v.refRelease = true
		v.reference.Visible = false
		return
	}
	v.refPending = img
	v.reference.Visible = true
}

func (v *TraceView) animateTo(opacity float64) {
	v.target = opacity
	if v.cfg.Transition <= 0 {
		v.tween = nil
		v.reference.SetAlpha(opacity)
		return
	}
	v.tween = scene.TweenAlpha(v.reference, opacity, float32(v.cfg.Transition.Seconds()), ease.Linear)
}

func (v *TraceView) update(dt float64) {
	if v.tween == nil {
		return
	}
	v.tween.Update(float32(dt))
	if v.tween.Done {
		v.reference.SetAlpha(v.target)
		v.tween = nil
	}
}

// slide maps a position along the track to an opacity in steps of 0.01.
func (v *TraceView) slide(localX float64) {
	val := ClampOpacity(math.Round(localX/v.track.Width*100) / 100)
	if v.cfg.OnOpacity != nil {
		v.cfg.OnOpacity(val)
	}
}

func (v *TraceView) renderCamera() {
	s := v.props.Session
	denied := s != nil && s.State() == camera.Denied
	v.banner.Visible = denied
	if denied {
		v.bannerDetail.SetText(s.ErrorMessage())
	}
}

// Sync uploads the pending reference image. It runs in the draw path.
func (v *TraceView) Sync() {
	if v.refRelease {
		v.refRelease = false
		v.reference.Image = nil
		if v.refImage != nil {
			v.refImage.Deallocate()
			v.refImage = nil
		}
	}
	if v.refPending != nil {
		if v.refImage != nil {
			v.refImage.Deallocate()
		}
		v.refImage = ebiten.NewImageFromImage(v.refPending)
		v.reference.Image = v.refImage
		v.refPending = nil
	}
}

// Release frees the view's textures.
func (v *TraceView) Release() {
	v.refPending = nil
	v.refRelease = true
	v.Sync()
}
