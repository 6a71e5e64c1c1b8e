package kalcame

import (
	"github.com/juju/errors"

	"github.com/phanxgames/kalcame/camera"
	"github.com/phanxgames/kalcame/i18n"
	"github.com/phanxgames/kalcame/imageres"
	"github.com/phanxgames/kalcame/scene"
)

// SelectorViewConfig wires a SelectorView.
type SelectorViewConfig struct {
	Theme     Theme
	Localizer i18n.Localizer
	Store     *imageres.Store
	// Picker backs the select button. Nil leaves the button inert.
	Picker Picker
	// OnSelect receives each new resource and takes ownership of it.
	OnSelect func(*imageres.Resource) error
}

// SelectorView offers the select button and accepts dropped files. It sits
// over the camera layer behind a translucent scrim.
type SelectorView struct {
	cfg    SelectorViewConfig
	root   *scene.Node
	scrim  *scene.Node
	errMsg *scene.Node
	button *button
	note   *scene.Node
	hint   *scene.Node
}

// NewSelectorView builds the view's subtree.
func NewSelectorView(cfg SelectorViewConfig) *SelectorView {
	v := &SelectorView{cfg: cfg}
	th := cfg.Theme
	loc := cfg.Localizer

	v.root = scene.NewContainer("selector-view")
	v.root.Interactable = true
	v.scrim = scene.NewRect("selector-scrim", 0, 0, scene.RGB(0, 0, 0).WithAlpha(0.5))
	v.scrim.Interactable = false
	v.errMsg = newLabel("selector-error", loc.T("cameraError"), th.Body, th.Danger, scene.TextAlignCenter)
	v.errMsg.Visible = false
	v.button = newButton("select-image", loc.T("selectImage"), th.Body, 2*buttonWidth, 2*buttonHeight, th.Accent, th.AccentHot, v.pickNext)
	v.note = newLabel("camera-access-note", loc.T("cameraAccessNote"), th.Small, th.Muted, scene.TextAlignCenter)
	v.hint = newLabel("drop-hint", loc.T("dropHint"), th.Small, th.Muted, scene.TextAlignCenter)

	v.root.AddChild(v.scrim)
	v.root.AddChild(v.errMsg)
	v.root.AddChild(v.button.node)
	v.root.AddChild(v.note)
	v.root.AddChild(v.hint)
	return v
}

// Root returns the view's subtree.
func (v *SelectorView) Root() *scene.Node { return v.root }

// Layout centers the button in a w by h area.
func (v *SelectorView) Layout(w, h float64) {
	bw, bh := v.button.node.Width, v.button.node.Height
	x, y := (w-bw)/2, (h-bh)/2
	v.scrim.SetSize(w, h)
	v.errMsg.Width = w
	v.errMsg.SetPosition(0, y-padding-28)
	v.button.node.SetPosition(x, y)
	v.note.Width = w
	v.note.SetPosition(0, y+bh+padding)
	v.hint.Width = w
	v.hint.SetPosition(0, y+bh+padding+28)
}

// Relabel re-reads every visible string from the localizer.
func (v *SelectorView) Relabel() {
	loc := v.cfg.Localizer
	v.errMsg.SetText(loc.T("cameraError"))
	v.button.setText(loc.T("selectImage"))
	v.note.SetText(loc.T("cameraAccessNote"))
	v.hint.SetText(loc.T("dropHint"))
}

// Render shows the camera error when s was denied. The session is borrowed.
func (v *SelectorView) Render(s *camera.Session) {
	v.errMsg.Visible = s != nil && s.State() == camera.Denied
}

// CameraError reports whether the camera error text is showing.
func (v *SelectorView) CameraError() bool { return v.errMsg.Visible }

// Pick turns blob into a resource and hands it to OnSelect. It reports
// whether the resource was accepted. Files that are not images are logged
// and ignored.
func (v *SelectorView) Pick(blob imageres.Blob) bool {
	r, err := v.cfg.Store.Create(blob)
	if err != nil {
		if errors.Is(err, imageres.ErrInvalidFileKind) {
			logger.Infof("ignoring %q: %v", blob.Name, err)
		} else {
			logger.Warningf("ignoring %q: %v", blob.Name, err)
		}
		return false
	}
	if v.cfg.OnSelect == nil {
		r.Revoke()
		return false
	}
	if err := v.cfg.OnSelect(r); err != nil {
		logger.Debugf("selection of %q refused: %v", blob.Name, err)
		return false
	}
	return true
}

// PickFirst picks the first acceptable blob.
func (v *SelectorView) PickFirst(blobs []imageres.Blob) bool {
	for _, b := range blobs {
		if v.Pick(b) {
			return true
		}
	}
	return false
}

func (v *SelectorView) pickNext() {
	if v.cfg.Picker == nil {
		return
	}
	blob, err := v.cfg.Picker.Next()
	if err != nil {
		logger.Infof("select image: %v", err)
		return
	}
	v.Pick(blob)
}
