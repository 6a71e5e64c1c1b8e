package kalcame

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/kalcame/camera"
	"github.com/phanxgames/kalcame/scene"
)

// CameraLayer draws the live feed under both views. It never takes input;
// the selector dims it with a scrim and the trace view stacks the reference
// on top of it.
//
//	camera-layer
//	├── video-backdrop  black fill, visible when there is no frame
//	└── video           FitCover
type CameraLayer struct {
	root     *scene.Node
	backdrop *scene.Node
	video    *scene.Node

	session *camera.Session
	active  bool
	image   *ebiten.Image
	seq     uint64
}

// NewCameraLayer builds the layer's subtree.
func NewCameraLayer() *CameraLayer {
	l := &CameraLayer{}
	l.root = scene.NewContainer("camera-layer")
	l.root.Interactable = false
	l.backdrop = scene.NewRect("video-backdrop", 0, 0, scene.RGB(0, 0, 0))
	l.video = scene.NewSprite("video", nil)
	l.video.Fit = scene.FitCover
	l.video.Visible = false
	l.root.AddChild(l.backdrop)
	l.root.AddChild(l.video)
	return l
}

// Root returns the layer's subtree.
func (l *CameraLayer) Root() *scene.Node { return l.root }

// Layout sizes the layer to w by h.
func (l *CameraLayer) Layout(w, h float64) {
	l.backdrop.SetSize(w, h)
	l.video.SetSize(w, h)
}

// Render points the layer at s. The session is borrowed; nil shows the
// backdrop only.
func (l *CameraLayer) Render(s *camera.Session) {
	l.session = s
	l.active = s != nil && s.State() == camera.Granted && s.Handle().Live()
	if !l.active {
		l.video.Visible = false
	}
}

// VideoActive reports whether the layer is showing a live handle.
func (l *CameraLayer) VideoActive() bool { return l.active }

// Sync uploads the newest frame. It runs in the draw path.
func (l *CameraLayer) Sync() {
	if !l.active {
		return
	}
	h := l.session.Handle()
	if h == nil {
		return
	}
	frame, ok := h.LatestFrame()
	if !ok || frame.Image == nil || frame.Seq == l.seq {
		return
	}
	l.seq = frame.Seq

	b := frame.Image.Bounds()
	if l.image == nil || l.image.Bounds().Size() != b.Size() {
		if l.image != nil {
			l.image.Deallocate()
		}
		l.image = ebiten.NewImage(b.Dx(), b.Dy())
	}
	if frame.Image.Stride == 4*b.Dx() {
		l.image.WritePixels(frame.Image.Pix[:4*b.Dx()*b.Dy()])
	} else {
		tmp := ebiten.NewImageFromImage(frame.Image)
		l.image.DrawImage(tmp, nil)
		tmp.Deallocate()
	}
	l.video.Image = l.image
	l.video.Visible = true
}

// Release frees the frame texture.
func (l *CameraLayer) Release() {
	l.active = false
	l.session = nil
	if l.image != nil {
		l.image.Deallocate()
		l.image = nil
	}
	l.video.Image = nil
	l.video.Visible = false
}
