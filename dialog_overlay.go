package kalcame

import (
	"github.com/phanxgames/kalcame/dialog"
	"github.com/phanxgames/kalcame/scene"
)

const (
	dialogWidth  = 420
	dialogHeight = 180
)

// dialogOverlay renders the head of the dialog queue. The scrim is
// interactable so nothing under a modal can be clicked.
type dialogOverlay struct {
	provider *dialog.Provider

	root    *scene.Node
	scrim   *scene.Node
	card    *scene.Node
	title   *scene.Node
	message *scene.Node
	confirm *button
	cancel  *button
}

func newDialogOverlay(th Theme, p *dialog.Provider) *dialogOverlay {
	o := &dialogOverlay{provider: p}
	o.root = scene.NewContainer("dialog-overlay")
	o.root.Interactable = true
	o.root.Visible = false
	o.root.SetZIndex(10)

	o.scrim = scene.NewRect("dialog-scrim", 0, 0, scene.RGB(0, 0, 0).WithAlpha(0.6))
	o.scrim.Interactable = true
	o.card = scene.NewRect("dialog-card", dialogWidth, dialogHeight, scene.RGB(0x2a, 0x2a, 0x2e))
	o.card.Interactable = true
	o.title = newLabel("dialog-title", "", th.Body, scene.ColorWhite, scene.TextAlignLeft)
	o.message = newLabel("dialog-message", "", th.Small, th.Muted, scene.TextAlignLeft)
	o.confirm = newButton("dialog-confirm", dialog.DefaultConfirmLabel, th.Body, 120, buttonHeight, th.Accent, th.AccentHot, func() {
		o.provider.Resolve(true)
	})
	o.cancel = newButton("dialog-cancel", "", th.Body, 120, buttonHeight, th.Surface, th.Muted, func() {
		o.provider.Resolve(false)
	})

	o.title.SetPosition(padding, padding)
	o.message.SetPosition(padding, padding+36)
	o.confirm.node.SetPosition(dialogWidth-120-padding, dialogHeight-buttonHeight-padding)
	o.cancel.node.SetPosition(dialogWidth-2*(120+padding), dialogHeight-buttonHeight-padding)
	o.card.AddChild(o.title)
	o.card.AddChild(o.message)
	o.card.AddChild(o.cancel.node)
	o.card.AddChild(o.confirm.node)

	o.root.AddChild(o.scrim)
	o.root.AddChild(o.card)
	return o
}

func (o *dialogOverlay) layout(w, h float64) {
	o.scrim.SetSize(w, h)
	o.card.SetPosition((w-dialogWidth)/2, (h-dialogHeight)/2)
}

// show is the provider's OnChange hook.
func (o *dialogOverlay) show(r *dialog.Request) {
	if r == nil {
		o.root.Visible = false
		return
	}
	confirm, cancel := r.Labels()
	o.title.SetText(r.Config.Title)
	o.message.SetText(r.Config.Message)
	o.confirm.setText(confirm)
	o.cancel.setText(cancel)
	o.cancel.node.Visible = cancel != ""
	o.root.Visible = true
}
