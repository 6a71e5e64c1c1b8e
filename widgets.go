package kalcame

import (
	"github.com/phanxgames/kalcame/scene"
)

// Theme holds the fonts and colors shared by the views.
type Theme struct {
	Title scene.Font
	Body  scene.Font
	Small scene.Font

	Background scene.Color
	Surface    scene.Color
	Accent     scene.Color
	AccentHot  scene.Color
	Danger     scene.Color
	Muted      scene.Color
}

// DefaultTheme uses Go Regular at three sizes.
func DefaultTheme() (Theme, error) {
	body, err := scene.DefaultFont(18)
	if err != nil {
		return Theme{}, err
	}
	return Theme{
		Title:      body.WithSize(24),
		Body:       body,
		Small:      body.WithSize(14),
		Background: scene.RGB(0x12, 0x12, 0x14),
		Surface:    scene.RGB(0x22, 0x22, 0x26).WithAlpha(0.85),
		Accent:     scene.RGB(0x3b, 0x82, 0xf6),
		AccentHot:  scene.RGB(0x60, 0x9c, 0xfa),
		Danger:     scene.RGB(0xb9, 0x1c, 0x1c).WithAlpha(0.9),
		Muted:      scene.RGB(0xa1, 0xa1, 0xaa),
	}, nil
}

// button is a filled rect with a centered label. The label never takes
// input, so the rect receives the click wherever it lands.
type button struct {
	node  *scene.Node
	label *scene.Node
	base  scene.Color
	hot   scene.Color
}

func newButton(name, text string, font scene.Font, w, h float64, base, hot scene.Color, onClick func()) *button {
	b := &button{
		node:  scene.NewRect(name, w, h, base),
		label: scene.NewText(name+"-label", text, font),
		base:  base,
		hot:   hot,
	}
	b.node.Interactable = true
	b.label.TextBlock.Align = scene.TextAlignCenter
	b.node.AddChild(b.label)
	b.layoutLabel()

	b.node.OnPointerEnter = func(scene.PointerContext) { b.node.Color = b.hot }
	b.node.OnPointerLeave = func(scene.PointerContext) { b.node.Color = b.base }
	b.node.OnClick = func(scene.ClickContext) {
		if onClick != nil {
			onClick()
		}
	}
	return b
}

func (b *button) setText(text string) {
	b.label.SetText(text)
	b.layoutLabel()
}

func (b *button) setSize(w, h float64) {
	b.node.SetSize(w, h)
	b.layoutLabel()
}

func (b *button) layoutLabel() {
	b.label.Width = b.node.Width
	lh := 0.0
	if f := b.label.TextBlock.Font; f != nil {
		lh = f.LineHeight()
	}
	b.label.SetPosition(0, (b.node.Height-lh)/2)
}

// newLabel returns a non-interactive text node.
func newLabel(name, text string, font scene.Font, c scene.Color, align scene.TextAlign) *scene.Node {
	n := scene.NewText(name, text, font)
	n.TextBlock.Color = c
	n.TextBlock.Align = align
	return n
}
