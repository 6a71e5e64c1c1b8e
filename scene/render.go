package scene

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// RenderCommand is a single draw instruction emitted during scene traversal.
type RenderCommand struct {
	Node        *Node
	Transform   [6]float64
	Color       Color
	RenderLayer uint8
	treeOrder   int // assigned during traversal for stable sort

	image *ebiten.Image
	solid bool // draw the shared white pixel scaled by Transform
}

var whitePixel *ebiten.Image

func ensureWhitePixel() *ebiten.Image {
	if whitePixel == nil {
		whitePixel = ebiten.NewImage(1, 1)
		whitePixel.Fill(color.White)
	}
	return whitePixel
}

// traverse walks the node tree depth-first, updating transforms and emitting
// render commands for visible nodes.
func (s *Scene) traverse(n *Node, parentTransform [6]float64, parentAlpha float64, parentRecomputed bool, treeOrder *int) {
	if !n.Visible {
		return
	}

	recompute := n.transformDirty || parentRecomputed
	if recompute {
		n.worldTransform = multiplyAffine(parentTransform, computeLocalTransform(n))
		n.worldAlpha = parentAlpha * n.Alpha
		n.transformDirty = false
	}

	if n.worldAlpha > 0 {
		s.emit(n, treeOrder)
	}

	if len(n.children) == 0 {
		return
	}
	children := n.children
	if !n.childrenSorted {
		s.rebuildSortedChildren(n)
	}
	if n.sortedChildren != nil {
		children = n.sortedChildren
	}
	for _, child := range children {
		s.traverse(child, n.worldTransform, n.worldAlpha, recompute, treeOrder)
	}
}

func (s *Scene) emit(n *Node, treeOrder *int) {
	cmd := RenderCommand{
		Node:        n,
		Color:       Color{n.Color.R, n.Color.G, n.Color.B, n.Color.A * n.worldAlpha},
		RenderLayer: n.RenderLayer,
	}

	switch n.Type {
	case NodeTypeSprite:
		if n.Image == nil {
			return
		}
		b := n.Image.Bounds()
		w, h := nodeDimensions(n)
		p := fitImage(b.Dx(), b.Dy(), w, h, n.Fit)
		if p.src.Empty() {
			return
		}
		cmd.image = n.Image.SubImage(p.src.Add(b.Min)).(*ebiten.Image)
		cmd.Transform = multiplyAffine(n.worldTransform, [6]float64{p.scaleX, 0, 0, p.scaleY, p.offsetX, p.offsetY})
	case NodeTypeRect:
		if n.Width <= 0 || n.Height <= 0 {
			return
		}
		cmd.solid = true
		cmd.Transform = multiplyAffine(n.worldTransform, [6]float64{n.Width, 0, 0, n.Height, 0, 0})
	case NodeTypeText:
		if n.TextBlock == nil {
			return
		}
		img := n.TextBlock.render()
		if img == nil {
			return
		}
		cmd.image = img
		cmd.Transform = multiplyAffine(n.worldTransform, [6]float64{1, 0, 0, 1, n.TextBlock.alignOffset(n.Width), 0})
	default:
		return
	}

	*treeOrder++
	cmd.treeOrder = *treeOrder
	s.commands = append(s.commands, cmd)
}

// rebuildSortedChildren rebuilds the ZIndex-sorted traversal order for a node.
// Stable insertion sort; children are few and nearly sorted.
func (s *Scene) rebuildSortedChildren(n *Node) {
	nc := len(n.children)
	if cap(n.sortedChildren) < nc {
		n.sortedChildren = make([]*Node, nc)
	}
	n.sortedChildren = n.sortedChildren[:nc]
	copy(n.sortedChildren, n.children)
	for i := 1; i < nc; i++ {
		key := n.sortedChildren[i]
		j := i - 1
		for j >= 0 && n.sortedChildren[j].ZIndex > key.ZIndex {
			n.sortedChildren[j+1] = n.sortedChildren[j]
			j--
		}
		n.sortedChildren[j+1] = key
	}
	n.childrenSorted = true
}

// commandLessOrEqual orders by layer, then tree order. Using <= for
// treeOrder keeps the sort stable.
func commandLessOrEqual(a, b RenderCommand) bool {
	if a.RenderLayer != b.RenderLayer {
		return a.RenderLayer < b.RenderLayer
	}
	return a.treeOrder <= b.treeOrder
}

// mergeSort sorts s.commands in place using s.sortBuf as scratch space.
func (s *Scene) mergeSort() {
	n := len(s.commands)
	if n <= 1 {
		return
	}
	if cap(s.sortBuf) < n {
		s.sortBuf = make([]RenderCommand, n)
	}
	s.sortBuf = s.sortBuf[:n]

	a := s.commands
	b := s.sortBuf
	swapped := false

	for width := 1; width < n; width *= 2 {
		for i := 0; i < n; i += 2 * width {
			lo := i
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeRun(a, b, lo, mid, hi)
		}
		a, b = b, a
		swapped = !swapped
	}

	if swapped {
		copy(s.commands, s.sortBuf)
	}
}

// mergeRun merges two sorted runs [lo, mid) and [mid, hi) from src into dst.
func mergeRun(src, dst []RenderCommand, lo, mid, hi int) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if commandLessOrEqual(src[i], src[j]) {
			dst[k] = src[i]
			i++
		} else {
			dst[k] = src[j]
			j++
		}
		k++
	}
	k += copy(dst[k:], src[i:mid])
	copy(dst[k:], src[j:hi])
}

func (s *Scene) submit(target *ebiten.Image) {
	var op ebiten.DrawImageOptions
	for i := range s.commands {
		cmd := &s.commands[i]
		img := cmd.image
		op.Filter = ebiten.FilterLinear
		if cmd.solid {
			img = ensureWhitePixel()
			op.Filter = ebiten.FilterNearest
		}
		op.GeoM = commandGeoM(cmd)
		op.ColorScale.Reset()
		a := float32(cmd.Color.A)
		op.ColorScale.Scale(float32(cmd.Color.R)*a, float32(cmd.Color.G)*a, float32(cmd.Color.B)*a, a)
		target.DrawImage(img, &op)
	}
}

func commandGeoM(cmd *RenderCommand) ebiten.GeoM {
	var m ebiten.GeoM
	m.SetElement(0, 0, cmd.Transform[0])
	m.SetElement(1, 0, cmd.Transform[1])
	m.SetElement(0, 1, cmd.Transform[2])
	m.SetElement(1, 1, cmd.Transform[3])
	m.SetElement(0, 2, cmd.Transform[4])
	m.SetElement(1, 2, cmd.Transform[5])
	return m
}
