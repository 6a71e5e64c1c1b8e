package scene

import (
	"image"
	"math"
)

// FitMode controls how a sprite image is placed inside its node box.
type FitMode uint8

const (
	// FitStretch scales each axis independently to fill the box.
	FitStretch FitMode = iota
	// FitContain scales uniformly so the whole image is visible,
	// letterboxing the remainder.
	FitContain
	// FitCover scales uniformly so the box is filled, cropping the overflow
	// evenly from both sides.
	FitCover
)

func (m FitMode) String() string {
	switch m {
	case FitContain:
		return "contain"
	case FitCover:
		return "cover"
	default:
		return "stretch"
	}
}

// placement is where a source region lands inside a box.
type placement struct {
	src     image.Rectangle // region of the source image to draw
	scaleX  float64
	scaleY  float64
	offsetX float64
	offsetY float64
}

// fitImage places an iw×ih image into a bw×bh box. A degenerate size yields
// an empty placement.
func fitImage(iw, ih int, bw, bh float64, mode FitMode) placement {
	if iw <= 0 || ih <= 0 || bw <= 0 || bh <= 0 {
		return placement{}
	}
	fw, fh := float64(iw), float64(ih)
	full := image.Rect(0, 0, iw, ih)

	switch mode {
	case FitContain:
		s := math.Min(bw/fw, bh/fh)
		return placement{
			src:     full,
			scaleX:  s,
			scaleY:  s,
			offsetX: (bw - fw*s) / 2,
			offsetY: (bh - fh*s) / 2,
		}
	case FitCover:
		s := math.Max(bw/fw, bh/fh)
		// Whole source pixels only; the scale is corrected per axis so the
		// crop fills the box exactly.
		vw := int(math.Max(1, math.Min(fw, math.Round(bw/s))))
		vh := int(math.Max(1, math.Min(fh, math.Round(bh/s))))
		x0 := (iw - vw) / 2
		y0 := (ih - vh) / 2
		return placement{
			src:    image.Rect(x0, y0, x0+vw, y0+vh),
			scaleX: bw / float64(vw),
			scaleY: bh / float64(vh),
		}
	default:
		return placement{src: full, scaleX: bw / fw, scaleY: bh / fh}
	}
}
