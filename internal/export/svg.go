package export

import (
	"fmt"
	"html"
	"strings"
)

// SVGOptions controls TrajectoryToSVG. Zero values take the defaults below.
type SVGOptions struct {
	Width  int
	Height int
	Stroke string
	// Title is written as the document <title> when set.
	Title string
}

const (
	defaultSVGWidth  = 800
	defaultSVGHeight = 400
	defaultStroke    = "#2a9d8f"
	axisStroke       = "#444444"
	svgMargin        = 0.1
)

// span is a padded data range mapped onto [0, size] pixels.
type span struct {
	lo, hi float64
}

func newSpan(v []float64) span {
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	width := hi - lo
	if width == 0 {
		width = 1
	}
	return span{lo: lo - width*svgMargin, hi: hi + width*svgMargin}
}

func (s span) scale(v float64, size int) float64 {
	return (v - s.lo) / (s.hi - s.lo) * float64(size)
}

func (s span) contains(v float64) bool { return v > s.lo && v < s.hi }

// TrajectoryToSVG draws ys against xs as one polyline on a dark background,
// with the zero axes when they fall inside the plotted range. It returns ""
// for fewer than two points or mismatched lengths.
func TrajectoryToSVG(xs, ys []float64, opts SVGOptions) string {
	if len(xs) < 2 || len(xs) != len(ys) {
		return ""
	}
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = defaultSVGWidth
	}
	if h <= 0 {
		h = defaultSVGHeight
	}
	stroke := opts.Stroke
	if stroke == "" {
		stroke = defaultStroke
	}

	sx, sy := newSpan(xs), newSpan(ys)
	px := func(x float64) float64 { return sx.scale(x, w) }
	py := func(y float64) float64 { return float64(h) - sy.scale(y, h) }

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
`, w, h, w, h)
	if opts.Title != "" {
		fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(opts.Title))
	}
	sb.WriteString(`<rect width="100%" height="100%" fill="#0a0a0a"/>` + "\n")

	if sy.contains(0) {
		fmt.Fprintf(&sb, `<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-width="0.5"/>`+"\n",
			py(0), w, py(0), axisStroke)
	}
	if sx.contains(0) {
		fmt.Fprintf(&sb, `<line x1="%.1f" y1="0" x2="%.1f" y2="%d" stroke="%s" stroke-width="0.5"/>`+"\n",
			px(0), px(0), h, axisStroke)
	}

	fmt.Fprintf(&sb, `<polyline fill="none" stroke="%s" stroke-width="1.5" points="`, stroke)
	for i := range xs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%.1f,%.1f", px(xs[i]), py(ys[i]))
	}
	sb.WriteString("\"/>\n</svg>\n")
	return sb.String()
}
