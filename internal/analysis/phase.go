package analysis

import (
	"strings"
)

type Point struct{ X, Y float64 }

// PhasePortrait2D holds data for a 2D phase space plot
type PhasePortrait2D struct {
	Points []Point
}

// PhasePortrait pairs each sample with its estimated derivative. It returns
// nil when fewer than two samples exist or the series lengths differ.
func PhasePortrait(t, y []float64) *PhasePortrait2D {
	if len(y) < 2 || len(t) != len(y) {
		return nil
	}
	dy := Gradient(y, t[1]-t[0])
	if dy == nil {
		return nil
	}

	portrait := &PhasePortrait2D{Points: make([]Point, len(y))}
	for i := range y {
		portrait.Points[i] = Point{X: y[i], Y: dy[i]}
	}
	return portrait
}

// Gradient differentiates uniformly spaced samples: central differences in
// the interior, one-sided differences at both ends.
func Gradient(y []float64, dt float64) []float64 {
	n := len(y)
	if n < 2 || dt == 0 {
		return nil
	}

	g := make([]float64, n)
	g[0] = (y[1] - y[0]) / dt
	g[n-1] = (y[n-1] - y[n-2]) / dt
	for i := 1; i < n-1; i++ {
		g[i] = (y[i+1] - y[i-1]) / (2 * dt)
	}
	return g
}

// Bounds returns the extent of the portrait, widened by 10% on every side.
// A flat axis is given a unit range.
func (p *PhasePortrait2D) Bounds() (lo, hi Point) {
	lo, hi = p.Points[0], p.Points[0]
	for _, q := range p.Points[1:] {
		lo.X, hi.X = min(lo.X, q.X), max(hi.X, q.X)
		lo.Y, hi.Y = min(lo.Y, q.Y), max(hi.Y, q.Y)
	}
	pad := func(a, b float64) (float64, float64) {
		r := b - a
		if r == 0 {
			r = 1
		}
		return a - r*0.1, b + r*0.1
	}
	lo.X, hi.X = pad(lo.X, hi.X)
	lo.Y, hi.Y = pad(lo.Y, hi.Y)
	return lo, hi
}

// density glyphs, by how many samples land in a cell
var shades = []rune{'·', '•', '●'}

// PhasePortraitToASCII renders the portrait on a width x height grid. Cells
// hit by more samples are drawn darker, the first sample is marked 'o', and
// the zero axes are drawn where they cross the plot.
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	lo, hi := portrait.Bounds()
	cell := func(q Point) (row, col int) {
		col = int((q.X - lo.X) / (hi.X - lo.X) * float64(width-1))
		row = height - 1 - int((q.Y-lo.Y)/(hi.Y-lo.Y)*float64(height-1))
		return row, col
	}

	hits := make([][]int, height)
	for i := range hits {
		hits[i] = make([]int, width)
	}
	for _, q := range portrait.Points {
		row, col := cell(q)
		hits[row][col]++
	}
	originRow, originCol := cell(Point{})
	startRow, startCol := cell(portrait.Points[0])

	var sb strings.Builder
	for row := range height {
		for col := range width {
			n := hits[row][col]
			switch {
			case row == startRow && col == startCol:
				sb.WriteRune('o')
			case n > 0:
				sb.WriteRune(shades[min(n, len(shades))-1])
			case lo.X < 0 && hi.X > 0 && col == originCol:
				sb.WriteRune('│')
			case lo.Y < 0 && hi.Y > 0 && row == originRow:
				sb.WriteRune('─')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
