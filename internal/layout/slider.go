package layout

import (
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/cmbview/internal/param"
)

// Snap clamps v to the range and moves it onto the Min + k*Step grid, the
// only values a slider can produce.
func Snap[V param.Number](r param.Range[V], v V) V {
	lo, hi, step := float64(r.Min), float64(r.Max), float64(r.Step)
	x := float64(v)
	if step > 0 {
		k := math.Round((x - lo) / step)
		x = lo + k*step
	}
	if x < lo {
		x = lo
	}
	if x > hi {
		x = hi
	}
	return V(roundTo(x, Decimals(r)))
}

// Nudge moves v by a whole number of steps and snaps the result.
func Nudge[V param.Number](r param.Range[V], v V, steps int) V {
	return Snap(r, V(float64(v)+float64(steps)*float64(r.Step)))
}

// Fraction is the slider fill ratio of v, in [0, 1].
func Fraction[V param.Number](r param.Range[V], v V) float64 {
	span := float64(r.Max) - float64(r.Min)
	if span <= 0 {
		return 0
	}
	f := (float64(v) - float64(r.Min)) / span
	return math.Max(0, math.Min(1, f))
}

// Decimals is the display precision implied by the range: the larger of the
// fractional digits of Step and Min.
func Decimals[V param.Number](r param.Range[V]) int {
	return max(fractionDigits(float64(r.Step)), fractionDigits(float64(r.Min)))
}

func fractionDigits(x float64) int {
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func roundTo(x float64, decimals int) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', decimals, 64), 64)
	if err != nil {
		return x
	}
	return v
}
