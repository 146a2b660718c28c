package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// PowerSpectrum zero-pads data to a power of two and returns the magnitude
// of the first half of its spectrum.
func PowerSpectrum(data []float64) []float64 {
	spectrum := fft.FFTReal(padPow2(data))
	ps := make([]float64, len(spectrum)/2)

	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}

	return ps
}

// DominantFrequency returns the frequency, in cycles per time unit, of the
// strongest non-constant spectral bin. The mean is removed first.
func DominantFrequency(t, y []float64) float64 {
	if len(y) < 4 || len(t) != len(y) {
		return 0
	}
	dt := t[1] - t[0]
	if dt <= 0 {
		return 0
	}

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))
	centered := make([]float64, len(y))
	for i, v := range y {
		centered[i] = v - mean
	}

	ps := PowerSpectrum(centered)
	best := 1
	for k := 2; k < len(ps); k++ {
		if ps[k] > ps[best] {
			best = k
		}
	}
	n := 2 * len(ps)
	return float64(best) / (float64(n) * dt)
}

func padPow2(data []float64) []float64 {
	n := 1
	for n < len(data) {
		n <<= 1
	}
	out := make([]float64, n)
	copy(out, data)
	return out
}
