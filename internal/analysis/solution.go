package analysis

// Analysis summarizes one solved trajectory.
type Analysis struct {
	MaxValue       float64
	MinValue       float64
	Amplitude      float64
	PeriodEstimate float64
	FinalTime      float64
}

// Analyze computes extrema, amplitude and a period estimate from the mean
// spacing of local maxima. Empty input yields a zero Analysis.
func Analyze(t, y []float64) Analysis {
	var a Analysis
	if len(y) == 0 {
		return a
	}

	a.MaxValue, a.MinValue = y[0], y[0]
	for _, v := range y[1:] {
		if v > a.MaxValue {
			a.MaxValue = v
		}
		if v < a.MinValue {
			a.MinValue = v
		}
	}
	a.Amplitude = (a.MaxValue - a.MinValue) / 2
	if len(t) > 0 {
		a.FinalTime = t[len(t)-1]
	}
	a.PeriodEstimate = EstimatePeriod(t, y)
	return a
}

// EstimatePeriod needs at least ten samples and two peaks; otherwise it
// returns 0.
func EstimatePeriod(t, y []float64) float64 {
	if len(y) < 10 || len(t) != len(y) {
		return 0
	}

	peaks := FindPeaks(y)
	if len(peaks) < 2 {
		return 0
	}

	total := 0.0
	for i := 1; i < len(peaks); i++ {
		total += t[peaks[i]] - t[peaks[i-1]]
	}
	return total / float64(len(peaks)-1)
}

// FindPeaks returns indices of strict local maxima. A flat top counts once,
// at its middle sample. The first and last samples are never peaks.
func FindPeaks(y []float64) []int {
	var peaks []int
	n := len(y)
	i := 1
	for i < n-1 {
		if y[i-1] < y[i] {
			j := i + 1
			for j < n-1 && y[j] == y[i] {
				j++
			}
			if y[j] < y[i] {
				peaks = append(peaks, (i+j-1)/2)
				i = j
				continue
			}
		}
		i++
	}
	return peaks
}
