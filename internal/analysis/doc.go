// Package analysis inspects solved trajectories after they are stored.
//
// All functions work on sampled series (t, y) as saved by the archive:
//
//   - [Analyze]: extrema, amplitude, period estimate, final time
//   - [PhasePortrait]: (y, dy/dt) pairs from a finite-difference derivative
//   - [PowerSpectrum] and [DominantFrequency]: FFT of the zero-padded samples
//
// Series are assumed to be uniformly sampled, which holds for solver output
// evaluated on a regular grid.
package analysis
