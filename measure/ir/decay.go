package ir

import "math"

// decayFloorDB is reported where the remaining energy is zero.
const decayFloorDB = -200

// DecayCurve returns the Schroeder backward integral of ir in dB relative to
// the total energy. An all-zero input yields an all-floor curve.
func DecayCurve(ir []float64) []float64 {
	curve := make([]float64, len(ir))
	var tail float64
	for i := len(ir) - 1; i >= 0; i-- {
		tail += ir[i] * ir[i]
		curve[i] = tail
	}

	total := 0.0
	if len(curve) > 0 {
		total = curve[0]
	}
	for i, e := range curve {
		if total <= 0 || e <= 0 {
			curve[i] = decayFloorDB
			continue
		}
		curve[i] = 10 * math.Log10(e/total)
	}
	return curve
}

// fitDecay fits a line to curve between the first samples at or below
// fromDB and toDB and returns the time a -60 dB decay at that slope takes.
// Zero means the curve never spans the range or does not decay.
func fitDecay(curve []float64, sampleRate, fromDB, toDB float64) float64 {
	start, end := -1, -1
	for i, v := range curve {
		if start < 0 && v <= fromDB {
			start = i
		}
		if start >= 0 && v <= toDB {
			end = i
			break
		}
	}
	if start < 0 || end-start < 1 {
		return 0
	}

	seg := curve[start : end+1]
	n := float64(len(seg))
	meanX := (n - 1) / 2
	var meanY float64
	for _, v := range seg {
		meanY += v
	}
	meanY /= n

	var sxy, sxx float64
	for i, v := range seg {
		dx := float64(i) - meanX
		sxy += dx * (v - meanY)
		sxx += dx * dx
	}
	slope := sxy / sxx * sampleRate // dB per second
	if slope >= 0 {
		return 0
	}
	return -60 / slope
}
