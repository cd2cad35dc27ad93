package vad

import "math"

// DefaultThreshold is the smoothed-RMS level above which a frame counts
// as speech, in the normalized -1..1 amplitude domain.
const DefaultThreshold = 0.02

// DefaultWindow is the moving-average length in frames. Three frames of
// smoothing rejects single-frame transients (clicks, breaths) at the
// cost of up to ~96ms of onset latency at 32ms frames.
const DefaultWindow = 3

// Decision is the per-frame classification plus the smoothed energy
// that produced it.
type Decision struct {
	Speech bool
	Energy float64
}

// StatusFunc receives every decision for UI metering. It is a side
// effect only; detection does not depend on it.
type StatusFunc func(speech bool, energy float64)

// Detector scores frames for speech presence using RMS energy with a
// short FIFO moving average. Not safe for concurrent use; the frame
// chain is strictly sequential.
type Detector struct {
	threshold float64
	windowN   int
	win       []float64
	status    StatusFunc
}

// New returns a Detector. Non-positive arguments fall back to the
// defaults.
func New(threshold float64, window int) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Detector{threshold: threshold, windowN: window}
}

// SetStatusFunc registers the metering callback.
func (d *Detector) SetStatusFunc(fn StatusFunc) { d.status = fn }

// Score classifies one frame. The smoothing window drops its oldest
// entry once full, so a burst shorter than the window never flips the
// decision on its own.
func (d *Detector) Score(samples []float32) Decision {
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	var rms float64
	if len(samples) > 0 {
		rms = math.Sqrt(sum / float64(len(samples)))
	}
	d.win = append(d.win, rms)
	if len(d.win) > d.windowN {
		d.win = d.win[len(d.win)-d.windowN:]
	}
	var mean float64
	for _, v := range d.win {
		mean += v
	}
	mean /= float64(len(d.win))

	dec := Decision{Speech: mean > d.threshold, Energy: mean}
	if d.status != nil {
		d.status(dec.Speech, dec.Energy)
	}
	return dec
}

// Reset clears the smoothing window.
func (d *Detector) Reset() { d.win = d.win[:0] }
