package segment

import (
	"github.com/fabbricca/cognitia/internal/audio"
	"github.com/fabbricca/cognitia/internal/vad"
)

// State is the assembler's explicit, exhaustive state tag.
type State int

const (
	// StateIdle: frames feed the pre-activation ring and are scored;
	// nothing accumulates.
	StateIdle State = iota
	// StateRecording: frames accumulate into the utterance until the
	// pause counter fires.
	StateRecording
)

// UtteranceFunc receives a finalized, non-empty utterance. Ownership of
// the frames transfers to the callback.
type UtteranceFunc func(frames []audio.Frame)

// Assembler turns the scored frame stream into discrete utterances. In
// Idle, every frame goes through the ring and the detector; the first
// speech-positive frame seeds the utterance with the ring's full
// contents and switches to Recording. In Recording, every frame is
// appended; pauseFrames consecutive silence-scored frames finalize the
// utterance and return to Idle. Finalizing clears the ring, so the next
// utterance can never seed from audio that was already dispatched.
type Assembler struct {
	det         *vad.Detector
	ring        *Ring
	pauseFrames int
	onUtterance UtteranceFunc

	state     State
	gap       int
	utterance []audio.Frame
}

// NewAssembler wires a detector and ring to an utterance callback.
// pauseFrames is ceil(pauseMS/frameMS); 640ms of 32ms frames -> 20.
func NewAssembler(det *vad.Detector, ring *Ring, pauseFrames int, fn UtteranceFunc) *Assembler {
	if pauseFrames < 1 {
		pauseFrames = 1
	}
	return &Assembler{det: det, ring: ring, pauseFrames: pauseFrames, onUtterance: fn}
}

// State reports the current state tag.
func (a *Assembler) State() State { return a.state }

// GapFrames reports the current run of silence-scored frames while
// recording. Zero in Idle.
func (a *Assembler) GapFrames() int { return a.gap }

// Process consumes one frame in capture order. It returns true exactly
// when this frame started a new utterance, which the caller uses as the
// barge-in signal.
func (a *Assembler) Process(f audio.Frame) bool {
	switch a.state {
	case StateIdle:
		a.ring.Push(f)
		dec := a.det.Score(f.Samples)
		if !dec.Speech {
			return false
		}
		// Seed with the full ring snapshot, oldest to newest. The
		// triggering frame is already in the ring at this point.
		a.utterance = a.ring.Snapshot()
		a.gap = 0
		a.state = StateRecording
		return true
	case StateRecording:
		a.utterance = append(a.utterance, f)
		dec := a.det.Score(f.Samples)
		if dec.Speech {
			a.gap = 0
		} else {
			a.gap++
			if a.gap >= a.pauseFrames {
				a.Finalize()
			}
		}
	}
	return false
}

// Finalize dispatches whatever has accumulated and resets to Idle. It
// is also the external force-finalize entry point used for barge-in:
// it bypasses the pause wait without altering gap counting for future
// utterances. An utterance with zero frames is discarded silently.
func (a *Assembler) Finalize() {
	frames := a.utterance
	a.utterance = nil
	a.gap = 0
	a.state = StateIdle
	// The ring still holds the pre-activation window of the utterance
	// being dispatched; clear it so those frames are not re-sent.
	a.ring.Reset()
	if len(frames) == 0 {
		return
	}
	if a.onUtterance != nil {
		a.onUtterance(frames)
	}
}
