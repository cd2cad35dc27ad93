package segment

import "github.com/fabbricca/cognitia/internal/audio"

// Ring keeps the most recent frames seen before an utterance activates,
// so the assembled utterance includes the audio that preceded the VAD's
// positive trigger (the detector smooths over up to a few frames, and
// onset would otherwise be clipped). Insertion past capacity evicts the
// oldest frame.
type Ring struct {
	frames   []audio.Frame
	capacity int
	writePos int
	filled   int
}

// NewRing returns a ring holding at most capacity frames. Capacity is
// ceil(bufferMS/frameMS) at the call site; 800ms of 32ms frames -> 25.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{frames: make([]audio.Frame, capacity), capacity: capacity}
}

// Capacity reports the configured maximum.
func (r *Ring) Capacity() int { return r.capacity }

// Len reports how many frames are currently held.
func (r *Ring) Len() int { return r.filled }

// Push inserts a frame, evicting the oldest when full.
func (r *Ring) Push(f audio.Frame) {
	r.frames[r.writePos] = f
	r.writePos = (r.writePos + 1) % r.capacity
	if r.filled < r.capacity {
		r.filled++
	}
}

// Snapshot returns the held frames oldest to newest.
func (r *Ring) Snapshot() []audio.Frame {
	out := make([]audio.Frame, r.filled)
	start := (r.writePos - r.filled + r.capacity) % r.capacity
	for i := 0; i < r.filled; i++ {
		out[i] = r.frames[(start+i)%r.capacity]
	}
	return out
}

// Reset discards all held frames.
func (r *Ring) Reset() {
	for i := range r.frames {
		r.frames[i] = audio.Frame{}
	}
	r.writePos = 0
	r.filled = 0
}
