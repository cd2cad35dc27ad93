package audio

// Frame is a fixed-length block of normalized mono samples (-1.0..1.0)
// tagged with a monotonically increasing sequence index. Frames are
// treated as immutable once emitted by the Framer.
type Frame struct {
	Seq     uint64
	Samples []float32
}

// Framer slices a continuous capture stream into fixed-duration frames
// suitable for VAD scoring. Samples left over after the last full frame
// are carried into the next Push; a partial tail remaining when capture
// stops is dropped, never zero-padded, so every scored frame has the
// same length.
type Framer struct {
	frameSamples int
	pending      []float32
	seq          uint64
}

// NewFramer returns a Framer emitting frames of sampleRate*frameMS/1000
// samples (16000 Hz at 32 ms -> 512 samples).
func NewFramer(sampleRate, frameMS int) *Framer {
	n := sampleRate * frameMS / 1000
	if n < 1 {
		n = 1
	}
	return &Framer{frameSamples: n}
}

// FrameSamples reports the fixed per-frame sample count.
func (f *Framer) FrameSamples() int { return f.frameSamples }

// Push appends captured samples and returns every complete frame now
// available, in capture order. The returned frames own their backing
// arrays; the input slice may be reused by the caller.
func (f *Framer) Push(samples []float32) []Frame {
	if len(samples) == 0 {
		return nil
	}
	f.pending = append(f.pending, samples...)
	var out []Frame
	for len(f.pending) >= f.frameSamples {
		buf := make([]float32, f.frameSamples)
		copy(buf, f.pending[:f.frameSamples])
		out = append(out, Frame{Seq: f.seq, Samples: buf})
		f.seq++
		copy(f.pending, f.pending[f.frameSamples:])
		f.pending = f.pending[:len(f.pending)-f.frameSamples]
	}
	return out
}

// Flush discards any buffered partial frame. Called when capture stops;
// dropping the tail is deliberate (see NewFramer).
func (f *Framer) Flush() {
	f.pending = f.pending[:0]
}
