package segment

import (
	"testing"

	"github.com/fabbricca/cognitia/internal/audio"
	"github.com/fabbricca/cognitia/internal/vad"
)

const frameLen = 512

func frameAt(seq uint64, level float32) audio.Frame {
	s := make([]float32, frameLen)
	for i := range s {
		s[i] = level
	}
	return audio.Frame{Seq: seq, Samples: s}
}

// newAssembler uses a 1-frame smoothing window so speech/silence flips
// on the frame itself, keeping transition indices exact.
func newAssembler(ringCap, pauseFrames int, fn UtteranceFunc) *Assembler {
	det := vad.New(0.02, 1)
	return NewAssembler(det, NewRing(ringCap), pauseFrames, fn)
}

func TestAssembler_ActivatesOnFirstQualifyingFrame(t *testing.T) {
	var got [][]audio.Frame
	a := newAssembler(25, 20, func(frames []audio.Frame) { got = append(got, frames) })

	var seq uint64
	// 10 silent frames, fewer than ring capacity.
	for i := 0; i < 10; i++ {
		if a.Process(frameAt(seq, 0.001)) {
			t.Fatalf("activated on silence at seq %d", seq)
		}
		seq++
	}
	if a.State() != StateIdle {
		t.Fatalf("expected Idle before speech")
	}
	// First speech frame activates immediately.
	if !a.Process(frameAt(seq, 0.05)) {
		t.Fatalf("expected activation on first speech frame")
	}
	if a.State() != StateRecording {
		t.Fatalf("expected Recording after activation")
	}
	// Utterance was seeded with the whole ring: 10 silent + trigger.
	if len(a.utterance) != 11 {
		t.Fatalf("expected utterance seeded with 11 frames, got %d", len(a.utterance))
	}
	if a.utterance[0].Seq != 0 || a.utterance[10].Seq != 10 {
		t.Fatalf("snapshot not oldest-to-newest: first=%d last=%d", a.utterance[0].Seq, a.utterance[10].Seq)
	}
}

func TestAssembler_SnapshotBoundedByRingCapacity(t *testing.T) {
	a := newAssembler(5, 20, nil)
	var seq uint64
	for i := 0; i < 40; i++ {
		a.Process(frameAt(seq, 0.001))
		seq++
	}
	a.Process(frameAt(seq, 0.05))
	if len(a.utterance) != 5 {
		t.Fatalf("expected snapshot of ring capacity 5, got %d", len(a.utterance))
	}
}

func TestAssembler_FinalizesAfterExactPauseRun(t *testing.T) {
	var finals int
	var lastLen int
	a := newAssembler(25, 20, func(frames []audio.Frame) {
		finals++
		lastLen = len(frames)
	})

	var seq uint64
	feed := func(n int, level float32) {
		for i := 0; i < n; i++ {
			a.Process(frameAt(seq, level))
			seq++
		}
	}

	feed(5, 0.001)  // pre-roll silence
	feed(10, 0.05)  // speech
	feed(19, 0.001) // one short of the pause budget
	if finals != 0 {
		t.Fatalf("finalized one frame early")
	}
	if a.GapFrames() != 19 {
		t.Fatalf("expected gap 19, got %d", a.GapFrames())
	}
	feed(1, 0.001) // 20th consecutive silence frame
	if finals != 1 {
		t.Fatalf("expected exactly one finalize, got %d", finals)
	}
	if a.State() != StateIdle {
		t.Fatalf("expected Idle after finalize")
	}
	// 5 pre-roll + 10 speech + 20 pause frames.
	if lastLen != 35 {
		t.Fatalf("expected 35 frames in utterance, got %d", lastLen)
	}

	// Further silence never re-fires.
	feed(40, 0.001)
	if finals != 1 {
		t.Fatalf("finalize fired again on trailing silence")
	}
}

func TestAssembler_SpeechResetsGapCounter(t *testing.T) {
	var finals int
	a := newAssembler(25, 5, func([]audio.Frame) { finals++ })
	var seq uint64
	a.Process(frameAt(seq, 0.05))
	seq++
	for round := 0; round < 3; round++ {
		for i := 0; i < 4; i++ { // stay below pauseFrames
			a.Process(frameAt(seq, 0.001))
			seq++
		}
		a.Process(frameAt(seq, 0.05)) // speech resets the gap
		seq++
		if a.GapFrames() != 0 {
			t.Fatalf("gap not reset by speech")
		}
	}
	if finals != 0 {
		t.Fatalf("finalized despite interleaved speech")
	}
}

func TestAssembler_ForceFinalizeDispatchesPartial(t *testing.T) {
	var got []audio.Frame
	a := newAssembler(25, 20, func(frames []audio.Frame) { got = frames })
	var seq uint64
	for i := 0; i < 3; i++ {
		a.Process(frameAt(seq, 0.05))
		seq++
	}
	a.Finalize()
	if len(got) != 3 {
		t.Fatalf("expected 3 frames from forced finalize, got %d", len(got))
	}
	if a.State() != StateIdle || a.GapFrames() != 0 {
		t.Fatalf("state not reset after forced finalize")
	}
}

func TestAssembler_EmptyForcedFinalizeIsSilent(t *testing.T) {
	var finals int
	a := newAssembler(25, 20, func([]audio.Frame) { finals++ })
	a.Finalize()
	a.Finalize()
	if finals != 0 {
		t.Fatalf("empty finalize must not invoke the encoder path")
	}
}

func TestAssembler_RingClearedOnFinalize(t *testing.T) {
	var utterances [][]audio.Frame
	a := newAssembler(25, 20, func(f []audio.Frame) { utterances = append(utterances, f) })

	var seq uint64
	feed := func(n int, level float32) {
		for i := 0; i < n; i++ {
			a.Process(frameAt(seq, level))
			seq++
		}
	}
	feed(25, 0.001) // fill the ring
	feed(1, 0.05)   // activate
	feed(20, 0.001) // pause run, finalize
	if len(utterances) != 1 {
		t.Fatalf("expected one finalized utterance, got %d", len(utterances))
	}
	first := utterances[0]
	lastSent := first[len(first)-1].Seq

	// Speech resumes right after finalize. The new seed must hold only
	// frames newer than anything already dispatched; the previous
	// utterance's pre-activation window must not be re-sent.
	if !a.Process(frameAt(seq, 0.05)) {
		t.Fatalf("expected activation on resumed speech")
	}
	if len(a.utterance) != 1 {
		t.Fatalf("expected seed of 1 frame after finalize, got %d", len(a.utterance))
	}
	if a.utterance[0].Seq <= lastSent {
		t.Fatalf("seed frame %d already dispatched (last sent %d)", a.utterance[0].Seq, lastSent)
	}
}

func TestAssembler_ScenarioSilenceSpeechSilence(t *testing.T) {
	// 500ms silence at RMS 0.001, 400ms speech at RMS 0.05, 700ms
	// silence, 32ms frames, threshold 0.02, pause 20 frames.
	det := vad.New(0.02, 3)
	var utterances [][]audio.Frame
	a := NewAssembler(det, NewRing(25), 20, func(f []audio.Frame) { utterances = append(utterances, f) })

	var seq uint64
	feed := func(ms int, level float32) {
		for i := 0; i < ms/32; i++ {
			a.Process(frameAt(seq, level))
			seq++
		}
	}
	feed(500, 0.001)
	feed(400, 0.05)
	feed(700, 0.001)

	if len(utterances) != 1 {
		t.Fatalf("expected exactly one utterance, got %d", len(utterances))
	}
	// Pre-roll (bounded by 15 silence frames seen) + speech (12 full
	// frames, minus smoothing latency on activation) + 20 pause frames.
	n := len(utterances[0])
	if n < 40 || n > 48 {
		t.Fatalf("utterance frame count %d outside expected envelope", n)
	}
	if a.State() != StateIdle {
		t.Fatalf("expected Idle at end of scenario")
	}
}
