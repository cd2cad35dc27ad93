package vad

import "testing"

// constFrame builds a frame whose RMS equals level exactly.
func constFrame(level float32, n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = level
	}
	return f
}

func TestScore_ThresholdOnSmoothedEnergy(t *testing.T) {
	d := New(0.02, 3)
	// First loud frame: window mean is the frame RMS itself.
	dec := d.Score(constFrame(0.05, 512))
	if !dec.Speech {
		t.Fatalf("expected speech on first loud frame, energy=%v", dec.Energy)
	}
	if dec.Energy < 0.049 || dec.Energy > 0.051 {
		t.Fatalf("unexpected smoothed energy %v", dec.Energy)
	}
}

func TestScore_SingleTransientRejected(t *testing.T) {
	d := New(0.02, 3)
	// Fill the window with silence first.
	for i := 0; i < 3; i++ {
		if dec := d.Score(constFrame(0.001, 512)); dec.Speech {
			t.Fatalf("silence scored as speech")
		}
	}
	// One click at RMS 0.05: mean = (0.001+0.001+0.05)/3 = 0.0173 < 0.02.
	if dec := d.Score(constFrame(0.05, 512)); dec.Speech {
		t.Fatalf("single transient should not trigger, energy=%v", dec.Energy)
	}
	// Sustained speech crosses within the window.
	if dec := d.Score(constFrame(0.05, 512)); !dec.Speech {
		t.Fatalf("sustained speech should trigger, energy=%v", dec.Energy)
	}
}

func TestScore_WindowIsBoundedFIFO(t *testing.T) {
	d := New(0.02, 2)
	d.Score(constFrame(0.5, 16))
	d.Score(constFrame(0.5, 16))
	// Two silent frames must fully displace the loud history.
	d.Score(constFrame(0.0, 16))
	if dec := d.Score(constFrame(0.0, 16)); dec.Speech {
		t.Fatalf("stale loud frames still in window, energy=%v", dec.Energy)
	}
	if len(d.win) != 2 {
		t.Fatalf("window grew past capacity: %d", len(d.win))
	}
}

func TestStatusFuncInvokedEveryFrame(t *testing.T) {
	d := New(0.02, 3)
	var calls int
	var lastEnergy float64
	d.SetStatusFunc(func(speech bool, energy float64) {
		calls++
		lastEnergy = energy
	})
	d.Score(constFrame(0.001, 16))
	d.Score(constFrame(0.05, 16))
	if calls != 2 {
		t.Fatalf("expected 2 status calls, got %d", calls)
	}
	if lastEnergy <= 0 {
		t.Fatalf("expected positive smoothed energy, got %v", lastEnergy)
	}
}

func TestEmptyFrameScoresSilence(t *testing.T) {
	d := New(0.02, 3)
	if dec := d.Score(nil); dec.Speech || dec.Energy != 0 {
		t.Fatalf("empty frame must score as silence, got %+v", dec)
	}
}
