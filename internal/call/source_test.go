package call

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func pcmBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestReaderSource_ChunksAndCloses(t *testing.T) {
	samples := make([]int16, 25)
	for i := range samples {
		samples[i] = int16(i * 100)
	}
	src := NewReaderSource(bytes.NewReader(pcmBytes(samples)), 10)
	if err := src.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	var got []float32
	deadline := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-src.Frames():
			if !ok {
				if len(got) != 25 {
					t.Fatalf("expected 25 samples total, got %d", len(got))
				}
				// Spot-check the scaling of the last sample.
				want := float32(2400) / 32768
				if got[24] != want {
					t.Fatalf("sample 24 = %v, want %v", got[24], want)
				}
				return
			}
			got = append(got, chunk...)
		case <-deadline:
			t.Fatalf("source never closed, got %d samples", len(got))
		}
	}
}

func TestReaderSource_StopIsIdempotent(t *testing.T) {
	src := NewReaderSource(bytes.NewReader(nil), 10)
	if err := src.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.Stop()
	src.Stop()
}

func TestExecSource_EmptyCommand(t *testing.T) {
	src := NewExecSource("   ", 512)
	if err := src.Start(); err != errEmptyMicCommand {
		t.Fatalf("expected errEmptyMicCommand, got %v", err)
	}
}
