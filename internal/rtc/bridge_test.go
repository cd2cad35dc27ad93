package rtc

import (
	"io"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

type scriptedTrack struct {
	payloads [][]byte
	i        int
}

func (s *scriptedTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if s.i >= len(s.payloads) {
		return nil, nil, io.EOF
	}
	p := &rtp.Packet{Payload: s.payloads[s.i]}
	s.i++
	return p, nil, nil
}

type constDecoder struct {
	samples int
	value   int16
	fail    bool
}

func (d *constDecoder) Decode(data []byte, pcm []int16) (int, error) {
	if d.fail {
		return 0, io.ErrUnexpectedEOF
	}
	for i := 0; i < d.samples; i++ {
		pcm[i] = d.value
	}
	return d.samples, nil
}

func collect(t *testing.T, b *MicBridge) [][]float32 {
	t.Helper()
	var out [][]float32
	deadline := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-b.Frames():
			if !ok {
				return out
			}
			out = append(out, chunk)
		case <-deadline:
			t.Fatalf("bridge never closed, got %d chunks", len(out))
		}
	}
}

func TestMicBridge_DecodesAndNormalizes(t *testing.T) {
	track := &scriptedTrack{payloads: [][]byte{{1}, {2}, {3}}}
	b := newMicBridge(track, &constDecoder{samples: 160, value: 16384})
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	chunks := collect(t, b)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 160 {
		t.Fatalf("expected 160 samples, got %d", len(chunks[0]))
	}
	if chunks[0][0] != 0.5 {
		t.Fatalf("expected normalized 0.5, got %v", chunks[0][0])
	}
}

func TestMicBridge_EmptyPayloadsSkipped(t *testing.T) {
	track := &scriptedTrack{payloads: [][]byte{{}, {1}, {}}}
	b := newMicBridge(track, &constDecoder{samples: 10, value: 100})
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := collect(t, b); len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
}

func TestMicBridge_DecodeErrorsDropped(t *testing.T) {
	track := &scriptedTrack{payloads: [][]byte{{1}, {2}}}
	b := newMicBridge(track, &constDecoder{fail: true})
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := collect(t, b); len(got) != 0 {
		t.Fatalf("expected 0 chunks, got %d", len(got))
	}
}

func TestMicBridge_StopIsIdempotent(t *testing.T) {
	b := newMicBridge(&scriptedTrack{}, &constDecoder{})
	b.Stop()
	b.Stop()
}
