package rtc

import (
	"log"
	"sync"

	"github.com/hraban/opus"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// rtpTrack is the slice of webrtc.TrackRemote the bridge reads from.
type rtpTrack interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// opusDecoder is satisfied by *opus.Decoder.
type opusDecoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// MicBridge decodes a remote Opus audio track into normalized mono
// sample blocks, so a WebRTC microphone can feed the same pipeline as a
// local capture process. It implements call.Source. Stop halts decoding
// only; the underlying track and peer connection stay open because the
// bridge does not own them.
type MicBridge struct {
	track rtpTrack
	dec   opusDecoder

	out     chan []float32
	stopCh  chan struct{}
	mu      sync.Mutex
	stopped bool
}

// NewMicBridge wraps a remote track with an Opus decoder at the given
// mono sample rate.
func NewMicBridge(track *webrtc.TrackRemote, sampleRate int) (*MicBridge, error) {
	dec, err := opus.NewDecoder(sampleRate, 1)
	if err != nil {
		return nil, err
	}
	return newMicBridge(track, dec), nil
}

func newMicBridge(track rtpTrack, dec opusDecoder) *MicBridge {
	return &MicBridge{
		track:  track,
		dec:    dec,
		out:    make(chan []float32, 16),
		stopCh: make(chan struct{}),
	}
}

func (b *MicBridge) Start() error {
	go b.readLoop()
	return nil
}

func (b *MicBridge) Frames() <-chan []float32 { return b.out }

// Stop halts decoding. Idempotent. The remote track is left alone.
func (b *MicBridge) Stop() {
	b.mu.Lock()
	if !b.stopped {
		b.stopped = true
		close(b.stopCh)
	}
	b.mu.Unlock()
}

func (b *MicBridge) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("rtc: bridge reader panic: %v", r)
		}
	}()
	defer close(b.out)
	// One decoded packet is at most 120ms; 1920 covers 120ms at 16kHz.
	pcm := make([]int16, 1920)
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}
		pkt, _, err := b.track.ReadRTP()
		if err != nil {
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, err := b.dec.Decode(pkt.Payload, pcm)
		if err != nil {
			log.Printf("rtc: opus decode error: %v", err)
			continue
		}
		samples := make([]float32, n)
		for i := 0; i < n; i++ {
			samples[i] = float32(pcm[i]) / 32768
		}
		select {
		case b.out <- samples:
		case <-b.stopCh:
			return
		}
	}
}
