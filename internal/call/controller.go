package call

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/fabbricca/cognitia/internal/audio"
	"github.com/fabbricca/cognitia/internal/config"
	"github.com/fabbricca/cognitia/internal/playback"
	"github.com/fabbricca/cognitia/internal/segment"
	"github.com/fabbricca/cognitia/internal/transport"
	"github.com/fabbricca/cognitia/internal/vad"
)

var errEmptyMicCommand = errors.New("call: empty mic command")

// SessionTransport is the slice of the transport session the controller
// needs. *transport.Session satisfies it.
type SessionTransport interface {
	On(msgType string, h transport.Handler)
	SendAudio(data, format string, sampleRate int, chatID, characterID string) error
	SendCallStart(chatID, characterID string) error
	SendCallEnd(chatID, characterID string) error
	SendStopPlayback(chatID, characterID string) error
}

// Options configures a Controller.
type Options struct {
	ChatID      string
	CharacterID string
	// OwnsSource decides whether Stop releases the capture device.
	// False when the caller handed in a shared stream it keeps using
	// elsewhere (e.g. a WebRTC track feeding a separate transport).
	OwnsSource bool
	// Status receives every VAD decision for UI metering. Optional.
	Status vad.StatusFunc
}

// Controller runs one voice call: the outbound path (capture -> framer
// -> VAD/ring/assembler -> encoder -> transport) and the inbound path
// (transport audio messages -> playback queue). The two paths are
// independent; a response can be playing while the next utterance is
// already buffering.
type Controller struct {
	src   Source
	sess  SessionTransport
	queue *playback.Queue
	opts  Options

	tuning config.Tuning
	framer *audio.Framer

	// asmMu serializes the capture loop and external Finalize calls
	// over the framer and assembler.
	asmMu   sync.Mutex
	asm     *segment.Assembler
	stopped atomic.Bool

	utterancesSent atomic.Uint64
}

// NewController wires the pipeline with the given tuning.
func NewController(src Source, sess SessionTransport, queue *playback.Queue, tuning config.Tuning, opts Options) *Controller {
	c := &Controller{
		src:    src,
		sess:   sess,
		queue:  queue,
		opts:   opts,
		tuning: tuning,
		framer: audio.NewFramer(tuning.SampleRate, tuning.FrameMS),
	}
	det := vad.New(tuning.VADThreshold, tuning.VADWindow)
	if opts.Status != nil {
		det.SetStatusFunc(opts.Status)
	}
	ring := segment.NewRing(tuning.BufferFrames())
	c.asm = segment.NewAssembler(det, ring, tuning.PauseFrames(), c.sendUtterance)
	return c
}

// UtterancesSent reports how many utterances were encoded and sent.
func (c *Controller) UtterancesSent() uint64 { return c.utterancesSent.Load() }

// Run starts capture and processes frames until the context ends or
// the capture stream closes. It registers the inbound audio handler,
// announces call mode, and tears everything down on exit.
func (c *Controller) Run(ctx context.Context) error {
	c.sess.On(transport.TypeAudio, c.onAudioMessage)

	// Acquire capture before announcing call mode; a device failure
	// must not leave the server thinking a call is in progress.
	if err := c.src.Start(); err != nil {
		return err
	}
	if err := c.sess.SendCallStart(c.opts.ChatID, c.opts.CharacterID); err != nil {
		if c.opts.OwnsSource {
			c.src.Stop()
		}
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer c.teardown()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case samples, ok := <-c.src.Frames():
				if !ok {
					return nil
				}
				c.processSamples(samples)
			}
		}
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// processSamples pushes captured samples through the framer and feeds
// each complete frame to the assembler in capture order.
func (c *Controller) processSamples(samples []float32) {
	c.asmMu.Lock()
	frames := c.framer.Push(samples)
	c.asmMu.Unlock()
	for _, f := range frames {
		c.asmMu.Lock()
		activated := c.asm.Process(f)
		c.asmMu.Unlock()
		if activated && c.queue.Playing() {
			// Barge-in: the user is talking over the response.
			c.Interrupt()
		}
	}
}

// Interrupt stops local playback and tells the server to stop
// streaming. Safe to call at any time.
func (c *Controller) Interrupt() {
	c.queue.Stop()
	if err := c.sess.SendStopPlayback(c.opts.ChatID, c.opts.CharacterID); err != nil {
		log.Printf("call: stop_playback not sent: %v", err)
	}
}

// Finalize force-finalizes the in-flight utterance, dispatching
// whatever has accumulated without waiting for the pause.
func (c *Controller) Finalize() {
	c.asmMu.Lock()
	c.asm.Finalize()
	c.asmMu.Unlock()
}

// sendUtterance encodes a finalized utterance and ships it. Send
// failures are logged and dropped; nothing is queued for re-delivery.
func (c *Controller) sendUtterance(frames []audio.Frame) {
	enc, ok := audio.EncodeUtterance(frames, c.tuning.SampleRate)
	if !ok {
		return
	}
	if err := c.sess.SendAudio(enc.Data, enc.Format, enc.SampleRate, c.opts.ChatID, c.opts.CharacterID); err != nil {
		log.Printf("call: utterance not sent: %v", err)
		return
	}
	c.utterancesSent.Add(1)
}

// onAudioMessage decodes one inbound audio chunk and enqueues it.
// Malformed payloads are logged and dropped without disturbing the
// queue.
func (c *Controller) onAudioMessage(m transport.Message) {
	pcm, err := audio.DecodePCM16Base64(m.Content)
	if err != nil {
		log.Printf("call: undecodable audio chunk dropped: %v", err)
		return
	}
	rate := m.SampleRate
	if rate <= 0 {
		rate = c.tuning.SampleRate
	}
	c.queue.Enqueue(playback.Item{PCM: pcm, SampleRate: rate})
}

// teardown runs once when the capture loop exits: leave call mode,
// stop playback, release the device if owned.
func (c *Controller) teardown() {
	if !c.stopped.CompareAndSwap(false, true) {
		return
	}
	c.asmMu.Lock()
	c.framer.Flush()
	c.asmMu.Unlock()
	c.queue.Stop()
	if err := c.sess.SendCallEnd(c.opts.ChatID, c.opts.CharacterID); err != nil {
		log.Printf("call: call_end not sent: %v", err)
	}
	if c.opts.OwnsSource {
		c.src.Stop()
	}
}
