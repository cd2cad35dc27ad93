package playback

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Item is one decoded response chunk ready to render. Ordering is FIFO
// by arrival; the server streams in presentation order.
type Item struct {
	PCM        []byte
	SampleRate int
}

// Sink renders PCM16LE mono audio. Start may be called again with a new
// sample rate between items. Reset drops anything the sink has buffered
// but not yet rendered, for immediate interruption.
type Sink interface {
	Start(sampleRate int) error
	Write(pcm []byte) error
	Reset()
	Close() error
}

// Queue renders incoming items strictly sequentially: at most one item
// plays at a time, the next begins only when the previous finishes, and
// an empty queue stalls rather than skipping. Enqueue while idle starts
// playback immediately.
type Queue struct {
	sink Sink
	// tick paces writes so Stop interrupts mid-item; non-positive
	// means write each item in one call (tests).
	tick time.Duration

	mu      sync.Mutex
	items   []Item
	playing bool
	gen     uint64

	played uint64
}

// NewQueue returns a Queue rendering to sink with 20ms write pacing.
func NewQueue(sink Sink) *Queue {
	return &Queue{sink: sink, tick: 20 * time.Millisecond}
}

// Playing reports whether an item is currently rendering.
func (q *Queue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// Played reports how many items have finished rendering.
func (q *Queue) Played() uint64 { return atomic.LoadUint64(&q.played) }

// Enqueue appends an item and starts the drain loop if idle.
func (q *Queue) Enqueue(it Item) {
	if len(it.PCM) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, it)
	if q.playing {
		q.mu.Unlock()
		return
	}
	q.playing = true
	gen := q.gen
	q.mu.Unlock()
	go q.drain(gen)
}

// Stop immediately halts current playback, clears the queue and resets
// the playing flag. Idempotent; safe to call while already stopped.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.items = nil
	q.gen++
	q.playing = false
	q.mu.Unlock()
	q.sink.Reset()
}

// drain pops and renders items until the queue empties or Stop bumps
// the generation.
func (q *Queue) drain(gen uint64) {
	for {
		q.mu.Lock()
		if q.gen != gen || len(q.items) == 0 {
			if q.gen == gen {
				q.playing = false
			}
			q.mu.Unlock()
			return
		}
		it := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		if q.render(it, gen) {
			atomic.AddUint64(&q.played, 1)
		}
	}
}

// render writes one item to the sink in paced chunks, checking for
// cancellation between writes. Returns true when the item completed.
func (q *Queue) render(it Item, gen uint64) bool {
	if err := q.sink.Start(it.SampleRate); err != nil {
		log.Printf("playback: sink start: %v", err)
		return false
	}
	chunk := len(it.PCM)
	if q.tick > 0 {
		// bytes per tick for mono PCM16
		chunk = int(int64(it.SampleRate*2) * int64(q.tick) / int64(time.Second))
		if chunk < 2 {
			chunk = 2
		}
	}
	for off := 0; off < len(it.PCM); off += chunk {
		q.mu.Lock()
		cancelled := q.gen != gen
		q.mu.Unlock()
		if cancelled {
			return false
		}
		end := off + chunk
		if end > len(it.PCM) {
			end = len(it.PCM)
		}
		if err := q.sink.Write(it.PCM[off:end]); err != nil {
			log.Printf("playback: sink write: %v", err)
			return false
		}
		if q.tick > 0 {
			time.Sleep(q.tick)
		}
	}
	return true
}
