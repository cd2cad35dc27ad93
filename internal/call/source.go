package call

import (
	"io"
	"log"
	"os/exec"
	"strings"

	"github.com/fabbricca/cognitia/internal/audio"
)

// Source is a capture device delivering normalized mono sample blocks.
// Start returns an error when the device cannot be acquired; no retry
// is attempted by the pipeline. The Frames channel closes when capture
// ends.
type Source interface {
	Start() error
	Frames() <-chan []float32
	Stop()
}

// ReaderSource adapts an io.Reader of raw PCM16LE mono into a Source.
// Used for piped capture and in tests.
type ReaderSource struct {
	r       io.Reader
	chunk   int
	out     chan []float32
	stopCh  chan struct{}
	stopped bool
}

// NewReaderSource reads chunkSamples samples per block (a capture-side
// block size, unrelated to the framer's frame size).
func NewReaderSource(r io.Reader, chunkSamples int) *ReaderSource {
	if chunkSamples < 1 {
		chunkSamples = 512
	}
	return &ReaderSource{
		r:      r,
		chunk:  chunkSamples,
		out:    make(chan []float32, 16),
		stopCh: make(chan struct{}),
	}
}

func (s *ReaderSource) Start() error {
	go s.readLoop()
	return nil
}

func (s *ReaderSource) Frames() <-chan []float32 { return s.out }

func (s *ReaderSource) Stop() {
	if !s.stopped {
		s.stopped = true
		close(s.stopCh)
	}
}

func (s *ReaderSource) readLoop() {
	defer close(s.out)
	buf := make([]byte, s.chunk*2)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			samples := audio.PCM16LEToFloats(buf[:n-n%2])
			select {
			case s.out <- samples:
			case <-s.stopCh:
				return
			}
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				log.Printf("capture: read error: %v", err)
			}
			return
		}
	}
}

// ExecSource captures microphone audio by running an external command
// (ffmpeg, arecord, ...) that writes raw PCM16LE mono to stdout.
type ExecSource struct {
	cmdLine string
	inner   *ReaderSource
	cmd     *exec.Cmd
}

// NewExecSource builds a source from a shell-less command line, e.g.
// "ffmpeg -f alsa -i default -f s16le -ar 16000 -ac 1 -".
func NewExecSource(cmdLine string, chunkSamples int) *ExecSource {
	return &ExecSource{cmdLine: cmdLine, inner: NewReaderSource(nil, chunkSamples)}
}

func (s *ExecSource) Start() error {
	fields := strings.Fields(s.cmdLine)
	if len(fields) == 0 {
		return errEmptyMicCommand
	}
	cmd := exec.Command(fields[0], fields[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	s.cmd = cmd
	s.inner.r = stdout
	return s.inner.Start()
}

func (s *ExecSource) Frames() <-chan []float32 { return s.inner.Frames() }

func (s *ExecSource) Stop() {
	s.inner.Stop()
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
}
