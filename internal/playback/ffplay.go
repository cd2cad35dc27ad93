package playback

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// FFPlaySink renders PCM16LE mono by piping it to an ffplay subprocess.
// Reset restarts the process, which is the only reliable way to drop
// audio ffplay has already buffered.
type FFPlaySink struct {
	path string

	mu         sync.Mutex
	sampleRate int
	cmd        *exec.Cmd
	stdin      io.WriteCloser
}

// NewFFPlaySink returns a sink using the given ffplay binary path
// (empty -> "ffplay"). The process starts lazily on the first Start.
func NewFFPlaySink(path string) *FFPlaySink {
	if path == "" {
		path = "ffplay"
	}
	return &FFPlaySink{path: path}
}

// Start ensures ffplay is running at the given sample rate, restarting
// it when the rate changes between items.
func (s *FFPlaySink) Start(sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil && s.sampleRate == sampleRate {
		return nil
	}
	s.closeLocked()
	return s.startLocked(sampleRate)
}

func (s *FFPlaySink) startLocked(sampleRate int) error {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-nodisp",
		"-f", "s16le",
		"-ch_layout", "mono",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-i", "-",
	}
	cmd := exec.Command(s.path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return err
	}
	s.cmd = cmd
	s.stdin = stdin
	s.sampleRate = sampleRate
	go func(c *exec.Cmd) {
		_ = c.Wait()
		s.mu.Lock()
		if s.cmd == c {
			s.cmd = nil
			s.stdin = nil
		}
		s.mu.Unlock()
	}(cmd)
	return nil
}

// Write streams PCM to the running process. The pipe applies natural
// backpressure once ffplay's input buffer fills.
func (s *FFPlaySink) Write(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("ffplay is not running")
	}
	_, err := stdin.Write(pcm)
	return err
}

// Reset kills the process so buffered audio stops immediately. The next
// Start relaunches it.
func (s *FFPlaySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// Close stops the process for good.
func (s *FFPlaySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *FFPlaySink) closeLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
	s.stdin = nil
	s.sampleRate = 0
}
