package sdk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"sync"

	"github.com/voicecode-ai/mentor/pkg/audio"
)

// Speaker plays decoded float32 audio through an ffplay process reading
// f32le from stdin. Implements PlaybackSink.
type Speaker struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewSpeaker starts the playback process.
func NewSpeaker() (*Speaker, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, errors.New("ffplay is required for audio playback (install ffmpeg/ffplay and ensure it is in PATH)")
	}
	s := &Speaker{}
	if err := s.startLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Speaker) startLocked() error {
	s.cmd = exec.Command("ffplay",
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "f32le",
		"-ar", strconv.Itoa(audio.WireFormat().SampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	)
	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffplay stdin: %w", err)
	}
	s.cmd.Stdout = io.Discard
	s.cmd.Stderr = io.Discard
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	s.stdin = stdin
	return nil
}

// Play writes one buffer of samples to the playback process.
func (s *Speaker) Play(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin == nil {
		return errors.New("ffplay stdin is not initialized")
	}
	raw := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	_, err := s.stdin.Write(raw)
	return err
}

// Close kills the playback process. Safe to call more than once.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.stdin = nil
	return nil
}
