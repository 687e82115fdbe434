package sdk

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/voicecode-ai/mentor/pkg/audio"
)

// captureBufferSamples is the read size per capture iteration: 1024 samples
// at 16 kHz, 64 ms per frame.
const captureBufferSamples = 1024

// CaptureSource delivers float32 microphone samples in [-1, 1] at 16 kHz
// mono. Read follows the io.Reader contract: it may return n > 0 together
// with an error, and io.EOF ends the stream.
type CaptureSource interface {
	Read(buf []float32) (int, error)
	Close() error
}

// FrameSink receives encoded s16le frames. Frames produced while the sink
// is not ready are dropped; the capture loop never buffers across a
// disconnect, so stale audio cannot burst out on reconnect.
type FrameSink interface {
	Ready() bool
	SendFrame(pcm []byte) error
}

// AudioCapture pulls samples from a CaptureSource on its own goroutine,
// converts them to wire PCM and feeds a FrameSink.
type AudioCapture struct {
	mu      sync.Mutex
	src     CaptureSource
	done    chan struct{}
	started bool
	logger  *slog.Logger
}

// NewAudioCapture creates an idle capture. Start begins streaming.
func NewAudioCapture(logger *slog.Logger) *AudioCapture {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioCapture{logger: logger}
}

// Start begins the capture loop. Calling Start while running is a no-op.
func (a *AudioCapture) Start(src CaptureSource, sink FrameSink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}
	a.started = true
	a.src = src
	a.done = make(chan struct{})
	go a.loop(src, sink, a.done)
}

func (a *AudioCapture) loop(src CaptureSource, sink FrameSink, done chan struct{}) {
	defer close(done)
	buf := make([]float32, captureBufferSamples)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if sink.Ready() {
				frame := audio.Encode(buf[:n])
				if serr := sink.SendFrame(frame); serr != nil {
					a.logger.Warn("dropping mic frame, send failed", "error", serr)
				}
			}
			// Not ready: frame dropped on the floor.
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.logger.Warn("mic source read failed", "error", err)
			}
			return
		}
	}
}

// Stop closes the source and waits for the capture goroutine to exit.
// Idempotent.
func (a *AudioCapture) Stop() {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	src := a.src
	done := a.done
	a.src = nil
	a.mu.Unlock()

	if src != nil {
		_ = src.Close()
	}
	if done != nil {
		<-done
	}
}
