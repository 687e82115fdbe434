package sdk

import (
	"log/slog"
	"sync"
	"time"

	"github.com/voicecode-ai/mentor/pkg/audio"
)

// Clock abstracts a monotonic playback timeline so scheduling can be tested
// without real sleeps.
type Clock interface {
	// Now is the position on the playback timeline since the clock started.
	Now() time.Duration
	// Sleep blocks until d has elapsed on the timeline.
	Sleep(d time.Duration)
}

type monotonicClock struct {
	start time.Time
}

func newMonotonicClock() *monotonicClock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() time.Duration    { return time.Since(c.start) }
func (c *monotonicClock) Sleep(d time.Duration) { time.Sleep(d) }

// PlaybackSink consumes decoded float32 audio, e.g. an ffplay process or a
// platform audio device.
type PlaybackSink interface {
	Play(samples []float32) error
	Close() error
}

// PlaybackScheduler plays inbound s16le chunks gaplessly and in arrival
// order. Chunks land in a FIFO queue; a single drain goroutine schedules
// each one at max(clock now, end of previous chunk) so back-to-back chunks
// are seamless and late arrivals start immediately instead of in the past.
type PlaybackScheduler struct {
	mu       sync.Mutex
	queue    [][]byte
	draining bool
	closed   bool
	next     time.Duration

	clock  Clock
	sink   PlaybackSink
	format audio.Format
	logger *slog.Logger
}

// NewPlaybackScheduler creates a scheduler over the wire format (16 kHz
// mono s16le) with a real monotonic clock.
func NewPlaybackScheduler(sink PlaybackSink, logger *slog.Logger) *PlaybackScheduler {
	return NewPlaybackSchedulerWithClock(sink, newMonotonicClock(), logger)
}

// NewPlaybackSchedulerWithClock creates a scheduler with a caller-supplied
// clock.
func NewPlaybackSchedulerWithClock(sink PlaybackSink, clock Clock, logger *slog.Logger) *PlaybackScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaybackScheduler{
		clock:  clock,
		sink:   sink,
		format: audio.WireFormat(),
		logger: logger,
	}
}

// Enqueue appends one s16le chunk to the playback queue and starts the
// drain goroutine when idle. Safe to call from the websocket read loop.
func (p *PlaybackScheduler) Enqueue(chunk []byte) {
	if p == nil || len(chunk) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.queue = append(p.queue, chunk)
	if !p.draining {
		p.draining = true
		go p.drain()
	}
}

func (p *PlaybackScheduler) drain() {
	for {
		p.mu.Lock()
		if p.closed || len(p.queue) == 0 {
			p.draining = false
			p.mu.Unlock()
			return
		}
		chunk := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		samples, err := audio.Decode(chunk)
		if err != nil {
			// Malformed chunk: skip it, keep the stream going.
			p.logger.Warn("skipping malformed audio chunk", "bytes", len(chunk), "error", err)
			continue
		}
		if len(samples) == 0 {
			continue
		}
		duration := p.format.Duration(len(chunk))

		p.mu.Lock()
		start := p.clock.Now()
		if p.next > start {
			start = p.next
		}
		p.next = start + duration
		p.mu.Unlock()

		if wait := start - p.clock.Now(); wait > 0 {
			p.clock.Sleep(wait)
		}
		if err := p.sink.Play(samples); err != nil {
			p.logger.Warn("playback sink write failed", "error", err)
		}
	}
}

// Reset drops all queued chunks and rewinds the scheduling cursor. The next
// chunk plays immediately. Audio already handed to the sink is not
// recalled.
func (p *PlaybackScheduler) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = nil
	p.next = 0
}

// Close resets the queue and releases the sink. The scheduler cannot be
// reused afterwards.
func (p *PlaybackScheduler) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.queue = nil
	p.next = 0
	p.mu.Unlock()
	return p.sink.Close()
}
