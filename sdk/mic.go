package sdk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/voicecode-ai/mentor/pkg/audio"
)

// MicSource captures the default microphone through ffmpeg, asking it for
// 16 kHz mono float32 samples so the OS-level resample happens before the
// samples reach AudioCapture. Implements CaptureSource.
type MicSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// NewMicSource starts the capture process. A missing ffmpeg binary or an
// unsupported platform is the CLI equivalent of denied mic permission: the
// error goes back to the caller and no audio ever flows.
func NewMicSource() (*MicSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, errors.New("ffmpeg is required for mic capture (install ffmpeg and ensure it is in PATH)")
	}
	args, err := micFFmpegArgs(runtime.GOOS)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg mic capture: %w", err)
	}
	return &MicSource{cmd: cmd, stdout: stdout}, nil
}

func micFFmpegArgs(goos string) ([]string, error) {
	rate := strconv.Itoa(audio.WireFormat().SampleRate)
	switch goos {
	case "darwin":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "avfoundation", "-i", ":0",
			"-ac", "1", "-ar", rate,
			"-f", "f32le", "-",
		}, nil
	case "linux":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "pulse", "-i", "default",
			"-ac", "1", "-ar", rate,
			"-f", "f32le", "-",
		}, nil
	default:
		return nil, fmt.Errorf("mic capture is not implemented for %s; supported platforms: darwin, linux", goos)
	}
}

// Read fills buf with float32 samples from the capture process.
func (m *MicSource) Read(buf []float32) (int, error) {
	if m == nil || m.stdout == nil {
		return 0, io.EOF
	}
	raw := make([]byte, len(buf)*4)
	n, err := io.ReadFull(m.stdout, raw)
	samples := n / 4
	for i := 0; i < samples; i++ {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	if samples > 0 && errors.Is(err, io.EOF) {
		return samples, nil
	}
	return samples, err
}

// Close kills the capture process. Safe to call more than once.
func (m *MicSource) Close() error {
	if m == nil {
		return nil
	}
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
		_ = m.cmd.Wait()
	}
	return nil
}
