// Package audio holds the PCM format math and sample conversion shared by
// the capture and playback paths. All wire audio is 16 kHz mono signed
// 16-bit little-endian PCM.
package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Format specifies raw PCM parameters.
type Format struct {
	// SampleRate in Hz.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: 16 for s16le PCM.
	BitsPerSample int `json:"bits_per_sample"`
}

// WireFormat returns the duplex stream format: 16 kHz mono s16le.
func WireFormat() Format {
	return Format{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the audio byte rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * (f.BitsPerSample / 8)
}

// Duration returns the playback duration of the given byte count.
func (f Format) Duration(nbytes int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(nbytes) * time.Second / time.Duration(bps)
}

// BytesFor returns the byte count covering the given duration.
func (f Format) BytesFor(d time.Duration) int {
	return int(d * time.Duration(f.BytesPerSecond()) / time.Second)
}

// EncodeSample converts one float32 sample in [-1, 1] to a signed 16-bit
// value. Input is clamped; negative samples scale by 32768 and non-negative
// by 32767 so both ends of the range are reachable.
func EncodeSample(s float32) int16 {
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// Encode converts float32 samples to s16le bytes.
func Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(EncodeSample(s)))
	}
	return out
}

// DecodeSample converts one signed 16-bit value back to float32.
func DecodeSample(v int16) float32 {
	return float32(v) / 32768.0
}

// Decode converts s16le bytes to float32 samples. The byte count must be
// even; a truncated chunk is rejected rather than silently dropped.
func Decode(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("audio: odd pcm chunk length %d", len(data))
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = DecodeSample(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return out, nil
}
