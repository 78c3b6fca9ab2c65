package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// BytesPerSample is the width of one signed 16-bit little-endian sample
	BytesPerSample = 2

	// CaptureSampleRate is the rate microphone frames are encoded at
	CaptureSampleRate = 16000

	// PlaybackSampleRate is the rate the remote model streams audio at
	PlaybackSampleRate = 24000
)

// Blob is a transport-ready audio frame: base64 PCM text plus its format tag
type Blob struct {
	MIMEType string
	Data     string
}

// DecodeError reports an audio payload that cannot be turned into samples
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode audio: %s: %v", e.Reason, e.Err)
	}
	return "decode audio: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MIMEType returns the PCM descriptor for the given sample rate
func MIMEType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// Encode packs a capture frame as base64 PCM16 tagged for 16 kHz
func Encode(frame []float32) Blob {
	return EncodeRate(frame, CaptureSampleRate)
}

// EncodeRate packs samples in [-1, 1] as base64 PCM16 LE tagged with sampleRate
func EncodeRate(frame []float32, sampleRate int) Blob {
	return Blob{
		MIMEType: MIMEType(sampleRate),
		Data:     base64.StdEncoding.EncodeToString(convertToBytes(frame)),
	}
}

// Decode reverses the transport encoding of an audio payload
func Decode(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64 payload", Err: err}
	}
	return raw, nil
}

// DecodeAudioData interprets raw PCM16 LE bytes as a playable chunk
func DecodeAudioData(raw []byte, sampleRate, channels int) (*Chunk, error) {
	if sampleRate <= 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid sample rate %d", sampleRate)}
	}
	if channels <= 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid channel count %d", channels)}
	}
	frameWidth := BytesPerSample * channels
	if len(raw)%frameWidth != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("payload of %d bytes is not a multiple of %d", len(raw), frameWidth)}
	}

	samples := convertBytesToSamples(raw)
	frames := len(samples) / channels
	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			data[c][i] = float32(samples[i*channels+c]) / 32768.0
		}
	}

	return &Chunk{SampleRate: sampleRate, Data: data}, nil
}

func convertToBytes(frame []float32) []byte {
	buf := make([]byte, len(frame)*BytesPerSample)
	for i, s := range frame {
		binary.LittleEndian.PutUint16(buf[i*BytesPerSample:], uint16(toInt16(s)))
	}
	return buf
}

func convertBytesToSamples(raw []byte) []int16 {
	samples := make([]int16, len(raw)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*BytesPerSample:]))
	}
	return samples
}

func toInt16(s float32) int16 {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int16(math.Round(v * math.MaxInt16))
}
