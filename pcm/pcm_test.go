package pcm

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncode(t *testing.T) {
	blob := Encode([]float32{0, 1, -1, 0.5})

	assert.Equal(t, "audio/pcm;rate=16000", blob.MIMEType)

	raw, err := base64.StdEncoding.DecodeString(blob.Data)
	require.NoError(t, err)
	require.Len(t, raw, 8)

	// 0, 32767, -32767, 16384 little-endian
	assert.Equal(t, []byte{0x00, 0x00, 0xff, 0x7f, 0x01, 0x80, 0x00, 0x40}, raw)
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	blob := Encode([]float32{2, -3})

	raw, err := Decode(blob.Data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0x7f, 0x01, 0x80}, raw)
}

func TestEncodeIsDeterministic(t *testing.T) {
	frame := []float32{0.1, -0.2, 0.3}
	assert.Equal(t, Encode(frame), Encode(frame))
}

func TestEncodeRate(t *testing.T) {
	blob := EncodeRate([]float32{0}, 24000)
	assert.Equal(t, "audio/pcm;rate=24000", blob.MIMEType)
}

func TestDecodeInvalidBase64(t *testing.T) {
	_, err := Decode("not base64!")
	require.Error(t, err)

	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestDecodeAudioData(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		channels int
		want     [][]float32
		wantErr  bool
	}{
		{
			name:     "empty payload",
			raw:      []byte{},
			channels: 1,
			want:     [][]float32{{}},
		},
		{
			name:     "mono",
			raw:      []byte{0x00, 0x40, 0x00, 0xc0},
			channels: 1,
			want:     [][]float32{{0.5, -0.5}},
		},
		{
			name:     "stereo is de-interleaved",
			raw:      []byte{0x00, 0x40, 0x00, 0xc0, 0x00, 0x00, 0x00, 0x80},
			channels: 2,
			want:     [][]float32{{0.5, 0}, {-0.5, -1}},
		},
		{
			name:     "odd byte count",
			raw:      []byte{0x00, 0x40, 0x00},
			channels: 1,
			wantErr:  true,
		},
		{
			name:     "partial stereo frame",
			raw:      []byte{0x00, 0x40, 0x00, 0xc0, 0x00, 0x00},
			channels: 2,
			wantErr:  true,
		},
		{
			name:     "no channels",
			raw:      []byte{0x00, 0x40},
			channels: 0,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, err := DecodeAudioData(tt.raw, PlaybackSampleRate, tt.channels)
			if tt.wantErr {
				var decodeErr *DecodeError
				require.ErrorAs(t, err, &decodeErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, PlaybackSampleRate, chunk.SampleRate)
			assert.Equal(t, tt.want, chunk.Data)
		})
	}
}

func TestChunkDuration(t *testing.T) {
	chunk, err := DecodeAudioData(make([]byte, 2*24000), PlaybackSampleRate, 1)
	require.NoError(t, err)

	assert.Equal(t, 24000, chunk.Frames())
	assert.InDelta(t, 1.0, chunk.Duration(), 1e-12)
	assert.Equal(t, 0.0, (&Chunk{}).Duration())
}

func TestChunkMono(t *testing.T) {
	chunk := &Chunk{SampleRate: 24000, Data: [][]float32{{0.5, 1}, {-0.5, 0}}}
	assert.Equal(t, []float32{0, 0.5}, chunk.Mono())

	single := &Chunk{SampleRate: 24000, Data: [][]float32{{0.25}}}
	assert.Equal(t, []float32{0.25}, single.Mono())
}

func TestRoundTripWithinQuantization(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frame := rapid.SliceOf(rapid.Float32Range(-1, 1)).Draw(t, "frame")

		raw, err := Decode(Encode(frame).Data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		chunk, err := DecodeAudioData(raw, CaptureSampleRate, 1)
		if err != nil {
			t.Fatalf("decode audio data: %v", err)
		}
		if chunk.Frames() != len(frame) {
			t.Fatalf("frames = %d, want %d", chunk.Frames(), len(frame))
		}

		const tolerance = 2.0 / 32768
		for i, s := range frame {
			got := chunk.Data[0][i]
			diff := float64(got - s)
			if diff < 0 {
				diff = -diff
			}
			if diff > tolerance {
				t.Fatalf("sample %d: got %v, want %v (diff %v)", i, got, s, diff)
			}
		}
	})
}
