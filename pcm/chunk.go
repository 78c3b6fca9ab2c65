package pcm

// Chunk is decoded playable audio: one plane of samples per channel
type Chunk struct {
	SampleRate int
	Data       [][]float32
}

// Channels returns the number of sample planes
func (c *Chunk) Channels() int {
	return len(c.Data)
}

// Frames returns the number of samples per channel
func (c *Chunk) Frames() int {
	if len(c.Data) == 0 {
		return 0
	}
	return len(c.Data[0])
}

// Duration returns the chunk length in seconds
func (c *Chunk) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.SampleRate)
}

// Mono folds every channel into a single plane by averaging
func (c *Chunk) Mono() []float32 {
	switch len(c.Data) {
	case 0:
		return nil
	case 1:
		return c.Data[0]
	}

	out := make([]float32, c.Frames())
	scale := 1 / float32(len(c.Data))
	for _, plane := range c.Data {
		for i, s := range plane {
			out[i] += s * scale
		}
	}
	return out
}
