package capture

import "context"

// Config describes how the microphone should be captured.
type Config struct {
	SampleRate int
	Channels   int
	FrameMS    int
	Device     string
	FFmpegPath string
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 24000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.FrameMS <= 0 {
		c.FrameMS = 20
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	return c
}

// FrameBytes returns the size of one PCM16 capture frame.
func (c Config) FrameBytes() int {
	c = c.withDefaults()
	return c.SampleRate * c.FrameMS / 1000 * c.Channels * 2
}

// Source is a live microphone capture session. Frames carries raw
// PCM16 frames in capture order; the channel closes when capture
// stops, cleanly or not.
type Source interface {
	Start(ctx context.Context) error
	Frames() <-chan []byte
	Stop() error
}
