package playback

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// SpeakerConfig configures the ffplay subprocess sink.
type SpeakerConfig struct {
	FFPlayPath string
	SampleRate int
	Channels   int
	LogLevel   string
}

func (c SpeakerConfig) withDefaults() SpeakerConfig {
	if c.FFPlayPath == "" {
		c.FFPlayPath = "ffplay"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 24000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "error"
	}
	return c
}

// Speaker plays raw PCM through an ffplay subprocess reading stdin.
type Speaker struct {
	cfg   SpeakerConfig
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu     sync.Mutex
	closed bool
}

func NewSpeaker(cfg SpeakerConfig) (*Speaker, error) {
	cfg = cfg.withDefaults()
	cmd := exec.Command(cfg.FFPlayPath,
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ch_layout", layoutForChannels(cfg.Channels),
		"-nodisp",
		"-loglevel", cfg.LogLevel,
		"-i", "pipe:0",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.FFPlayPath, err)
	}
	return &Speaker{cfg: cfg, cmd: cmd, stdin: stdin}, nil
}

func (s *Speaker) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("speaker closed")
	}
	_, err := s.stdin.Write(pcm)
	return err
}

func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}

func layoutForChannels(ch int) string {
	if ch == 2 {
		return "stereo"
	}
	return "mono"
}
