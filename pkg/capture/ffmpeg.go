package capture

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/kolektra/voiceops/pkg/errorsx"
	"github.com/kolektra/voiceops/pkg/logging"
)

// FFmpegSource captures the default microphone through an ffmpeg
// subprocess emitting raw PCM16 on stdout.
type FFmpegSource struct {
	cfg    Config
	cmd    *exec.Cmd
	out    chan []byte
	closed atomic.Bool
	logger *slog.Logger
}

func NewFFmpegSource(cfg Config) *FFmpegSource {
	return &FFmpegSource{
		cfg:    cfg.withDefaults(),
		out:    make(chan []byte, 8),
		logger: logging.NewComponentLogger(slog.Default(), "capture"),
	}
}

func (s *FFmpegSource) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	inputFormat, device := defaultInput(s.cfg.Device)
	s.cmd = exec.CommandContext(ctx, s.cfg.FFmpegPath,
		"-f", inputFormat,
		"-i", device,
		"-f", "s16le",
		"-ar", strconv.Itoa(s.cfg.SampleRate),
		"-ac", strconv.Itoa(s.cfg.Channels),
		"-loglevel", "error",
		"pipe:1",
	)
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	var stderr strings.Builder
	s.cmd.Stderr = &stderr
	if err := s.cmd.Start(); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonMediaAccessDenied)
	}
	s.logger.Info("capture_started",
		"device", device,
		"sample_rate", s.cfg.SampleRate,
		"frame_ms", s.cfg.FrameMS)
	go s.readLoop(stdout, &stderr)
	return nil
}

func (s *FFmpegSource) readLoop(stdout io.Reader, stderr *strings.Builder) {
	defer close(s.out)
	frame := make([]byte, s.cfg.FrameBytes())
	for {
		if _, err := io.ReadFull(stdout, frame); err != nil {
			if !s.closed.Load() {
				// ffmpeg exiting immediately usually means the OS refused
				// the device.
				if denied(stderr.String()) {
					s.logger.Error("capture_media_access_denied", "detail", strings.TrimSpace(stderr.String()))
				} else if err != io.EOF {
					s.logger.Warn("capture_read_failed", "error", err.Error())
				}
			}
			return
		}
		buf := make([]byte, len(frame))
		copy(buf, frame)
		select {
		case s.out <- buf:
		default:
			// Keep latency bounded: drop rather than queue stale audio.
		}
	}
}

func (s *FFmpegSource) Frames() <-chan []byte { return s.out }

func (s *FFmpegSource) Stop() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	return nil
}

func defaultInput(device string) (string, string) {
	switch runtime.GOOS {
	case "darwin":
		if device == "" {
			device = ":0"
		}
		return "avfoundation", device
	case "windows":
		if device == "" {
			device = "audio=default"
		}
		return "dshow", device
	default:
		if device == "" {
			device = "default"
		}
		return "alsa", device
	}
}

func denied(stderr string) bool {
	l := strings.ToLower(stderr)
	return strings.Contains(l, "permission denied") ||
		strings.Contains(l, "operation not permitted") ||
		strings.Contains(l, "cannot open audio device")
}
