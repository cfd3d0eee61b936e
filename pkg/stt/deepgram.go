package stt

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kolektra/voiceops/pkg/logging"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// DeepgramConfig configures the streaming recognition backend.
type DeepgramConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Language   string `mapstructure:"language"`
	SampleRate int    `mapstructure:"sample_rate"`
	Interim    bool   `mapstructure:"interim"`
	SessionID  string `mapstructure:"-"`
}

// Deepgram streams linear PCM to Deepgram's live transcription API
// over a websocket and surfaces transcripts as Results.
type Deepgram struct {
	cfg DeepgramConfig

	dgClient   *client.WSCallback
	out        chan Result
	ctx        context.Context
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	logger     *slog.Logger
}

func NewDeepgram(cfg DeepgramConfig) *Deepgram {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 8000
	}
	return &Deepgram{
		cfg:    cfg,
		out:    make(chan Result, 256),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}
}

func (d *Deepgram) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.pipeReader, d.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.cfg.Model,
		Language:       d.cfg.Language,
		Encoding:       "linear16",
		SampleRate:     d.cfg.SampleRate,
		InterimResults: d.cfg.Interim,
		SmartFormat:    true,
	}

	d.logger.Info("initializing deepgram connection",
		slog.String("session_id", d.cfg.SessionID),
		slog.String("model", d.cfg.Model),
		slog.Int("sample_rate", d.cfg.SampleRate))

	cb := &callback{parent: d}
	dgClient, err := client.NewWSUsingCallback(d.ctx, d.cfg.APIKey, clientOptions, transcriptOptions, cb)
	if err != nil {
		d.logger.Error("deepgram_client_create_error",
			slog.String("error", err.Error()),
			slog.String("session_id", d.cfg.SessionID))
		return err
	}
	d.dgClient = dgClient

	if connected := d.dgClient.Connect(); !connected {
		d.logger.Error("deepgram_connect_failed",
			slog.String("session_id", d.cfg.SessionID))
		return fmt.Errorf("deepgram connection failed")
	}

	go func() {
		if err := d.dgClient.Stream(d.pipeReader); err != nil && d.ctx.Err() == nil {
			d.logger.Error("deepgram_stream_error",
				slog.String("error", err.Error()),
				slog.String("session_id", d.cfg.SessionID))
		}
	}()

	return nil
}

func (d *Deepgram) SendAudio(pcm []byte) error {
	if d.pipeWriter == nil {
		return fmt.Errorf("not started")
	}
	_, err := d.pipeWriter.Write(pcm)
	if err != nil {
		d.logger.Error("deepgram_send_error",
			slog.String("error", err.Error()),
			slog.String("session_id", d.cfg.SessionID))
	}
	return err
}

func (d *Deepgram) Results() <-chan Result { return d.out }

func (d *Deepgram) Close() error {
	d.logger.Info("closing deepgram connection",
		slog.String("session_id", d.cfg.SessionID))
	if d.cancel != nil {
		d.cancel()
	}
	if d.pipeWriter != nil {
		_ = d.pipeWriter.Close()
	}
	if d.dgClient != nil {
		d.dgClient.Stop()
	}
	return nil
}

type callback struct {
	parent *Deepgram
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened",
		slog.String("session_id", c.parent.cfg.SessionID))
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	text := mr.Channel.Alternatives[0].Transcript
	if text == "" {
		return nil
	}
	res := Result{Text: text, Final: mr.IsFinal || mr.SpeechFinal}
	select {
	case c.parent.out <- res:
	default:
		c.parent.logger.Warn("deepgram_out_channel_full",
			slog.String("session_id", c.parent.cfg.SessionID))
	}
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.parent.logger.Debug("deepgram_metadata_received",
		slog.String("session_id", c.parent.cfg.SessionID),
		slog.String("request_id", md.RequestID))
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed",
		slog.String("session_id", c.parent.cfg.SessionID))
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error",
		slog.String("session_id", c.parent.cfg.SessionID),
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	return nil
}

var _ Transcriber = (*Deepgram)(nil)
