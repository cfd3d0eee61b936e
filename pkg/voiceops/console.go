package voiceops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kolektra/voiceops/pkg/artifact"
	"github.com/kolektra/voiceops/pkg/capture"
	"github.com/kolektra/voiceops/pkg/configutil"
	"github.com/kolektra/voiceops/pkg/contacts"
	"github.com/kolektra/voiceops/pkg/dialer"
	"github.com/kolektra/voiceops/pkg/dialogue"
	"github.com/kolektra/voiceops/pkg/dialogue/mock"
	"github.com/kolektra/voiceops/pkg/dialogue/realtime"
	"github.com/kolektra/voiceops/pkg/logging"
	"github.com/kolektra/voiceops/pkg/persona"
	"github.com/kolektra/voiceops/pkg/playback"
	"github.com/kolektra/voiceops/pkg/session"
	"github.com/kolektra/voiceops/pkg/stt"
)

// Console is the assembled voice operations center: one dialogue
// provider, one recorder, one autodialer, building a fresh session per
// dialed contact.
type Console struct {
	cfg       Config
	logger    *slog.Logger
	provider  dialogue.Provider
	directory contacts.Directory
	persona   persona.Persona
	tactic    persona.Tactic

	recorder     *artifact.Recorder
	activity     *artifact.AsyncActivityLog
	orchestrator *dialer.Orchestrator
	outbound     *dialer.Outbound

	files []io.Closer
}

func NewConsole(cfg Config, directory contacts.Directory) (*Console, error) {
	c := &Console{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(slog.Default(), "console"),
		directory: directory,
		persona: persona.Persona{
			ID:       cfg.Persona.ID,
			Name:     cfg.Persona.Name,
			Traits:   cfg.Persona.Traits,
			Voice:    cfg.Persona.Voice,
			Language: cfg.Persona.Language,
			Status:   persona.StatusTrained,
		},
		tactic: persona.ParseTactic(cfg.Session.Tactic),
	}

	provider, err := buildDialogueProvider(cfg.Dialogue)
	if err != nil {
		return nil, err
	}
	c.provider = provider

	sink, err := c.openRecordSink()
	if err != nil {
		return nil, err
	}
	activityWriter, err := c.openActivityWriter()
	if err != nil {
		return nil, err
	}
	c.activity = artifact.NewAsyncActivityLog(artifact.NewJSONLActivityLog(activityWriter), 256)
	c.recorder = artifact.NewRecorder(sink, artifact.WithActivity(c.activity))

	if cfg.Dialer.Outbound.Enabled {
		c.outbound = dialer.NewOutbound(dialer.OutboundConfig{
			AccountSID: cfg.Dialer.Outbound.AccountSID,
			AuthToken:  cfg.Dialer.Outbound.AuthToken,
			From:       cfg.Dialer.Outbound.From,
			PublicURL:  cfg.Dialer.Outbound.PublicURL,
			VoicePath:  cfg.Dialer.Outbound.VoicePath,
			ServerAddr: cfg.Dialer.Outbound.ServerAddr,
		})
	}

	c.orchestrator = dialer.New(c.newCall, dialer.Config{
		Cooldown: time.Duration(cfg.Dialer.CooldownMS) * time.Millisecond,
	})
	return c, nil
}

// Start lists overdue contacts and begins the autodial run.
func (c *Console) Start(ctx context.Context, filter contacts.Filter) error {
	list, err := c.directory.ListOverdue(ctx, filter)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("no overdue contacts match the filter")
	}
	return c.orchestrator.Start(ctx, list)
}

// DialContact places a single manual call outside the queue.
func (c *Console) DialContact(ctx context.Context, contact contacts.Contact) (dialer.Call, error) {
	return c.orchestrator.DialOne(ctx, contact)
}

// Stop halts the queue after the in-flight call finishes.
func (c *Console) Stop() { c.orchestrator.Stop() }

func (c *Console) Orchestrator() *dialer.Orchestrator { return c.orchestrator }

func (c *Console) Recorder() *artifact.Recorder { return c.recorder }

// Drain flushes buffered records and closes the activity feed and
// artifact files. Used as the lifecycle runner's drain step.
func (c *Console) Drain() error {
	c.orchestrator.Stop()
	err := c.recorder.FlushRetries()
	c.activity.Close()
	for _, f := range c.files {
		_ = f.Close()
	}
	return err
}

func (c *Console) newCall(contact contacts.Contact) dialer.Call {
	sched := playback.NewScheduler(c.newPlaybackSink(), c.cfg.Session.SampleRate)
	sess := session.New(session.Config{
		Contact:        contact,
		Persona:        c.persona,
		Tactic:         c.tactic,
		Provider:       c.provider,
		Source:         c.newCaptureSource(),
		Playback:       sched,
		Finalizer:      c.recorder,
		Backup:         c.newBackupTranscriber(),
		ConnectTimeout: time.Duration(c.cfg.Session.ConnectTimeoutMS) * time.Millisecond,
		SampleRate:     c.cfg.Session.SampleRate,
	})
	return &consoleCall{
		Session:  sess,
		outbound: c.outbound,
		contact:  contact,
		logger:   c.logger,
	}
}

func (c *Console) newCaptureSource() capture.Source {
	if strings.EqualFold(c.cfg.Capture.Backend, "mock") {
		return capture.NewMockSource()
	}
	return capture.NewFFmpegSource(capture.Config{
		SampleRate: c.cfg.Capture.SampleRate,
		Channels:   c.cfg.Capture.Channels,
		FrameMS:    c.cfg.Capture.FrameMS,
		Device:     c.cfg.Capture.Device,
		FFmpegPath: c.cfg.Capture.FFmpegPath,
	})
}

func (c *Console) newPlaybackSink() playback.Sink {
	switch strings.ToLower(c.cfg.Playback.Backend) {
	case "discard", "none":
		return discardSink{}
	}
	speaker, err := playback.NewSpeaker(playback.SpeakerConfig{
		FFPlayPath: c.cfg.Playback.FFPlayPath,
		SampleRate: c.cfg.Session.SampleRate,
		Channels:   1,
	})
	if err != nil {
		c.logger.Warn("speaker_unavailable", slog.String("error", err.Error()))
		return discardSink{}
	}
	return speaker
}

func (c *Console) newBackupTranscriber() stt.Transcriber {
	switch strings.ToLower(c.cfg.BackupSTT.Provider) {
	case "deepgram":
		if err := configutil.ValidateSettings(c.cfg.BackupSTT.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "language", "sample_rate", "interim"},
		}); err != nil {
			c.logger.Warn("backup_stt_settings_invalid", slog.String("error", err.Error()))
			return nil
		}
		var dc stt.DeepgramConfig
		if err := configutil.DecodeSettings(c.cfg.BackupSTT.Settings, &dc); err != nil {
			c.logger.Warn("backup_stt_settings_invalid", slog.String("error", err.Error()))
			return nil
		}
		if dc.SampleRate == 0 {
			dc.SampleRate = c.cfg.Capture.SampleRate
		}
		return stt.NewDeepgram(dc)
	case "mock":
		return stt.NewMock()
	default:
		return nil
	}
}

func (c *Console) openRecordSink() (artifact.RecordingSink, error) {
	if c.cfg.Artifacts.RecordsPath == "" {
		return artifact.NewMemorySink(), nil
	}
	f, err := os.OpenFile(c.cfg.Artifacts.RecordsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open records file: %w", err)
	}
	c.files = append(c.files, f)
	return artifact.NewJSONLSink(f), nil
}

func (c *Console) openActivityWriter() (io.Writer, error) {
	if c.cfg.Artifacts.ActivityPath == "" {
		return nil, nil
	}
	f, err := os.OpenFile(c.cfg.Artifacts.ActivityPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open activity file: %w", err)
	}
	c.files = append(c.files, f)
	return f, nil
}

func buildDialogueProvider(pc ProviderConfig) (dialogue.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(pc.Provider)) {
	case "realtime":
		if err := configutil.ValidateSettings(pc.Settings, configutil.Schema{
			Required: []string{"url"},
			Optional: []string{"api_key", "model", "sample_rate", "dial_timeout_ms"},
		}); err != nil {
			return nil, fmt.Errorf("dialogue.settings: %w", err)
		}
		var rc realtime.Config
		if err := configutil.DecodeSettings(pc.Settings, &rc); err != nil {
			return nil, fmt.Errorf("dialogue settings: %w", err)
		}
		if err := configutil.RequireString(rc.URL, "dialogue.settings.url"); err != nil {
			return nil, err
		}
		return realtime.New(rc), nil
	case "mock":
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unknown dialogue provider %q", pc.Provider)
	}
}

// consoleCall couples the PSTN leg to the media session: the phone
// call is placed first, then the dialogue connection opens.
type consoleCall struct {
	*session.Session
	outbound *dialer.Outbound
	contact  contacts.Contact
	logger   *slog.Logger
}

func (c *consoleCall) Open(ctx context.Context) error {
	if c.outbound != nil {
		sid, err := c.outbound.Dial(ctx, c.contact)
		if err != nil {
			// The phone never rang; close out as connection failed so
			// the queue can move on.
			c.Session.Close(session.OutcomeConnectionFailed)
			return err
		}
		c.logger.Info("outbound_call_placed",
			slog.String("contact_id", c.contact.ID),
			slog.String("call_sid", sid))
	}
	return c.Session.Open(ctx)
}

type discardSink struct{}

func (discardSink) Write([]byte) error { return nil }
func (discardSink) Close() error       { return nil }
