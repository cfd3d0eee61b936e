package dialer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kolektra/voiceops/pkg/contacts"
	"github.com/kolektra/voiceops/pkg/errorsx"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type callCreator interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
}

// OutboundConfig configures the Twilio PSTN leg.
type OutboundConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
	PublicURL  string `mapstructure:"public_url"`
	VoicePath  string `mapstructure:"voice_path"`
	ServerAddr string `mapstructure:"server_addr"`
}

func (c OutboundConfig) withDefaults() OutboundConfig {
	if c.VoicePath == "" {
		c.VoicePath = "/voice"
	}
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	return c
}

// Outbound places the phone-network call that bridges a contact into a
// dialogue session, via the Twilio REST API.
type Outbound struct {
	cfg    OutboundConfig
	client callCreator
}

func NewOutbound(cfg OutboundConfig) *Outbound {
	return &Outbound{cfg: cfg.withDefaults()}
}

// Dial rings the contact and returns the provider call SID.
func (d *Outbound) Dial(ctx context.Context, c contacts.Contact) (string, error) {
	_ = ctx
	if c.Phone == "" {
		return "", errorsx.Wrap(errors.New("contact has no phone number"), errorsx.ReasonDialFailed)
	}
	if d.cfg.From == "" {
		return "", errorsx.Wrap(errors.New("from number required"), errorsx.ReasonDialFailed)
	}
	if d.cfg.AccountSID == "" || d.cfg.AuthToken == "" {
		return "", errorsx.Wrap(errors.New("missing twilio credentials"), errorsx.ReasonDialFailed)
	}
	client := d.client
	if client == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: d.cfg.AccountSID,
			Password: d.cfg.AuthToken,
		})
		client = rest.Api
	}
	params := &api.CreateCallParams{}
	params.SetTo(c.Phone)
	params.SetFrom(d.cfg.From)
	params.SetUrl(d.voiceWebhookURL())
	resp, err := client.CreateCall(params)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonDialFailed)
	}
	if resp == nil || resp.Sid == nil {
		return "", errorsx.Wrap(fmt.Errorf("missing call sid"), errorsx.ReasonDialFailed)
	}
	return *resp.Sid, nil
}

func (d *Outbound) voiceWebhookURL() string {
	if d.cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(d.cfg.PublicURL) + d.cfg.VoicePath
	}
	addr := d.cfg.ServerAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + d.cfg.VoicePath
}

func normalizePublicURL(u string) string {
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	return strings.TrimSuffix(u, "/")
}
