// Command make_call places a one-off outbound test call using the
// console's Twilio settings, without starting a session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kolektra/voiceops/pkg/contacts"
	"github.com/kolektra/voiceops/pkg/dialer"
	"github.com/kolektra/voiceops/pkg/voiceops"
)

func main() {
	configPath := flag.String("config", "examples/console/config.local.yaml", "")
	to := flag.String("to", "", "destination number")
	flag.Parse()
	if *to == "" {
		fmt.Println("usage: make_call -to=+63917xxxxxxx [-config=...]")
		os.Exit(1)
	}
	cfg, err := voiceops.LoadConfig(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	out := dialer.NewOutbound(dialer.OutboundConfig{
		AccountSID: cfg.Dialer.Outbound.AccountSID,
		AuthToken:  cfg.Dialer.Outbound.AuthToken,
		From:       cfg.Dialer.Outbound.From,
		PublicURL:  cfg.Dialer.Outbound.PublicURL,
		VoicePath:  cfg.Dialer.Outbound.VoicePath,
		ServerAddr: cfg.Dialer.Outbound.ServerAddr,
	})
	sid, err := out.Dial(context.Background(), contacts.Contact{ID: "test", Phone: *to})
	if err != nil {
		fmt.Println("dial error:", err)
		os.Exit(1)
	}
	fmt.Println("call sid:", sid)
}
