package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/negotiate"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/webrtcpeer"
)

func runParty(ctx context.Context, cmd *cobra.Command, client *relayClient, id string) error {
	log := slog.Default().With("session_id", id, "peer_id", uuid.NewString())
	out := cmd.OutOrStdout()

	iceServers, err := client.ICEServers(ctx, id)
	if err != nil {
		log.Warn("using fallback ice servers", "err", err)
	}
	if len(iceServers) == 0 {
		iceServers = fallbackICEServers(flagSTUNURLs)
	}

	api, err := webrtcpeer.NewAPI(webrtcpeer.APIConfig{Logger: log})
	if err != nil {
		return err
	}
	tr, err := webrtcpeer.NewTransport(api, webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}
	defer tr.Close()

	ch, err := negotiate.DialChannel(ctx, client.SessionURL(id), nil)
	if err != nil {
		return describeDialError(id, err)
	}
	defer ch.Close()

	eng := negotiate.NewEngine(ch, tr, engineConfig(), log)
	tr.Attach(eng)
	tr.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Debug("peer connection state", "state", s.String())
	})

	chat, err := webrtcpeer.OpenChatChannel(tr)
	if err != nil {
		return err
	}
	chat.OnOpen(func() {
		fmt.Fprintln(out, statusLine("connected, type to chat"))
	})
	chat.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			fmt.Fprintln(out, peerLine(string(msg.Data)))
		}
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run(runCtx) }()
	go pumpLines(cmd.InOrStdin(), chat, out)

	fmt.Fprintln(out, statusLine("waiting for the other party"))

	var fatal error
	for ev := range eng.Events() {
		switch ev.Kind {
		case negotiate.EventConnect:
			log.Debug("other party present", "polite", eng.Polite())
		case negotiate.EventTrack:
			log.Info("remote track", "kind", ev.Track.Kind().String())
		case negotiate.EventDisconnect:
			fmt.Fprintln(out, statusLine("session closed"))
		case negotiate.EventError:
			if fatal == nil {
				fatal = ev.Err
			}
			cancel()
		}
	}

	err = <-runErr
	fmt.Fprintln(out, statsTable(eng))
	switch {
	case fatal != nil:
		return fatal
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

func engineConfig() negotiate.Config {
	cfg := negotiate.DefaultConfig()
	if !flagNoStereo {
		cfg.RewriteSDP = negotiate.StereoOpus
	}
	if flagLegacyBit {
		cfg.Politeness = negotiate.PolitenessInvertPeerBit
	}
	return cfg
}

func fallbackICEServers(rawSTUN string) []webrtc.ICEServer {
	urls := config.SplitCommaSeparated(rawSTUN)
	if len(urls) == 0 {
		return config.DefaultICEServers()
	}
	return []webrtc.ICEServer{{URLs: urls}}
}

func describeDialError(id string, err error) error {
	var dialErr *negotiate.DialError
	if errors.As(err, &dialErr) {
		switch dialErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("session %s does not exist (or has already ended)", id)
		case http.StatusConflict:
			return fmt.Errorf("session %s already has two parties", id)
		}
	}
	return fmt.Errorf("join session %s: %w", id, err)
}

// pumpLines sends every stdin line over the chat channel until stdin ends.
func pumpLines(in io.Reader, chat *webrtc.DataChannel, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if chat.ReadyState() != webrtc.DataChannelStateOpen {
			fmt.Fprintln(out, statusLine("not connected yet, line dropped"))
			continue
		}
		if err := chat.SendText(line); err != nil {
			fmt.Fprintln(out, statusLine("send failed: %v", err))
		}
	}
}
