package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	flagRelay     string
	flagSTUNURLs  string
	flagAPIKey    string
	flagLogLevel  string
	flagNoStereo  bool
	flagLegacyBit bool
)

var rootCmd = &cobra.Command{
	Use:   "aero-webrtc-peer",
	Short: "Pair with another party through an aero WebRTC pairing relay",
	Long: `aero-webrtc-peer opens a direct WebRTC connection to another party.

One party creates a session and shares the printed identifier; the other joins
it. Once connected, every line typed on stdin is sent to the other party.

Examples:
  aero-webrtc-peer create --relay http://localhost:8080
  aero-webrtc-peer join Ab3dE5gH7k --relay http://localhost:8080`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagRelay, "relay", envOr("AERO_PAIRING_RELAY_URL", "http://127.0.0.1:8080"), "Relay base URL (env AERO_PAIRING_RELAY_URL)")
	pf.StringVar(&flagSTUNURLs, "stun-urls", "", "Comma-separated STUN URLs used when the relay offers no ICE servers")
	pf.StringVar(&flagAPIKey, "api-key", os.Getenv("AERO_PAIRING_API_KEY"), "API key for session creation (env AERO_PAIRING_API_KEY)")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.BoolVar(&flagNoStereo, "no-stereo", false, "Do not rewrite Opus payloads to stereo")
	pf.BoolVar(&flagLegacyBit, "legacy-politeness", false, "Resolve politeness by inverting the peer's flag (for old browser clients)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(flagLogLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	}

	rootCmd.AddCommand(createCmd, joinCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
