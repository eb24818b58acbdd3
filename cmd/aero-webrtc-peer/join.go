package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/session"
)

var joinCmd = &cobra.Command{
	Use:     "join <session-id>",
	Aliases: []string{"j"},
	Short:   "Join a session created by the other party",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if !session.ValidID(id) {
			return fmt.Errorf("invalid session id %q", id)
		}
		client, err := newRelayClient(flagRelay, flagAPIKey)
		if err != nil {
			return err
		}
		return runParty(cmd.Context(), cmd, client, id)
	},
}
