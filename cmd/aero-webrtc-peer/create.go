package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c"},
	Short:   "Create a session, print its identifier and wait for the other party",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newRelayClient(flagRelay, flagAPIKey)
		if err != nil {
			return err
		}
		id, err := client.CreateSession(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sessionBanner(id, client.base.String()))
		return runParty(ctx, cmd, client, id)
	},
}
