package main

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/dedupe"
)

func newForcePairCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "force-pair <contact-id> <contact-id>",
		Short: "Score two contacts and store the candidate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id1, err := dedupe.ParseContactID(args[0])
			if err != nil {
				return err
			}
			id2, err := dedupe.ParseContactID(args[1])
			if err != nil {
				return err
			}

			c, err := ctx.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer c.db.Close()

			candidate, err := c.service.ForcePair(cmd.Context(), id1, id2)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), candidate)
		},
	}
}
