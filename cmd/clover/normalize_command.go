package main

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/models"
)

func newNormalizeCommand(ctx *commandContext) *cobra.Command {
	var afterID int64
	var limit int
	var all bool

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize contacts after an id, one page or until the end",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer c.db.Close()

			total := &models.NormalizeResult{LastID: afterID, Errors: []models.ItemError{}}
			for {
				res, err := c.service.BulkNormalize(cmd.Context(), total.LastID, limit)
				if err != nil {
					return err
				}
				total.ProcessedCount += res.ProcessedCount
				total.LastID = res.LastID
				total.Done = res.Done
				total.Errors = append(total.Errors, res.Errors...)

				if res.Done || !all {
					break
				}
			}
			return writeJSON(cmd.OutOrStdout(), total)
		},
	}

	cmd.Flags().Int64Var(&afterID, "after-id", 0, "Start after this contact id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (default 500, max 5000)")
	cmd.Flags().BoolVar(&all, "all", false, "Keep paging until every contact is normalized")
	return cmd
}
