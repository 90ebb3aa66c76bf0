package main

import (
	"github.com/spf13/cobra"

	"codedrop/internal/api"
	"codedrop/internal/config"
)

func newCancelCmd(cfg *config.Config, structured *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <code>",
		Short: "Abort an upload in progress and remove its partial files",
		Args:  requireExactlyArgs(1, "code is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.DeleteByCode(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *structured {
					return writeJSON(resp)
				}
				if resp.Cancelled {
					return writePlain("cancelled upload %s, removed %d file(s)\n", resp.UniqueCode, resp.Deleted)
				}
				return writePlain("no upload in progress for %s, removed %d file(s)\n", resp.UniqueCode, resp.Deleted)
			})
		},
	}
}
