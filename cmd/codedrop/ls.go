package main

import (
	"github.com/spf13/cobra"

	"codedrop/internal/api"
	"codedrop/internal/config"
)

func newListCmd(cfg *config.Config, structured *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "ls <code>",
		Aliases: []string{"list"},
		Short:   "List the files shared under a code",
		Args:    requireExactlyArgs(1, "code is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ListFiles(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *structured {
					return writeJSON(resp)
				}
				return writeFileList(resp.Files)
			})
		},
	}
}
