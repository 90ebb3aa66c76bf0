package main

import (
	"strings"

	"github.com/spf13/cobra"

	"codedrop/internal/api"
	"codedrop/internal/config"
)

func newRemoveCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "rm [<id>...]",
		Short: "Delete files by id, or every file under --code",
		Args:  requireIDsOrCode(&code),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				ctx := cmd.Context()
				if strings.TrimSpace(code) != "" {
					resp, err := client.DeleteByCode(ctx, code)
					if err != nil {
						return err
					}
					if *structured {
						return writeJSON(resp)
					}
					return writePlain("deleted %d file(s) under %s\n", resp.Deleted, resp.UniqueCode)
				}

				removed := make([]api.DeleteFileResponse, 0, len(args))
				for _, id := range args {
					resp, err := client.DeleteFile(ctx, id)
					if err != nil {
						return err
					}
					removed = append(removed, resp)
					if !*structured {
						if err := writePlain("deleted %s\n", resp.ID); err != nil {
							return err
						}
					}
				}
				if *structured {
					return writeJSON(removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "delete every file under this code")
	return cmd
}
