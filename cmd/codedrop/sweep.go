package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"codedrop/internal/api"
	"codedrop/internal/config"
)

func newSweepCmd(cfg *config.Config, structured *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired files now instead of waiting for the next sweep",
		Args:  requireExactlyArgs(0, "sweep takes no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				if *structured {
					return writeJSON(resp)
				}
				return writePlain("expired %d of %d file(s), deleted %d, failed %d, reclaimed %s in %s\n",
					resp.Expired, resp.Scanned, resp.Deleted, resp.Failed,
					humanize.IBytes(uint64(resp.ReclaimedBytes)), resp.Duration)
			})
		},
	}
}
