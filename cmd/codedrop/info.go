package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"codedrop/internal/api"
	"codedrop/internal/config"
)

type infoOutput struct {
	api.InfoResponse
	APIURL string `json:"api_url"`
	DBPath string `json:"db_path"`
}

func newInfoCmd(cfg *config.Config, structured *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server limits, expiry and storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				out := infoOutput{InfoResponse: resp, APIURL: cfg.APIURL, DBPath: cfg.DBPath}

				if *structured {
					return writeJSON(out)
				}

				_ = writePlain("api_url: %s\n", out.APIURL)
				_ = writePlain("db_path: %s\n", out.DBPath)
				_ = writePlain("backend: %s\n", out.Backend)
				_ = writePlain("schema_version: %d\n", out.SchemaVersion)
				_ = writePlain("max_file: %s\n", humanize.IBytes(uint64(out.MaxFileBytes)))
				_ = writePlain("max_batch: %s\n", humanize.IBytes(uint64(out.MaxBatchBytes)))
				_ = writePlain("retention: %s\n", out.Retention)
				_ = writePlain("sweep_interval: %s\n", out.SweepInterval)
				return writePlain("total_files: %s\n", humanize.Comma(int64(out.TotalFiles)))
			})
		},
	}
}
