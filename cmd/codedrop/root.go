package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codedrop/internal/config"
	"codedrop/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		outputName string
		logLevel   string
		structured bool
	)

	cmd := &cobra.Command{
		Use:           "codedrop",
		Short:         "Codedrop shares files for a few hours behind a six-digit code",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}

			if outputName == "" || outputName == "text" {
				structured = false
				return nil
			}
			formatter, err := format.ForName(outputName)
			if err != nil {
				return err
			}
			outputFormatter = formatter
			structured = true
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&outputName, "output", "text", "output format: text, json or yaml")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newSendCmd(cfg, &structured),
		newListCmd(cfg, &structured),
		newGetCmd(cfg, &structured),
		newRemoveCmd(cfg, &structured),
		newCancelCmd(cfg, &structured),
		newSweepCmd(cfg, &structured),
		newInfoCmd(cfg, &structured),
		newConfigCmd(cfg),
		newMigrateCmd(cfg, &structured),
	)

	return cmd
}
