package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codedrop/internal/config"
)

func newConfigCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration",
	}

	cmd.AddCommand(
		newConfigGetCmd(cfg),
		newConfigSetCmd(),
		newConfigPathCmd(),
		newConfigKeysCmd(),
	)
	return cmd
}

func newConfigGetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a config value",
		Args:  requireExactlyArgs(1, "key is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !config.IsAllowedKey(key) {
				return fmt.Errorf("unknown key: %s (allowed: %s)", key, strings.Join(config.AllowedKeys(), ", "))
			}
			value, err := cfg.Get(key)
			if err != nil {
				return err
			}
			return writePlain("%s\n", value)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Args:  requireExactlyArgs(2, "key and value are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(global)
			if err != nil {
				return err
			}
			return config.SetKey(path, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write to the global config (~/.codedrop.toml)")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file that set would write",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(global)
			if err != nil {
				return err
			}
			return writePlain("%s\n", path)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "print the global config path")
	return cmd
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the settable config keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range config.AllowedKeys() {
				if err := writePlain("%s\n", key); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func configPath(global bool) (string, error) {
	if global {
		return config.GlobalPath()
	}
	return config.ProjectPath()
}
