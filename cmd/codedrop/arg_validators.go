package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

func requireAtLeastArgs(min int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < min {
			return errors.New(message)
		}
		return nil
	}
}

func requireExactlyArgs(count int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != count {
			return errors.New(message)
		}
		return nil
	}
}

// requireIDsOrCode accepts file ids as arguments or a --code flag, not both.
func requireIDsOrCode(code *string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		hasCode := strings.TrimSpace(*code) != ""
		switch {
		case hasCode && len(args) > 0:
			return errors.New("pass file ids or --code, not both")
		case !hasCode && len(args) == 0:
			return errors.New("file id or --code is required")
		}
		return nil
	}
}
