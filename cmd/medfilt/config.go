package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"medfilt/internal/models"
	"medfilt/pkg/config"
)

func newConfigCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage medfilt configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write a configuration file with default values",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: expected <path>, got %d arguments", models.ErrInvalidArguments, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Default configuration written to %s\n", args[0])
			return nil
		},
	})
	return cmd
}
