package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"medfilt/internal/models"
	"medfilt/pkg/compare"
)

var errOutputMismatch = errors.New("output differs")

func newCompareCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <reference> <candidate>",
		Short: "Check that every PNG in <reference> has an identical copy in <candidate>",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w: expected <reference> <candidate>, got %d arguments", models.ErrInvalidArguments, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := compare.Dirs(args[0], args[1])
			if err != nil {
				return err
			}

			for _, name := range report.Missing {
				fmt.Fprintf(stdout, "Output is missing for image: %s\n", name)
			}
			for _, d := range report.Diffs {
				fmt.Fprintf(stdout, "Output is not correct for image: %s\n", d)
			}
			if !report.Correct() {
				return fmt.Errorf("%w: %d of %d images", errOutputMismatch, len(report.Diffs)+len(report.Missing), report.Compared+len(report.Missing))
			}

			fmt.Fprintln(stdout, "All output is correct")
			return nil
		},
	}
}
