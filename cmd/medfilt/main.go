package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"medfilt/internal/models"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

// Exit codes
const (
	exitOK          = 0
	exitFailure     = 1
	exitInvalidArgs = 2
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line in args and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, models.ErrInvalidArguments):
		return exitInvalidArgs
	default:
		return exitFailure
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "medfilt",
		Short:         "Median filter every image in a directory across a group of workers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", models.ErrInvalidArguments, err)
	})

	root.AddCommand(newRunCmd(stdout))
	root.AddCommand(newCompareCmd(stdout))
	root.AddCommand(newConfigCmd(stdout))
	return root
}
