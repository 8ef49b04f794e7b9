// Package cli implements the bootanim command line: generate builds an
// archive from local media, inspect checks an existing one.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand returns the bootanim command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bootanim",
		Short:         "bootanim - turn videos, GIFs and image sequences into boot animations",
		Long:          "bootanim converts media into a store-only bootanimation.zip with JPEG frames and a desc.txt descriptor.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetHelpCommand(&cobra.Command{Hidden: true})

	root.AddCommand(newGenerateCommand(), newInspectCommand())
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
