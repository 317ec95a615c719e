package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time using -ldflags.
var Version = "development"

// NewRootCmd builds the bytegate command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bytegate [command] [flags]",
		Short:         "bytegate: a minimal synchronous HTTP/1.1 server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

// Execute runs the command tree. It is called by main.main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
