// Command certtool is the operator companion to the certtrace server: it
// computes document digests, mints and revokes development tokens, and verifies documents
// against recorded operations.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "certtool",
		Short:         "Digest, token and verification helpers for certtrace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDigestCmd(), newTokenCmd(), newRevokeTokenCmd(), newVerifyCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
