// Command docqa is a document question-answering engine: it indexes
// institutional documents and answers questions over HTTP, MCP or a REPL.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "docqa",
		Short:         "Hybrid retrieval and answering over official documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default: docqa.yaml in ., ./config or $HOME/.docqa)")

	cfgFn := func() string { return cfgPath }
	root.AddCommand(
		serveCmd(cfgFn),
		mcpCmd(cfgFn),
		ingestCmd(cfgFn),
		searchCmd(cfgFn),
		chatCmd(cfgFn),
		collectionsCmd(cfgFn),
		embedCmd(cfgFn),
		versionCmd(),
	)
	return root
}
