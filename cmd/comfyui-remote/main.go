package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "comfyui-remote",
		Short:         "Password-gated proxy and local cache for a remote ComfyUI render backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to config.yaml")

	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())
	root.AddCommand(importCmd())
	root.AddCommand(workflowsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
