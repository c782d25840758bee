package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WebForks/comfyui-remote/internal/config"
	"github.com/WebForks/comfyui-remote/internal/store"
)

func openWorkflowStore(cmd *cobra.Command) (*store.WorkflowStore, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return store.NewWorkflowStore(cfg.DataDir)
}

func importCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <workflow.json>",
		Short: "Import a workflow file into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkflowStore(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			wf, err := ws.Import(name, json.RawMessage(data))
			if err != nil {
				return err
			}
			fmt.Printf("imported %s as %s\n", name, wf.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the filename)")
	return cmd
}

func workflowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List stored workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkflowStore(cmd)
			if err != nil {
				return err
			}
			wfs, err := ws.ReadAll()
			if err != nil {
				return err
			}
			if len(wfs) == 0 {
				fmt.Println("no workflows imported")
				return nil
			}
			for _, wf := range wfs {
				fmt.Printf("%s  %s  (%s)\n", wf.ID, wf.Name, wf.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
