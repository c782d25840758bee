package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/WebForks/comfyui-remote/internal/comfy"
	"github.com/WebForks/comfyui-remote/internal/config"
	"github.com/WebForks/comfyui-remote/internal/run"
	"github.com/WebForks/comfyui-remote/internal/server"
	"github.com/WebForks/comfyui-remote/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the proxy server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			workflows, err := store.NewWorkflowStore(cfg.DataDir)
			if err != nil {
				return err
			}
			history, err := store.NewHistoryStore(cfg.DataDir)
			if err != nil {
				return err
			}

			client := comfy.NewClient(cfg.Backend.URL)
			orch := run.NewOrchestrator(client, history,
				run.WithPollInterval(cfg.PollInterval()),
				run.WithTimeout(cfg.RunTimeout()),
			)

			slog.Info("starting proxy",
				"listen", cfg.Listen,
				"backend", cfg.Backend.URL,
				"data_dir", cfg.DataDir,
			)
			srv := server.New(cfg.Password, client, orch, workflows, history)
			return srv.Start(cfg.Listen)
		},
	}
}
