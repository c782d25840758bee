package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/WebForks/comfyui-remote/internal/comfy"
	"github.com/WebForks/comfyui-remote/internal/run"
	"github.com/WebForks/comfyui-remote/internal/store"
)

func runCmd() *cobra.Command {
	var (
		backendURL string
		positive   string
		negative   string
		seed       int64
		steps      int
		inputImage string
		output     string
		progress   bool
	)

	cmd := &cobra.Command{
		Use:   "run <workflow.json>",
		Short: "Submit a workflow file directly and wait for the image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graphData, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			client := comfy.NewClient(backendURL)
			orch := run.NewOrchestrator(client, nil)

			params := run.Params{
				PositivePrompt: positive,
				NegativePrompt: negative,
				Seed:           seed,
				Steps:          steps,
			}
			if inputImage != "" {
				data, err := os.ReadFile(inputImage)
				if err != nil {
					return err
				}
				params.InputImage = data
				params.InputImageName = inputImage
			}

			wf := &store.Workflow{Name: args[0], Graph: json.RawMessage(graphData)}
			r, err := orch.Start(context.Background(), wf, params)
			if err != nil {
				return err
			}
			fmt.Printf("submitted job %s\n", r.PromptID())

			var listener *comfy.ProgressListener
			if progress {
				var bar *progressbar.ProgressBar
				listener = comfy.NewProgressListener(backendURL, r.ClientID, func(ev comfy.ProgressEvent) {
					if ev.Max > 0 {
						if bar == nil {
							bar = progressbar.Default(int64(ev.Max), "rendering")
						}
						bar.Set(ev.Value)
					}
				})
				if err := listener.Start(); err != nil {
					slog.Warn("progress socket unavailable, polling only", "error", err)
					listener = nil
				}
			}
			if listener != nil {
				defer listener.Close()
			}

			switch orch.Wait(context.Background(), r) {
			case run.StateDone:
				res := r.Result()
				data, err := client.Download(context.Background(), res.Image)
				if err != nil {
					return err
				}
				name := output
				if name == "" {
					name = res.Image.Filename
				}
				if err := os.WriteFile(name, data, 0o644); err != nil {
					return err
				}
				fmt.Printf("saved %s\n", name)
				return nil
			case run.StateTimedOut:
				return fmt.Errorf("timed out: %s", r.ErrDetail())
			default:
				return fmt.Errorf("run failed: %s", r.ErrDetail())
			}
		},
	}

	cmd.Flags().StringVar(&backendURL, "backend", "http://localhost:8188", "render backend URL")
	cmd.Flags().StringVarP(&positive, "prompt", "p", "", "positive prompt override")
	cmd.Flags().StringVarP(&negative, "negative", "n", "", "negative prompt override")
	cmd.Flags().Int64Var(&seed, "seed", -1, "seed override (-1 keeps the workflow's seed)")
	cmd.Flags().IntVar(&steps, "steps", 0, "step count override (0 keeps the workflow's steps)")
	cmd.Flags().StringVarP(&inputImage, "image", "i", "", "input image to upload")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output filename")
	cmd.Flags().BoolVar(&progress, "progress", true, "show live progress from the backend websocket")
	return cmd
}
