package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"captioner/internal/api"
	"captioner/internal/assetstore"
	"captioner/internal/config"
	"captioner/internal/daemonrun"
	"captioner/internal/logging"
	"captioner/internal/pipeline"
	"captioner/internal/runlog"
	"captioner/internal/services"
)

func newBurnCommand(ctx *commandContext) *cobra.Command {
	var keepOutput string
	var noUpload bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "burn <video>",
		Short: "Caption a local video file and upload the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if noUpload && strings.TrimSpace(keepOutput) == "" {
				return errors.New("--no-upload requires --keep-output")
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}
			keep := ""
			if strings.TrimSpace(keepOutput) != "" {
				if keep, err = config.ExpandPath(keepOutput); err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Writer: cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			stackOpts := daemonrun.StackOptions{}
			if noUpload {
				bucket, err := assetstore.OpenBucket(runCtx, "mem://", "mem://local")
				if err != nil {
					return err
				}
				defer bucket.Close()
				stackOpts.Store = bucket
			}
			stack, err := daemonrun.Build(runCtx, cfg, logger, stackOpts)
			if err != nil {
				return err
			}
			defer stack.Close()

			file, err := os.Open(source)
			if err != nil {
				return fmt.Errorf("open video: %w", err)
			}
			defer file.Close()

			result, runErr := stack.Orchestrator.Run(runCtx, pipeline.Upload{
				Body:       file,
				Filename:   filepath.Base(source),
				Source:     runlog.SourceCLI,
				KeepOutput: keep,
			})

			if jsonOutput {
				resp := api.SubtitleResponse{Success: runErr == nil, RunID: result.RunID}
				if runErr != nil {
					resp.Error = api.FailureMessage
					resp.Stage = pipeline.FailedStage(runErr)
					resp.Kind = string(services.FailureKind(runErr))
					resp.Detail = runErr.Error()
				} else {
					segments := result.Segments
					resp.Segments = &segments
					if !noUpload {
						resp.VideoURL = result.VideoURL
					}
				}
				if err := writeJSON(cmd, resp); err != nil {
					return err
				}
				return runErr
			}
			if runErr != nil {
				return fmt.Errorf("%s stage failed: %w", pipeline.FailedStage(runErr), runErr)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:       %s\n", result.RunID)
			fmt.Fprintf(out, "Segments:  %d\n", result.Segments)
			if !noUpload {
				fmt.Fprintf(out, "Video URL: %s\n", result.VideoURL)
			}
			if result.KeptOutput != "" {
				fmt.Fprintf(out, "Saved:     %s\n", result.KeptOutput)
			}
			if result.CleanupFailures > 0 {
				fmt.Fprintf(out, "Warning:   %d scratch file(s) could not be removed from %s\n", result.CleanupFailures, cfg.Paths.WorkDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&keepOutput, "keep-output", "o", "", "Also save the rendered video to this path")
	cmd.Flags().BoolVar(&noUpload, "no-upload", false, "Skip publishing; requires --keep-output")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}
