package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/subcue/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <media>",
		Short: "Transcribe media into subtitles and translate them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}
	cmd.Flags().String("source", "", "Spoken language passed to whisper.cpp (empty to auto-detect)")
	cmd.Flags().Bool("no-translate", false, "Only write source-language subtitles")
	cmd.Flags().Bool("keep-audio", false, "Keep the extracted WAV in the cache directory")
	return cmd
}

func run(cmd *cobra.Command, input string) error {
	cfg, log, err := loadSettings(cmd, input)
	if err != nil {
		return err
	}
	cfg.KeepAudio, _ = cmd.Flags().GetBool("keep-audio")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, runDir, err := pipeline.Run(ctx, cfg)
	if res.Manifest.RunID != "" {
		printSummary(cmd.OutOrStdout(), runDir, res.Manifest)
	}
	if err != nil {
		return err
	}
	log.Info("done", "dir", runDir)
	return nil
}
