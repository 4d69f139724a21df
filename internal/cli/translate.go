package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/subcue/internal/pipeline"
)

func newTranslateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <subtitles.srt>",
		Short: "Translate an existing SRT file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadSettings(cmd, args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, outDir, err := pipeline.TranslateFile(ctx, cfg)
			if res.Manifest.TargetSRT != "" {
				printSummary(cmd.OutOrStdout(), outDir, res.Manifest)
			}
			return err
		},
	}
	cmd.Flags().String("source", "", "Language of the input subtitles (default from config)")
	return cmd
}
