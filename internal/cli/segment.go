package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/subcue/internal/pipeline"
)

func newSegmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment <transcript.json>",
		Short: "Cut a saved whisper.cpp transcript into SRT cues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadSettings(cmd, args[0])
			if err != nil {
				return err
			}
			out, path, err := pipeline.SegmentFile(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d cues written to %s\n", len(out), path)
			return nil
		},
	}
	cmd.Flags().String("source", "", "Language code used in the output name when the transcript has none")
	return cmd
}
