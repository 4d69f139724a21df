package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/subcue/internal/faults"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCmd()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(faults.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "subcue",
		Short:         "Generate and translate subtitles for local media",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a TOML config file (default ./subcue.toml, or $SUBCUE_CONFIG)")
	pf.String("out", "", "Output directory")
	pf.Bool("ass", false, "Also write .ass subtitles next to each .srt")
	pf.Int("max-chars", 0, "Maximum characters per cue")
	pf.String("mode", "", "Segmentation mode: words or segments")
	pf.String("target", "", "Target language for translation (e.g. ko, ja, pt-BR)")
	pf.String("engine", "", "Translation engine: openrouter, deepl or none")
	pf.IntP("concurrency", "j", 0, "Maximum concurrent translation requests")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: auto, text, json")
	pf.BoolP("verbose", "v", false, "Verbose logging")
	pf.BoolP("quiet", "q", false, "Only log errors")

	root.AddCommand(newRunCmd(), newSegmentCmd(), newTranslateCmd())
	return root
}
