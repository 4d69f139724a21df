package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forPelevin/subcue/internal/config"
	"github.com/forPelevin/subcue/internal/faults"
	"github.com/forPelevin/subcue/internal/logging"
	"github.com/forPelevin/subcue/internal/pipeline"
)

// loadSettings resolves config file, environment and flags, in increasing
// priority, into a pipeline config for input.
func loadSettings(cmd *cobra.Command, input string) (pipeline.Config, *slog.Logger, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	if path == "" {
		path = os.Getenv("SUBCUE_CONFIG")
	}
	s, err := config.Load(path)
	if err != nil {
		return pipeline.Config{}, nil, faults.Wrap(faults.ErrConfiguration, "config", "load", err)
	}

	if flags.Changed("out") {
		s.Paths.OutDir, _ = flags.GetString("out")
	}
	if flags.Changed("ass") {
		s.Paths.ASS, _ = flags.GetBool("ass")
	}
	if flags.Changed("max-chars") {
		s.Segmentation.MaxCharsPerCue, _ = flags.GetInt("max-chars")
	}
	if flags.Changed("mode") {
		s.Segmentation.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("target") {
		s.Translation.TargetLang, _ = flags.GetString("target")
	}
	if flags.Changed("engine") {
		s.Translation.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("concurrency") {
		s.Translation.Concurrency, _ = flags.GetInt("concurrency")
	}
	if off, _ := flags.GetBool("no-translate"); off {
		s.Translation.Engine = config.EngineNone
	}
	if flags.Changed("source") {
		s.Tools.Language, _ = flags.GetString("source")
	}
	if flags.Changed("log-level") {
		s.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		s.Logging.Format, _ = flags.GetString("log-format")
	}
	if v, _ := flags.GetBool("verbose"); v {
		s.Logging.Level = "debug"
	}
	if q, _ := flags.GetBool("quiet"); q {
		s.Logging.Level = "error"
	}

	if err := s.Validate(); err != nil {
		return pipeline.Config{}, nil, faults.Wrap(faults.ErrConfiguration, "config", "", err)
	}
	log, err := logging.New(logging.Options{Level: s.Logging.Level, Format: s.Logging.Format, Writer: cmd.ErrOrStderr()})
	if err != nil {
		return pipeline.Config{}, nil, faults.Wrap(faults.ErrConfiguration, "config", "logging", err)
	}

	cfg, err := pipeline.FromSettings(s)
	if err != nil {
		return pipeline.Config{}, nil, err
	}
	if input != "" {
		abs, err := filepath.Abs(input)
		if err != nil {
			return pipeline.Config{}, nil, faults.Wrap(faults.ErrInput, "input", "resolve path", err)
		}
		cfg.Input = abs
	}
	cfg.Logger = log
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, nil, err
	}
	return cfg, log, nil
}
