package whispercpp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/subcue/internal/faults"
	"github.com/forPelevin/subcue/internal/types"
)

type Adapter struct {
	bin      string
	model    string
	language string
}

// New returns a whisper.cpp runner. An empty language lets whisper.cpp
// auto-detect.
func New(binPath, modelPath, language string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath, language: strings.TrimSpace(language)}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error) {
	outPrefix := filepath.Join(cacheDir, "whisper")
	cmd := exec.CommandContext(ctx, a.bin, a.args(wavPath, outPrefix)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, faults.Wrap(faults.ErrExternalTool, "whisper.cpp", "transcribe", fmt.Errorf("%w\n%s", err, string(b)))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, faults.Wrap(faults.ErrExternalTool, "whisper.cpp", "read output", err)
	}
	tr, err := Decode(jb)
	if err != nil {
		return types.Transcript{}, faults.Wrap(faults.ErrExternalTool, "whisper.cpp", "decode output", err)
	}
	if tr.Language == "" {
		tr.Language = a.language
	}
	return tr, nil
}

func (a *Adapter) args(wavPath, outPrefix string) []string {
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-ojf",
		"-of", outPrefix,
		"-np",
	}
	if a.language != "" {
		args = append(args, "-l", a.language)
	}
	return args
}
