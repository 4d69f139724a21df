package types

type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Cue is one timed subtitle display unit. Index is 1-based within its sequence.
type Cue struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// WithText returns a copy of c carrying text.
func (c Cue) WithText(text string) Cue {
	c.Text = text
	return c
}

type Manifest struct {
	RunID       string            `json:"run_id"`
	Input       string            `json:"input"`
	Language    string            `json:"language,omitempty"`
	TargetLang  string            `json:"target_lang,omitempty"`
	Engine      string            `json:"engine,omitempty"`
	Cues        int               `json:"cues"`
	Translated  int               `json:"translated"`
	FallenBack  int               `json:"fallen_back"`
	Skipped     int               `json:"skipped"`
	SourceSRT   string            `json:"source_srt"`
	TargetSRT   string            `json:"target_srt,omitempty"`
	SourceASS   string            `json:"source_ass,omitempty"`
	TargetASS   string            `json:"target_ass,omitempty"`
	Failures    []ManifestFailure `json:"failures,omitempty"`
	GeneratedAt string            `json:"generated_at"`
}

type ManifestFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}
