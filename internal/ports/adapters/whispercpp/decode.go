package whispercpp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forPelevin/subcue/internal/types"
)

// fullJSON is the shape of whisper.cpp -ojf output.
type fullJSON struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets offsets `json:"offsets"`
		Text    string  `json:"text"`
		Tokens  []struct {
			Text    string  `json:"text"`
			Offsets offsets `json:"offsets"`
		} `json:"tokens"`
	} `json:"transcription"`
}

// offsets are milliseconds from the start of the audio.
type offsets struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Decode accepts either whisper.cpp full JSON or an already normalized
// transcript ({"segments":[...]}) as written by a previous run.
func Decode(b []byte) (types.Transcript, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return types.Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}
	if _, ok := probe["transcription"]; ok {
		var raw fullJSON
		if err := json.Unmarshal(b, &raw); err != nil {
			return types.Transcript{}, fmt.Errorf("decode whisper json: %w", err)
		}
		return fromFullJSON(raw), nil
	}
	if _, ok := probe["segments"]; !ok {
		return types.Transcript{}, fmt.Errorf("decode transcript: neither \"transcription\" nor \"segments\" present")
	}
	var tr types.Transcript
	if err := json.Unmarshal(b, &tr); err != nil {
		return types.Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}
	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
		for j := range tr.Segments[i].Words {
			tr.Segments[i].Words[j].Word = strings.TrimSpace(tr.Segments[i].Words[j].Word)
		}
	}
	return tr, nil
}

func fromFullJSON(raw fullJSON) types.Transcript {
	tr := types.Transcript{Language: raw.Result.Language}
	for _, s := range raw.Transcription {
		seg := types.Segment{
			Start: ms(s.Offsets.From),
			End:   ms(s.Offsets.To),
			Text:  strings.TrimSpace(s.Text),
		}
		// Tokens are sub-word pieces; a leading space starts a new word.
		var cur *types.Word
		for _, tok := range s.Tokens {
			if isSpecial(tok.Text) {
				continue
			}
			text := tok.Text
			if cur == nil || strings.HasPrefix(text, " ") {
				if trimmed := strings.TrimSpace(text); trimmed == "" {
					continue
				}
				seg.Words = append(seg.Words, types.Word{
					Start: ms(tok.Offsets.From),
					End:   ms(tok.Offsets.To),
					Word:  strings.TrimSpace(text),
				})
				cur = &seg.Words[len(seg.Words)-1]
				continue
			}
			cur.Word += strings.TrimSpace(text)
			if end := ms(tok.Offsets.To); end > cur.End {
				cur.End = end
			}
		}
		if seg.Text == "" && len(seg.Words) == 0 {
			continue
		}
		tr.Segments = append(tr.Segments, seg)
	}
	return tr
}

// isSpecial reports control tokens such as [_BEG_] or [_TT_150].
func isSpecial(tok string) bool {
	return strings.HasPrefix(strings.TrimSpace(tok), "[_")
}

func ms(v int64) float64 {
	return float64(v) / 1000
}
