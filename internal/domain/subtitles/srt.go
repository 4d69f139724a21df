package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/forPelevin/subcue/internal/types"
)

// ComposeSRT renders cues as SubRip records separated by blank lines.
func ComposeSRT(cs []types.Cue) string {
	var b strings.Builder
	for i, c := range cs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strconv.Itoa(c.Index))
		b.WriteString("\n")
		b.WriteString(FormatTimestamp(c.Start))
		b.WriteString(" --> ")
		b.WriteString(FormatTimestamp(c.End))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(c.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatTimestamp converts seconds to HH:MM:SS,mmm rounded to the millisecond.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// ParseTimestamp accepts HH:MM:SS,mmm and the WebVTT-style HH:MM:SS.mmm.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	// The fraction is read as digits after the separator: ",5" is 500 ms.
	frac := timeParts[1]
	if frac == "" || len(frac) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	frac += strings.Repeat("0", 3-len(frac))
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(frac)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}

// ParseSRT reads SubRip records. Multi-line cue text is kept with "\n"
// separators; indices are renumbered 1..N in file order.
func ParseSRT(r io.Reader) ([]types.Cue, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		out   []types.Cue
		block []string
		line  int
	)
	flush := func() error {
		defer func() { block = block[:0] }()
		if len(block) == 0 {
			return nil
		}
		timing := 0
		if !strings.Contains(block[0], "-->") {
			timing = 1
		}
		if timing >= len(block) || !strings.Contains(block[timing], "-->") {
			return fmt.Errorf("srt: block ending at line %d has no timing line", line)
		}
		parts := strings.SplitN(block[timing], "-->", 2)
		start, err := ParseTimestamp(parts[0])
		if err != nil {
			return fmt.Errorf("srt: line %d: %w", line, err)
		}
		// Position hints such as "X1:..." may follow the end timestamp.
		endField := strings.Fields(parts[1])
		if len(endField) == 0 {
			return fmt.Errorf("srt: line %d: missing end timestamp", line)
		}
		end, err := ParseTimestamp(endField[0])
		if err != nil {
			return fmt.Errorf("srt: line %d: %w", line, err)
		}
		text := strings.TrimSpace(strings.Join(block[timing+1:], "\n"))
		if text == "" {
			return nil
		}
		out = append(out, types.Cue{Index: len(out) + 1, Start: start, End: end, Text: text})
		return nil
	}

	for sc.Scan() {
		line++
		l := strings.TrimRight(sc.Text(), "\r")
		if line == 1 {
			l = strings.TrimPrefix(l, "\ufeff")
		}
		if strings.TrimSpace(l) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, l)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("srt: read: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func ReadSRTFile(path string) ([]types.Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSRT(f)
}

func WriteSRTFile(path string, cs []types.Cue) error {
	return os.WriteFile(path, []byte(ComposeSRT(cs)), 0o644)
}
