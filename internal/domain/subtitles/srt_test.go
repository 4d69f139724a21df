package subtitles

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/subcue/internal/types"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{61.123, "00:01:01,123"},
		{3661.999, "01:01:01,999"},
		{3600, "01:00:00,000"},
		{0.0004, "00:00:00,000"},
		{59.9996, "00:01:00,000"},
		{-2, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.seconds); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"00:00:01,500", 1.5, false},
		{"01:02:03.250", 3723.25, false},
		{"00:00:01,5", 1.5, false},
		{"00:00:02,25", 2.25, false},
		{"00:00:01,", 0, true},
		{"00:00:01,5000", 0, true},
		{"", 0, true},
		{"1:2", 0, true},
		{"aa:00:00,000", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestComposeSRT(t *testing.T) {
	cs := []types.Cue{
		{Index: 1, Start: 0.5, End: 2, Text: "Hello world."},
		{Index: 2, Start: 2.25, End: 4, Text: " second "},
	}
	want := "1\n00:00:00,500 --> 00:00:02,000\nHello world.\n\n" +
		"2\n00:00:02,250 --> 00:00:04,000\nsecond\n"
	if got := ComposeSRT(cs); got != want {
		t.Fatalf("ComposeSRT mismatch:\n got %q\nwant %q", got, want)
	}
	if got := ComposeSRT(nil); got != "" {
		t.Fatalf("expected empty output for no cues, got %q", got)
	}
}

func TestParseSRT(t *testing.T) {
	in := "\ufeff1\r\n00:00:01,000 --> 00:00:02,500\r\nfirst line\r\nsecond line\r\n\r\n" +
		"7\n00:00:03.000 --> 00:00:04.000 X1:10 X2:20\nthird\n\n\n" +
		"00:00:05,000 --> 00:00:06,000\nno index\n"
	got, err := ParseSRT(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []types.Cue{
		{Index: 1, Start: 1, End: 2.5, Text: "first line\nsecond line"},
		{Index: 2, Start: 3, End: 4, Text: "third"},
		{Index: 3, Start: 5, End: 6, Text: "no index"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d cues, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cue %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseSRT_MissingTiming(t *testing.T) {
	if _, err := ParseSRT(strings.NewReader("1\nhello\nworld\n")); err == nil {
		t.Fatalf("expected error for block without timing line")
	}
}

func TestSRTFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	cs := []types.Cue{{Index: 1, Start: 1.25, End: 2.5, Text: "안녕하세요"}}
	if err := WriteSRTFile(path, cs); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSRTFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0] != cs[0] {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
