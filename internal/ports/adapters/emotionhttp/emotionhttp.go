// Package emotionhttp classifies the speaker emotion of an audio window by
// posting a WAV slice to an HTTP classifier.
package emotionhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/forPelevin/subcue/internal/faults"
)

const (
	// MinWindow is the shortest window sent to the classifier; shorter
	// windows are reported as Neutral.
	MinWindow = 0.5
	Neutral   = "neutral"
)

// Adapter reads the whole WAV once and serves concurrent Predict calls from
// memory.
type Adapter struct {
	url     string
	wavPath string
	client  *http.Client

	once    sync.Once
	pcm     *audio.IntBuffer
	loadErr error
}

func New(url, wavPath string, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{
		url:     strings.TrimSpace(url),
		wavPath: wavPath,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *Adapter) Available(context.Context) error {
	if a.url == "" {
		return faults.Wrap(faults.ErrUnavailable, "emotion", "EMOTION_URL is not set", nil)
	}
	if err := a.load(); err != nil {
		return faults.Wrap(faults.ErrUnavailable, "emotion", "load audio", err)
	}
	return nil
}

func (a *Adapter) Predict(ctx context.Context, start, end float64) (string, error) {
	if end-start < MinWindow {
		return Neutral, nil
	}
	if a.url == "" {
		return Neutral, nil
	}
	if err := a.load(); err != nil {
		return "", err
	}
	clip, err := encodeWindow(a.pcm, start, end)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(clip))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "audio/wav")
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("emotion request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("emotion read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("emotion status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Label   string `json:"label"`
		Emotion string `json:"emotion"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("emotion parse response: %w", err)
	}
	label := out.Label
	if label == "" {
		label = out.Emotion
	}
	return normalizeLabel(label), nil
}

// normalizeLabel maps classifier short labels onto the names the prompt uses.
func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	switch label {
	case "", "neu":
		return Neutral
	case "hap":
		return "happy"
	case "ang":
		return "angry"
	case "sad":
		return "sad"
	default:
		return label
	}
}

func (a *Adapter) load() error {
	a.once.Do(func() {
		f, err := os.Open(a.wavPath)
		if err != nil {
			a.loadErr = err
			return
		}
		defer f.Close()
		d := wav.NewDecoder(f)
		if !d.IsValidFile() {
			a.loadErr = fmt.Errorf("%s: not a valid WAV file", a.wavPath)
			return
		}
		buf, err := d.FullPCMBuffer()
		if err != nil {
			a.loadErr = fmt.Errorf("decode %s: %w", a.wavPath, err)
			return
		}
		if buf.SourceBitDepth == 0 {
			buf.SourceBitDepth = int(d.BitDepth)
		}
		a.pcm = buf
	})
	return a.loadErr
}

// encodeWindow returns [start, end] seconds of src as a standalone WAV file.
func encodeWindow(src *audio.IntBuffer, start, end float64) ([]byte, error) {
	if src == nil || src.Format == nil || src.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("audio buffer has no format")
	}
	ch := src.Format.NumChannels
	if ch <= 0 {
		ch = 1
	}
	rate := src.Format.SampleRate
	frames := len(src.Data) / ch
	from := clampFrame(int(start*float64(rate)), frames)
	to := clampFrame(int(end*float64(rate)), frames)
	if to <= from {
		return nil, fmt.Errorf("window [%.3f, %.3f] is outside the audio", start, end)
	}

	depth := src.SourceBitDepth
	if depth == 0 {
		depth = 16
	}
	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, rate, depth, ch, 1)
	window := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: ch, SampleRate: rate},
		Data:           src.Data[from*ch : to*ch],
		SourceBitDepth: depth,
	}
	if err := enc.Write(window); err != nil {
		return nil, fmt.Errorf("encode window: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode window: %w", err)
	}
	return ws.buf, nil
}

func clampFrame(v, frames int) int {
	if v < 0 {
		return 0
	}
	if v > frames {
		return frames
	}
	return v
}

// memWriteSeeker is the in-memory io.WriteSeeker wav.Encoder needs to patch
// the header sizes on Close.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("seek: negative position")
	}
	m.pos = int(next)
	return next, nil
}
