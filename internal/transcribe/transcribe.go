// ABOUTME: Speech-to-text contract used for voice notes in the edit flow
// ABOUTME: OpenAI-backed implementation plus a disabled stand-in

package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrDisabled is returned when no transcription backend is configured.
var ErrDisabled = errors.New("transcription disabled")

// ErrEmpty means the backend heard nothing it could write down.
var ErrEmpty = errors.New("empty transcript")

// Transcriber turns recorded audio into text. Hints are words the speaker is
// likely to use; backends may ignore them.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, hints []string) (string, error)
}

// Nop is the Transcriber used when transcription is switched off.
type Nop struct{}

func (Nop) Transcribe(ctx context.Context, audio []byte, hints []string) (string, error) {
	return "", ErrDisabled
}

// Config selects the OpenAI-compatible endpoint.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "whisper-1"

// OpenAI transcribes through an OpenAI-compatible audio API.
type OpenAI struct {
	client   openai.Client
	model    string
	language string
	logger   *slog.Logger
}

// NewOpenAI creates an OpenAI transcriber. A nil logger uses slog.Default().
func NewOpenAI(cfg Config, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{
		client:   openai.NewClient(opts...),
		model:    model,
		language: cfg.Language,
		logger:   logger.With("component", "transcribe"),
	}
}

// Transcribe uploads audio as an OGG voice note and returns the trimmed text.
func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, hints []string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmpty
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), "voice.ogg", "audio/ogg"),
		Model: openai.AudioModel(o.model),
	}
	if prompt := HintPrompt(hints); prompt != "" {
		params.Prompt = openai.String(prompt)
	}
	if o.language != "" {
		params.Language = openai.String(o.language)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmpty
	}
	o.logger.Debug("voice transcribed", "bytes", len(audio), "chars", len(text))
	return text, nil
}

// HintPrompt renders keyword hints as a prompt the model can bias towards.
func HintPrompt(hints []string) string {
	var kept []string
	for _, h := range hints {
		if h = strings.TrimSpace(h); h != "" {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "Keywords: " + strings.Join(kept, ", ") + "."
}

var (
	_ Transcriber = Nop{}
	_ Transcriber = (*OpenAI)(nil)
)
