package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/lectern/ai"
)

const defaultTranscriptionTimeout = 10 * time.Minute

// Transcriber implements ai.Transcriber against an OpenAI-compatible
// /audio/transcriptions endpoint (OpenAI, LocalAI, faster-whisper-server).
type Transcriber struct {
	client   *http.Client
	endpoint string
	model    string
	token    string
	logger   *slog.Logger
}

// transcriptionResponse is the verbose_json response body.
type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

func newTranscriber(config *ai.Config, client *http.Client) (*Transcriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.TranscriptionEnabled() {
		return nil, ErrServiceDisabled
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTranscriptionTimeout}
	}
	return &Transcriber{
		client:   client,
		endpoint: config.TranscriptionHost + "/audio/transcriptions",
		model:    config.TranscriptionModel,
		token:    config.Token(),
		logger:   slog.Default().With("component", "openai-transcriber"),
	}, nil
}

// NewTranscriber creates a new transcriber using the provided configuration.
func NewTranscriber(config *ai.Config) (ai.Transcriber, error) {
	return newTranscriber(config, nil)
}

// Transcribe uploads the audio and returns its transcript.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (*ai.Transcript, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyInput
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	if err := form.WriteField("model", t.model); err != nil {
		return nil, err
	}
	if err := form.WriteField("response_format", "verbose_json"); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.token)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Error("transcription request failed", "file", filename, "err", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("transcription failed: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var decoded transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding transcription: %w", err)
	}

	t.logger.Debug("transcribed audio", "file", filename, "chars", len(decoded.Text), "elapsed", time.Since(start))
	return &ai.Transcript{
		Text:     strings.TrimSpace(decoded.Text),
		Language: decoded.Language,
		Duration: time.Duration(decoded.Duration * float64(time.Second)),
		Model:    t.model,
	}, nil
}
