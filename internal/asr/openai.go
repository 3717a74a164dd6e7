package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"captioner/internal/services"
)

// DefaultOpenAIModel is used when no model is configured for the HTTP engine.
const DefaultOpenAIModel = "whisper-1"

// OpenAIConfig configures an OpenAI-compatible transcription endpoint.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

// OpenAI transcribes through POST {base}/audio/transcriptions with
// response_format=verbose_json so segment timings are returned.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI constructs an HTTP transcription engine. A nil client uses
// http.DefaultClient; callers bound the request with ctx.
func NewOpenAI(cfg OpenAIConfig, client *http.Client) *OpenAI {
	if client == nil {
		client = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultOpenAIModel
	}
	return &OpenAI{cfg: cfg, client: client}
}

type verboseTranscription struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe streams the audio file as multipart form data.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrValidation, "transcription", "open audio", "", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(o.writeForm(mw, file, filepath.Base(audioPath)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/audio/transcriptions", pr)
	if err != nil {
		pr.Close()
		return Transcript{}, services.Wrap(services.ErrConfiguration, "transcription", "build request", "", err)
	}
	defer pr.Close()
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return Transcript{}, services.WrapContext(ctx, services.ErrUpstream, "transcription", "openai request", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Transcript{}, services.Wrap(services.ErrUpstream, "transcription", "openai request",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var payload verboseTranscription
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Transcript{}, services.Wrap(services.ErrUpstream, "transcription", "decode response", "", err)
	}
	transcript := Transcript{Language: payload.Language, Segments: make([]Segment, 0, len(payload.Segments))}
	for _, seg := range payload.Segments {
		transcript.Segments = append(transcript.Segments, Segment{ID: seg.ID, Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return transcript, nil
}

func (o *OpenAI) writeForm(mw *multipart.Writer, audio io.Reader, filename string) error {
	fields := [][2]string{
		{"model", o.cfg.Model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	if lang := strings.TrimSpace(o.cfg.Language); lang != "" {
		fields = append(fields, [2]string{"language", lang})
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}
	return mw.Close()
}
