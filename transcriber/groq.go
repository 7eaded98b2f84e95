package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
)

const (
	groqURL   = "https://api.groq.com/openai/v1/audio/transcriptions"
	groqModel = "whisper-large-v3-turbo"
)

type Groq struct {
	client *TracedClient
	apiURL string
	apiKey string
	model  string
	lang   string
}

func NewGroq(opts Options) *Groq {
	apiURL := groqURL
	if opts.BaseURL != "" {
		apiURL = opts.BaseURL + "/audio/transcriptions"
	}
	model := opts.Model
	if model == "" {
		model = groqModel
	}
	return &Groq{
		client: NewTracedClient(opts.Timeout),
		apiURL: apiURL,
		apiKey: opts.APIKey,
		model:  model,
		lang:   opts.Language,
	}
}

func (g *Groq) Name() string { return "groq" }

// Warm pre-establishes the TLS connection.
func (g *Groq) Warm(ctx context.Context) { g.client.Warm(ctx, g.apiURL) }

func (g *Groq) Transcribe(ctx context.Context, a Audio) Result {
	return transcribe(ctx, a, g.upload)
}

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

func (g *Groq) upload(ctx context.Context, audioData []byte, format string) (*response, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, err
	}

	writer.WriteField("model", g.model)
	writer.WriteField("response_format", "verbose_json")
	if g.lang != "" {
		writer.WriteField("language", g.lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: "groq", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return nil, fmt.Errorf("groq response parse error: %w", err)
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return &response{
		Text:      gResp.Text,
		Metrics:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
		Duration:  gResp.Duration,
	}, nil
}
