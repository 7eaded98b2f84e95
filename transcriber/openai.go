package transcriber

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const openaiModel = "gpt-4o-transcribe"

// OpenAI uses the official audio transcription endpoint through go-openai.
type OpenAI struct {
	client *openai.Client
	model  string
	lang   string
}

func NewOpenAI(opts Options) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = NewTracedClient(opts.Timeout).HTTP()

	model := opts.Model
	if model == "" {
		model = openaiModel
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		lang:   opts.Language,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Transcribe(ctx context.Context, a Audio) Result {
	return transcribe(ctx, a, o.upload)
}

func (o *OpenAI) upload(ctx context.Context, audioData []byte, format string) (*response, error) {
	req := openai.AudioRequest{
		Model:    o.model,
		FilePath: "audio." + format,
		Reader:   bytes.NewReader(audioData),
		Language: o.lang,
		Format:   openai.AudioResponseFormatJSON,
	}
	ctx, rec := startTrace(ctx)
	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	h := resp.Header()
	remaining := firstNonEmpty(h, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(h, "x-ratelimit-limit-requests")

	return &response{
		Text:      resp.Text,
		Metrics:   rec.finish(),
		RateLimit: remaining + "/" + limit,
		Duration:  resp.Duration,
	}, nil
}
