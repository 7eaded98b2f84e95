// Package transcriber sends captured audio to a speech-to-text API.
package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Audio is a captured clip: raw PCM16 mono plus the encoding to upload it in.
type Audio struct {
	PCM        []byte
	MIMEType   string
	SampleRate int
}

// Result is either Text or a failure. ErrorMessage is safe to show the user.
type Result struct {
	Text         string
	ErrorMessage string
	Failure      Failure
	Err          error

	RateLimit string
	Stats     *BatchStats
	Metrics   []string // pre-formatted lines for the diagnostics log
}

func (r Result) OK() bool { return r.Err == nil }

type Transcriber interface {
	Name() string
	// Transcribe never panics and reports every failure through Result.
	Transcribe(ctx context.Context, a Audio) Result
}

type Options struct {
	APIKey   string
	Language string
	// BaseURL overrides the provider endpoint, mostly for tests.
	BaseURL string
	Model   string
	Timeout time.Duration
}

const DefaultTimeout = 30 * time.Second

// New returns the transcriber for a provider name.
func New(provider string, opts Options) (Transcriber, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: no API key", provider)
	}
	switch provider {
	case "groq":
		return NewGroq(opts), nil
	case "openai":
		return NewOpenAI(opts), nil
	}
	return nil, fmt.Errorf("unknown provider %q (want groq or openai)", provider)
}
