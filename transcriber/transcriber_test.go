package transcriber

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"dubtap/encoder"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func tonePCM(seconds float64) []byte {
	n := int(seconds * encoder.SampleRate)
	pcm := make([]byte, n*2)
	for i := range n {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/encoder.SampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

type captured struct {
	auth     string
	model    string
	language string
	filename string
	size     int
}

// whisperServer mimics the OpenAI-compatible transcription endpoint.
func whisperServer(t *testing.T, status int, body string) (*httptest.Server, <-chan captured) {
	t.Helper()
	got := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		c := captured{
			auth:     r.Header.Get("Authorization"),
			model:    r.FormValue("model"),
			language: r.FormValue("language"),
		}
		if f, hdr, err := r.FormFile("file"); err == nil {
			data, _ := io.ReadAll(f)
			c.filename = hdr.Filename
			c.size = len(data)
		}
		got <- c

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("x-ratelimit-remaining-requests", "99")
		w.Header().Set("x-ratelimit-limit-requests", "100")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newProvider(name string, opts Options) Transcriber {
	tr, err := New(name, opts)
	if err != nil {
		panic(err)
	}
	return tr
}

func TestProviders(t *testing.T) {
	for _, name := range []string{"groq", "openai"} {
		t.Run(name, func(t *testing.T) {
			srv, got := whisperServer(t, http.StatusOK, `{"text":"  hello world ","duration":1.5}`)
			tr := newProvider(name, Options{APIKey: "sk-test", Language: "de", BaseURL: srv.URL})

			res := tr.Transcribe(context.Background(), Audio{PCM: tonePCM(0.5), MIMEType: encoder.MIMEFlac})
			if !res.OK() {
				t.Fatalf("Transcribe: %v", res.Err)
			}
			if res.Text != "hello world" {
				t.Errorf("text = %q", res.Text)
			}
			if res.RateLimit != "99/100" {
				t.Errorf("rate limit = %q", res.RateLimit)
			}
			if res.Stats == nil || res.Stats.AudioLengthS != 0.5 {
				t.Errorf("stats = %+v", res.Stats)
			}

			c := <-got
			if c.auth != "Bearer sk-test" {
				t.Errorf("auth = %q", c.auth)
			}
			if c.language != "de" {
				t.Errorf("language = %q", c.language)
			}
			if c.filename != "audio.flac" {
				t.Errorf("filename = %q", c.filename)
			}
			if c.size == 0 || c.model == "" {
				t.Errorf("request = %+v", c)
			}
		})
	}
}

func TestProviderErrors(t *testing.T) {
	tests := []struct {
		status int
		want   Failure
	}{
		{http.StatusUnauthorized, FailureAuth},
		{http.StatusTooManyRequests, FailureRateLimit},
		{http.StatusRequestEntityTooLarge, FailureTooLarge},
		{http.StatusBadRequest, FailureRejected},
		{http.StatusBadGateway, FailureServer},
	}
	body := `{"error":{"message":"nope","type":"invalid_request_error"}}`

	for _, name := range []string{"groq", "openai"} {
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/%d", name, tt.status), func(t *testing.T) {
				srv, _ := whisperServer(t, tt.status, body)
				tr := newProvider(name, Options{APIKey: "k", BaseURL: srv.URL})

				res := tr.Transcribe(context.Background(), Audio{PCM: tonePCM(0.1), MIMEType: encoder.MIMEWav})
				if res.OK() {
					t.Fatal("expected failure")
				}
				if res.Failure != tt.want {
					t.Errorf("failure = %s, want %s (err %v)", res.Failure, tt.want, res.Err)
				}
				if res.ErrorMessage == "" || res.Text != "" {
					t.Errorf("result = %+v", res)
				}
			})
		}
	}
}

func TestTranscribeTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	tr := NewGroq(Options{APIKey: "k", BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := tr.Transcribe(ctx, Audio{PCM: tonePCM(0.1)})
	if res.Failure != FailureTimeout {
		t.Errorf("failure = %s, want timeout (err %v)", res.Failure, res.Err)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	tr := NewGroq(Options{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	res := tr.Transcribe(context.Background(), Audio{})
	if !errors.Is(res.Err, ErrEmptyAudio) || res.Failure != FailureNoAudio {
		t.Errorf("result = %+v", res)
	}
}

func TestNew(t *testing.T) {
	if _, err := New("groq", Options{}); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := New("deepspeech", Options{APIKey: "k"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	for _, name := range []string{"groq", "openai"} {
		tr, err := New(name, Options{APIKey: "k"})
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if tr.Name() != name {
			t.Errorf("Name() = %q, want %q", tr.Name(), name)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Failure
	}{
		{"nil", nil, FailureNone},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), FailureTimeout},
		{"net timeout", timeoutErr{}, FailureTimeout},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, FailureNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.groq.com"}, FailureNetwork},
		{"api 403", &APIError{StatusCode: 403}, FailureAuth},
		{"api 504", &APIError{StatusCode: 504}, FailureTimeout},
		{"openai api", &openai.APIError{HTTPStatusCode: 429}, FailureRateLimit},
		{"openai request", &openai.RequestError{HTTPStatusCode: 500}, FailureServer},
		{"other", errors.New("weird"), FailureUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFailureMessages(t *testing.T) {
	for f := FailureAuth; f <= FailureUnknown; f++ {
		if f.Message() == "" {
			t.Errorf("%s has no message", f)
		}
		if !strings.HasPrefix(f.Message(), "Transcription failed") {
			t.Errorf("%s message = %q", f, f.Message())
		}
	}
}

func TestFake(t *testing.T) {
	f := NewFake("hi", nil)
	if res := f.Transcribe(context.Background(), Audio{PCM: []byte{0, 0}}); res.Text != "hi" {
		t.Errorf("text = %q", res.Text)
	}

	f = NewFake("", errors.New("boom"))
	if res := f.Transcribe(context.Background(), Audio{}); res.OK() || res.ErrorMessage == "" {
		t.Errorf("result = %+v", res)
	}
	if f.Calls() != 1 {
		t.Errorf("calls = %d", f.Calls())
	}
}

func TestGroqResponseShape(t *testing.T) {
	var r groqResponse
	if err := json.Unmarshal([]byte(`{"text":"x","duration":2.5,"segments":[]}`), &r); err != nil {
		t.Fatal(err)
	}
	if r.Text != "x" || r.Duration != 2.5 {
		t.Errorf("got %+v", r)
	}
}

func TestConnectionReuse(t *testing.T) {
	for _, name := range []string{"groq", "openai"} {
		t.Run(name, func(t *testing.T) {
			srv, got := whisperServer(t, http.StatusOK, `{"text":"hi","duration":0.5}`)
			tr := newProvider(name, Options{APIKey: "k", BaseURL: srv.URL})
			clip := Audio{PCM: tonePCM(0.2), MIMEType: encoder.MIMEWav}

			first := tr.Transcribe(context.Background(), clip)
			<-got
			second := tr.Transcribe(context.Background(), clip)
			<-got
			if !first.OK() || !second.OK() {
				t.Fatalf("errors: %v, %v", first.Err, second.Err)
			}
			if first.Stats.ConnReused {
				t.Error("first request reported a reused connection")
			}
			if !second.Stats.ConnReused {
				t.Error("second request did not reuse the connection")
			}
		})
	}
}
