package transcriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dubtap/encoder"
)

var ErrEmptyAudio = errors.New("no audio to transcribe")

type BatchStats struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
	ConnReused       bool
	TLSProtocol      string
}

// upload is the provider-specific request. format is the file extension the
// API expects.
type upload func(ctx context.Context, data []byte, format string) (*response, error)

type response struct {
	Text      string
	Metrics   *NetworkMetrics
	RateLimit string
	Duration  float64
}

// transcribe encodes the clip, uploads it and fills in the statistics.
func transcribe(ctx context.Context, a Audio, send upload) Result {
	if len(a.PCM) < 2 {
		return failed(ErrEmptyAudio)
	}
	mime := a.MIMEType
	if mime == "" {
		mime = encoder.Preferred[0]
	}

	encStart := time.Now()
	data, err := encoder.Encode(mime, a.PCM)
	if err != nil {
		return failed(fmt.Errorf("encode %s: %w", mime, err))
	}
	encodeTime := time.Since(encStart)

	resp, err := send(ctx, data, encoder.Extension(mime))
	if err != nil {
		return failed(err)
	}

	rate := a.SampleRate
	if rate == 0 {
		rate = encoder.SampleRate
	}
	rawSize := len(a.PCM)
	compressionPct := (1.0 - float64(len(data))/float64(rawSize)) * 100
	audioDuration := float64(rawSize/2) / float64(rate)
	m := resp.Metrics
	if m == nil {
		m = &NetworkMetrics{}
	}

	stats := &BatchStats{
		AudioLengthS:     audioDuration,
		RawSizeKB:        float64(rawSize) / 1024,
		CompressedSizeKB: float64(len(data)) / 1024,
		CompressionPct:   compressionPct,
		EncodeTimeMs:     float64(encodeTime.Milliseconds()),
		DNSTimeMs:        float64(m.DNS.Milliseconds()),
		TLSTimeMs:        float64(m.TLS.Milliseconds()),
		TTFBMs:           float64(m.TTFB.Milliseconds()),
		TotalTimeMs:      float64(m.Sum().Milliseconds()),
		ConnReused:       m.ConnReused,
		TLSProtocol:      m.TLSProtocol,
	}

	return Result{
		Text:      strings.TrimSpace(resp.Text),
		RateLimit: resp.RateLimit,
		Stats:     stats,
		Metrics:   formatMetrics(mime, stats, m, resp.Duration),
	}
}

func failed(err error) Result {
	f := Classify(err)
	return Result{Err: err, Failure: f, ErrorMessage: f.Message()}
}

func formatMetrics(mime string, s *BatchStats, m *NetworkMetrics, apiDuration float64) []string {
	reusedStatus := ""
	if m.ConnReused {
		reusedStatus = " (reused)"
	}

	lines := []string{
		fmt.Sprintf("audio:      %.1fs | %.1f KB → %.1f KB (%.0f%% smaller)",
			s.AudioLengthS, s.RawSizeKB, s.CompressedSizeKB, s.CompressionPct),
		fmt.Sprintf("format:     %s", mime),
		fmt.Sprintf("encode:     %.0fms", s.EncodeTimeMs),
		fmt.Sprintf("conn_wait:  %dms%s", m.ConnWait.Milliseconds(), reusedStatus),
		fmt.Sprintf("dns:        %dms", m.DNS.Milliseconds()),
		fmt.Sprintf("tcp:        %dms", m.TCP.Milliseconds()),
		fmt.Sprintf("tls:        %dms", m.TLS.Milliseconds()),
		fmt.Sprintf("req_head:   %dms", m.ReqHeaders.Milliseconds()),
		fmt.Sprintf("req_body:   %dms", m.ReqBody.Milliseconds()),
		fmt.Sprintf("ttfb:       %dms", m.TTFB.Milliseconds()),
		fmt.Sprintf("download:   %dms", m.Download.Milliseconds()),
		fmt.Sprintf("total:      %dms", m.Sum().Milliseconds()),
	}
	if apiDuration > 0 {
		lines = append(lines, fmt.Sprintf("api_dur:    %.2fs", apiDuration))
	}
	return lines
}
