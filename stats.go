package main

import (
	"fmt"
	"sort"
	"sync"

	"dubtap/log"
	"dubtap/transcriber"
)

type PercentileStats struct {
	TotalMs  [5]float64 // min, p50, p90, p95, max
	EncodeMs [5]float64
	TLSMs    [5]float64
	CompPct  [5]float64
}

// history keeps per-transcription statistics for the status view and the
// session summary.
type history struct {
	mu       sync.Mutex
	records  []transcriber.BatchStats
	stats    PercentileStats
	lastText string
}

func (h *history) add(stats *transcriber.BatchStats, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if text != "" {
		h.lastText = text
	}
	if stats == nil {
		return
	}
	h.records = append(h.records, *stats)
	h.update()
}

func (h *history) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func (h *history) last() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastText
}

func (h *history) percentiles() (PercentileStats, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats, len(h.records)
}

func (h *history) update() {
	n := len(h.records)
	if n == 0 {
		return
	}

	extract := func(fn func(transcriber.BatchStats) float64) []float64 {
		vals := make([]float64, n)
		for i, r := range h.records {
			vals[i] = fn(r)
		}
		sort.Float64s(vals)
		return vals
	}

	h.stats = PercentileStats{
		TotalMs:  spread(extract(func(r transcriber.BatchStats) float64 { return r.TotalTimeMs })),
		EncodeMs: spread(extract(func(r transcriber.BatchStats) float64 { return r.EncodeTimeMs })),
		TLSMs:    spread(extract(func(r transcriber.BatchStats) float64 { return r.TLSTimeMs })),
		CompPct:  spread(extract(func(r transcriber.BatchStats) float64 { return r.CompressionPct })),
	}
}

func percentile(sorted []float64, p float64) float64 {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func spread(sorted []float64) [5]float64 {
	return [5]float64{
		sorted[0],
		percentile(sorted, 0.50),
		percentile(sorted, 0.90),
		percentile(sorted, 0.95),
		sorted[len(sorted)-1],
	}
}

func (h *history) table() string {
	ps, n := h.percentiles()
	if n == 0 {
		return ""
	}
	ts, es, tls, cs := ps.TotalMs, ps.EncodeMs, ps.TLSMs, ps.CompPct
	return fmt.Sprintf(
		"        %5s %5s %5s %5s %5s\n"+
			"total   %5.0f %5.0f %5.0f %5.0f %5.0f\n"+
			"encode  %5.0f %5.0f %5.0f %5.0f %5.0f\n"+
			"tls     %5.0f %5.0f %5.0f %5.0f %5.0f\n"+
			"comp    %4.0f%% %4.0f%% %4.0f%% %4.0f%% %4.0f%%",
		"min", "p50", "p90", "p95", "max",
		ts[0], ts[1], ts[2], ts[3], ts[4],
		es[0], es[1], es[2], es[3], es[4],
		tls[0], tls[1], tls[2], tls[3], tls[4],
		cs[0], cs[1], cs[2], cs[3], cs[4],
	)
}

func logMetrics(format, provider string, res *transcriber.Result) {
	if res == nil || res.Stats == nil {
		return
	}
	bs := res.Stats
	log.TranscriptionMetrics(log.Metrics{
		Provider:         provider,
		Format:           format,
		RateLimit:        res.RateLimit,
		TLSProto:         bs.TLSProtocol,
		Reused:           bs.ConnReused,
		AudioLengthS:     bs.AudioLengthS,
		RawSizeKB:        bs.RawSizeKB,
		CompressedSizeKB: bs.CompressedSizeKB,
		CompressionPct:   bs.CompressionPct,
		EncodeTimeMs:     bs.EncodeTimeMs,
		DNSTimeMs:        bs.DNSTimeMs,
		TLSTimeMs:        bs.TLSTimeMs,
		TTFBMs:           bs.TTFBMs,
		TotalTimeMs:      bs.TotalTimeMs,
	})
}
