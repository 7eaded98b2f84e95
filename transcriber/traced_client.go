package transcriber

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// phaseRecorder collects per-phase timings of one request through
// httptrace. It works for any client that honors the request context, so
// SDK calls are measured the same way as hand-built requests.
type phaseRecorder struct {
	m NetworkMetrics

	start, getConn, dns, tcp, tlsStart time.Time
	gotConn, wroteHeaders, wroteReq    time.Time
	firstByte                          time.Time
}

// startTrace attaches a recorder to ctx.
func startTrace(ctx context.Context) (context.Context, *phaseRecorder) {
	r := &phaseRecorder{start: time.Now()}
	return httptrace.WithClientTrace(ctx, r.trace()), r
}

func (r *phaseRecorder) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { r.getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			r.gotConn = time.Now()
			r.m.ConnWait = r.gotConn.Sub(r.getConn)
			r.m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { r.dns = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { r.m.DNS = time.Since(r.dns) },
		ConnectStart:      func(_, _ string) { r.tcp = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { r.m.TCP = time.Since(r.tcp) },
		TLSHandshakeStart: func() { r.tlsStart = time.Now() },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			r.m.TLS = time.Since(r.tlsStart)
			r.m.TLSProtocol = tls.VersionName(state.Version)
		},
		WroteHeaders: func() {
			r.wroteHeaders = time.Now()
			r.m.ReqHeaders = r.wroteHeaders.Sub(r.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			r.wroteReq = time.Now()
			r.m.ReqBody = r.wroteReq.Sub(r.wroteHeaders)
		},
		GotFirstResponseByte: func() {
			r.firstByte = time.Now()
			r.m.TTFB = r.firstByte.Sub(r.wroteReq)
		},
	}
}

// finish stamps the download and total times. Call it after the body has
// been read.
func (r *phaseRecorder) finish() *NetworkMetrics {
	if !r.firstByte.IsZero() {
		r.m.Download = time.Since(r.firstByte)
	}
	r.m.Total = time.Since(r.start)
	m := r.m
	return &m
}

// TracedClient is an HTTP client that records per-phase timings of every
// request. Connections are kept alive between dictations.
type TracedClient struct {
	client *http.Client
}

func NewTracedClient(timeout time.Duration) *TracedClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TracedClient{client: &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}}
}

// HTTP exposes the underlying client for SDKs that bring their own request
// handling. Wrap their context with startTrace to get metrics.
func (c *TracedClient) HTTP() *http.Client { return c.client }

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	ctx, rec := startTrace(req.Context())
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    rec.finish(),
	}, nil
}

// Warm opens a connection to url ahead of the first upload and reports the
// TLS handshake time. Errors are ignored.
func (c *TracedClient) Warm(ctx context.Context, url string) time.Duration {
	ctx, rec := startTrace(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return rec.finish().TLS
}
