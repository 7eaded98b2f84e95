package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net"

	openai "github.com/sashabaranov/go-openai"
)

// Failure is the category of a failed transcription, used to pick the
// message shown to the user.
type Failure int

const (
	FailureNone Failure = iota
	FailureAuth
	FailureRateLimit
	FailureTimeout
	FailureNetwork
	FailureServer
	FailureTooLarge
	FailureRejected
	FailureNoAudio
	FailureUnknown
)

var failureNames = map[Failure]string{
	FailureNone:      "none",
	FailureAuth:      "auth",
	FailureRateLimit: "rate_limit",
	FailureTimeout:   "timeout",
	FailureNetwork:   "network",
	FailureServer:    "server",
	FailureTooLarge:  "too_large",
	FailureRejected:  "rejected",
	FailureNoAudio:   "no_audio",
	FailureUnknown:   "unknown",
}

func (f Failure) String() string { return failureNames[f] }

var failureMessages = map[Failure]string{
	FailureAuth:      "Transcription failed: the API key was rejected.",
	FailureRateLimit: "Transcription failed: rate limit reached, try again in a moment.",
	FailureTimeout:   "Transcription failed: the request timed out.",
	FailureNetwork:   "Transcription failed: check your network connection.",
	FailureServer:    "Transcription failed: the service is unavailable, try again later.",
	FailureTooLarge:  "Transcription failed: the recording is too long.",
	FailureRejected:  "Transcription failed: the request was rejected.",
	FailureNoAudio:   "Transcription failed: no audio was captured.",
	FailureUnknown:   "Transcription failed.",
}

// Message is the English user-facing text for f.
func (f Failure) Message() string { return failureMessages[f] }

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Classify maps a transport or API error to a Failure.
func Classify(err error) Failure {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrEmptyAudio) {
		return FailureNoAudio
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	if code := statusCode(err); code != 0 {
		switch {
		case code == 401 || code == 403:
			return FailureAuth
		case code == 429:
			return FailureRateLimit
		case code == 408 || code == 504:
			return FailureTimeout
		case code == 413:
			return FailureTooLarge
		case code >= 500:
			return FailureServer
		case code >= 400:
			return FailureRejected
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureNetwork
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return FailureNetwork
	}
	return FailureUnknown
}

func statusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		return oaErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
