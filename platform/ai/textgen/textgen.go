// Package textgen defines the text-generation client boundary: a backend
// interface plus a Service wrapper that owns timeout, retry, and pacing
// policy. Callers past this boundary see either usable text or
// ErrUnavailable, never a transport or parse error.
package textgen

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"leadchat_backend/platform/logger"
)

// ErrUnavailable is returned when the generation service cannot produce a
// usable result: transport failure, non-success status, empty text, or
// exhausted retries. Every call-site must map it to a documented fallback.
var ErrUnavailable = errors.New("text generation unavailable")

// Request carries one generation call.
type Request struct {
	// System is the fixed instruction for the call-site.
	System string
	// User is the user-content payload.
	User string
	// JSON asks the service to constrain its output to a JSON object.
	// The caller still parses defensively.
	JSON bool
}

// Backend executes a single generation request against a concrete provider.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Generator is the surface the call-sites consume.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Options tune the Service wrapper.
type Options struct {
	// Timeout bounds each individual attempt. Defaults to 10s.
	Timeout time.Duration
	// Retries is the number of additional attempts after the first failure.
	// Defaults to 2.
	Retries int
	// BaseDelay is the first backoff delay, doubled per retry. Defaults to 500ms.
	BaseDelay time.Duration
	// RequestsPerSecond gates all call-sites through one token bucket.
	// Zero disables pacing.
	RequestsPerSecond float64
	// Burst is the token bucket size. Defaults to 1 when pacing is enabled.
	Burst int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.RequestsPerSecond > 0 && o.Burst < 1 {
		o.Burst = 1
	}
	return o
}

// Service wraps a Backend with the shared timeout, retry, and rate policy.
type Service struct {
	backend Backend
	opts    Options
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewService creates a Service around the given backend.
func NewService(backend Backend, opts Options, log *logger.Logger) *Service {
	opts = opts.withDefaults()
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}
	return &Service{
		backend: backend,
		opts:    opts,
		limiter: limiter,
		log:     log,
	}
}

// Generate runs the request under the wrapper policy. It returns trimmed
// non-empty text, or ErrUnavailable.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	attempts := s.opts.Retries + 1
	delay := s.opts.BaseDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", ErrUnavailable
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return "", ErrUnavailable
			}
		}

		text, err := s.attempt(ctx, req)
		if err == nil {
			return text, nil
		}
		s.log.GenerationError("generate", attempt, err)

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return "", ErrUnavailable
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return "", ErrUnavailable
}

func (s *Service) attempt(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	text, err := s.backend.Generate(callCtx, req)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty generation response")
	}
	return text, nil
}
