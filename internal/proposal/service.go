package proposal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Simplici0/slabquote/internal/estimate"
	"github.com/Simplici0/slabquote/internal/metrics"
)

// Service wraps a Generator so that callers only ever see text or nothing.
type Service struct {
	gen      Generator
	provider string
	timeout  time.Duration
}

// NewService returns a Service calling gen with at most timeout per call.
// provider labels logs and metrics. A nil gen disables proposals.
func NewService(gen Generator, provider string, timeout time.Duration) *Service {
	if gen == nil {
		gen = Disabled{}
		provider = "none"
	}
	return &Service{gen: gen, provider: provider, timeout: timeout}
}

// Propose returns proposal text, or nil when none is available. It never
// fails: every error is logged and swallowed. The call is not retried.
func (s *Service) Propose(ctx context.Context, est estimate.Result, clientName string) *string {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.generate(ctx, est, clientName)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrDisabled) {
			outcome = "disabled"
		}
		metrics.Proposals.WithLabelValues(s.provider, outcome).Inc()
		slog.Warn("proposal unavailable",
			"provider", s.provider,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	metrics.Proposals.WithLabelValues(s.provider, "ok").Inc()
	slog.Info("proposal generated",
		"provider", s.provider,
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &text
}

// generate shields callers from a panicking provider.
func (s *Service) generate(ctx context.Context, est estimate.Result, clientName string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", errors.New("proposal provider panicked")
		}
	}()

	text, err = s.gen.Generate(ctx, est, clientName)
	if err == nil && text == "" {
		err = errors.New("empty proposal")
	}
	return text, err
}
