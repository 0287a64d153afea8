// Package sink delivers leads to the remote spreadsheet endpoint and reduces
// every attempt to one of two outcomes.
package sink

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadscan/internal/metrics"
	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/internal/resilience"
	"github.com/sells-group/leadscan/pkg/appscript"
)

// Outcome is the result of a submission attempt.
type Outcome int

const (
	// Failed means the request was not dispatched.
	Failed Outcome = iota
	// Delivered means the request was dispatched without a transport error.
	// The endpoint's reply is never inspected, so this is not an
	// acknowledgment that a row was written.
	Delivered
)

func (o Outcome) String() string {
	if o == Delivered {
		return "delivered"
	}
	return "failed"
}

// Submitter sends a lead to the remote sink.
type Submitter interface {
	Submit(ctx context.Context, lead model.Lead) Outcome
}

// Reachability reports whether the network is currently usable.
type Reachability interface {
	Online() bool
}

// Option configures a Sink.
type Option func(*Sink)

// WithRateLimit paces dispatches to at most perSec requests per second.
func WithRateLimit(perSec float64) Option {
	return func(s *Sink) {
		if perSec > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sink) {
		s.metrics = m
	}
}

// Sink implements Submitter over an Apps Script client.
type Sink struct {
	client  appscript.Client
	net     Reachability
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// New creates a Sink. client may be nil when no endpoint is configured, in
// which case every submission fails without network I/O.
func New(client appscript.Client, net Reachability, opts ...Option) *Sink {
	s := &Sink{client: client, net: net}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether an endpoint is set.
func (s *Sink) Configured() bool {
	return s.client != nil && s.client.Endpoint() != ""
}

// Submit dispatches lead. It returns Failed without network I/O when the
// endpoint is not configured or the network is reported offline.
func (s *Sink) Submit(ctx context.Context, lead model.Lead) Outcome {
	log := zap.L().With(
		zap.String("component", "sink"),
		zap.String("timestamp", lead.Timestamp),
	)

	if !s.Configured() {
		log.Warn("sink endpoint not configured, keeping lead locally")
		return s.fail(resilience.ReasonUnconfigured)
	}
	if s.net != nil && !s.net.Online() {
		log.Debug("offline, skipping dispatch")
		return s.fail(resilience.ReasonOffline)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			log.Debug("rate limit wait aborted", zap.Error(err))
			return s.fail(resilience.Classify(err))
		}
	}

	d, err := s.client.Post(ctx, payloadFor(lead))
	if err != nil {
		reason := resilience.Classify(err)
		log.Warn("dispatch failed",
			zap.String("reason", string(reason)),
			zap.Bool("transient", reason.Transient()),
			zap.Error(err),
		)
		return s.fail(reason)
	}

	if resilience.IsServerErrorStatus(d.StatusCode) {
		log.Warn("sink answered with a server error; counted as delivered",
			zap.Int("status", d.StatusCode),
		)
	} else {
		log.Debug("lead dispatched",
			zap.Int("status", d.StatusCode),
			zap.Duration("latency", d.Latency),
		)
	}
	s.metrics.ObserveSubmit(Delivered.String(), "", d.Latency)
	return Delivered
}

func (s *Sink) fail(reason resilience.Reason) Outcome {
	s.metrics.ObserveSubmit(Failed.String(), string(reason), 0)
	return Failed
}
