// Package service composes access predicates, ordering and grading into the
// operations the API exposes for each resource.
package service

import (
	"context"
	"time"

	"github.com/pavelanni/coursecore/internal/grading"
	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/ordering"
	"github.com/pavelanni/coursecore/internal/store"
)

// DefaultSummarizeTimeout bounds one chapter summarization.
const DefaultSummarizeTimeout = 60 * time.Second

// Summarizer produces a summary for a chapter. Implementations call a
// remote service and report failures as *model.UpstreamError.
type Summarizer interface {
	Summarize(ctx context.Context, ch model.Chapter) (string, error)
}

// Service is the entry point for every resource operation.
type Service struct {
	store            *store.Store
	order            *ordering.Manager[*store.Tx]
	grading          *grading.Engine
	summarizer       Summarizer
	summarizeTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithSummarizer enables chapter summarization with a per-call timeout.
func WithSummarizer(s Summarizer, timeout time.Duration) Option {
	return func(svc *Service) {
		svc.summarizer = s
		if timeout > 0 {
			svc.summarizeTimeout = timeout
		}
	}
}

// New creates a Service over st.
func New(st *store.Store, opts ...Option) *Service {
	svc := &Service{
		store:            st,
		order:            ordering.NewManager[*store.Tx](st),
		grading:          grading.NewEngine(st),
		summarizeTimeout: DefaultSummarizeTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Ordering exposes the order-index manager for operational tools.
func (s *Service) Ordering() *ordering.Manager[*store.Tx] {
	return s.order
}
