package poll

import (
	"context"
	"errors"

	"github.com/sumire-bot/sumire/src/types"
)

// Sink delivers the current state of a poll to its origin surface. Render is
// called after every successful vote; RenderFinal exactly once at close.
// Delivery failures are the sink's caller's problem to log, never to
// propagate: the vote or close has already been recorded.
type Sink interface {
	Render(ctx context.Context, p *types.Poll, tally Tally) error
	RenderFinal(ctx context.Context, p *types.Poll, ranking []Ranked) error
}

// MultiSink fans out to several sinks and reports every failure.
type MultiSink []Sink

func (m MultiSink) Render(ctx context.Context, p *types.Poll, tally Tally) error {
	var errs []error
	for _, s := range m {
		if err := s.Render(ctx, p, tally); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) RenderFinal(ctx context.Context, p *types.Poll, ranking []Ranked) error {
	var errs []error
	for _, s := range m {
		if err := s.RenderFinal(ctx, p, ranking); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
