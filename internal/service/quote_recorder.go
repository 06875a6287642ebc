package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wallfair/settlement/internal/domain"
	"github.com/wallfair/settlement/internal/events"
	"golang.org/x/sync/errgroup"
)

// QuoteRecorder turns bus events into price samples. Samples are stamped
// with the envelope timestamp, so a redelivered event lands on the same key
// and is dropped by the store.
type QuoteRecorder struct {
	engine   PricingEngine
	quotes   QuoteStore
	backdate time.Duration
	logger   *slog.Logger
}

// NewQuoteRecorder creates a QuoteRecorder.
func NewQuoteRecorder(engine PricingEngine, quotes QuoteStore, backdate time.Duration, logger *slog.Logger) *QuoteRecorder {
	return &QuoteRecorder{
		engine:   engine,
		quotes:   quotes,
		backdate: backdate,
		logger:   logger.With("component", "quote_recorder"),
	}
}

// Run consumes envelopes until ctx is done or the channel closes. Failures
// are logged and never stop the loop.
func (r *QuoteRecorder) Run(ctx context.Context, in <-chan events.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-in:
			if !ok {
				return
			}
			if err := r.Handle(ctx, env); err != nil {
				r.logger.Warn("quote sample failed", "event", env.Event, "err", err)
			}
		}
	}
}

// Handle records the samples one envelope calls for. Events other than
// BET_PLACED and NEW_BET are ignored.
func (r *QuoteRecorder) Handle(ctx context.Context, env events.Envelope) error {
	if env.Event != events.KindBetPlaced && env.Event != events.KindNewBet {
		return nil
	}
	e, err := env.Decode()
	if err != nil {
		return err
	}

	var samples []domain.QuoteSample
	switch ev := e.(type) {
	case events.BetPlaced:
		if ev.Market == nil {
			return fmt.Errorf("quote_recorder: %s without market", env.Event)
		}
		samples, err = r.sampleMarket(ctx, ev.Market, env.Timestamp.UTC())
		if err != nil {
			return err
		}
	case events.NewBet:
		if ev.Market == nil {
			return fmt.Errorf("quote_recorder: %s without market", env.Event)
		}
		samples = openingSamples(ev.Market, env.Timestamp.UTC().Add(-r.backdate))
	}

	n, err := r.quotes.Insert(ctx, samples)
	if err != nil {
		return fmt.Errorf("quote_recorder: insert: %w", err)
	}
	if n == 0 {
		r.logger.Debug("duplicate quote samples ignored", "key", env.Key())
	}
	return nil
}

// sampleMarket asks the engine for the current price of every outcome in
// parallel. All samples share one timestamp.
func (r *QuoteRecorder) sampleMarket(ctx context.Context, m *domain.Market, at time.Time) ([]domain.QuoteSample, error) {
	samples := make([]domain.QuoteSample, len(m.Outcomes))

	g, gctx := errgroup.WithContext(ctx)
	for i, outcome := range m.Outcomes {
		g.Go(func() error {
			tokens, err := r.engine.QuoteBuy(gctx, m.ID, domain.One, outcome.Index)
			if err != nil {
				return fmt.Errorf("quote outcome %d: %w", outcome.Index, err)
			}
			samples[i] = domain.QuoteSample{
				MarketID:     m.ID,
				OutcomeIndex: outcome.Index,
				SampledAt:    at,
				Quote:        domain.QuoteFromTokens(domain.FromScaled(tokens)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("quote_recorder: %w", err)
	}
	return samples, nil
}

func openingSamples(m *domain.Market, at time.Time) []domain.QuoteSample {
	q := domain.UniformQuote(len(m.Outcomes))
	out := make([]domain.QuoteSample, 0, len(m.Outcomes))
	for _, o := range m.Outcomes {
		out = append(out, domain.QuoteSample{MarketID: m.ID, OutcomeIndex: o.Index, SampledAt: at, Quote: q})
	}
	return out
}
