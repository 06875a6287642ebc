package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wallfair/settlement/internal/domain"
	"github.com/wallfair/settlement/internal/events"
	"github.com/wallfair/settlement/internal/service"
)

func TestMarketService_CreatePublishesNewBet(t *testing.T) {
	f := newFixture(t)

	m, err := f.markets.Create(context.Background(), domain.CreateMarketRequest{
		Title:     "Who wins the final?",
		Outcomes:  domain.Outcomes{{Index: 0, Name: "Home"}, {Index: 1, Name: "Draw"}, {Index: 2, Name: "Away"}},
		EndDate:   time.Now().Add(24 * time.Hour),
		Published: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, m.Status)
	assert.Nil(t, m.FinalOutcome)

	stored, err := f.markets.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Title, stored.Title)

	created := f.pub.ofKind(events.KindNewBet)
	require.Len(t, created, 1)
	assert.Equal(t, m.ID, created[0].(events.NewBet).Market.ID)
}

func TestMarketService_CreateRejectsBadRequests(t *testing.T) {
	f := newFixture(t)
	future := time.Now().Add(time.Hour)
	two := domain.Outcomes{{Index: 0, Name: "Yes"}, {Index: 1, Name: "No"}}

	tests := []struct {
		name string
		req  domain.CreateMarketRequest
	}{
		{"no title", domain.CreateMarketRequest{Outcomes: two, EndDate: future}},
		{"one outcome", domain.CreateMarketRequest{Title: "t", Outcomes: two[:1], EndDate: future}},
		{"duplicate names", domain.CreateMarketRequest{Title: "t", Outcomes: domain.Outcomes{{Index: 0, Name: "Yes"}, {Index: 1, Name: "Yes"}}, EndDate: future}},
		{"past end date", domain.CreateMarketRequest{Title: "t", Outcomes: two, EndDate: time.Now().Add(-time.Minute)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.markets.Create(context.Background(), tt.req)
			require.Error(t, err)
			assert.NotEqual(t, domain.KindInternal, domain.KindOf(err))
		})
	}
	assert.Zero(t, f.pub.count())
}

func TestMarketService_CloseExpired(t *testing.T) {
	f := newFixture(t)
	open := f.addMarket(t, domain.StatusActive)
	expired := f.addMarket(t, domain.StatusActive)
	f.db.mu.Lock()
	m := f.db.markets[expired.ID]
	m.EndDate = time.Now().Add(-time.Second)
	f.db.markets[expired.ID] = m
	f.db.mu.Unlock()

	n, err := f.markets.CloseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.StatusClosed, f.db.market(expired.ID).Status)
	assert.Equal(t, domain.StatusActive, f.db.market(open.ID).Status)

	// A closed market can no longer be bet on but can still be settled.
	user := f.addUser(t, 100)
	_, err = f.settlement.PlaceBet(context.Background(), domain.PlaceBetRequest{
		UserID: user, MarketID: expired.ID, Stake: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrMarketNotTradable)
	_, err = f.settlement.Resolve(context.Background(), domain.ResolveRequest{MarketID: expired.ID, OutcomeIndex: 1})
	assert.NoError(t, err)
}

func TestMarketService_QuotesUnknownMarket(t *testing.T) {
	f := newFixture(t)
	_, err := f.markets.Quotes(context.Background(), uuid.New(), time.Time{})
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
}

func TestTradeService_PositionsAndHistory(t *testing.T) {
	f := newFixture(t)
	trades := service.NewTradeService(tradeRepo{f.db})
	user := f.addUser(t, 1000)
	first := f.addMarket(t, domain.StatusActive)
	second := f.addMarket(t, domain.StatusActive)

	open, err := trades.OpenPositions(context.Background(), user)
	require.NoError(t, err)
	assert.NotNil(t, open)
	assert.Empty(t, open)

	f.placeBet(t, user, first.ID, 10, 0)
	f.placeBet(t, user, first.ID, 15, 0)
	f.placeBet(t, user, second.ID, 5, 1)

	open, err = trades.OpenPositions(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, p := range open {
		if p.MarketID == first.ID {
			assert.True(t, p.InvestmentAmount.Equal(decimal.NewFromInt(25)))
			assert.Equal(t, "Yes", p.OutcomeName)
		}
	}

	_, err = f.settlement.Resolve(context.Background(), domain.ResolveRequest{MarketID: first.ID, OutcomeIndex: 0})
	require.NoError(t, err)

	history, err := trades.History(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TradeStatusRewarded, history[0].Status)
	require.NotNil(t, history[0].FinalOutcome)
	assert.Equal(t, 0, *history[0].FinalOutcome)

	open, err = trades.OpenPositions(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].MarketID)
}
