package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math/big"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wallfair/settlement/internal/amm"
	"github.com/wallfair/settlement/internal/config"
	"github.com/wallfair/settlement/internal/domain"
	"github.com/wallfair/settlement/internal/events"
	"github.com/wallfair/settlement/internal/repository"
	"github.com/wallfair/settlement/internal/service"
)

// ── In-memory store ───────────────────────────────────────────────────────────

type quoteKey struct {
	market  uuid.UUID
	outcome int
	at      int64
}

// memDB is a transactional in-memory stand-in for Postgres. Transactions are
// serialized and roll back on error. Like database/sql, a transaction whose
// context is done by commit time rolls back.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	markets map[uuid.UUID]domain.Market
	trades  []domain.Trade
	users   map[uuid.UUID]domain.User
	quotes  map[quoteKey]domain.QuoteSample

	insertTradeErr error
}

func newMemDB() *memDB {
	return &memDB{
		markets: make(map[uuid.UUID]domain.Market),
		users:   make(map[uuid.UUID]domain.User),
		quotes:  make(map[quoteKey]domain.QuoteSample),
	}
}

func (db *memDB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	markets, trades := maps.Clone(db.markets), slices.Clone(db.trades)
	db.mu.Unlock()

	rollback := func() {
		db.mu.Lock()
		db.markets, db.trades = markets, trades
		db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
		if err != nil {
			rollback()
		}
	}()
	if err = fn(ctx, memTx{db}); err != nil {
		return err
	}
	return ctx.Err()
}

func (db *memDB) allTrades(marketID uuid.UUID) []domain.Trade {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []domain.Trade
	for _, t := range db.trades {
		if t.MarketID == marketID {
			out = append(out, t)
		}
	}
	return out
}

func (db *memDB) market(id uuid.UUID) domain.Market {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.markets[id]
}

func (db *memDB) user(id uuid.UUID) domain.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.users[id]
}

type memTx struct{ db *memDB }

func (tx memTx) LockTradable(_ context.Context, marketID uuid.UUID, now time.Time) (*domain.Market, error) {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	m, ok := tx.db.markets[marketID]
	if !ok {
		return nil, domain.ErrMarketNotFound
	}
	if !m.IsTradable(now) {
		return nil, domain.ErrMarketNotTradable
	}
	return &m, nil
}

func (tx memTx) InsertTrade(_ context.Context, t *domain.Trade) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.db.insertTradeErr != nil {
		return tx.db.insertTradeErr
	}
	tx.db.trades = append(tx.db.trades, *t)
	return nil
}

func (tx memTx) MarkResolved(_ context.Context, req domain.ResolveRequest, at time.Time) (*domain.Market, error) {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	m, ok := tx.db.markets[req.MarketID]
	if !ok || !m.Status.CanSettle() {
		return nil, domain.ErrInvalidMarketState
	}
	outcome := req.OutcomeIndex
	m.Status = domain.StatusResolved
	m.FinalOutcome = &outcome
	m.EndDate = at
	m.EvidenceActual = &req.EvidenceActual
	m.EvidenceDescription = &req.EvidenceDescription
	m.UpdatedAt = at
	tx.db.markets[m.ID] = m
	return &m, nil
}

func (tx memTx) MarkCanceled(_ context.Context, req domain.CancelRequest, at time.Time) (*domain.Market, error) {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	m, ok := tx.db.markets[req.MarketID]
	if !ok || !m.Status.CanSettle() {
		return nil, domain.ErrInvalidMarketState
	}
	m.Status = domain.StatusCanceled
	m.ReasonOfCancellation = &req.Reason
	m.EndDate = at
	m.UpdatedAt = at
	tx.db.markets[m.ID] = m
	return &m, nil
}

func (tx memTx) CloseTrades(_ context.Context, userID, marketID uuid.UUID, outcomeIndex int, status domain.TradeStatus) (int64, error) {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	var n int64
	for i := range tx.db.trades {
		t := &tx.db.trades[i]
		if t.IsActive() && t.UserID == userID && t.MarketID == marketID && t.OutcomeIndex == outcomeIndex {
			t.Status = status
			n++
		}
	}
	return n, nil
}

func (tx memTx) CloseOpenTrades(_ context.Context, marketID uuid.UUID, status domain.TradeStatus) ([]uuid.UUID, error) {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var owners []uuid.UUID
	for i := range tx.db.trades {
		t := &tx.db.trades[i]
		if t.IsActive() && t.MarketID == marketID {
			t.Status = status
			if !seen[t.UserID] {
				seen[t.UserID] = true
				owners = append(owners, t.UserID)
			}
		}
	}
	return owners, nil
}

type marketRepo struct{ db *memDB }

func (r marketRepo) Create(_ context.Context, m *domain.Market) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.markets[m.ID] = *m
	return nil
}

func (r marketRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Market, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.markets[id]
	if !ok {
		return nil, domain.ErrMarketNotFound
	}
	return &m, nil
}

func (r marketRepo) ListByStatus(_ context.Context, statuses ...domain.MarketStatus) ([]*domain.Market, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*domain.Market
	for _, m := range r.db.markets {
		if slices.Contains(statuses, m.Status) {
			m := m
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r marketRepo) CloseExpired(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []uuid.UUID
	for id, m := range r.db.markets {
		if m.Status == domain.StatusActive && !now.Before(m.EndDate) {
			m.Status = domain.StatusClosed
			r.db.markets[id] = m
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type tradeRepo struct{ db *memDB }

type positionKey struct {
	market  uuid.UUID
	outcome int
	status  domain.TradeStatus
}

func (r tradeRepo) OpenPositions(_ context.Context, userID uuid.UUID) ([]domain.OpenPosition, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	idx := make(map[positionKey]int)
	var out []domain.OpenPosition
	for _, t := range r.db.trades {
		if t.UserID != userID || !t.IsActive() {
			continue
		}
		k := positionKey{t.MarketID, t.OutcomeIndex, ""}
		i, ok := idx[k]
		if !ok {
			m := r.db.markets[t.MarketID]
			o, _ := m.Outcomes.ByIndex(t.OutcomeIndex)
			out = append(out, domain.OpenPosition{MarketID: t.MarketID, MarketTitle: m.Title, OutcomeIndex: t.OutcomeIndex, OutcomeName: o.Name})
			i = len(out) - 1
			idx[k] = i
		}
		p := &out[i]
		p.InvestmentAmount = p.InvestmentAmount.Add(t.InvestmentAmount)
		p.OutcomeTokens = p.OutcomeTokens.Add(t.OutcomeTokens)
		if t.CreatedAt.After(p.LastTradeAt) {
			p.LastTradeAt = t.CreatedAt
		}
	}
	return out, nil
}

func (r tradeRepo) TradeHistory(_ context.Context, userID uuid.UUID) ([]domain.HistoryEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	idx := make(map[positionKey]int)
	var out []domain.HistoryEntry
	for _, t := range r.db.trades {
		if t.UserID != userID || !slices.Contains(domain.HistoryStatuses, t.Status) {
			continue
		}
		k := positionKey{t.MarketID, t.OutcomeIndex, t.Status}
		i, ok := idx[k]
		if !ok {
			m := r.db.markets[t.MarketID]
			out = append(out, domain.HistoryEntry{MarketID: t.MarketID, MarketTitle: m.Title, OutcomeIndex: t.OutcomeIndex, Status: t.Status, FinalOutcome: m.FinalOutcome})
			i = len(out) - 1
			idx[k] = i
		}
		e := &out[i]
		e.InvestmentAmount = e.InvestmentAmount.Add(t.InvestmentAmount)
		e.OutcomeTokens = e.OutcomeTokens.Add(t.OutcomeTokens)
	}
	return out, nil
}

func (r tradeRepo) ActiveHoldings(_ context.Context, marketID uuid.UUID) ([]domain.TokenHolding, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	type key struct {
		user    uuid.UUID
		outcome int
	}
	sums := make(map[key]decimal.Decimal)
	for _, t := range r.db.trades {
		if t.MarketID == marketID && t.IsActive() {
			k := key{t.UserID, t.OutcomeIndex}
			sums[k] = sums[k].Add(t.OutcomeTokens)
		}
	}
	out := []domain.TokenHolding{}
	for k, v := range sums {
		out = append(out, domain.TokenHolding{UserID: k.user, OutcomeIndex: k.outcome, OutcomeTokens: v})
	}
	return out, nil
}

type userRepo struct{ db *memDB }

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r userRepo) IncreaseAmountWon(_ context.Context, id uuid.UUID, amount decimal.Decimal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.AmountWon = u.AmountWon.Add(amount)
	r.db.users[id] = u
	return nil
}

func (r userRepo) RecordStake(_ context.Context, id uuid.UUID, maxStake bool) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	if maxStake {
		u.MaxStakeStreak++
	} else {
		u.MaxStakeStreak = 0
	}
	r.db.users[id] = u
	return u.MaxStakeStreak, nil
}

func (r userRepo) ClaimStreakAward(_ context.Context, id uuid.UUID, length int) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok || u.MaxStakeStreak < length {
		return false, nil
	}
	u.MaxStakeStreak = 0
	r.db.users[id] = u
	return true, nil
}

type quoteRepo struct{ db *memDB }

func (r quoteRepo) Insert(_ context.Context, samples []domain.QuoteSample) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, s := range samples {
		k := quoteKey{s.MarketID, s.OutcomeIndex, s.SampledAt.UnixNano()}
		if _, dup := r.db.quotes[k]; dup {
			continue
		}
		r.db.quotes[k] = s
		n++
	}
	return n, nil
}

func (r quoteRepo) ListByMarket(_ context.Context, marketID uuid.UUID, since time.Time) ([]domain.QuoteSample, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []domain.QuoteSample{}
	for _, s := range r.db.quotes {
		if s.MarketID == marketID && !s.SampledAt.Before(since) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SampledAt.Equal(out[j].SampledAt) {
			return out[i].SampledAt.Before(out[j].SampledAt)
		}
		return out[i].OutcomeIndex < out[j].OutcomeIndex
	})
	return out, nil
}

// ── Ledger ────────────────────────────────────────────────────────────────────

type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]*big.Int
	mints    int
	mintErr  error

	// beforeMint runs once, ahead of the next Mint, outside the lock.
	beforeMint func()
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[string]*big.Int)}
}

func (l *fakeLedger) BalanceOf(_ context.Context, account domain.Account) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[account.Owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (l *fakeLedger) Mint(_ context.Context, account domain.Account, amount *big.Int) error {
	l.mu.Lock()
	hook := l.beforeMint
	l.beforeMint = nil
	l.mu.Unlock()
	if hook != nil {
		hook()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mintErr != nil {
		return l.mintErr
	}
	l.mints++
	l.add(account.Owner, amount)
	return nil
}

func (l *fakeLedger) add(owner string, amount *big.Int) {
	b, ok := l.balances[owner]
	if !ok {
		b = new(big.Int)
		l.balances[owner] = b
	}
	b.Add(b, amount)
}

// credit adds tokens without counting as a mint.
func (l *fakeLedger) credit(owner string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(owner, domain.ToScaled(amount))
}

func (l *fakeLedger) transfer(from, to string, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[from]
	if !ok || b.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: %s: insufficient balance", from)
	}
	b.Sub(b, amount)
	l.add(to, amount)
	return nil
}

func (l *fakeLedger) balance(owner string) decimal.Decimal {
	b, _ := l.BalanceOf(context.Background(), domain.Account{Owner: owner})
	return domain.FromScaled(b)
}

// ── Pricing engine ────────────────────────────────────────────────────────────

// fakeEngine pays tokensPerStake outcome tokens per unit of stake and pays
// one play token per winning outcome token.
type fakeEngine struct {
	mu             sync.Mutex
	ledger         *fakeLedger
	tokensPerStake int64

	holdings     map[uuid.UUID]map[int]map[string]*big.Int
	interactions map[uuid.UUID][]amm.Interaction
	quotes       map[int]*big.Int

	buyErr    error
	payoutErr error
	refundErr error
	quoteErr  error

	buyCalls     int
	resolveCalls int
	refundCalls  int
}

func newFakeEngine(ledger *fakeLedger) *fakeEngine {
	return &fakeEngine{
		ledger:         ledger,
		tokensPerStake: 2,
		holdings:       make(map[uuid.UUID]map[int]map[string]*big.Int),
		interactions:   make(map[uuid.UUID][]amm.Interaction),
		quotes:         make(map[int]*big.Int),
	}
}

func poolAccount(marketID uuid.UUID) string { return "BET_" + marketID.String() }

func (e *fakeEngine) Buy(_ context.Context, req amm.BuyRequest) (*amm.BuyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buyCalls++
	if e.buyErr != nil {
		return nil, e.buyErr
	}
	tokens := new(big.Int).Mul(req.Amount, big.NewInt(e.tokensPerStake))
	if tokens.Cmp(req.MinOutcomeTokens) < 0 {
		return nil, fmt.Errorf("amm.Buy: %w", domain.ErrInsufficientOutcomeTokens)
	}
	if err := e.ledger.transfer(req.Buyer, poolAccount(req.MarketID), req.Amount); err != nil {
		return nil, err
	}
	e.addHolding(req.MarketID, req.OutcomeIndex, req.Buyer, tokens)
	e.interactions[req.MarketID] = append(e.interactions[req.MarketID], amm.Interaction{
		Buyer:               req.Buyer,
		Direction:           amm.DirectionBuy,
		OutcomeIndex:        req.OutcomeIndex,
		InvestmentAmount:    new(big.Int).Set(req.Amount),
		OutcomeTokensBought: tokens,
		TradedAt:            time.Now().UTC(),
	})
	return &amm.BuyResult{OutcomeTokens: tokens}, nil
}

func (e *fakeEngine) addHolding(marketID uuid.UUID, outcome int, owner string, tokens *big.Int) {
	byOutcome, ok := e.holdings[marketID]
	if !ok {
		byOutcome = make(map[int]map[string]*big.Int)
		e.holdings[marketID] = byOutcome
	}
	byOwner, ok := byOutcome[outcome]
	if !ok {
		byOwner = make(map[string]*big.Int)
		byOutcome[outcome] = byOwner
	}
	b, ok := byOwner[owner]
	if !ok {
		b = new(big.Int)
		byOwner[owner] = b
	}
	b.Add(b, tokens)
}

func (e *fakeEngine) investors(marketID uuid.UUID, outcome int) []amm.Holding {
	var out []amm.Holding
	for owner, b := range e.holdings[marketID][outcome] {
		out = append(out, amm.Holding{Owner: owner, Balance: new(big.Int).Set(b)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

func (e *fakeEngine) ResolveAndPayout(_ context.Context, marketID uuid.UUID, _ string, outcomeIndex int) ([]amm.Holding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolveCalls++
	if e.payoutErr != nil {
		return nil, e.payoutErr
	}
	return e.investors(marketID, outcomeIndex), nil
}

func (e *fakeEngine) Refund(_ context.Context, _ uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refundCalls++
	return e.refundErr
}

// slowEngine wraps fakeEngine with hooks that run after a buy or refund has
// committed, the way a remote engine answers after its own commit.
type slowEngine struct {
	*fakeEngine
	afterBuy    func(ctx context.Context) error
	afterRefund func(ctx context.Context) error
}

func (e *slowEngine) Buy(ctx context.Context, req amm.BuyRequest) (*amm.BuyResult, error) {
	res, err := e.fakeEngine.Buy(ctx, req)
	if err != nil || e.afterBuy == nil {
		return res, err
	}
	if err := e.afterBuy(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *slowEngine) Refund(ctx context.Context, marketID uuid.UUID) error {
	if err := e.fakeEngine.Refund(ctx, marketID); err != nil || e.afterRefund == nil {
		return err
	}
	return e.afterRefund(ctx)
}

// respondLate cancels the caller and answers unless ctx is done first.
func respondLate(cancel context.CancelFunc) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		cancel()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return nil
		}
	}
}

func (e *fakeEngine) InvestorsOfOutcome(_ context.Context, marketID uuid.UUID, outcomeIndex int) ([]amm.Holding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.investors(marketID, outcomeIndex), nil
}

func (e *fakeEngine) UserInteractions(_ context.Context, marketID uuid.UUID) ([]amm.Interaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.interactions[marketID]), nil
}

func (e *fakeEngine) QuoteBuy(_ context.Context, _ uuid.UUID, _ *big.Int, outcomeIndex int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.quoteErr != nil {
		return nil, e.quoteErr
	}
	q, ok := e.quotes[outcomeIndex]
	if !ok {
		return nil, fmt.Errorf("no quote for outcome %d", outcomeIndex)
	}
	return new(big.Int).Set(q), nil
}

// ── Publisher ─────────────────────────────────────────────────────────────────

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) ofKind(k events.Kind) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Kind() == k {
			out = append(out, e)
		}
	}
	return out
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// ── Fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	db     *memDB
	ledger *fakeLedger
	engine *fakeEngine
	pub    *fakePublisher
	cfg    *config.Config
	logger *slog.Logger

	settlement *service.SettlementService
	markets    *service.MarketService
	reconciler *service.Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:     newMemDB(),
		ledger: newFakeLedger(),
		pub:    &fakePublisher{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg: &config.Config{Settlement: config.SettlementConfig{
			StreakLength:      5,
			StreakReward:      decimal.NewFromInt(100),
			QuoteBackdate:     5 * time.Minute,
			SideEffectTimeout: time.Second,
		}},
	}
	f.engine = newFakeEngine(f.ledger)
	f.build()
	return f
}

// build (re)creates the services; call it after changing cfg.
func (f *fixture) build() {
	f.settlement = service.NewSettlementService(
		f.db, marketRepo{f.db}, userRepo{f.db}, f.engine, f.ledger, f.pub, f.cfg, f.logger)
	f.markets = service.NewMarketService(marketRepo{f.db}, quoteRepo{f.db}, f.pub, f.logger)
	f.reconciler = service.NewReconciler(marketRepo{f.db}, tradeRepo{f.db}, f.engine, f.logger)
}

// withSlowEngine rebuilds the settlement service around a slowEngine.
func (f *fixture) withSlowEngine() *slowEngine {
	e := &slowEngine{fakeEngine: f.engine}
	f.settlement = service.NewSettlementService(
		f.db, marketRepo{f.db}, userRepo{f.db}, e, f.ledger, f.pub, f.cfg, f.logger)
	return e
}

func (f *fixture) addUser(t *testing.T, balance int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.db.mu.Lock()
	f.db.users[id] = domain.User{ID: id, Username: "user-" + id.String()[:8], Role: domain.RoleUser}
	f.db.mu.Unlock()
	if balance > 0 {
		f.ledger.credit(id.String(), decimal.NewFromInt(balance))
	}
	return id
}

func (f *fixture) addMarket(t *testing.T, status domain.MarketStatus, names ...string) *domain.Market {
	t.Helper()
	if len(names) == 0 {
		names = []string{"Yes", "No"}
	}
	outcomes := make(domain.Outcomes, len(names))
	for i, n := range names {
		outcomes[i] = domain.Outcome{Index: i, Name: n}
	}
	now := time.Now().UTC()
	m := domain.Market{
		ID:        uuid.New(),
		Title:     "Will it rain tomorrow?",
		Outcomes:  outcomes,
		Status:    status,
		Published: true,
		EndDate:   now.Add(time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, marketRepo{f.db}.Create(context.Background(), &m))
	return &m
}

func (f *fixture) placeBet(t *testing.T, userID, marketID uuid.UUID, stake int64, outcome int) *domain.PlaceBetResult {
	t.Helper()
	res, err := f.settlement.PlaceBet(context.Background(), domain.PlaceBetRequest{
		UserID:           userID,
		MarketID:         marketID,
		Stake:            decimal.NewFromInt(stake),
		OutcomeIndex:     outcome,
		MinOutcomeTokens: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	return res
}
