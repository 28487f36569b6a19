package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/internal/valuation"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoData   = errors.New("price source returned no data")
	ErrNoAssets = errors.New("at least one asset id is required")
)

// LedgerStore persists the whole ledger at once.
type LedgerStore interface {
	Load(ctx context.Context) (models.Ledger, error)
	Save(ctx context.Context, l models.Ledger) error
}

// HistoryStore is an append-only log of price snapshots.
type HistoryStore interface {
	Append(ctx context.Context, entry models.HistoryEntry) error
	Entries(ctx context.Context) ([]models.HistoryEntry, error)
}

// PortfolioService is what every front end talks to. Mutations of the
// ledger and of the history log are serialised by mu so that concurrent
// buys never lose each other's update.
type PortfolioService struct {
	store    LedgerStore
	history  HistoryStore
	prices   PriceProvider
	currency string
	log      *logrus.Logger
	now      func() time.Time
	mu       sync.Mutex
}

// NewPortfolioService wires the service. history may be nil, in which case
// snapshots are not recorded.
func NewPortfolioService(store LedgerStore, history HistoryStore, prices PriceProvider, currency string, log *logrus.Logger) *PortfolioService {
	return &PortfolioService{
		store:    store,
		history:  history,
		prices:   prices,
		currency: currency,
		log:      log,
		now:      time.Now,
	}
}

func (s *PortfolioService) Currency() string {
	return s.currency
}

// GetReport values the stored ledger at current prices. When the price
// source is down the report is still produced, every line unpriced and
// Degraded set.
func (s *PortfolioService) GetReport(ctx context.Context) (models.ValuationReport, error) {
	l, err := s.store.Load(ctx)
	if err != nil {
		return models.ValuationReport{}, fmt.Errorf("load ledger: %w", err)
	}

	quotes := models.QuoteSet{}
	degraded := false
	if len(l) > 0 {
		q, err := s.prices.FetchQuotes(ctx, l.AssetIDs())
		switch {
		case err == nil:
			quotes = q
		case errors.Is(err, ErrSourceUnavailable):
			s.log.Warnf("valuing portfolio without prices: %v", err)
			degraded = true
		default:
			return models.ValuationReport{}, err
		}
	}

	report := valuation.ValuePortfolio(l, quotes, s.currency)
	report.GeneratedAt = s.now()
	report.Degraded = degraded
	return report, nil
}

// Buy adds qty of id to the ledger at the current price. The ledger is left
// untouched unless every check passes.
func (s *PortfolioService) Buy(ctx context.Context, id string, qty decimal.Decimal) (models.BuyResult, error) {
	id = models.NormalizeID(id)
	if !qty.IsPositive() {
		return models.BuyResult{}, valuation.ErrInvalidQuantity
	}
	if id == "" {
		return models.BuyResult{}, valuation.ErrUnknownAsset
	}

	quotes, err := s.prices.FetchQuotes(ctx, []string{id})
	if err != nil {
		return models.BuyResult{}, err
	}
	var quote *models.Quote
	if q, ok := quotes[id]; ok {
		quote = &q
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.store.Load(ctx)
	if err != nil {
		return models.BuyResult{}, fmt.Errorf("load ledger: %w", err)
	}
	next, err := valuation.Buy(l, id, qty, quote)
	if err != nil {
		return models.BuyResult{}, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return models.BuyResult{}, fmt.Errorf("save ledger: %w", err)
	}

	price := quote.Price.Decimal
	res := models.BuyResult{
		AssetID:   id,
		Quantity:  qty,
		UnitPrice: price,
		Cost:      qty.Mul(price),
		Holding:   next[id],
	}
	s.log.Infof("bought %s %s at %s %s, holding %s", qty, id, price, s.currency, res.Holding)
	return res, nil
}

// GetQuote returns the current quote of a single asset.
func (s *PortfolioService) GetQuote(ctx context.Context, id string) (models.Quote, error) {
	id = models.NormalizeID(id)
	if id == "" {
		return models.Quote{}, valuation.ErrUnknownAsset
	}
	quotes, err := s.prices.FetchQuotes(ctx, []string{id})
	if err != nil {
		return models.Quote{}, err
	}
	q, ok := quotes[id]
	if !ok {
		return models.Quote{}, valuation.ErrUnknownAsset
	}
	return q, nil
}

// GetQuotes returns the current quotes of ids with one request to the price
// source. Ids the source does not know are absent from the result.
func (s *PortfolioService) GetQuotes(ctx context.Context, ids []string) (models.QuoteSet, error) {
	ids = models.NormalizeIDs(ids)
	if len(ids) == 0 {
		return nil, ErrNoAssets
	}
	return s.prices.FetchQuotes(ctx, ids)
}

// Snapshot fetches quotes for ids and records them in the history log. A
// failure to record is logged and does not fail the snapshot.
func (s *PortfolioService) Snapshot(ctx context.Context, ids []string) (models.QuoteSet, error) {
	ids = models.NormalizeIDs(ids)
	if len(ids) == 0 {
		return nil, ErrNoAssets
	}
	quotes, err := s.prices.FetchQuotes(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, ErrNoData
	}
	if s.history == nil {
		return quotes, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := models.HistoryEntry{Timestamp: s.now(), Quotes: quotes}
	if err := s.history.Append(ctx, entry); err != nil {
		s.log.Errorf("record snapshot failed: %v", err)
	}
	return quotes, nil
}

// History returns the recorded snapshots, oldest first.
func (s *PortfolioService) History(ctx context.Context) ([]models.HistoryEntry, error) {
	if s.history == nil {
		return []models.HistoryEntry{}, nil
	}
	return s.history.Entries(ctx)
}

// HistoryStats summarises the recorded prices per asset.
func (s *PortfolioService) HistoryStats(ctx context.Context) ([]models.PriceStats, error) {
	entries, err := s.History(ctx)
	if err != nil {
		return nil, err
	}
	return valuation.HistoryStats(entries), nil
}
