package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/tradingdesk/internal/database"
	"github.com/aristath/tradingdesk/internal/modules/allocation"
)

// ErrResetUnsupported is returned by Reset when the ledger mirrors a broker.
var ErrResetUnsupported = errors.New("reset is only available for the local ledger")

// PortfolioService computes summaries, snapshots and resets over the ledger.
type PortfolioService struct {
	db          *sql.DB
	portfolio   *PortfolioRepository
	holdings    *HoldingRepository
	snapshots   *SnapshotRepository
	providers   ProviderLister
	quotes      QuoteSource
	allocations *allocation.Service
	localLedger bool
	log         zerolog.Logger
}

// NewPortfolioService creates a new portfolio service. localLedger enables Reset.
func NewPortfolioService(
	db *sql.DB,
	portfolio *PortfolioRepository,
	holdings *HoldingRepository,
	snapshots *SnapshotRepository,
	providers ProviderLister,
	quotes QuoteSource,
	localLedger bool,
	log zerolog.Logger,
) *PortfolioService {
	return &PortfolioService{
		db:          db,
		portfolio:   portfolio,
		holdings:    holdings,
		snapshots:   snapshots,
		providers:   providers,
		quotes:      quotes,
		allocations: allocation.NewService(holdings),
		localLedger: localLedger,
		log:         log.With().Str("service", "portfolio").Logger(),
	}
}

// RefreshPrices updates the last price of every held symbol. Quote failures
// are logged and leave the previous price in place.
func (s *PortfolioService) RefreshPrices(ctx context.Context) error {
	symbols, err := s.holdings.Symbols(ctx)
	if err != nil {
		return err
	}

	for _, symbol := range symbols {
		q, err := s.quotes.GetQuote(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to refresh price")
			continue
		}
		if err := s.holdings.UpdatePrice(ctx, symbol, q.Price); err != nil {
			return err
		}
	}
	return nil
}

// Summary returns the account overview with the per-provider allocation table.
func (s *PortfolioService) Summary(ctx context.Context) (*Summary, error) {
	if err := s.RefreshPrices(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Price refresh failed, using last known prices")
	}

	p, err := s.portfolio.Get(ctx)
	if err != nil {
		return nil, err
	}
	holdings, err := s.holdings.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	invested := decimal.Zero
	value := decimal.Zero
	for _, h := range holdings {
		qty := decimal.NewFromFloat(h.Quantity)
		invested = invested.Add(qty.Mul(decimal.NewFromFloat(h.AverageCost)))
		value = value.Add(qty.Mul(decimal.NewFromFloat(h.CurrentPrice)))
	}
	total := decimal.NewFromFloat(p.CashBalance).Add(value)
	initial := decimal.NewFromFloat(p.InitialBalance)
	totalReturn := total.Sub(initial)

	returnPct := decimal.Zero
	if initial.IsPositive() {
		returnPct = totalReturn.Div(initial).Mul(decimal.NewFromInt(100))
	}

	if err := s.portfolio.SetTotalValue(ctx, total.InexactFloat64()); err != nil {
		return nil, err
	}

	providers, err := s.providers.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	table, err := s.allocations.Table(ctx, providers, p.CashBalance)
	if err != nil {
		return nil, err
	}

	return &Summary{
		CashBalance:      p.CashBalance,
		HoldingsValue:    value.Round(2).InexactFloat64(),
		TotalValue:       total.Round(2).InexactFloat64(),
		TotalInvested:    invested.Round(2).InexactFloat64(),
		TotalReturn:      totalReturn.Round(2).InexactFloat64(),
		ReturnPercentage: returnPct.Round(2).InexactFloat64(),
		HoldingsCount:    len(holdings),
		Allocations:      table,
	}, nil
}

// TakeSnapshot records the current account value
func (s *PortfolioService) TakeSnapshot(ctx context.Context) (*Snapshot, error) {
	summary, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}

	snap := Snapshot{
		Cash:          summary.CashBalance,
		HoldingsValue: summary.HoldingsValue,
		TotalValue:    summary.TotalValue,
		TakenAt:       time.Now(),
	}
	if err := s.snapshots.Insert(ctx, snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// History returns snapshots taken since the given time
func (s *PortfolioService) History(ctx context.Context, since time.Time) ([]Snapshot, error) {
	return s.snapshots.Since(ctx, since)
}

// Reset restores the local ledger to its initial balance: holdings and value
// history are cleared, trades are kept.
func (s *PortfolioService) Reset(ctx context.Context) error {
	if !s.localLedger {
		return ErrResetUnsupported
	}

	p, err := s.portfolio.Get(ctx)
	if err != nil {
		return err
	}

	err = database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.holdings.WithTx(tx).DeleteAll(ctx); err != nil {
			return err
		}
		return s.portfolio.WithTx(tx).SyncAccount(ctx, p.InitialBalance, p.InitialBalance)
	})
	if err != nil {
		return fmt.Errorf("failed to reset portfolio: %w", err)
	}
	if err := s.snapshots.DeleteAll(ctx); err != nil {
		return err
	}

	s.log.Warn().Float64("initial_balance", p.InitialBalance).Msg("Portfolio reset")
	return nil
}
