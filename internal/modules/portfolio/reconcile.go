package portfolio

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/tradingdesk/internal/database"
	"github.com/aristath/tradingdesk/internal/domain"
)

// AccountSource is the broker's view of the account.
type AccountSource interface {
	GetAccountSnapshot(ctx context.Context) (*domain.AccountSnapshot, error)
	GetPositions(ctx context.Context) ([]domain.Position, error)
}

// BuyAttribution finds the provider that last bought a symbol.
type BuyAttribution interface {
	LastBuyProvider(ctx context.Context, symbol string) (domain.ProviderName, bool, error)
}

// ReconcileResult summarises one reconciliation pass
type ReconcileResult struct {
	Cash     float64 `json:"cash"`
	Equity   float64 `json:"equity"`
	Updated  int     `json:"updated"`
	Inserted int     `json:"inserted"`
	Deleted  int     `json:"deleted"`
}

// ReconcileService overwrites the local ledger with broker truth.
type ReconcileService struct {
	db          *sql.DB
	account     AccountSource
	portfolio   *PortfolioRepository
	holdings    *HoldingRepository
	attribution BuyAttribution
	providers   ProviderLister
	log         zerolog.Logger
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(
	db *sql.DB,
	account AccountSource,
	portfolio *PortfolioRepository,
	holdings *HoldingRepository,
	attribution BuyAttribution,
	providers ProviderLister,
	log zerolog.Logger,
) *ReconcileService {
	return &ReconcileService{
		db:          db,
		account:     account,
		portfolio:   portfolio,
		holdings:    holdings,
		attribution: attribution,
		providers:   providers,
		log:         log.With().Str("service", "reconcile").Logger(),
	}
}

// Reconcile syncs cash/equity and holdings from the broker in one transaction.
//
// Local holdings absent at the broker are deleted. A broker position held
// locally by one provider updates that holding; held by several, the broker
// quantity is split in proportion to the local quantities. Positions nobody
// holds locally are attributed to the provider of the most recent BUY of the
// symbol, else to the first active provider.
func (s *ReconcileService) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	acct, err := s.account.GetAccountSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account snapshot: %w", err)
	}
	positions, err := s.account.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}
	local, err := s.holdings.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	// Attribution lookups happen before the transaction opens.
	localBySymbol := make(map[string][]domain.Holding)
	for _, h := range local {
		localBySymbol[h.Symbol] = append(localBySymbol[h.Symbol], h)
	}
	brokerSymbols := make(map[string]bool, len(positions))
	owners := make(map[string]domain.ProviderName)
	for _, pos := range positions {
		sym := normalize(pos.Symbol)
		brokerSymbols[sym] = true
		if len(localBySymbol[sym]) > 0 || pos.Quantity <= 0 {
			continue
		}
		owner, err := s.ownerFor(ctx, sym)
		if err != nil {
			return nil, err
		}
		owners[sym] = owner
	}

	result := &ReconcileResult{Cash: acct.Cash, Equity: acct.Equity}
	err = database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		holdings := s.holdings.WithTx(tx)

		if err := s.portfolio.WithTx(tx).SyncAccount(ctx, acct.Cash, acct.Equity); err != nil {
			return err
		}

		for _, h := range local {
			if brokerSymbols[h.Symbol] {
				continue
			}
			if err := holdings.Delete(ctx, h.Provider, h.Symbol); err != nil {
				return err
			}
			result.Deleted++
		}

		for _, pos := range positions {
			sym := normalize(pos.Symbol)
			if pos.Quantity <= 0 {
				continue
			}

			held := localBySymbol[sym]
			if len(held) == 0 {
				if err := holdings.Upsert(ctx, domain.Holding{
					Provider:     owners[sym],
					Symbol:       sym,
					Quantity:     pos.Quantity,
					AverageCost:  pos.AverageCost,
					CurrentPrice: pos.CurrentPrice,
				}); err != nil {
					return err
				}
				result.Inserted++
				continue
			}

			for i, qty := range splitQuantity(pos.Quantity, held) {
				h := held[i]
				if qty <= 0 {
					if err := holdings.Delete(ctx, h.Provider, sym); err != nil {
						return err
					}
					result.Deleted++
					continue
				}
				h.Quantity = qty
				h.AverageCost = pos.AverageCost
				h.CurrentPrice = pos.CurrentPrice
				if err := holdings.Upsert(ctx, h); err != nil {
					return err
				}
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile: %w", err)
	}

	s.log.Info().
		Float64("cash", result.Cash).
		Float64("equity", result.Equity).
		Int("updated", result.Updated).
		Int("inserted", result.Inserted).
		Int("deleted", result.Deleted).
		Msg("Reconciled with broker")
	return result, nil
}

func (s *ReconcileService) ownerFor(ctx context.Context, symbol string) (domain.ProviderName, error) {
	if s.attribution != nil {
		p, ok, err := s.attribution.LastBuyProvider(ctx, symbol)
		if err != nil {
			return "", fmt.Errorf("failed to attribute %s: %w", symbol, err)
		}
		if ok {
			return p, nil
		}
	}

	providers, err := s.providers.ListProviders(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list providers: %w", err)
	}
	for _, p := range providers {
		if p.Active {
			return p.Name, nil
		}
	}
	if len(providers) > 0 {
		return providers[0].Name, nil
	}
	return "", fmt.Errorf("no provider configured to own broker position %s", symbol)
}

// splitQuantity divides the broker quantity across local holders in
// proportion to their local quantities. The last holder takes the remainder.
func splitQuantity(total float64, held []domain.Holding) []float64 {
	out := make([]float64, len(held))
	if len(held) == 1 {
		out[0] = total
		return out
	}

	sum := decimal.Zero
	for _, h := range held {
		sum = sum.Add(decimal.NewFromFloat(h.Quantity))
	}
	remaining := decimal.NewFromFloat(total)
	for i, h := range held {
		if i == len(held)-1 {
			out[i] = remaining.InexactFloat64()
			break
		}
		share := decimal.NewFromFloat(total).Mul(decimal.NewFromFloat(h.Quantity)).Div(sum).Floor()
		out[i] = share.InexactFloat64()
		remaining = remaining.Sub(share)
	}
	return out
}
