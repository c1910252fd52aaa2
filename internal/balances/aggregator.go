package balances

import (
	"context"
	"fmt"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/rpc"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/tokens"
	"github.com/sirupsen/logrus"
)

// Aggregator merges an address's native SOL balance with every token account
// balance into one funds view keyed by display symbol.
type Aggregator struct {
	ledger   rpc.LedgerClient
	registry *tokens.Registry
	logger   *logrus.Logger
}

// New creates an Aggregator. registry may be nil.
func New(ledger rpc.LedgerClient, registry *tokens.Registry, logger *logrus.Logger) *Aggregator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Aggregator{ledger: ledger, registry: registry, logger: logger}
}

// Holdings returns the unified funds view for address: SOL first, then every
// token account across both token program variants. Two mints can elide to
// the same display symbol; both entries are kept.
func (a *Aggregator) Holdings(ctx context.Context, address string) ([]models.TokenHolding, error) {
	lamports, err := a.ledger.GetBalance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get SOL balance: %w", err)
	}

	holdings := []models.TokenHolding{{
		Symbol:   "SOL",
		Amount:   float64(lamports) / constants.LamportsPerSol,
		Decimals: 9,
	}}

	for _, programID := range []string{constants.TokenProgramID, constants.Token2022ProgramID} {
		accounts, err := a.ledger.GetTokenAccountsByOwner(ctx, address, programID)
		if err != nil {
			return nil, fmt.Errorf("failed to list token accounts: %w", err)
		}
		for _, acct := range accounts {
			holdings = append(holdings, models.TokenHolding{
				Symbol:   a.symbol(ctx, acct.Mint, acct.Symbol),
				Mint:     acct.Mint,
				Amount:   acct.UIAmount,
				Decimals: acct.Decimals,
			})
		}
	}

	return holdings, nil
}

func (a *Aggregator) symbol(ctx context.Context, mint, symbol string) string {
	if a.registry != nil {
		return a.registry.Resolve(ctx, mint, symbol)
	}
	return tokens.DisplayName(mint, symbol)
}
