package balances

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/rpc"
)

type mockLedger struct {
	lamports   uint64
	balanceErr error
	accounts   map[string][]rpc.TokenAccount // keyed by token program
}

func (m *mockLedger) GetSignaturesForAddress(_ context.Context, _ string, _ int) ([]rpc.SignatureInfo, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockLedger) GetParsedTransaction(_ context.Context, _ string) (*rpc.TransactionResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockLedger) GetParsedAccountInfo(_ context.Context, _ string) (*rpc.AccountInfo, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockLedger) GetTokenAccountsByOwner(_ context.Context, _, programID string) ([]rpc.TokenAccount, error) {
	return m.accounts[programID], nil
}

func (m *mockLedger) GetBalance(_ context.Context, _ string) (uint64, error) {
	if m.balanceErr != nil {
		return 0, m.balanceErr
	}
	return m.lamports, nil
}

func (m *mockLedger) GetRawAccountInfo(_ context.Context, _ string) (*rpc.RawAccount, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockLedger) Endpoint() string { return "mock" }

func TestHoldings(t *testing.T) {
	usdcMint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	tjtMint := "JjxRUwLTVgrdePm8QnfzEsbXVdTHS46LKJszEdD1zuV"

	ledger := &mockLedger{
		lamports: 2_500_000_000,
		accounts: map[string][]rpc.TokenAccount{
			constants.TokenProgramID: {
				{Address: "acc1", Mint: usdcMint, Decimals: 6, UIAmount: 12.5},
			},
			constants.Token2022ProgramID: {
				{Address: "acc2", Mint: tjtMint, Decimals: 9, UIAmount: 100, Symbol: ""},
			},
		},
	}

	holdings, err := New(ledger, nil, nil).Holdings(context.Background(), "SomeWallet")
	require.NoError(t, err)
	require.Len(t, holdings, 3)

	// Native SOL is always the first entry
	assert.Equal(t, "SOL", holdings[0].Symbol)
	assert.InDelta(t, 2.5, holdings[0].Amount, 1e-9)
	assert.Equal(t, 9, holdings[0].Decimals)
	assert.Empty(t, holdings[0].Mint)

	// Legacy token program accounts come before Token-2022 accounts
	assert.Equal(t, "USDC", holdings[1].Symbol)
	assert.InDelta(t, 12.5, holdings[1].Amount, 1e-9)
	assert.Equal(t, usdcMint, holdings[1].Mint)

	assert.Equal(t, "TJT", holdings[2].Symbol)
	assert.InDelta(t, 100.0, holdings[2].Amount, 1e-9)
}

func TestHoldings_ParsedSymbolWins(t *testing.T) {
	mint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	ledger := &mockLedger{
		accounts: map[string][]rpc.TokenAccount{
			constants.TokenProgramID: {
				{Address: "acc1", Mint: mint, Decimals: 6, UIAmount: 1, Symbol: "FromChain"},
			},
		},
	}

	holdings, err := New(ledger, nil, nil).Holdings(context.Background(), "SomeWallet")
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "FromChain", holdings[1].Symbol, "on-chain symbol beats the static map")
}

func TestHoldings_UnknownMintElided(t *testing.T) {
	mint := "Fq9zXN4guoNPDDDjjTuqcm6LUOu3RNM1FCs2PYxvV7pr"
	ledger := &mockLedger{
		accounts: map[string][]rpc.TokenAccount{
			constants.TokenProgramID: {
				{Address: "acc1", Mint: mint, Decimals: 2, UIAmount: 3},
			},
		},
	}

	holdings, err := New(ledger, nil, nil).Holdings(context.Background(), "SomeWallet")
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, mint[:4]+"..."+mint[len(mint)-4:], holdings[1].Symbol)
}

func TestHoldings_BalanceError(t *testing.T) {
	ledger := &mockLedger{balanceErr: fmt.Errorf("node down")}

	_, err := New(ledger, nil, nil).Holdings(context.Background(), "SomeWallet")
	assert.Error(t, err)
}
