package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/rpc"
)

// mockLedger implements rpc.LedgerClient with canned responses.
type mockLedger struct {
	accountInfo map[string]*rpc.AccountInfo
	accountErr  error
}

func (m *mockLedger) GetSignaturesForAddress(_ context.Context, _ string, _ int) ([]rpc.SignatureInfo, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockLedger) GetParsedTransaction(_ context.Context, _ string) (*rpc.TransactionResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockLedger) GetParsedAccountInfo(_ context.Context, address string) (*rpc.AccountInfo, error) {
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	return m.accountInfo[address], nil
}

func (m *mockLedger) GetTokenAccountsByOwner(_ context.Context, _, _ string) ([]rpc.TokenAccount, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockLedger) GetBalance(_ context.Context, _ string) (uint64, error) {
	return 0, fmt.Errorf("not implemented")
}

func (m *mockLedger) GetRawAccountInfo(_ context.Context, _ string) (*rpc.RawAccount, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockLedger) Endpoint() string { return "mock" }

// parsedOwnerInfo builds a jsonParsed token account response for owner.
func parsedOwnerInfo(t *testing.T, owner string) *rpc.AccountInfo {
	t.Helper()
	raw := fmt.Sprintf(`{"data":{"program":"spl-token","parsed":{"type":"account","info":{"owner":%q}}}}`, owner)
	var ai rpc.AccountInfo
	require.NoError(t, json.Unmarshal([]byte(raw), &ai))
	return &ai
}

func uiTokenAmount(ui string, decimals int) rpc.TokenAmount {
	return rpc.TokenAmount{UIAmountString: ui, Decimals: decimals}
}

func keys(pubkeys ...string) []rpc.AccountKey {
	out := make([]rpc.AccountKey, len(pubkeys))
	for i, pk := range pubkeys {
		out[i] = rpc.AccountKey{Pubkey: pk}
	}
	return out
}

func tokenTransferIx(source, destination, authority, rawAmount string) rpc.Instruction {
	return rpc.Instruction{
		Program: "spl-token",
		Parsed: &rpc.ParsedDetail{
			Type: "transfer",
			Info: rpc.ParsedInfo{
				Source:      source,
				Destination: destination,
				Authority:   authority,
				Amount:      rawAmount,
			},
		},
	}
}

func solTransferIx(source, destination string, lamports uint64) rpc.Instruction {
	return rpc.Instruction{
		Program: "system",
		Parsed: &rpc.ParsedDetail{
			Type: "transfer",
			Info: rpc.ParsedInfo{
				Source:      source,
				Destination: destination,
				Lamports:    lamports,
			},
		},
	}
}

const (
	userWallet = "UserWa11et11111111111111111111111111111111"
	userTok    = "UserTokAcc1111111111111111111111111111111"
	otherTok   = "OtherTokAcc111111111111111111111111111111"
	mintA      = "MintA1111111111111111111111111111111111111"
)

func TestClassify_TokenTransferOut(t *testing.T) {
	// User's token account drops 5 -> 2; an inner transfer of raw 3000000
	// (6 decimals) out of it names the wallet as authority.
	tx := &rpc.TransactionResult{
		Meta: &rpc.TransactionMeta{
			PreTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("5", 6)},
			},
			PostTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("2", 6)},
			},
			InnerInstructions: []rpc.InnerInstructionSet{
				{Index: 0, Instructions: []rpc.Instruction{
					tokenTransferIx(userTok, otherTok, userWallet, "3000000"),
				}},
			},
		},
		Transaction: &rpc.Transaction{
			Message: rpc.TransactionMessage{AccountKeys: keys(userWallet, userTok, otherTok)},
		},
	}

	c := New(&mockLedger{}, nil, nil)
	mv := c.Classify(context.Background(), rpc.SignatureInfo{Signature: "sig1", Slot: 42}, tx, userWallet)

	assert.Equal(t, models.MovementSPL, mv.Kind)
	assert.InDelta(t, 3.0, mv.Amount, 1e-9)
	assert.Equal(t, mintA, mv.Mint)
	assert.Equal(t, 6, mv.Decimals)
	assert.Equal(t, userWallet, mv.From)
	assert.Equal(t, otherTok, mv.To)
	assert.True(t, mv.Succeeded)
	assert.Equal(t, uint64(42), mv.Slot)
}

func TestClassify_TokenAmountFromUIString(t *testing.T) {
	// transferChecked carries a tokenAmount; that wins over the raw amount.
	ix := rpc.Instruction{
		Program: "spl-token-2022",
		Parsed: &rpc.ParsedDetail{
			Type: "transferChecked",
			Info: rpc.ParsedInfo{
				Source:      userTok,
				Destination: otherTok,
				Authority:   userWallet,
				Amount:      "999999",
				TokenAmount: &rpc.TokenAmount{UIAmountString: "3", Decimals: 6},
			},
		},
	}
	tx := &rpc.TransactionResult{
		Meta: &rpc.TransactionMeta{
			PreTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("5", 6)},
			},
			PostTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("2", 6)},
			},
			InnerInstructions: []rpc.InnerInstructionSet{
				{Instructions: []rpc.Instruction{ix}},
			},
		},
		Transaction: &rpc.Transaction{
			Message: rpc.TransactionMessage{AccountKeys: keys(userWallet, userTok)},
		},
	}

	c := New(&mockLedger{}, nil, nil)
	mv := c.Classify(context.Background(), rpc.SignatureInfo{Signature: "sig"}, tx, userWallet)

	assert.Equal(t, models.MovementSPL, mv.Kind)
	assert.InDelta(t, 3.0, mv.Amount, 1e-9)
}

func TestClassify_TokenBeatsSol(t *testing.T) {
	// A token movement always wins over the SOL evidence in the same tx: the
	// SOL delta on token transactions is mostly fees.
	tx := &rpc.TransactionResult{
		Meta: &rpc.TransactionMeta{
			PreTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("0", 6)},
			},
			PostTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("7", 6)},
			},
			InnerInstructions: []rpc.InnerInstructionSet{
				{Instructions: []rpc.Instruction{
					tokenTransferIx(otherTok, userTok, "DonorWa11et", "7000000"),
				}},
			},
		},
		Transaction: &rpc.Transaction{
			Message: rpc.TransactionMessage{
				AccountKeys: keys(userWallet, userTok, otherTok),
				Instructions: []rpc.Instruction{
					solTransferIx(userWallet, "SomeoneE1se", 1_000_000_000),
				},
			},
		},
	}

	c := New(&mockLedger{}, nil, nil)
	mv := c.Classify(context.Background(), rpc.SignatureInfo{}, tx, userWallet)

	assert.Equal(t, models.MovementSPL, mv.Kind)
	assert.InDelta(t, 7.0, mv.Amount, 1e-9)
	assert.Equal(t, "DonorWa11et", mv.From)
}

func TestClassify_MixedDirectionTakesLargest(t *testing.T) {
	userTokB := "UserTokAccB111111111111111111111111111111"

	tx := &rpc.TransactionResult{
		Meta: &rpc.TransactionMeta{
			PreTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("3", 6)},
				{AccountIndex: 2, Mint: mintA, UITokenAmount: uiTokenAmount("0", 6)},
			},
			PostTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("0", 6)},
				{AccountIndex: 2, Mint: mintA, UITokenAmount: uiTokenAmount("10", 6)},
			},
			InnerInstructions: []rpc.InnerInstructionSet{
				{Instructions: []rpc.Instruction{
					tokenTransferIx(userTok, otherTok, userWallet, "3000000"),
					tokenTransferIx(otherTok, userTokB, "PoolAuthority", "10000000"),
				}},
			},
		},
		Transaction: &rpc.Transaction{
			Message: rpc.TransactionMessage{AccountKeys: keys(userWallet, userTok, userTokB, otherTok)},
		},
	}

	c := New(&mockLedger{}, nil, nil)
	mv := c.Classify(context.Background(), rpc.SignatureInfo{}, tx, userWallet)

	assert.Equal(t, models.MovementSPL, mv.Kind)
	assert.InDelta(t, 10.0, mv.Amount, 1e-9, "mixed directions keep the largest movement")
	assert.Equal(t, userTokB, mv.To)
}

func TestClassify_OwnershipFallback(t *testing.T) {
	// Balance delta with no matching inner transfer: the account owner must be
	// confirmed on-chain before the delta is trusted.
	tx := &rpc.TransactionResult{
		Meta: &rpc.TransactionMeta{
			PreTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("1", 6)},
			},
			PostTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("5", 6)},
			},
		},
		Transaction: &rpc.Transaction{
			Message: rpc.TransactionMessage{AccountKeys: keys(userWallet, userTok)},
		},
	}

	ledger := &mockLedger{accountInfo: map[string]*rpc.AccountInfo{
		userTok: parsedOwnerInfo(t, userWallet),
	}}
	c := New(ledger, nil, nil)
	mv := c.Classify(context.Background(), rpc.SignatureInfo{}, tx, userWallet)

	assert.Equal(t, models.MovementSPL, mv.Kind)
	assert.InDelta(t, 4.0, mv.Amount, 1e-9)
	assert.Equal(t, userWallet, mv.To)
}

func TestClassify_OwnershipFallbackFailsClosed(t *testing.T) {
	tx := &rpc.TransactionResult{
		Meta: &rpc.TransactionMeta{
			PreTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("1", 6)},
			},
			PostTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: uiTokenAmount("5", 6)},
			},
		},
		Transaction: &rpc.Transaction{
			Message: rpc.TransactionMessage{AccountKeys: keys(userWallet, userTok)},
		},
	}

	// Owner lookup errors: the candidate is dropped, and with no SOL evidence
	// the movement stays unknown.
	ledger := &mockLedger{accountErr: fmt.Errorf("node unavailable")}
	c := New(ledger, nil, nil)
	mv := c.Classify(context.Background(), rpc.SignatureInfo{}, tx, userWallet)

	assert.Equal(t, models.MovementUnknown, mv.Kind)
	assert.Zero(t, mv.Amount)
}

func TestClassify_SolMainInstruction(t *testing.T) {
	tx := &rpc.TransactionResult{
		Meta: &rpc.TransactionMeta{},
		Transaction: &rpc.Transaction{
			Message: rpc.TransactionMessage{
				AccountKeys: keys(userWallet, "Recipient111"),
				Instructions: []rpc.Instruction{
					solTransferIx(userWallet, "Recipient111", 1_500_000_000),
				},
			},
		},
	}

	c := New(&mockLedger{}, nil, nil)
	mv := c.Classify(context.Background(), rpc.SignatureInfo{}, tx, userWallet)

	assert.Equal(t, models.MovementSOL, mv.Kind)
	assert.InDelta(t, 1.5, mv.Amount, 1e-9)
	assert.Equal(t, userWallet, mv.From)
	assert.Equal(t, "Recipient111", mv.To)
}

func TestClassify_SolDustFiltered(t *testing.T) {
	// 0.00005 SOL is below the dust threshold: fee noise, not a payment.
	tx := &rpc.TransactionResult{
		Meta: &rpc.TransactionMeta{
			PreBalances:  []uint64{1_000_000_000, 0},
			PostBalances: []uint64{999_950_000, 50_000},
		},
		Transaction: &rpc.Transaction{
			Message: rpc.TransactionMessage{
				AccountKeys: keys(userWallet, "Recipient111"),
				Instructions: []rpc.Instruction{
					solTransferIx(userWallet, "Recipient111", 50_000),
				},
			},
		},
	}

	c := New(&mockLedger{}, nil, nil)
	mv := c.Classify(context.Background(), rpc.SignatureInfo{}, tx, userWallet)

	assert.Equal(t, models.MovementUnknown, mv.Kind)
	assert.Zero(t, mv.Amount)
}

func TestClassify_SolBalanceDeltaFallback(t *testing.T) {
	// No parsed transfer names us; our own balance entry is the last resort.
	tx := &rpc.TransactionResult{
		Meta: &rpc.TransactionMeta{
			PreBalances:  []uint64{10_000_000_000, 0},
			PostBalances: []uint64{8_000_000_000, 2_000_000_000},
		},
		Transaction: &rpc.Transaction{
			Message: rpc.TransactionMessage{
				AccountKeys: keys(userWallet, "Recipient111"),
			},
		},
	}

	c := New(&mockLedger{}, nil, nil)
	mv := c.Classify(context.Background(), rpc.SignatureInfo{}, tx, userWallet)

	assert.Equal(t, models.MovementSOL, mv.Kind)
	assert.InDelta(t, 2.0, mv.Amount, 1e-9)
}

func TestClassify_NilTransaction(t *testing.T) {
	c := New(&mockLedger{}, nil, nil)

	ts := int64(1700000000)
	mv := c.Classify(context.Background(), rpc.SignatureInfo{
		Signature: "gone", Slot: 7, BlockTime: &ts,
	}, nil, userWallet)

	assert.Equal(t, models.MovementUnknown, mv.Kind)
	assert.Equal(t, "gone", mv.Signature)
	assert.Equal(t, uint64(7), mv.Slot)
	assert.True(t, mv.Succeeded)
	assert.Zero(t, mv.Amount)
}

func TestClassify_FailedTransaction(t *testing.T) {
	tx := &rpc.TransactionResult{
		Meta: &rpc.TransactionMeta{
			Err: map[string]any{"InstructionError": []any{}},
		},
		Transaction: &rpc.Transaction{
			Message: rpc.TransactionMessage{
				AccountKeys: keys(userWallet),
				Instructions: []rpc.Instruction{
					solTransferIx(userWallet, "Recipient111", 1_000_000_000),
				},
			},
		},
	}

	c := New(&mockLedger{}, nil, nil)
	mv := c.Classify(context.Background(), rpc.SignatureInfo{Signature: "failed"}, tx, userWallet)

	// Failed txs are still surfaced, just flagged
	assert.False(t, mv.Succeeded)
	assert.Equal(t, models.MovementSOL, mv.Kind)
}

func TestSymbol_Fallbacks(t *testing.T) {
	c := New(&mockLedger{}, nil, nil)
	ctx := context.Background()

	assert.Equal(t, "USDC", c.symbol(ctx, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"))
	assert.Equal(t, mintA[:4]+"..."+mintA[len(mintA)-4:], c.symbol(ctx, mintA))
	assert.Equal(t, "short", c.symbol(ctx, "short"))

	// An injected resolver takes precedence over everything
	custom := New(&mockLedger{}, func(_ context.Context, _ string) string { return "XYZ" }, nil)
	assert.Equal(t, "XYZ", custom.symbol(ctx, mintA))
}
