package tipjar

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/classify"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/fetch"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/rpc"
	"github.com/sirupsen/logrus"
)

// Reconciler rebuilds the donation feed of a tip jar from raw ledger history.
// The chain records no "donation" event, only the program invocation plus the
// inner transfers it emitted, so each transaction is re-derived: inner system
// transfers into the jar PDA are native donations, token balance increases on
// the owner's token accounts are token donations, and the gross amount is
// back-calculated from the program's net = gross * (1 - fee) invariant.
type Reconciler struct {
	ledger    rpc.LedgerClient
	programID string
	symbols   classify.SymbolFunc
	logger    *logrus.Logger
}

// ReconcilerConfig holds construction parameters for a Reconciler.
type ReconcilerConfig struct {
	Ledger    rpc.LedgerClient
	ProgramID string
	Symbols   classify.SymbolFunc
	Logger    *logrus.Logger
}

// NewReconciler creates a Reconciler. ProgramID defaults to the deployed tip
// jar program; Symbols may be nil.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.ProgramID == "" {
		cfg.ProgramID = constants.TipJarProgramID
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Reconciler{
		ledger:    cfg.Ledger,
		programID: cfg.ProgramID,
		symbols:   cfg.Symbols,
		logger:    cfg.Logger,
	}
}

// Reconcile produces the donation feed for owner's tip jar. Per-transaction
// problems (malformed shapes, missing metadata) skip that transaction; only a
// failed signature-list fetch marks the whole feed as errored, and even then
// the caller gets an empty feed rather than an error value.
func (r *Reconciler) Reconcile(ctx context.Context, owner string) models.DonationFeed {
	feed := models.DonationFeed{
		Owner:     owner,
		Items:     []models.DonationRecord{},
		FetchedAt: time.Now().UTC(),
	}

	jar, err := DeriveAddress(owner, r.programID)
	if err != nil {
		r.logger.WithError(err).WithField("owner", owner).Error("failed to derive tip jar address")
		feed.Err = err.Error()
		return feed
	}
	feed.Jar = jar

	sigs, err := r.ledger.GetSignaturesForAddress(ctx, jar, constants.SignatureFetchLimit)
	if err != nil {
		r.logger.WithError(err).WithField("jar", jar).Error("failed to list tip jar signatures")
		feed.Err = err.Error()
		return feed
	}
	if len(sigs) == 0 {
		return feed
	}

	// The donation path fetches with full concurrency, unlike the throttled
	// generic path. Holes (pruned or failed fetches) are tolerated.
	txs, err := fetch.All(ctx, sigs, func(ctx context.Context, sig rpc.SignatureInfo) (*rpc.TransactionResult, error) {
		return r.ledger.GetParsedTransaction(ctx, sig.Signature)
	})
	if err != nil {
		r.logger.WithError(err).WithField("jar", jar).Error("failed to fetch tip jar transactions")
		feed.Err = err.Error()
		return feed
	}

	seen := make(map[string]bool)
	for i, tx := range txs {
		sig := sigs[i]
		if tx == nil || tx.Meta == nil || tx.Transaction == nil {
			continue
		}
		if sig.Err != nil || tx.Meta.Err != nil {
			continue
		}
		if !invokesProgram(tx.Transaction.Message.Instructions, r.programID) {
			continue
		}

		if rec, ok := r.nativeDonation(sig, tx, jar); ok {
			key := rec.Signature + ":" + string(rec.TokenType)
			if !seen[key] {
				seen[key] = true
				feed.Items = append(feed.Items, rec)
			}
		}
		if rec, ok := r.tokenDonation(ctx, sig, tx, owner); ok {
			key := rec.Signature + ":" + string(rec.TokenType)
			if !seen[key] {
				seen[key] = true
				feed.Items = append(feed.Items, rec)
			}
		}
	}

	// Newest first; a missing timestamp sorts as 0, i.e. last.
	sort.SliceStable(feed.Items, func(i, j int) bool {
		return timestampKey(feed.Items[i].Timestamp) > timestampKey(feed.Items[j].Timestamp)
	})

	return feed
}

func timestampKey(ts *int64) int64 {
	if ts == nil {
		return 0
	}
	return *ts
}

// invokesProgram reports whether any top-level instruction targets programID.
func invokesProgram(instructions []rpc.Instruction, programID string) bool {
	for _, ix := range instructions {
		if ix.ProgramID == programID {
			return true
		}
	}
	return false
}

// nativeDonation sums the inner system transfers into the jar PDA. The
// program emits two transfers per donation (fee cut + jar credit); only the
// jar credit lands here, so gross = credited / 0.9.
func (r *Reconciler) nativeDonation(sig rpc.SignatureInfo, tx *rpc.TransactionResult, jar string) (models.DonationRecord, bool) {
	var totalLamports uint64
	var donor string

	for _, inner := range tx.Meta.InnerInstructions {
		for _, ix := range inner.Instructions {
			if ix.Program != constants.ParsedProgramSystem || ix.Parsed == nil || ix.Parsed.Type != "transfer" {
				continue
			}
			if ix.Parsed.Info.Destination != jar {
				continue
			}
			totalLamports += ix.Parsed.Info.Lamports
			donor = ix.Parsed.Info.Source
		}
	}

	if totalLamports == 0 || donor == "" {
		return models.DonationRecord{}, false
	}

	credited := float64(totalLamports) / constants.LamportsPerSol
	gross := credited / (1 - constants.FeeRate)

	return models.DonationRecord{
		Signature: sig.Signature,
		Timestamp: blockTime(sig, tx),
		Donor:     donor,
		Amount:    gross,
		Fee:       gross * constants.FeeRate,
		Slot:      sig.Slot,
		TokenType: models.DonationSOL,
	}, true
}

// tokenDonation finds a token balance increase on an account owned by the
// jar's owner and pairs it with the inner token transfer that credited it to
// recover the donor. Ownership is confirmed against on-chain account
// metadata; when the lookup fails the candidate is dropped, not guessed.
func (r *Reconciler) tokenDonation(ctx context.Context, sig rpc.SignatureInfo, tx *rpc.TransactionResult, owner string) (models.DonationRecord, bool) {
	keys := tx.Transaction.Message.AccountKeys

	for _, post := range tx.Meta.PostTokenBalances {
		var pre *rpc.TokenBalance
		for i := range tx.Meta.PreTokenBalances {
			p := &tx.Meta.PreTokenBalances[i]
			if p.AccountIndex == post.AccountIndex && p.Mint == post.Mint {
				pre = p
				break
			}
		}

		postAmount := uiAmount(post.UITokenAmount)
		preAmount := 0.0
		if pre != nil {
			preAmount = uiAmount(pre.UITokenAmount)
		}
		delta := postAmount - preAmount
		if delta <= 0 {
			continue
		}
		if post.AccountIndex < 0 || post.AccountIndex >= len(keys) {
			continue
		}
		account := keys[post.AccountIndex].Pubkey

		accountOwner := post.Owner
		if accountOwner == "" {
			info, err := r.ledger.GetParsedAccountInfo(ctx, account)
			if err != nil || info == nil || info.Data.Parsed == nil {
				if err != nil {
					r.logger.WithError(err).WithField("account", account).
						Debug("could not confirm donation account owner, skipping")
				}
				continue
			}
			accountOwner = info.Data.Parsed.Info.Owner
		}
		if accountOwner != owner {
			continue
		}

		donor := findTokenDonor(tx.Meta.InnerInstructions, account)
		if donor == "" {
			continue
		}

		gross := delta / (1 - constants.FeeRate)

		symbol := ""
		if r.symbols != nil {
			symbol = r.symbols(ctx, post.Mint)
		}

		return models.DonationRecord{
			Signature: sig.Signature,
			Timestamp: blockTime(sig, tx),
			Donor:     donor,
			Amount:    gross,
			Fee:       gross * constants.FeeRate,
			Slot:      sig.Slot,
			TokenType: models.DonationToken,
			Mint:      post.Mint,
			Symbol:    symbol,
			Decimals:  post.UITokenAmount.Decimals,
		}, true
	}

	return models.DonationRecord{}, false
}

// findTokenDonor locates the inner token transfer that credited account and
// returns its authority (the signing wallet), falling back to the source
// token account.
func findTokenDonor(inner []rpc.InnerInstructionSet, account string) string {
	for _, set := range inner {
		for _, ix := range set.Instructions {
			if ix.Program != constants.ParsedProgramToken && ix.Program != constants.ParsedProgramToken2022 {
				continue
			}
			if ix.Parsed == nil || (ix.Parsed.Type != "transfer" && ix.Parsed.Type != "transferChecked") {
				continue
			}
			if ix.Parsed.Info.Destination != account {
				continue
			}
			if ix.Parsed.Info.Authority != "" {
				return ix.Parsed.Info.Authority
			}
			return ix.Parsed.Info.Source
		}
	}
	return ""
}

func uiAmount(a rpc.TokenAmount) float64 {
	if a.UIAmountString != "" {
		if v, err := strconv.ParseFloat(a.UIAmountString, 64); err == nil {
			return v
		}
	}
	if a.UIAmount != nil {
		return *a.UIAmount
	}
	return 0
}

func blockTime(sig rpc.SignatureInfo, tx *rpc.TransactionResult) *int64 {
	if tx.BlockTime != nil {
		return tx.BlockTime
	}
	return sig.BlockTime
}
