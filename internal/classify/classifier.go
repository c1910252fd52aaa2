package classify

import (
	"context"
	"math"
	"strconv"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/rpc"
	"github.com/sirupsen/logrus"
)

// SymbolFunc resolves a mint address to a display symbol.
type SymbolFunc func(ctx context.Context, mint string) string

// Classifier turns one parsed transaction into at most one LedgerMovement for
// an observed address. The ledger exposes no first-class transfer event, so
// the verdict is assembled from token balance deltas, inner-instruction
// traces and raw balance snapshots, in that priority order.
type Classifier struct {
	ledger  rpc.LedgerClient
	symbols SymbolFunc
	logger  *logrus.Logger
}

// New creates a Classifier. symbols may be nil, in which case mints are shown
// in elided form.
func New(ledger rpc.LedgerClient, symbols SymbolFunc, logger *logrus.Logger) *Classifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &Classifier{ledger: ledger, symbols: symbols, logger: logger}
}

// relevantTransfer is a token transfer that touches one of the observed
// address's token accounts.
type relevantTransfer struct {
	amount   float64
	mint     string
	decimals int
	from     string
	to       string
	incoming bool
}

// Classify inspects tx as seen from address. Token evidence is checked before
// SOL evidence: token transactions carry small fee-only SOL deltas that must
// not be mistaken for the real movement. A transaction with no coherent
// evidence comes back with Kind == MovementUnknown and no amount.
func (c *Classifier) Classify(ctx context.Context, sig rpc.SignatureInfo, tx *rpc.TransactionResult, address string) models.LedgerMovement {
	mv := models.LedgerMovement{
		Signature: sig.Signature,
		Slot:      sig.Slot,
		BlockTime: sig.BlockTime,
		Kind:      models.MovementUnknown,
		Succeeded: sig.Err == nil,
	}

	if tx == nil || tx.Meta == nil || tx.Transaction == nil {
		return mv
	}
	if tx.Meta.Err != nil {
		mv.Succeeded = false
	}

	keys := tx.Transaction.Message.AccountKeys

	changes := tokenAccountChanges(tx.Meta, keys)
	if c.classifyToken(ctx, tx, changes, address, &mv) {
		return mv
	}
	c.classifySol(tx, keys, address, &mv)
	return mv
}

// tokenAccountChanges pairs post token balances with their pre snapshot by
// (accountIndex, mint) and keeps the non-zero deltas.
func tokenAccountChanges(meta *rpc.TransactionMeta, keys []rpc.AccountKey) []models.TokenAccountChange {
	var changes []models.TokenAccountChange
	for _, post := range meta.PostTokenBalances {
		var pre *rpc.TokenBalance
		for i := range meta.PreTokenBalances {
			p := &meta.PreTokenBalances[i]
			if p.AccountIndex == post.AccountIndex && p.Mint == post.Mint {
				pre = p
				break
			}
		}
		if pre == nil {
			continue
		}

		delta := parseUIAmount(post.UITokenAmount) - parseUIAmount(pre.UITokenAmount)
		if delta == 0 {
			continue
		}
		if post.AccountIndex < 0 || post.AccountIndex >= len(keys) {
			continue
		}

		changes = append(changes, models.TokenAccountChange{
			Account:  keys[post.AccountIndex].Pubkey,
			Mint:     post.Mint,
			Decimals: post.UITokenAmount.Decimals,
			UIDelta:  delta,
		})
	}
	return changes
}

func parseUIAmount(a rpc.TokenAmount) float64 {
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

// classifyToken runs the token evidence chain: inner-instruction transfers
// correlated against balance deltas first, then the ownership-confirmation
// fallback on bare deltas. Returns true when a token movement was classified.
func (c *Classifier) classifyToken(ctx context.Context, tx *rpc.TransactionResult, changes []models.TokenAccountChange, address string, mv *models.LedgerMovement) bool {
	if len(changes) == 0 {
		return false
	}

	// mint/decimals lookup for any token account seen in this transaction
	accountInfo := make(map[string]models.TokenAccountChange)
	for _, ch := range changes {
		accountInfo[ch.Account] = ch
	}
	keys := tx.Transaction.Message.AccountKeys
	for _, post := range tx.Meta.PostTokenBalances {
		if post.AccountIndex < 0 || post.AccountIndex >= len(keys) {
			continue
		}
		acct := keys[post.AccountIndex].Pubkey
		if _, ok := accountInfo[acct]; !ok {
			accountInfo[acct] = models.TokenAccountChange{
				Account:  acct,
				Mint:     post.Mint,
				Decimals: post.UITokenAmount.Decimals,
			}
		}
	}

	changeFor := func(account string) *models.TokenAccountChange {
		for i := range changes {
			if changes[i].Account == account {
				return &changes[i]
			}
		}
		return nil
	}

	// Walk inner instructions for token transfers touching our accounts.
	// mintOrder preserves discovery order: the first mint with a transfer
	// group wins, even when a later mint moved more. Inherited heuristic.
	var mintOrder []string
	byMint := make(map[string][]relevantTransfer)

	for _, inner := range tx.Meta.InnerInstructions {
		for _, ix := range inner.Instructions {
			ev, ok := tokenTransferEvent(ix)
			if !ok {
				continue
			}

			srcChange := changeFor(ev.Source)
			dstChange := changeFor(ev.Destination)
			fromUser := srcChange != nil && srcChange.UIDelta < 0
			toUser := dstChange != nil && dstChange.UIDelta > 0
			if !fromUser && !toUser {
				continue
			}

			info, ok := accountInfo[ev.Source]
			if !fromUser || !ok {
				info, ok = accountInfo[ev.Destination]
			}
			if !ok {
				continue
			}

			amount := ev.UIAmount
			if amount < 0 {
				if ev.RawAmount != "" {
					raw, err := strconv.ParseFloat(ev.RawAmount, 64)
					if err != nil {
						continue
					}
					amount = raw / math.Pow10(info.Decimals)
				} else if srcChange != nil {
					amount = math.Abs(srcChange.UIDelta)
				} else {
					continue
				}
			}

			from := ev.Authority
			if from == "" {
				from = ev.Source
			}

			if _, seen := byMint[info.Mint]; !seen {
				mintOrder = append(mintOrder, info.Mint)
			}
			byMint[info.Mint] = append(byMint[info.Mint], relevantTransfer{
				amount:   math.Abs(amount),
				mint:     info.Mint,
				decimals: info.Decimals,
				from:     from,
				to:       ev.Destination,
				incoming: toUser && !fromUser,
			})
		}
	}

	for _, mint := range mintOrder {
		group := byMint[mint]

		var incoming, outgoing []relevantTransfer
		for _, t := range group {
			if t.incoming {
				incoming = append(incoming, t)
			} else {
				outgoing = append(outgoing, t)
			}
		}

		// Same direction: the program split one payment into several
		// instructions, so sum them. Mixed: take the largest movement as the
		// real transfer and treat the rest as residual noise.
		main := group[0]
		switch {
		case len(incoming) > 0 && len(outgoing) == 0:
			main = incoming[0]
			main.amount = 0
			for _, t := range incoming {
				main.amount += t.amount
			}
		case len(outgoing) > 0 && len(incoming) == 0:
			main = outgoing[0]
			main.amount = 0
			for _, t := range outgoing {
				main.amount += t.amount
			}
		default:
			for _, t := range group {
				if t.amount > main.amount {
					main = t
				}
			}
		}

		mv.Kind = models.MovementSPL
		mv.Amount = main.amount
		mv.Mint = main.mint
		mv.Decimals = main.decimals
		mv.Symbol = c.symbol(ctx, main.mint)
		mv.From = main.from
		mv.To = main.to
		return true
	}

	// No inner transfer matched. Confirm ownership of the changed accounts
	// before trusting the bare delta; missing metadata fails closed.
	return c.classifyTokenByOwnership(ctx, tx, changes, address, mv)
}

func (c *Classifier) classifyTokenByOwnership(ctx context.Context, tx *rpc.TransactionResult, changes []models.TokenAccountChange, address string, mv *models.LedgerMovement) bool {
	for _, change := range changes {
		info, err := c.ledger.GetParsedAccountInfo(ctx, change.Account)
		if err != nil || info == nil || info.Data.Parsed == nil {
			if err != nil {
				c.logger.WithError(err).WithField("account", change.Account).
					Debug("could not confirm token account owner, dropping candidate")
			}
			continue
		}
		if info.Data.Parsed.Info.Owner != address {
			continue
		}

		mv.Kind = models.MovementSPL
		mv.Amount = math.Abs(change.UIDelta)
		mv.Mint = change.Mint
		mv.Decimals = change.Decimals
		mv.Symbol = c.symbol(ctx, change.Mint)

		if change.UIDelta < 0 {
			mv.From = address
			mv.To = findTokenCounterparty(tx.Meta.InnerInstructions, change.Account, true)
		} else {
			mv.To = address
			mv.From = findTokenCounterparty(tx.Meta.InnerInstructions, change.Account, false)
		}
		return true
	}
	return false
}

// findTokenCounterparty rescans inner instructions for a token transfer whose
// source (bySource) or destination matches account, and returns the opposite
// endpoint.
func findTokenCounterparty(inner []rpc.InnerInstructionSet, account string, bySource bool) string {
	for _, set := range inner {
		for _, ix := range set.Instructions {
			ev, ok := tokenTransferEvent(ix)
			if !ok {
				continue
			}
			if bySource && ev.Source == account {
				return ev.Destination
			}
			if !bySource && ev.Destination == account {
				if ev.Authority != "" {
					return ev.Authority
				}
				return ev.Source
			}
		}
	}
	return ""
}

// classifySol is the native-coin fallback: main instructions first, then
// inner instructions, then the address's own balance delta. Movements at or
// below the dust threshold are fee noise and never classify.
func (c *Classifier) classifySol(tx *rpc.TransactionResult, keys []rpc.AccountKey, address string, mv *models.LedgerMovement) {
	mainIxs := tx.Transaction.Message.Instructions

	for _, ix := range mainIxs {
		if applySolTransfer(ix, address, mv) {
			return
		}
	}

	for _, inner := range tx.Meta.InnerInstructions {
		for _, ix := range inner.Instructions {
			if applySolTransfer(ix, address, mv) {
				return
			}
		}
	}

	// No parsed transfer touched us; fall back to our own balance entry.
	idx := -1
	for i, key := range keys {
		if key.Pubkey == address {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(tx.Meta.PreBalances) || idx >= len(tx.Meta.PostBalances) {
		return
	}

	delta := int64(tx.Meta.PostBalances[idx]) - int64(tx.Meta.PreBalances[idx])
	sol := math.Abs(float64(delta)) / constants.LamportsPerSol
	if delta == 0 || sol <= constants.DustThresholdSol {
		return
	}

	mv.Kind = models.MovementSOL
	mv.Amount = sol

	// Attribute endpoints to whichever parsed transfer names us.
	for _, ix := range mainIxs {
		ev, ok := systemTransferEvent(ix)
		if !ok {
			continue
		}
		if ev.Destination == address || ev.Source == address {
			mv.From = ev.Source
			mv.To = ev.Destination
			return
		}
	}
}

func applySolTransfer(ix rpc.Instruction, address string, mv *models.LedgerMovement) bool {
	ev, ok := systemTransferEvent(ix)
	if !ok {
		return false
	}
	if ev.Destination != address && ev.Source != address {
		return false
	}

	sol := float64(ev.Lamports) / constants.LamportsPerSol
	if sol <= constants.DustThresholdSol {
		return false
	}

	mv.Kind = models.MovementSOL
	mv.Amount = sol
	mv.From = ev.Source
	mv.To = ev.Destination
	return true
}

// systemTransferEvent extracts a system-program transfer from a jsonParsed
// instruction.
func systemTransferEvent(ix rpc.Instruction) (models.InnerTransferEvent, bool) {
	if ix.Program != constants.ParsedProgramSystem || ix.Parsed == nil || ix.Parsed.Type != "transfer" {
		return models.InnerTransferEvent{}, false
	}
	return models.InnerTransferEvent{
		Program:     models.TransferSystem,
		Source:      ix.Parsed.Info.Source,
		Destination: ix.Parsed.Info.Destination,
		Lamports:    ix.Parsed.Info.Lamports,
	}, true
}

// tokenTransferEvent extracts a token transfer (legacy or Token-2022,
// transfer or transferChecked) from a jsonParsed instruction. UIAmount is -1
// when the instruction carried only a raw amount.
func tokenTransferEvent(ix rpc.Instruction) (models.InnerTransferEvent, bool) {
	if ix.Program != constants.ParsedProgramToken && ix.Program != constants.ParsedProgramToken2022 {
		return models.InnerTransferEvent{}, false
	}
	if ix.Parsed == nil || (ix.Parsed.Type != "transfer" && ix.Parsed.Type != "transferChecked") {
		return models.InnerTransferEvent{}, false
	}

	program := models.TransferToken
	if ix.Program == constants.ParsedProgramToken2022 {
		program = models.TransferToken2022
	}

	ev := models.InnerTransferEvent{
		Program:     program,
		Source:      ix.Parsed.Info.Source,
		Destination: ix.Parsed.Info.Destination,
		Authority:   ix.Parsed.Info.Authority,
		RawAmount:   ix.Parsed.Info.Amount,
		UIAmount:    -1,
	}
	if ix.Parsed.Info.TokenAmount != nil {
		ev.UIAmount = parseUIAmount(*ix.Parsed.Info.TokenAmount)
	}
	return ev, true
}

func (c *Classifier) symbol(ctx context.Context, mint string) string {
	if c.symbols != nil {
		return c.symbols(ctx, mint)
	}
	if s, ok := constants.KnownTokens[mint]; ok {
		return s
	}
	if len(mint) > 8 {
		return mint[:4] + "..." + mint[len(mint)-4:]
	}
	return mint
}
