package models

// MovementKind says what kind of asset a classified transaction moved.
type MovementKind string

const (
	MovementSOL     MovementKind = "SOL"
	MovementSPL     MovementKind = "SPL"
	MovementUnknown MovementKind = "unknown"
)

// LedgerMovement is the classifier's verdict for one transaction as seen from
// a single observed address. Kind == MovementUnknown means no coherent
// transfer evidence was found; Amount and the address fields are then empty.
type LedgerMovement struct {
	Signature string       `json:"signature"`
	Slot      uint64       `json:"slot"`
	BlockTime *int64       `json:"block_time"` // unix seconds, nil when unavailable
	Kind      MovementKind `json:"kind"`
	Amount    float64      `json:"amount,omitempty"` // SOL or ui token units, always >= 0
	Mint      string       `json:"mint,omitempty"`
	Symbol    string       `json:"symbol,omitempty"`
	Decimals  int          `json:"decimals,omitempty"`
	From      string       `json:"from,omitempty"`
	To        string       `json:"to,omitempty"`
	Succeeded bool         `json:"succeeded"`
}

// TokenAccountChange pairs a pre and post token balance snapshot for one
// token account. Only materialized when the delta is non-zero.
type TokenAccountChange struct {
	Account  string
	Mint     string
	Decimals int
	UIDelta  float64
}

// TransferProgram identifies which program emitted an inner transfer.
type TransferProgram string

const (
	TransferSystem    TransferProgram = "system"
	TransferToken     TransferProgram = "spl-token"
	TransferToken2022 TransferProgram = "spl-token-2022"
)

// InnerTransferEvent is one transfer-shaped inner instruction.
type InnerTransferEvent struct {
	Program     TransferProgram
	Source      string
	Destination string
	Authority   string
	Lamports    uint64  // system transfers
	UIAmount    float64 // token transfers, human scaled; negative means unknown
	RawAmount   string  // token transfers, raw integer string
}
