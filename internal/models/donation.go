package models

import "time"

// DonationTokenType distinguishes native SOL donations from token donations.
type DonationTokenType string

const (
	DonationSOL   DonationTokenType = "SOL"
	DonationToken DonationTokenType = "token"
)

// DonationRecord is one reconciled donation to a tip jar. Amount is the gross
// donation (before the protocol fee), Fee is the cut the program took, so
// Amount*0.9 is what the jar was actually credited.
type DonationRecord struct {
	Signature string            `json:"signature"`
	Timestamp *int64            `json:"timestamp"` // unix seconds, nil when the ledger has none
	Donor     string            `json:"donor"`
	Amount    float64           `json:"amount"`
	Fee       float64           `json:"fee"`
	Slot      uint64            `json:"slot"`
	TokenType DonationTokenType `json:"token_type"`
	Mint      string            `json:"mint,omitempty"`
	Symbol    string            `json:"symbol,omitempty"`
	Decimals  int               `json:"decimals,omitempty"`
}

// DonationFeed is a reconciled, deduplicated, time-ordered donation list.
// Err distinguishes "fetch failed" from "no donations yet": both render an
// empty Items slice, only the former sets Err.
type DonationFeed struct {
	Jar       string           `json:"jar"`
	Owner     string           `json:"owner"`
	Items     []DonationRecord `json:"items"`
	FetchedAt time.Time        `json:"fetched_at"`
	Err       string           `json:"error,omitempty"`
}

// TipJarAccount is the decoded on-chain tip jar state.
type TipJarAccount struct {
	Address     string  `json:"address"`
	Owner       string  `json:"owner"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	CreatedAt   int64   `json:"created_at"`
	Bump        uint8   `json:"bump"`
	BalanceSol  float64 `json:"balance_sol"`
}

// TokenHolding is one entry of the aggregated funds view.
type TokenHolding struct {
	Symbol   string  `json:"symbol"`
	Mint     string  `json:"mint,omitempty"` // empty for native SOL
	Amount   float64 `json:"amount"`
	Decimals int     `json:"decimals"`
}
