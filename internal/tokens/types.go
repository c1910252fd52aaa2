package tokens

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("token not found")

// Token is one registered mint -> symbol override. The registry exists for
// mints (mostly Token-2022) whose parsed account data carries no symbol.
type Token struct {
	Mint      string    `json:"mint"`
	Symbol    string    `json:"symbol"`
	UpdatedAt time.Time `json:"updated_at"`
}
