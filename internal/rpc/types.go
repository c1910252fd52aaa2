package rpc

import (
	"encoding/json"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/fetch"
)

// rate-limit code used by hosted RPC providers alongside HTTP 429
const rpcErrCodeRateLimited = -32429

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// Unwrap maps provider rate-limit responses onto the fetch sentinel so the
// retry policy classifies them without string matching.
func (e *RPCError) Unwrap() error {
	if e.Code == rpcErrCodeRateLimited {
		return fetch.ErrRateLimited
	}
	return nil
}

// SignatureInfo represents a transaction signature from getSignaturesForAddress
type SignatureInfo struct {
	Signature string      `json:"signature"`
	Slot      uint64      `json:"slot"`
	Err       interface{} `json:"err"`
	BlockTime *int64      `json:"blockTime"`
}

// SignaturesResponse is the response from getSignaturesForAddress
type SignaturesResponse struct {
	Result []SignatureInfo `json:"result"`
	Error  *RPCError       `json:"error"`
}

// TokenAmount represents token balance information
type TokenAmount struct {
	Amount         string   `json:"amount"`
	Decimals       int      `json:"decimals"`
	UIAmount       *float64 `json:"uiAmount"`
	UIAmountString string   `json:"uiAmountString"`
}

// TokenBalance represents a pre/post token balance entry
type TokenBalance struct {
	AccountIndex  int         `json:"accountIndex"`
	Mint          string      `json:"mint"`
	Owner         string      `json:"owner,omitempty"`
	UITokenAmount TokenAmount `json:"uiTokenAmount"`
}

// ParsedInfo carries the jsonParsed instruction payload. The field set is the
// union of what system and token transfers expose; unused fields stay empty.
type ParsedInfo struct {
	Source      string       `json:"source"`
	Destination string       `json:"destination"`
	Authority   string       `json:"authority"`
	Lamports    uint64       `json:"lamports"`
	Amount      string       `json:"amount"`
	Mint        string       `json:"mint"`
	TokenAmount *TokenAmount `json:"tokenAmount"`
}

// ParsedDetail is the `parsed` object of a jsonParsed instruction.
type ParsedDetail struct {
	Type string     `json:"type"`
	Info ParsedInfo `json:"info"`
}

// Instruction is one jsonParsed instruction, top-level or inner. Instructions
// the RPC could not decode have a nil Parsed.
type Instruction struct {
	Program   string        `json:"program"`
	ProgramID string        `json:"programId"`
	Parsed    *ParsedDetail `json:"parsed,omitempty"`
}

// InnerInstructionSet groups the inner instructions emitted while executing
// one top-level instruction.
type InnerInstructionSet struct {
	Index        int           `json:"index"`
	Instructions []Instruction `json:"instructions"`
}

// AccountKey is one transaction account. Depending on RPC version the JSON is
// either a bare base58 string or an object wrapping one; UnmarshalJSON
// flattens both shapes so the rest of the pipeline only ever sees Pubkey.
type AccountKey struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

func (a *AccountKey) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.Pubkey)
	}
	type plain AccountKey
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = AccountKey(p)
	return nil
}

// TransactionMeta contains metadata about a transaction
type TransactionMeta struct {
	Err               interface{}           `json:"err"`
	PreBalances       []uint64              `json:"preBalances"`
	PostBalances      []uint64              `json:"postBalances"`
	PreTokenBalances  []TokenBalance        `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance        `json:"postTokenBalances"`
	InnerInstructions []InnerInstructionSet `json:"innerInstructions"`
}

// TransactionMessage contains the transaction message
type TransactionMessage struct {
	AccountKeys  []AccountKey  `json:"accountKeys"`
	Instructions []Instruction `json:"instructions"`
}

// Transaction represents a parsed transaction
type Transaction struct {
	Message TransactionMessage `json:"message"`
}

// TransactionResult contains the full transaction data
type TransactionResult struct {
	Slot        uint64           `json:"slot"`
	BlockTime   *int64           `json:"blockTime"`
	Meta        *TransactionMeta `json:"meta"`
	Transaction *Transaction     `json:"transaction"`
}

// TransactionResponse is the response from getTransaction
type TransactionResponse struct {
	Result *TransactionResult `json:"result"`
	Error  *RPCError          `json:"error"`
}

// ParsedAccountData is the jsonParsed account data of getAccountInfo.
type ParsedAccountData struct {
	Program string `json:"program"`
	Parsed  *struct {
		Type string `json:"type"`
		Info struct {
			Owner       string       `json:"owner"`
			Mint        string       `json:"mint"`
			TokenAmount *TokenAmount `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// AccountInfo is the value of a getAccountInfo (jsonParsed) response.
type AccountInfo struct {
	Lamports uint64            `json:"lamports"`
	Owner    string            `json:"owner"`
	Data     ParsedAccountData `json:"data"`
}

// AccountInfoResponse is the response from getAccountInfo (jsonParsed)
type AccountInfoResponse struct {
	Result struct {
		Value *AccountInfo `json:"value"`
	} `json:"result"`
	Error *RPCError `json:"error"`
}

// RawAccount is a base64-encoded account, used to decode program state.
type RawAccount struct {
	Lamports uint64
	Owner    string
	Data     []byte
}

// rawAccountResponse is the response from getAccountInfo (base64)
type rawAccountResponse struct {
	Result struct {
		Value *struct {
			Lamports uint64   `json:"lamports"`
			Owner    string   `json:"owner"`
			Data     []string `json:"data"` // [payload, encoding]
		} `json:"value"`
	} `json:"result"`
	Error *RPCError `json:"error"`
}

// TokenAccount is one entry of getTokenAccountsByOwner (jsonParsed).
type TokenAccount struct {
	Address  string
	Mint     string
	Owner    string
	Decimals int
	UIAmount float64
	Symbol   string // rarely present; registry fills the gaps
}

// tokenAccountsResponse is the response from getTokenAccountsByOwner
type tokenAccountsResponse struct {
	Result struct {
		Value []struct {
			Pubkey  string `json:"pubkey"`
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string      `json:"mint"`
							Owner       string      `json:"owner"`
							TokenAmount TokenAmount `json:"tokenAmount"`
							Extensions  []struct {
								Extension string `json:"extension"`
								State     struct {
									Symbol string `json:"symbol"`
								} `json:"state"`
							} `json:"extensions"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	} `json:"result"`
	Error *RPCError `json:"error"`
}

// balanceResponse is the response from getBalance
type balanceResponse struct {
	Result struct {
		Value uint64 `json:"value"`
	} `json:"result"`
	Error *RPCError `json:"error"`
}
