package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/fetch"
	"github.com/sirupsen/logrus"
)

// LedgerClient is the RPC surface the classification and reconciliation
// pipeline consumes. Keeping it an interface lets tests drive the core with
// hand-built transaction fixtures instead of a live node.
type LedgerClient interface {
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error)
	GetParsedTransaction(ctx context.Context, signature string) (*TransactionResult, error)
	GetParsedAccountInfo(ctx context.Context, address string) (*AccountInfo, error)
	GetTokenAccountsByOwner(ctx context.Context, owner, programID string) ([]TokenAccount, error)
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetRawAccountInfo(ctx context.Context, address string) (*RawAccount, error)
	Endpoint() string
}

// Client is an HTTP JSON-RPC client with retry support. Transient failures
// are retried with capped exponential backoff; rate-limit responses are
// surfaced immediately as fetch.ErrRateLimited and never retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Logger

	// backoff schedule, swapped out in tests
	retryDelay func(attempt int) time.Duration
}

// ClientConfig holds configuration for the RPC client
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *logrus.Logger
}

// NewClient creates a new RPC client
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:    cfg.BaseURL,
		logger:     cfg.Logger,
		retryDelay: fetch.RetryDelay,
	}
}

// Endpoint returns the RPC endpoint URL, used as part of cache keys.
func (c *Client) Endpoint() string {
	return c.baseURL
}

// Call makes a JSON-RPC call with retry logic
func (c *Client) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for failures := 0; ; failures++ {
		if failures > 0 {
			backoff := c.retryDelay(failures - 1)
			c.logger.WithFields(logrus.Fields{
				"attempt": failures,
				"backoff": backoff,
				"method":  method,
			}).Debug("retrying RPC call")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.doRequest(ctx, data)
		if err != nil {
			lastErr = err
			if fetch.ShouldRetry(failures, err) {
				continue
			}
			return fmt.Errorf("%s failed: %w", method, lastErr)
		}

		if err := json.Unmarshal(resp, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}

		return nil
	}
}

func (c *Client) doRequest(ctx context.Context, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rpc quota exceeded: %w", fetch.ErrRateLimited)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// GetSignaturesForAddress fetches transaction signatures touching an address,
// newest first.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	params := []interface{}{address, map[string]interface{}{"limit": limit}}

	var result SignaturesResponse
	if err := c.Call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return result.Result, nil
}

// GetParsedTransaction fetches full transaction details in jsonParsed form.
// A pruned or unknown signature yields (nil, nil).
func (c *Client) GetParsedTransaction(ctx context.Context, signature string) (*TransactionResult, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result TransactionResponse
	if err := c.Call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return result.Result, nil
}

// GetParsedAccountInfo fetches jsonParsed account state, used to confirm
// token account ownership. Missing accounts yield (nil, nil).
func (c *Client) GetParsedAccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	params := []interface{}{address, map[string]interface{}{"encoding": "jsonParsed"}}

	var result AccountInfoResponse
	if err := c.Call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return result.Result.Value, nil
}

// GetRawAccountInfo fetches base64 account data for program-state decoding.
func (c *Client) GetRawAccountInfo(ctx context.Context, address string) (*RawAccount, error) {
	params := []interface{}{address, map[string]interface{}{"encoding": "base64"}}

	var result rawAccountResponse
	if err := c.Call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, result.Error
	}
	if result.Result.Value == nil {
		return nil, nil
	}
	if len(result.Result.Value.Data) == 0 {
		return nil, fmt.Errorf("account %s has no data", address)
	}

	raw, err := base64.StdEncoding.DecodeString(result.Result.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode account data: %w", err)
	}

	return &RawAccount{
		Lamports: result.Result.Value.Lamports,
		Owner:    result.Result.Value.Owner,
		Data:     raw,
	}, nil
}

// GetTokenAccountsByOwner lists an owner's token accounts for one token
// program variant (legacy or Token-2022).
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner, programID string) ([]TokenAccount, error) {
	params := []interface{}{
		owner,
		map[string]interface{}{"programId": programID},
		map[string]interface{}{"encoding": "jsonParsed"},
	}

	var result tokenAccountsResponse
	if err := c.Call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, result.Error
	}

	accounts := make([]TokenAccount, 0, len(result.Result.Value))
	for _, v := range result.Result.Value {
		info := v.Account.Data.Parsed.Info

		ui := 0.0
		if info.TokenAmount.UIAmount != nil {
			ui = *info.TokenAmount.UIAmount
		}

		symbol := ""
		for _, ext := range info.Extensions {
			if ext.Extension == "tokenMetadata" {
				symbol = ext.State.Symbol
			}
		}

		accounts = append(accounts, TokenAccount{
			Address:  v.Pubkey,
			Mint:     info.Mint,
			Owner:    info.Owner,
			Decimals: info.TokenAmount.Decimals,
			UIAmount: ui,
			Symbol:   symbol,
		})
	}

	return accounts, nil
}

// GetBalance returns an address's lamport balance.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	params := []interface{}{address}

	var result balanceResponse
	if err := c.Call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	if result.Error != nil {
		return 0, result.Error
	}

	return result.Result.Value, nil
}
