package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/ai"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/balances"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/cache"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/classify"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/fetch"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/rpc"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/storage"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/tipjar"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/tokens"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Ledger       rpc.LedgerClient      // JSON-RPC ledger client
	Reconciler   *tipjar.Reconciler    // Donation feed reconciler
	Classifier   *classify.Classifier  // Ledger movement classifier
	Balances     *balances.Aggregator  // SOL + token balance aggregator
	Cache        storage.DonationCache // Redis-backed feed cache (optional)
	Tokens       *tokens.Registry      // Redis-backed token symbol registry
	AI           *ai.Agent             // AI agent for natural language queries
	AIBaseConfig ai.AgentConfig        // Base configuration for AI agents
	ProgramID    string                // Tip jar program address
	DevMode      bool                  // Enable detailed error responses in development
	Logger       *logrus.Logger        // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// address extracts and validates a base58 pubkey path parameter
func (h *Handlers) address(c echo.Context, param string) (string, error) {
	addr := strings.TrimSpace(c.Param(param))
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return "", h.err(c, http.StatusBadRequest, "invalid address", map[string]any{param: "must be a base58 32-byte pubkey"})
	}
	return addr, nil
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Donations returns the reconciled donation feed for an owner's tip jar.
// Results are cached per owner+endpoint with a freshness window; an in-flight
// reconcile that loses the generation race never overwrites a newer result.
func (h *Handlers) Donations(c echo.Context) error {
	owner, err := h.address(c, "owner")
	if err != nil {
		return err
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	key := cache.FeedKey(owner, h.Ledger.Endpoint())

	if h.Cache != nil {
		if cached, ok, err := h.Cache.GetFeed(ctx, key); err == nil && ok {
			return c.JSON(http.StatusOK, cached)
		} else if err != nil {
			h.Logger.WithError(err).Warn("donation feed cache read failed")
		}
	}

	var generation uint64
	if h.Cache != nil {
		g, err := h.Cache.NextGeneration(ctx, key)
		if err != nil {
			h.Logger.WithError(err).Warn("failed to claim feed generation")
		} else {
			generation = g
		}
	}

	feed := h.Reconciler.Reconcile(ctx, owner)

	if h.Cache != nil && generation > 0 && feed.Err == "" {
		if err := h.Cache.PutFeed(ctx, key, generation, &feed); err != nil {
			h.Logger.WithError(err).Warn("donation feed cache write failed")
		}
	}

	if feed.Err != "" {
		return h.err(c, http.StatusBadGateway, "failed to fetch donation history", map[string]any{"err": feed.Err})
	}
	return c.JSON(http.StatusOK, feed)
}

// Transactions returns classified ledger movements for an address.
// Fetches the most recent signature page and parses transactions in paced
// batches; transactions that fail to parse are still reported as unknown.
func (h *Handlers) Transactions(c echo.Context) error {
	addr, err := h.address(c, "address")
	if err != nil {
		return err
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	sigs, err := h.Ledger.GetSignaturesForAddress(ctx, addr, constants.ParsedTxFetchLimit)
	if err != nil {
		h.Logger.WithError(err).WithField("address", addr).Error("signature fetch failed")
		return h.err(c, http.StatusBadGateway, "failed to fetch transaction history", nil)
	}

	txs, err := fetch.Batch(ctx, sigs, constants.ParsedTxBatchSize, constants.ParsedTxBatchDelay,
		func(ctx context.Context, sig rpc.SignatureInfo) (*rpc.TransactionResult, error) {
			return h.Ledger.GetParsedTransaction(ctx, sig.Signature)
		})
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to fetch transactions", nil)
	}

	items := make([]models.LedgerMovement, 0, len(sigs))
	for i, sig := range sigs {
		items = append(items, h.Classifier.Classify(ctx, sig, txs[i], addr))
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Balances returns aggregated SOL and token holdings for an address
func (h *Handlers) BalancesList(c echo.Context) error {
	addr, err := h.address(c, "address")
	if err != nil {
		return err
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	items, err := h.Balances.Holdings(ctx, addr)
	if err != nil {
		h.Logger.WithError(err).WithField("address", addr).Error("balance fetch failed")
		return h.err(c, http.StatusBadGateway, "failed to fetch balances", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// TipJar returns the decoded on-chain tip jar account for an owner
// Returns 404 when the owner has not created a jar yet
func (h *Handlers) TipJar(c echo.Context) error {
	owner, err := h.address(c, "owner")
	if err != nil {
		return err
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	jar, err := tipjar.FetchAccount(ctx, h.Ledger, owner, h.ProgramID)
	if err != nil {
		h.Logger.WithError(err).WithField("owner", owner).Error("tip jar fetch failed")
		return h.err(c, http.StatusBadGateway, "failed to fetch tip jar", nil)
	}
	if jar == nil {
		return h.err(c, http.StatusNotFound, "tip jar not found", nil)
	}
	return c.JSON(http.StatusOK, jar)
}

// TokensUpsert creates or updates a token registry entry
// Validates mint and symbol format and returns the created/updated entry
func (h *Handlers) TokensUpsert(c echo.Context) error {
	var req TokenUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := tokens.ValidateMint(req.Mint); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": "invalid format"})
	}
	if err := tokens.ValidateSymbol(req.Symbol); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid symbol", map[string]any{"symbol": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Tokens.Upsert(ctx, req.Mint, req.Symbol)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert token", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// TokensUpdate updates an existing token registry entry
// Validates mint and symbol format and returns the updated entry
func (h *Handlers) TokensUpdate(c echo.Context) error {
	mint := c.Param("mint")
	if err := tokens.ValidateMint(mint); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": "invalid format"})
	}
	var req TokenUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := tokens.ValidateSymbol(req.Symbol); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid symbol", map[string]any{"symbol": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Tokens.Upsert(ctx, mint, req.Symbol)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update token", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// TokensGet retrieves a token registry entry by its mint
// Returns 404 if the entry doesn't exist
func (h *Handlers) TokensGet(c echo.Context) error {
	mint := c.Param("mint")
	if err := tokens.ValidateMint(mint); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Tokens.Get(ctx, mint)
	if err != nil {
		if errors.Is(err, tokens.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "token not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get token", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// TokensList returns all token registry entries
func (h *Handlers) TokensList(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Tokens.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list tokens", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// TokensDelete removes a token registry entry by its mint
// Returns 204 No Content on successful deletion
func (h *Handlers) TokensDelete(c echo.Context) error {
	mint := c.Param("mint")
	if err := tokens.ValidateMint(mint); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Tokens.Delete(ctx, mint); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete token", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// AIAsk processes natural language questions about donation data using AI
// Supports optional model override for one-off requests
// Returns SQL query and answer with execution time
func (h *Handlers) AIAsk(c echo.Context) error {
	if h.AI == nil {
		return h.err(c, http.StatusBadRequest, "ai is not configured", nil)
	}

	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()

	// Use default AI agent or create temporary one with custom model
	agent := h.AI
	var tmp *ai.Agent
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg := h.AIBaseConfig
		cfg.Model = m
		a, err := ai.NewAgent(ctx, cfg)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to create ai agent", nil)
		}
		tmp = a
		agent = a
		defer func() {
			_ = tmp.Close() // Clean up temporary agent
		}()
	}

	res, err := agent.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ai ask failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, AIAskResponse{SQL: res.SQL, Answer: res.Answer, TookMs: time.Since(start).Milliseconds()})
}
