package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/mr-tron/base58"
	"github.com/redis/go-redis/v9"
)

const (
	indexKey    = "tokens:index"
	valuePrefix = "tokens:"
)

var symbolRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,32}$`)

// Registry is a redis-backed mint->symbol store layered over the static
// KnownTokens map. Runtime entries win over the static map.
type Registry struct {
	client redis.Cmdable
}

func NewRegistry(client redis.Cmdable) (*Registry, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Registry{client: client}, nil
}

// ValidateMint checks that mint is a plausible base58 Solana address.
func ValidateMint(mint string) error {
	raw, err := base58.Decode(mint)
	if err != nil {
		return fmt.Errorf("invalid mint address: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("invalid mint address: %d bytes, want 32", len(raw))
	}
	return nil
}

// ValidateSymbol checks the symbol format.
func ValidateSymbol(symbol string) error {
	if !symbolRe.MatchString(symbol) {
		return fmt.Errorf("invalid token symbol")
	}
	return nil
}

func (r *Registry) Upsert(ctx context.Context, mint, symbol string) (*Token, error) {
	if err := ValidateMint(mint); err != nil {
		return nil, err
	}
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	token := &Token{Mint: mint, Symbol: symbol, UpdatedAt: time.Now().UTC()}
	b, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("marshal token: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, tokenKey(mint), b, 0)
	pipe.SAdd(ctx, indexKey, mint)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert token: %w", err)
	}

	return token, nil
}

func (r *Registry) Get(ctx context.Context, mint string) (*Token, error) {
	if err := ValidateMint(mint); err != nil {
		return nil, err
	}

	val, err := r.client.Get(ctx, tokenKey(mint)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	var t Token
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &t, nil
}

func (r *Registry) List(ctx context.Context) ([]*Token, error) {
	mints, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list tokens index: %w", err)
	}
	if len(mints) == 0 {
		return []*Token{}, nil
	}

	redisKeys := make([]string, 0, len(mints))
	for _, m := range mints {
		if err := ValidateMint(m); err != nil {
			continue
		}
		redisKeys = append(redisKeys, tokenKey(m))
	}
	if len(redisKeys) == 0 {
		return []*Token{}, nil
	}

	vals, err := r.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget tokens: %w", err)
	}

	out := make([]*Token, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		var t Token
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			continue
		}
		out = append(out, &t)
	}

	return out, nil
}

func (r *Registry) Delete(ctx context.Context, mint string) error {
	if err := ValidateMint(mint); err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, tokenKey(mint))
	pipe.SRem(ctx, indexKey, mint)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	return nil
}

// DisplayName resolves a mint to its display symbol: explicit symbol first,
// then the static map, then an elided form of the mint itself. Distinct mints
// can elide to the same display form; that ambiguity is accepted.
func DisplayName(mint, symbol string) string {
	if symbol != "" {
		return symbol
	}
	if s, ok := constants.KnownTokens[mint]; ok {
		return s
	}
	if len(mint) > 8 {
		return mint[:4] + "..." + mint[len(mint)-4:]
	}
	return mint
}

// Resolve is DisplayName with the registry consulted between the explicit
// symbol and the static map. Registry misses degrade silently to DisplayName.
func (r *Registry) Resolve(ctx context.Context, mint, symbol string) string {
	if symbol != "" {
		return symbol
	}
	if t, err := r.Get(ctx, mint); err == nil {
		return t.Symbol
	}
	return DisplayName(mint, "")
}

func tokenKey(mint string) string {
	return valuePrefix + mint
}
