package tipjar

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/rpc"
	"github.com/gagliardetto/solana-go"
)

// Anchor account layout:
// [0..8]   discriminator
// [8..40]  owner pubkey
// [40..]   name (u32 length prefix + bytes)
//          description (u32 length prefix + bytes)
//          created_at (i64)
//          bump (u8)
const accountHeaderLen = 8 + 32

// DecodeAccount decodes raw tip jar account data.
func DecodeAccount(address string, raw *rpc.RawAccount) (*models.TipJarAccount, error) {
	data := raw.Data
	if len(data) < accountHeaderLen {
		return nil, fmt.Errorf("tip jar account data too short: %d bytes", len(data))
	}

	owner := solana.PublicKeyFromBytes(data[8:40])
	offset := accountHeaderLen

	name, offset, err := readString(data, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to read name: %w", err)
	}
	description, offset, err := readString(data, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to read description: %w", err)
	}

	if len(data) < offset+9 {
		return nil, fmt.Errorf("tip jar account data truncated at %d bytes", len(data))
	}
	createdAt := int64(binary.LittleEndian.Uint64(data[offset : offset+8]))
	bump := data[offset+8]

	return &models.TipJarAccount{
		Address:     address,
		Owner:       owner.String(),
		Name:        name,
		Description: description,
		CreatedAt:   createdAt,
		Bump:        bump,
		BalanceSol:  float64(raw.Lamports) / constants.LamportsPerSol,
	}, nil
}

func readString(data []byte, offset int) (string, int, error) {
	if len(data) < offset+4 {
		return "", 0, fmt.Errorf("missing length prefix at offset %d", offset)
	}
	n := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if n < 0 || len(data) < offset+n {
		return "", 0, fmt.Errorf("string of %d bytes overruns account data", n)
	}
	return string(data[offset : offset+n]), offset + n, nil
}

// FetchAccount derives the owner's jar address and loads its on-chain state.
// Returns (nil, nil) when the jar does not exist.
func FetchAccount(ctx context.Context, ledger rpc.LedgerClient, owner, programID string) (*models.TipJarAccount, error) {
	jar, err := DeriveAddress(owner, programID)
	if err != nil {
		return nil, err
	}

	raw, err := ledger.GetRawAccountInfo(ctx, jar)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	return DecodeAccount(jar, raw)
}
