package tipjar

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/rpc"
)

// jarAccountData builds account bytes in the on-chain Anchor layout.
func jarAccountData(t *testing.T, owner, name, description string, createdAt int64, bump uint8) []byte {
	t.Helper()
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	require.NoError(t, err)

	data := make([]byte, 8) // discriminator
	data = append(data, ownerKey.Bytes()...)

	appendString := func(s string) {
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(s)))
		data = append(data, l[:]...)
		data = append(data, s...)
	}
	appendString(name)
	appendString(description)

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(createdAt))
	data = append(data, ts[:]...)
	data = append(data, bump)
	return data
}

func TestDeriveAddress(t *testing.T) {
	jar, err := DeriveAddress(testOwner, constants.TipJarProgramID)
	require.NoError(t, err)

	// PDA derivation is deterministic
	again, err := DeriveAddress(testOwner, constants.TipJarProgramID)
	require.NoError(t, err)
	assert.Equal(t, jar, again)

	// The derived address is itself a valid pubkey distinct from the owner
	_, err = solana.PublicKeyFromBase58(jar)
	assert.NoError(t, err)
	assert.NotEqual(t, testOwner, jar)

	// A different owner derives a different jar
	other, err := DeriveAddress("4wBqpZM9xaSheZzJSMawUHDgZ7miWfSsxmfVF5jJpfFs", constants.TipJarProgramID)
	require.NoError(t, err)
	assert.NotEqual(t, jar, other)
}

func TestDeriveAddress_InvalidOwner(t *testing.T) {
	_, err := DeriveAddress("not-a-pubkey", constants.TipJarProgramID)
	assert.Error(t, err)
}

func TestDecodeAccount(t *testing.T) {
	data := jarAccountData(t, testOwner, "My Jar", "coffee money", 1700000000, 254)

	jar, err := DecodeAccount("JarAddr", &rpc.RawAccount{
		Lamports: 2_500_000_000,
		Data:     data,
	})
	require.NoError(t, err)

	assert.Equal(t, "JarAddr", jar.Address)
	assert.Equal(t, testOwner, jar.Owner)
	assert.Equal(t, "My Jar", jar.Name)
	assert.Equal(t, "coffee money", jar.Description)
	assert.Equal(t, int64(1700000000), jar.CreatedAt)
	assert.Equal(t, uint8(254), jar.Bump)
	assert.InDelta(t, 2.5, jar.BalanceSol, 1e-9)
}

func TestDecodeAccount_Truncated(t *testing.T) {
	data := jarAccountData(t, testOwner, "My Jar", "coffee money", 1700000000, 254)

	for _, n := range []int{0, 8, 39, len(data) - 1} {
		_, err := DecodeAccount("JarAddr", &rpc.RawAccount{Data: data[:n]})
		assert.Error(t, err, "decode of %d bytes should fail", n)
	}
}

func TestFetchAccount(t *testing.T) {
	jarAddr, err := DeriveAddress(testOwner, constants.TipJarProgramID)
	require.NoError(t, err)

	ledger := &mockLedger{
		rawAccounts: map[string]*rpc.RawAccount{
			jarAddr: {
				Lamports: 1_000_000_000,
				Data:     jarAccountData(t, testOwner, "Jar", "", 42, 255),
			},
		},
	}

	jar, err := FetchAccount(context.Background(), ledger, testOwner, constants.TipJarProgramID)
	require.NoError(t, err)
	require.NotNil(t, jar)
	assert.Equal(t, jarAddr, jar.Address)
	assert.Equal(t, testOwner, jar.Owner)
	assert.Equal(t, "Jar", jar.Name)
}

func TestFetchAccount_Missing(t *testing.T) {
	jar, err := FetchAccount(context.Background(), &mockLedger{}, testOwner, constants.TipJarProgramID)
	require.NoError(t, err)
	assert.Nil(t, jar, "an absent jar is not an error")
}
