package tipjar

import (
	"fmt"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/gagliardetto/solana-go"
)

// DeriveAddress computes a tip jar's PDA from its owner: the program derives
// every jar at findProgramAddress(["tipjar", owner], programID), so the jar
// address is fully determined by the owner wallet.
func DeriveAddress(owner, programID string) (string, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return "", fmt.Errorf("invalid owner address: %w", err)
	}
	program, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return "", fmt.Errorf("invalid program address: %w", err)
	}

	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(constants.TipJarSeed), ownerKey.Bytes()},
		program,
	)
	if err != nil {
		return "", fmt.Errorf("failed to derive tip jar address: %w", err)
	}

	return pda.String(), nil
}
