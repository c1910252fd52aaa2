package tipjar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/rpc"
)

func TestPoller_EmitsEachDonationOnce(t *testing.T) {
	jar, err := DeriveAddress(testOwner, constants.TipJarProgramID)
	require.NoError(t, err)

	ledger := &mockLedger{
		sigs: []rpc.SignatureInfo{
			{Signature: "sig1", Slot: 10, BlockTime: ts(100)},
			{Signature: "sig2", Slot: 11, BlockTime: ts(200)},
		},
		txs: map[string]*rpc.TransactionResult{
			"sig1": donationTx(jar, 900_000_000, ts(100)),
			"sig2": donationTx(jar, 90_000_000, ts(200)),
		},
	}

	p := NewPoller(PollerConfig{
		Reconciler: newTestReconciler(ledger),
		Owner:      testOwner,
	})

	var got []*models.DonationRecord
	handler := func(rec *models.DonationRecord) {
		got = append(got, rec)
	}

	p.poll(context.Background(), handler)
	require.Len(t, got, 2)

	// A second poll over the same history emits nothing
	p.poll(context.Background(), handler)
	assert.Len(t, got, 2)

	// A new signature appearing later is emitted exactly once
	ledger.sigs = append(ledger.sigs, rpc.SignatureInfo{Signature: "sig3", Slot: 12, BlockTime: ts(300)})
	ledger.txs["sig3"] = donationTx(jar, 450_000_000, ts(300))

	p.poll(context.Background(), handler)
	require.Len(t, got, 3)
	assert.Equal(t, "sig3", got[2].Signature)
}

func TestPoller_SkipsFailedPolls(t *testing.T) {
	ledger := &mockLedger{sigErr: assert.AnError}

	p := NewPoller(PollerConfig{
		Reconciler: newTestReconciler(ledger),
		Owner:      testOwner,
	})

	var called bool
	p.poll(context.Background(), func(*models.DonationRecord) { called = true })
	assert.False(t, called)
}

func TestPoller_StartStopsOnContextCancel(t *testing.T) {
	jar, err := DeriveAddress(testOwner, constants.TipJarProgramID)
	require.NoError(t, err)

	ledger := &mockLedger{
		sigs: []rpc.SignatureInfo{{Signature: "sig1", Slot: 10, BlockTime: ts(100)}},
		txs: map[string]*rpc.TransactionResult{
			"sig1": donationTx(jar, 900_000_000, ts(100)),
		},
	}

	p := NewPoller(PollerConfig{
		Reconciler:   newTestReconciler(ledger),
		Owner:        testOwner,
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())

	received := make(chan *models.DonationRecord, 8)
	done := make(chan error, 1)
	go func() {
		done <- p.Start(ctx, func(rec *models.DonationRecord) { received <- rec })
	}()

	select {
	case rec := <-received:
		assert.Equal(t, "sig1", rec.Signature)
	case <-time.After(2 * time.Second):
		t.Fatal("poller never emitted a donation")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}

	require.NoError(t, p.Stop())
}
