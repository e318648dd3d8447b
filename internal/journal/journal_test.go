package journal_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propshare/internal/journal"
	"propshare/internal/journal/store"
	"propshare/internal/ledger"
	"propshare/pkg/domain"
)

var (
	admin = domain.Address{0: 0x0a, 19: 1}
	alice = domain.Address{0: 0x0a, 19: 2}
	bob   = domain.Address{0: 0x0a, 19: 3}
	at    = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
)

func TestEncodeDecode(t *testing.T) {
	events := []ledger.Event{
		ledger.PropertyCreated{PropertyID: 1, Name: "Dock 7", Location: "Rotterdam", TotalValue: 900, TotalShares: 1000, DocumentHash: "ipfs://doc", CreatedAt: at},
		ledger.Minted{TokenID: 4, To: alice, PropertyID: 1, Shares: 25, MetadataRef: "ipfs://meta", MintedAt: at},
		ledger.Transferred{TokenID: 4, From: alice, To: domain.ZeroAddress},
		ledger.KYCStatusChanged{Wallet: bob, Verified: true},
		ledger.PropertyStatusChanged{PropertyID: 1, Active: false},
		ledger.PauseChanged{Paused: true},
	}
	for i, ev := range events {
		t.Run(string(ev.Type()), func(t *testing.T) {
			rec, err := journal.Encode(uint64(i+1), admin, at, ev)
			require.NoError(t, err)
			assert.Equal(t, ev.Type(), rec.Type)
			assert.Equal(t, ev.AggregateID(), rec.AggregateID)
			assert.NotEqual(t, [16]byte{}, [16]byte(rec.EventID))

			got, err := journal.Decode(rec)
			require.NoError(t, err)
			assert.Equal(t, ev, got)
		})
	}
}

func TestEncodeUsesChecksumAddresses(t *testing.T) {
	w := domain.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	rec, err := journal.Encode(1, admin, at, ledger.KYCStatusChanged{Wallet: w, Verified: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"wallet":"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed","verified":true}`, string(rec.Payload))
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := journal.Decode(journal.Record{Sequence: 9, Type: "burned", Payload: json.RawMessage(`{}`)})
	assert.Error(t, err)

	_, err = journal.Decode(journal.Record{Sequence: 9, Type: ledger.EventMinted, Payload: json.RawMessage(`{"to":"nope"}`)})
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	ctx := context.Background()
	source := ledger.New()
	st := store.NewInMemory()

	cmds := []ledger.Command{
		ledger.CreateProperty{Name: "Dock 7", TotalShares: 1000, At: at},
		ledger.SetKYCStatus{Wallet: alice, Verified: true},
		ledger.SetKYCStatus{Wallet: bob, Verified: true},
		ledger.Mint{To: alice, PropertyID: 1, Shares: 80, At: at},
		ledger.Mint{To: bob, PropertyID: 1, Shares: 15, At: at},
		ledger.Transfer{Caller: bob, From: bob, To: alice, TokenID: 2},
		ledger.SetPropertyActive{PropertyID: 1, Active: false},
	}
	for i, cmd := range cmds {
		ev, err := source.Execute(cmd)
		require.NoError(t, err)
		rec, err := journal.Encode(uint64(i+1), admin, at, ev)
		require.NoError(t, err)
		require.NoError(t, st.Append(ctx, rec))
	}

	rebuilt := ledger.New()
	last, err := journal.Replay(ctx, st, rebuilt)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(cmds)), last)
	assert.Equal(t, source.Snapshot(), rebuilt.Snapshot())
	assert.NoError(t, rebuilt.CheckInvariants())
}

func TestReplayStopsOnInconsistentRecord(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()

	create, err := journal.Encode(1, admin, at, ledger.PropertyCreated{PropertyID: 1, Name: "x", TotalShares: 100})
	require.NoError(t, err)
	// 11 shares breaks the 10-share cap; a tampered journal must not load.
	mint, err := journal.Encode(2, admin, at, ledger.Minted{TokenID: 1, To: alice, PropertyID: 1, Shares: 11})
	require.NoError(t, err)
	require.NoError(t, st.Append(ctx, create, mint))

	last, err := journal.Replay(ctx, st, ledger.New())
	assert.Error(t, err)
	assert.Equal(t, uint64(1), last)
}

func TestCheckContiguous(t *testing.T) {
	assert.NoError(t, journal.CheckContiguous(3, []journal.Record{{Sequence: 4}, {Sequence: 5}}))
	assert.Error(t, journal.CheckContiguous(3, []journal.Record{{Sequence: 5}}))
	assert.Error(t, journal.CheckContiguous(0, []journal.Record{{Sequence: 1}, {Sequence: 3}}))
}
