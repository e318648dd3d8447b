//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"propshare/internal/journal"
	"propshare/internal/journal/store"
	"propshare/internal/ledger"
	"propshare/pkg/domain"
	"propshare/pkg/platform/sentinel"
	"propshare/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "ledger_events"))
}

func (s *PostgresStoreSuite) encode(seq uint64, ev ledger.Event) journal.Record {
	caller := domain.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	rec, err := journal.Encode(seq, caller, time.Now(), ev)
	s.Require().NoError(err)
	return rec
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	wallet := domain.MustParseAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	recs := []journal.Record{
		s.encode(1, ledger.PropertyCreated{PropertyID: 1, Name: "Dock 7", TotalShares: 1000}),
		s.encode(2, ledger.KYCStatusChanged{Wallet: wallet, Verified: true}),
		s.encode(3, ledger.Minted{TokenID: 1, To: wallet, PropertyID: 1, Shares: 100}),
	}
	s.Require().NoError(s.store.Append(s.ctx, recs...))

	last, err := s.store.LastSequence(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(3), last)

	got, err := s.store.ListAfter(s.ctx, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	for i := range recs {
		s.Equal(recs[i].EventID, got[i].EventID)
		s.Equal(recs[i].Caller, got[i].Caller)
		s.JSONEq(string(recs[i].Payload), string(got[i].Payload))
	}

	state := ledger.New()
	replayed, err := journal.Replay(s.ctx, s.store, state)
	s.Require().NoError(err)
	s.Equal(uint64(3), replayed)
	s.Equal(uint64(100), state.VotingPower(wallet))

	one, err := s.store.Get(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal(ledger.EventKYCStatusChanged, one.Type)

	_, err = s.store.Get(s.ctx, 42)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSequenceEnforcement() {
	s.Require().NoError(s.store.Append(s.ctx, s.encode(1, ledger.PauseChanged{Paused: true})))

	err := s.store.Append(s.ctx, s.encode(1, ledger.PauseChanged{Paused: false}))
	s.ErrorIs(err, sentinel.ErrConflict)

	err = s.store.Append(s.ctx, s.encode(2, ledger.PauseChanged{}), s.encode(4, ledger.PauseChanged{}))
	s.ErrorIs(err, sentinel.ErrOutOfOrder)

	last, err := s.store.LastSequence(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1), last)
}

func (s *PostgresStoreSuite) TestAppendJoinsOuterTransaction() {
	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		if err := s.store.Append(ctx, s.encode(1, ledger.PauseChanged{Paused: true})); err != nil {
			return err
		}
		return s.store.Append(ctx, s.encode(2, ledger.PauseChanged{Paused: false}))
	})
	s.Require().NoError(err)

	last, err := s.store.LastSequence(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(2), last)
}

func (s *PostgresStoreSuite) TestTxTimeoutBoundsAppend() {
	short := store.NewPostgres(s.postgres.DB, store.WithTxTimeout(time.Nanosecond))
	err := short.Append(s.ctx, s.encode(1, ledger.PauseChanged{Paused: true}))
	s.Require().Error(err)

	last, err := s.store.LastSequence(s.ctx)
	s.Require().NoError(err)
	s.Zero(last)
}
