//go:build integration

package relay_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"propshare/internal/journal"
	"propshare/internal/journal/store"
	"propshare/internal/ledger"
	"propshare/internal/relay"
	"propshare/pkg/domain"
	"propshare/pkg/testutil/containers"
)

type ProjectionSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	proj  *relay.RedisProjection
	ctx   context.Context
}

func TestProjectionSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProjectionSuite))
}

func (s *ProjectionSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.proj = relay.NewRedisProjection(s.redis.Client)
	s.ctx = context.Background()
}

func (s *ProjectionSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

// TestMatchesLedger drives a ledger and the projection with the same records
// and compares voting power.
func (s *ProjectionSuite) TestMatchesLedger() {
	alice := domain.Address{0: 0xa1, 19: 1}
	bob := domain.Address{0: 0xb0, 19: 2}
	state := ledger.New()

	var recs []journal.Record
	exec := func(cmd ledger.Command) {
		ev, err := state.Execute(cmd)
		s.Require().NoError(err)
		rec, err := journal.Encode(uint64(len(recs)+1), alice, time.Now(), ev)
		s.Require().NoError(err)
		recs = append(recs, rec)
	}
	exec(ledger.CreateProperty{Name: "Mill Yard", TotalShares: 1000})
	exec(ledger.CreateProperty{Name: "Quay 3", TotalShares: 500})
	exec(ledger.SetKYCStatus{Wallet: alice, Verified: true})
	exec(ledger.SetKYCStatus{Wallet: bob, Verified: true})
	exec(ledger.Mint{To: alice, PropertyID: 1, Shares: 90})
	exec(ledger.Mint{To: alice, PropertyID: 2, Shares: 30})
	exec(ledger.Mint{To: bob, PropertyID: 1, Shares: 5})
	exec(ledger.Transfer{Caller: bob, From: bob, To: alice, TokenID: 3})
	exec(ledger.Transfer{Caller: alice, From: alice, To: bob, TokenID: 2})
	exec(ledger.Transfer{Caller: alice, From: alice, To: domain.ZeroAddress, TokenID: 1})

	for _, rec := range recs {
		s.Require().NoError(s.proj.Deliver(s.ctx, rec))
	}
	// redelivery is skipped
	for _, rec := range recs {
		s.Require().NoError(s.proj.Deliver(s.ctx, rec))
	}

	for _, w := range []domain.Address{alice, bob} {
		vp, err := s.proj.VotingPower(s.ctx, w)
		s.Require().NoError(err)
		s.Equal(state.VotingPower(w), vp, w.Hex())
		for _, pid := range []domain.PropertyID{1, 2} {
			got, err := s.proj.PropertyVotingPower(s.ctx, w, pid)
			s.Require().NoError(err)
			s.Equal(state.PropertyVotingPower(w, pid), got)
		}
	}

	last, err := s.proj.LastSequence(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(len(recs)), last)

	top, err := s.proj.TopHolders(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(top, 2)
	s.Equal(bob.Hex(), top[0].Wallet)
	s.Equal(uint64(30), top[0].VotingPower)
}

// TestRebuildAfterJournalReset projects one journal, then catches up against
// a fresh journal with fewer records. The stale projection must be replaced.
func (s *ProjectionSuite) TestRebuildAfterJournalReset() {
	alice := domain.Address{0: 0xa1, 19: 1}
	bob := domain.Address{0: 0xb0, 19: 2}

	build := func(holder domain.Address, mints int) *store.InMemory {
		st := store.NewInMemory()
		state := ledger.New()
		seq := uint64(0)
		exec := func(cmd ledger.Command) {
			ev, err := state.Execute(cmd)
			s.Require().NoError(err)
			seq++
			rec, err := journal.Encode(seq, alice, time.Now(), ev)
			s.Require().NoError(err)
			s.Require().NoError(st.Append(s.ctx, rec))
		}
		exec(ledger.CreateProperty{Name: "Mill Yard", TotalShares: 1000})
		exec(ledger.SetKYCStatus{Wallet: holder, Verified: true})
		for range mints {
			exec(ledger.Mint{To: holder, PropertyID: 1, Shares: 10})
		}
		return st
	}

	old := build(alice, 5)
	n, err := relay.CatchUp(s.ctx, old, s.proj)
	s.Require().NoError(err)
	s.Equal(7, n)
	s.Require().NoError(s.redis.Client.Set(s.ctx, "propshare:ratelimit:caller", "1", 0).Err())

	fresh := build(bob, 1)
	n, err = relay.CatchUp(s.ctx, fresh, s.proj)
	s.Require().NoError(err)
	s.Equal(3, n)

	last, err := s.proj.LastSequence(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(3), last)

	vp, err := s.proj.VotingPower(s.ctx, alice)
	s.Require().NoError(err)
	s.Zero(vp)
	vp, err = s.proj.VotingPower(s.ctx, bob)
	s.Require().NoError(err)
	s.Equal(uint64(10), vp)

	exists, err := s.redis.Client.Exists(s.ctx, "propshare:ratelimit:caller").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists, "reset must leave rate limit keys alone")
}

// TestRebuildWhenJournalCatchesUp covers a fresh journal that has already
// grown past the stale projection's sequence.
func (s *ProjectionSuite) TestRebuildWhenJournalCatchesUp() {
	alice := domain.Address{0: 0xa1, 19: 1}

	journalWith := func(mints int) *store.InMemory {
		st := store.NewInMemory()
		state := ledger.New()
		cmds := []ledger.Command{
			ledger.CreateProperty{Name: "Quay 3", TotalShares: 1000},
			ledger.SetKYCStatus{Wallet: alice, Verified: true},
		}
		for range mints {
			cmds = append(cmds, ledger.Mint{To: alice, PropertyID: 1, Shares: 10})
		}
		for i, cmd := range cmds {
			ev, err := state.Execute(cmd)
			s.Require().NoError(err)
			rec, err := journal.Encode(uint64(i+1), alice, time.Now(), ev)
			s.Require().NoError(err)
			s.Require().NoError(st.Append(s.ctx, rec))
		}
		return st
	}

	_, err := relay.CatchUp(s.ctx, journalWith(1), s.proj)
	s.Require().NoError(err)

	n, err := relay.CatchUp(s.ctx, journalWith(4), s.proj)
	s.Require().NoError(err)
	s.Equal(6, n)

	vp, err := s.proj.VotingPower(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(uint64(40), vp)
}

// failCleanup fails the commands that drop emptied projection entries.
type failCleanup struct{}

func (failCleanup) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (failCleanup) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		switch cmd.Name() {
		case "hdel", "zremrangebyscore":
			err := errors.New("cleanup refused")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failCleanup) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (s *ProjectionSuite) TestCleanupFailureIsLogged() {
	opts, err := redis.ParseURL(s.redis.URL)
	s.Require().NoError(err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	rdb.AddHook(failCleanup{})

	var logs bytes.Buffer
	proj := relay.NewRedisProjection(rdb, relay.WithProjectionLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	alice := domain.Address{0: 0xa1, 19: 1}
	bob := domain.Address{0: 0xb0, 19: 2}
	state := ledger.New()
	seq := uint64(0)
	for _, cmd := range []ledger.Command{
		ledger.CreateProperty{Name: "Mill Yard", TotalShares: 1000},
		ledger.SetKYCStatus{Wallet: alice, Verified: true},
		ledger.SetKYCStatus{Wallet: bob, Verified: true},
		ledger.Mint{To: alice, PropertyID: 1, Shares: 40},
		ledger.Transfer{Caller: alice, From: alice, To: bob, TokenID: 1},
	} {
		ev, err := state.Execute(cmd)
		s.Require().NoError(err)
		seq++
		rec, err := journal.Encode(seq, alice, time.Now(), ev)
		s.Require().NoError(err)
		s.Require().NoError(proj.Deliver(s.ctx, rec))
	}

	s.Contains(logs.String(), "projection cleanup failed")
	s.Contains(logs.String(), "cleanup refused")

	vp, err := proj.VotingPower(s.ctx, bob)
	s.Require().NoError(err)
	s.Equal(uint64(40), vp)
	vp, err = proj.VotingPower(s.ctx, alice)
	s.Require().NoError(err)
	s.Zero(vp)
}
