package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"propshare/internal/journal"
	"propshare/internal/ledger"
	"propshare/pkg/domain"
)

const (
	keySequence     = "propshare:seq"
	keyOrigin       = "propshare:origin"
	keyTotal        = "propshare:vp:total"
	keyWalletPrefix = "propshare:vp:"
	keyTokenPrefix  = "propshare:token:"
)

func walletKey(w domain.Address) string { return keyWalletPrefix + w.Hex() }

func tokenKey(id domain.TokenID) string { return keyTokenPrefix + id.String() }

// RedisProjection maintains a read model of voting power in Redis:
//
//	propshare:vp:<wallet>   hash  property id -> shares
//	propshare:vp:total      zset  wallet -> voting power
//	propshare:token:<id>    hash  property, shares, owner
//	propshare:seq           last applied journal sequence
//	propshare:origin        event id of journal record 1
//
// Records at or below propshare:seq are skipped, so redelivery is harmless.
// CatchUp uses propshare:origin to notice a projection left over from a
// different journal and rebuild it.
type RedisProjection struct {
	rdb    redis.Cmdable
	logger *slog.Logger
}

type ProjectionOption func(*RedisProjection)

func WithProjectionLogger(logger *slog.Logger) ProjectionOption {
	return func(p *RedisProjection) {
		p.logger = logger
	}
}

func NewRedisProjection(rdb redis.Cmdable, opts ...ProjectionOption) *RedisProjection {
	p := &RedisProjection{rdb: rdb}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

func (p *RedisProjection) Name() string { return "redis" }

// LastSequence returns the last record folded into the projection.
func (p *RedisProjection) LastSequence(ctx context.Context) (uint64, error) {
	v, err := p.rdb.Get(ctx, keySequence).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read projection sequence: %w", err)
	}
	return v, nil
}

// Origin returns the event id of the first record the projection applied.
func (p *RedisProjection) Origin(ctx context.Context) (string, error) {
	v, err := p.rdb.Get(ctx, keyOrigin).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read projection origin: %w", err)
	}
	return v, nil
}

// Reset deletes every projection key.
func (p *RedisProjection) Reset(ctx context.Context) error {
	for _, pattern := range []string{keyWalletPrefix + "*", keyTokenPrefix + "*"} {
		iter := p.rdb.Scan(ctx, 0, pattern, 500).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(batch) > 0 {
			if err := p.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("delete %s: %w", pattern, err)
			}
		}
	}
	if err := p.rdb.Del(ctx, keySequence, keyOrigin).Err(); err != nil {
		return fmt.Errorf("delete projection cursor: %w", err)
	}
	p.logger.Warn("redis projection reset")
	return nil
}

func (p *RedisProjection) Deliver(ctx context.Context, rec journal.Record) error {
	last, err := p.LastSequence(ctx)
	if err != nil {
		return err
	}
	if rec.Sequence <= last {
		return nil
	}
	if rec.Sequence == 1 {
		if err := p.rdb.Set(ctx, keyOrigin, rec.EventID.String(), 0).Err(); err != nil {
			return fmt.Errorf("record projection origin: %w", err)
		}
	}
	ev, err := journal.Decode(rec)
	if err != nil {
		return err
	}

	switch e := ev.(type) {
	case ledger.Minted:
		return p.applyMinted(ctx, rec.Sequence, e)
	case ledger.Transferred:
		return p.applyTransferred(ctx, rec.Sequence, e)
	default:
		return p.rdb.Set(ctx, keySequence, rec.Sequence, 0).Err()
	}
}

func (p *RedisProjection) applyMinted(ctx context.Context, seq uint64, e ledger.Minted) error {
	pid := e.PropertyID.String()
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, tokenKey(e.TokenID), "property", pid, "shares", e.Shares, "owner", e.To.Hex())
		pipe.HIncrBy(ctx, walletKey(e.To), pid, int64(e.Shares))
		pipe.ZIncrBy(ctx, keyTotal, float64(e.Shares), e.To.Hex())
		pipe.Set(ctx, keySequence, seq, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("project mint of token %s: %w", e.TokenID, err)
	}
	return nil
}

func (p *RedisProjection) applyTransferred(ctx context.Context, seq uint64, e ledger.Transferred) error {
	fields, err := p.rdb.HGetAll(ctx, tokenKey(e.TokenID)).Result()
	if err != nil {
		return fmt.Errorf("read projected token %s: %w", e.TokenID, err)
	}
	if len(fields) == 0 {
		return fmt.Errorf("projected token %s missing", e.TokenID)
	}
	pid := fields["property"]
	shares, err := strconv.ParseInt(fields["shares"], 10, 64)
	if err != nil {
		return fmt.Errorf("projected token %s shares: %w", e.TokenID, err)
	}
	if e.From == e.To {
		return p.rdb.Set(ctx, keySequence, seq, 0).Err()
	}

	var fromLeft *redis.IntCmd
	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fromLeft = pipe.HIncrBy(ctx, walletKey(e.From), pid, -shares)
		pipe.ZIncrBy(ctx, keyTotal, float64(-shares), e.From.Hex())
		if e.IsBurn() {
			pipe.Del(ctx, tokenKey(e.TokenID))
		} else {
			pipe.HIncrBy(ctx, walletKey(e.To), pid, shares)
			pipe.ZIncrBy(ctx, keyTotal, float64(shares), e.To.Hex())
			pipe.HSet(ctx, tokenKey(e.TokenID), "owner", e.To.Hex())
		}
		pipe.Set(ctx, keySequence, seq, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("project transfer of token %s: %w", e.TokenID, err)
	}

	// Drop emptied entries; a failure here only leaves zero values behind.
	if fromLeft.Val() <= 0 {
		if err := p.rdb.HDel(ctx, walletKey(e.From), pid).Err(); err != nil {
			p.logger.Warn("projection cleanup failed", "wallet", e.From.Hex(), "property_id", pid, "error", err)
		}
	}
	if err := p.rdb.ZRemRangeByScore(ctx, keyTotal, "-inf", "0").Err(); err != nil {
		p.logger.Warn("projection cleanup failed", "key", keyTotal, "error", err)
	}
	return nil
}

// VotingPower reads a wallet's total from the projection.
func (p *RedisProjection) VotingPower(ctx context.Context, w domain.Address) (uint64, error) {
	score, err := p.rdb.ZScore(ctx, keyTotal, w.Hex()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(score), nil
}

// PropertyVotingPower reads a wallet's holding in one property.
func (p *RedisProjection) PropertyVotingPower(ctx context.Context, w domain.Address, id domain.PropertyID) (uint64, error) {
	v, err := p.rdb.HGet(ctx, walletKey(w), id.String()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Holder is one entry of the voting power leaderboard.
type Holder struct {
	Wallet      string `json:"wallet"`
	VotingPower uint64 `json:"voting_power"`
}

// TopHolders returns the n wallets with the most voting power.
func (p *RedisProjection) TopHolders(ctx context.Context, n int64) ([]Holder, error) {
	zs, err := p.rdb.ZRevRangeWithScores(ctx, keyTotal, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Holder, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, Holder{Wallet: member, VotingPower: uint64(z.Score)})
	}
	return out, nil
}
