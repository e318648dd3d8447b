package main

import (
	"context"
	"fmt"
	"log/slog"

	"propshare/internal/access"
	"propshare/internal/journal"
	journalstore "propshare/internal/journal/store"
	"propshare/internal/platform/config"
	"propshare/internal/platform/metrics"
	"propshare/internal/platform/redis"
	"propshare/internal/ratelimit"
	"propshare/internal/relay"
	"propshare/pkg/domain"
	"propshare/pkg/platform/circuit"
)

func buildJournal(ctx context.Context, cfg config.Server, log *slog.Logger) (journal.Store, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set; ledger journal is in memory and lost on restart")
		return journalstore.NewInMemory(), func() {}, nil
	}
	db, err := journalstore.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	applied, err := journalstore.Migrate(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Info("journal database ready", "driver", cfg.Database.Driver, "migrations_applied", applied)
	return journalstore.NewPostgres(db, journalstore.WithTxTimeout(cfg.Database.TxTimeout)), func() { _ = db.Close() }, nil
}

func buildRoles(cfg config.Server, log *slog.Logger) (*access.RoleTable, error) {
	var admin domain.Address
	if cfg.AdminAddress != "" {
		a, err := domain.ParseAddress(cfg.AdminAddress)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_ADDRESS: %w", err)
		}
		admin = a
	}
	roles := access.NewRoleTable(admin)

	if cfg.RolesFile != "" {
		seed, err := access.LoadSeedFile(cfg.RolesFile)
		if err != nil {
			return nil, err
		}
		if err := seed.Apply(roles); err != nil {
			return nil, err
		}
	}
	if len(roles.Members(access.RoleDefaultAdmin)) == 0 {
		log.Warn("no default_admin configured; roles cannot be changed at runtime")
	}
	for _, role := range access.Roles {
		log.Info("role members loaded", "role", string(role), "count", len(roles.Members(role)))
	}
	return roles, nil
}

// sinkSet is the configured sinks plus the projection and Redis client for the
// health check.
type sinkSet struct {
	all        []relay.Sink
	projection *relay.RedisProjection
	redis      *redis.Client
}

func buildSinks(ctx context.Context, cfg config.Server, store journal.Store, log *slog.Logger) (sinkSet, func(), error) {
	set := sinkSet{all: []relay.Sink{relay.NewLogSink(log)}}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (sinkSet, func(), error) {
		closeAll()
		return sinkSet{}, nil, err
	}

	if len(cfg.Kafka.Brokers) > 0 {
		cl, err := relay.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, cl.Close)
		if err := relay.EnsureTopic(ctx, cl, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			return fail(err)
		}
		set.all = append(set.all, relay.NewKafkaSink(cl, cfg.Kafka.Topic))
		log.Info("kafka sink enabled", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}

	if cfg.NATS.URL != "" {
		nc, js, err := relay.ConnectJetStream(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = nc.Drain() })
		set.all = append(set.all, relay.NewNATSSink(js))
		log.Info("nats sink enabled", "stream", cfg.NATS.Stream)
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fail(err)
	}
	if rdb != nil {
		closers = append(closers, func() { _ = rdb.Close() })
		projection := relay.NewRedisProjection(rdb.Client, relay.WithProjectionLogger(log))
		// The projection may lag the journal after a crash; replay the gap
		// before live records start flowing. A projection built from another
		// journal is rebuilt from scratch.
		replayed, err := relay.CatchUp(ctx, store, projection)
		if err != nil {
			return fail(fmt.Errorf("catch up voting-power projection: %w", err))
		}
		set.all = append(set.all, projection)
		set.projection = projection
		set.redis = rdb
		log.Info("redis projection enabled", "replayed", replayed)
	}

	return set, closeAll, nil
}

func newDispatcher(cfg config.Server, sinks sinkSet, log *slog.Logger, m *metrics.Metrics) *relay.Dispatcher {
	return relay.NewDispatcher(sinks.all,
		relay.WithLogger(log),
		relay.WithMetrics(m),
		relay.WithHighWater(cfg.Relay.HighWater),
		relay.WithBackoff(cfg.Relay.InitialBackoff, cfg.Relay.MaxBackoff),
		relay.WithBreaker(
			circuit.WithFailureThreshold(cfg.Relay.BreakerFails),
			circuit.WithCooldown(cfg.Relay.BreakerCool),
		),
	)
}

// newLimiter shares windows through Redis when the projection's client is
// configured, and keeps them in process otherwise.
func newLimiter(cfg config.Server, sinks sinkSet, log *slog.Logger, m *metrics.Metrics) *ratelimit.Limiter {
	var store ratelimit.Store
	if sinks.redis != nil {
		store = ratelimit.NewRedisStore(sinks.redis.Client)
	}
	return ratelimit.New(store, cfg.Limits.Requests, cfg.Limits.Window,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(m),
	)
}
