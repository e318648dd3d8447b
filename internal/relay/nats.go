package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"propshare/internal/journal"
)

// SubjectPrefix is prepended to the event type to form the NATS subject.
const SubjectPrefix = "propshare.events."

// JetStreamPublisher is the part of jetstream.JetStream the sink uses.
//
//go:generate mockgen -source=nats.go -destination=mocks/nats_mocks.go -package=mocks JetStreamPublisher
type JetStreamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSSink publishes records to JetStream. The event id doubles as the
// JetStream message id, so redelivery inside the stream's duplicate window is
// dropped by the server.
type NATSSink struct {
	js JetStreamPublisher
}

func NewNATSSink(js JetStreamPublisher) *NATSSink {
	return &NATSSink{js: js}
}

// ConnectJetStream dials url and makes sure the event stream exists.
func ConnectJetStream(ctx context.Context, url, stream string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url, nats.Name("propshare-relay"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{SubjectPrefix + ">"},
	})
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("ensure stream %s: %w", stream, err)
	}
	return nc, js, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Deliver(ctx context.Context, rec journal.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %d: %w", rec.Sequence, err)
	}
	msg := nats.NewMsg(SubjectPrefix + string(rec.Type))
	msg.Data = data
	msg.Header.Set("Propshare-Sequence", strconv.FormatUint(rec.Sequence, 10))
	msg.Header.Set("Propshare-Aggregate", rec.AggregateID)

	ack, err := s.js.PublishMsg(ctx, msg, jetstream.WithMsgID(rec.EventID.String()))
	if err != nil {
		return fmt.Errorf("publish record %d: %w", rec.Sequence, err)
	}
	if ack == nil {
		return errors.New("publish: empty ack")
	}
	return nil
}
