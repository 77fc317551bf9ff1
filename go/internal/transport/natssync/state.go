package natssync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/familyhundred/showsync/go/internal/game"
)

// StateSink publishes committed snapshots to the session's fixed subject.
// Because the stream keeps one message per subject, each publish overwrites
// the previous document; a delayed stale write is simply superseded by the
// next commit.
type StateSink struct {
	client    *Client
	sessionID uuid.UUID
}

func (s *StateSink) Name() string { return "nats" }

func (s *StateSink) Publish(ctx context.Context, state *game.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if s.client.config.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.client.config.PublishTimeout)
		defer cancel()
	}

	ack, err := s.client.js.PublishMsg(ctx, &nats.Msg{
		Subject: s.client.stateSubject(s.sessionID),
		Data:    data,
		Header: nats.Header{
			"Session-ID": []string{s.sessionID.String()},
		},
	},
		jetstream.WithExpectStream(s.client.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	log.Debug().
		Str("session_id", s.sessionID.String()).
		Int64("revision", state.Revision).
		Uint64("sequence", ack.Sequence).
		Msg("snapshot published to JetStream")

	return nil
}

// StateSource subscribes a reader to the session's subject. An ordered
// ephemeral consumer starting from the last message means a display that
// connects (or reconnects) immediately receives the current document and
// then every subsequent commit.
type StateSource struct {
	client    *Client
	sessionID uuid.UUID
}

func (s *StateSource) Name() string { return "nats" }

func (s *StateSource) Subscribe(ctx context.Context) (<-chan *game.GameState, error) {
	stream, err := s.client.js.Stream(ctx, s.client.config.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{s.client.stateSubject(s.sessionID)},
		DeliverPolicy:  jetstream.DeliverLastPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create ordered consumer: %w", err)
	}

	ch := make(chan *game.GameState, 16)

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		st := game.Normalize(msg.Data())
		select {
		case ch <- st:
		default:
			// A newer snapshot will arrive; dropping is safe.
			log.Warn().
				Str("session_id", s.sessionID.String()).
				Msg("remote snapshot channel full, dropping")
		}
		// Ordered consumers run with AckNone; no explicit ack needed.
	})
	if err != nil {
		return nil, fmt.Errorf("start consumer: %w", err)
	}

	go func() {
		<-ctx.Done()
		cc.Stop()
		close(ch)
	}()

	return ch, nil
}
