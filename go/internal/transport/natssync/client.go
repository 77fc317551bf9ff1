// Package natssync is the cross-device fan-out path: committed snapshots are
// written wholesale to a fixed per-session JetStream subject, and every
// display subscribes to that subject for the latest document. Sound cues
// ride plain core NATS so nothing is retained for replay after a reconnect.
package natssync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/familyhundred/showsync/go/internal/sound"
)

// Config holds connection and stream settings for the remote sync path.
type Config struct {
	URL                string
	StreamName         string
	StateSubjectPrefix string // e.g. "game.state"
	SoundSubjectPrefix string // e.g. "game.sound"
	MaxReconnects      int
	ReconnectWait      time.Duration
	PublishTimeout     time.Duration
}

// DefaultConfig returns the stock remote sync configuration.
func DefaultConfig() Config {
	return Config{
		URL:                nats.DefaultURL,
		StreamName:         "GAME_STATE",
		StateSubjectPrefix: "game.state",
		SoundSubjectPrefix: "game.sound",
		MaxReconnects:      -1, // Infinite
		ReconnectWait:      2 * time.Second,
		PublishTimeout:     5 * time.Second,
	}
}

// Client owns the NATS connection and the snapshot stream.
type Client struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config Config
}

// NewClient connects to NATS and ensures the snapshot stream exists. The
// stream keeps exactly one message per subject, so it always holds the
// latest document per session and nothing else.
func NewClient(cfg Config) (*Client, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	c := &Client{nc: nc, js: js, config: cfg}

	if err := c.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return c, nil
}

func (c *Client) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:              c.config.StreamName,
		Description:       "Latest game state snapshot per session",
		Subjects:          []string{fmt.Sprintf("%s.>", c.config.StateSubjectPrefix)},
		Retention:         jetstream.LimitsPolicy,
		MaxMsgsPerSubject: 1, // whole-document overwrite semantics
		Storage:           jetstream.FileStorage,
	}

	_, err := c.js.Stream(ctx, c.config.StreamName)
	if err != nil {
		if _, err = c.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", c.config.StreamName).
			Msg("created JetStream stream")
		return nil
	}
	if _, err = c.js.UpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (c *Client) Close() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}

func (c *Client) stateSubject(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", c.config.StateSubjectPrefix, sessionID)
}

func (c *Client) soundSubject(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", c.config.SoundSubjectPrefix, sessionID)
}

// StateSink returns the controller-facing publish side for a session.
func (c *Client) StateSink(sessionID uuid.UUID) *StateSink {
	return &StateSink{client: c, sessionID: sessionID}
}

// StateSource returns the reader-facing subscribe side for a session.
func (c *Client) StateSource(sessionID uuid.UUID) *StateSource {
	return &StateSource{client: c, sessionID: sessionID}
}

// PublishSound sends a cue to the session's sound subject. Core NATS only:
// at-most-once, no retention, so reconnecting displays never replay it.
func (c *Client) PublishSound(sessionID uuid.UUID, cue sound.Cue) error {
	cmd := sound.Command{SessionID: sessionID, Cue: cue, IssuedAt: time.Now().UTC()}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal sound command: %w", err)
	}
	if err := c.nc.Publish(c.soundSubject(sessionID), data); err != nil {
		return fmt.Errorf("publish sound command: %w", err)
	}
	return nil
}

// SubscribeSound delivers the session's cues to handler until the returned
// unsubscribe function is called.
func (c *Client) SubscribeSound(sessionID uuid.UUID, handler func(sound.Command)) (func(), error) {
	sub, err := c.nc.Subscribe(c.soundSubject(sessionID), func(msg *nats.Msg) {
		var cmd sound.Command
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("dropping malformed sound command")
			return
		}
		handler(cmd)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe sound commands: %w", err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe sound commands")
		}
	}, nil
}
