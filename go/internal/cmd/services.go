package main

import (
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/familyhundred/showsync/go/internal/admin"
	"github.com/familyhundred/showsync/go/internal/gateway"
	"github.com/familyhundred/showsync/go/internal/session"
	"github.com/familyhundred/showsync/go/internal/store"
	"github.com/familyhundred/showsync/go/internal/transport/broadcast"
	"github.com/familyhundred/showsync/go/internal/transport/natssync"
)

// Services holds everything the server wires together.
type Services struct {
	Hub      *broadcast.Hub
	Remote   *natssync.Client
	Store    *store.Store
	Listener *store.Listener
	Gateway  *gateway.Manager
	Sessions *session.Manager
	Admin    *admin.Handler
	Display  *gateway.Handler
}

func setupServices(cfg *Config, pool *pgxpool.Pool, database *sql.DB) (*Services, error) {
	hub := broadcast.NewHub()

	natsCfg := natssync.DefaultConfig()
	natsCfg.URL = cfg.NATS.URL
	remote, err := natssync.NewClient(natsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect remote sync: %w", err)
	}

	st := store.New(pool)

	listenerCfg := store.DefaultListenerConfig()
	listenerCfg.DatabaseURL = cfg.Database.DSN()
	listenerCfg.FallbackInterval = cfg.fallbackInterval()
	listenerCfg.PingInterval = cfg.pingInterval()
	listener, err := store.NewListener(database, listenerCfg, clockwork.NewRealClock())
	if err != nil {
		remote.Close()
		return nil, fmt.Errorf("failed to start snapshot listener: %w", err)
	}

	gw := gateway.NewManager(gateway.DefaultConfig())
	sessions := session.NewManager(hub, remote, st, listener, gw)

	return &Services{
		Hub:      hub,
		Remote:   remote,
		Store:    st,
		Listener: listener,
		Gateway:  gw,
		Sessions: sessions,
		Admin:    admin.NewHandler(sessions),
		Display:  gateway.NewHandler(gw, sessions),
	}, nil
}
