package gateway

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func testConn(m *Manager, sessionID uuid.UUID) *Conn {
	return &Conn{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		send:      make(chan []byte, 4),
		manager:   m,
	}
}

func TestTrySendRacingCloseDoesNotPanic(t *testing.T) {
	conn := testConn(NewManager(DefaultConfig()), uuid.New())

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range conn.send {
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			conn.trySend([]byte("{}"))
		}
	}()

	conn.closeSend()
	wg.Wait()
	<-drained

	if sent, open := conn.trySend([]byte("{}")); sent || open {
		t.Errorf("send after close = (%v, %v), want (false, false)", sent, open)
	}
}

func TestCloseSendIsIdempotent(t *testing.T) {
	conn := testConn(NewManager(DefaultConfig()), uuid.New())

	conn.closeSend()
	conn.closeSend()

	if _, ok := <-conn.send; ok {
		t.Error("send channel still open after close")
	}
}

func TestFanOutSkipsDisconnectedConnection(t *testing.T) {
	m := NewManager(DefaultConfig())
	sessionID := uuid.New()

	live := testConn(m, sessionID)
	gone := testConn(m, sessionID)
	m.register(live)
	m.register(gone)

	// The display disconnects after fanOut would have snapshotted the pool.
	gone.closeSend()

	m.fanOut(broadcastItem{sessionID: sessionID, frame: []byte("{}"), frameType: FrameState})

	select {
	case frame := <-live.send:
		if string(frame) != "{}" {
			t.Errorf("frame = %q, want the broadcast payload", frame)
		}
	default:
		t.Error("live connection never received the frame")
	}
}

func TestUnregisterPrunesEmptySession(t *testing.T) {
	m := NewManager(DefaultConfig())
	sessionID := uuid.New()

	conn := testConn(m, sessionID)
	m.register(conn)
	m.unregister(conn)
	m.unregister(conn) // disconnect may be reported by both pumps

	if stats := m.Stats(); len(stats) != 0 {
		t.Errorf("stats = %v, want empty after last disconnect", stats)
	}
}
