package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	qt "github.com/frankban/quicktest"
	"github.com/gorilla/websocket"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/test"
)

func dial(c *qt.C, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(c *qt.C, conn *websocket.Conn) *Message {
	c.Assert(conn.SetReadDeadline(time.Now().Add(2*time.Second)), qt.IsNil)
	msg := &Message{}
	c.Assert(conn.ReadJSON(msg), qt.IsNil)
	return msg
}

func waitClients(c *qt.C, h *Hub, n int) {
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			c.Fatalf("expected %d clients, got %d", n, h.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestParseChange(t *testing.T) {
	c := qt.New(t)
	ch, err := ParseChange(`{"table":"payments","action":"UPDATE","id":"42"}`)
	c.Assert(err, qt.IsNil)
	c.Assert(ch.Table, qt.Equals, "payments")
	c.Assert(ch.Action, qt.Equals, "update")
	c.Assert(ch.ID, qt.Equals, "42")
	c.Assert(ch.ReceivedAt.IsZero(), qt.IsFalse)

	_, err = ParseChange("not json")
	c.Assert(err, qt.IsNotNil)
	_, err = ParseChange(`{"action":"INSERT"}`)
	c.Assert(err, qt.ErrorMatches, ".*missing table")
}

func TestHubBroadcastAndSubscribe(t *testing.T) {
	c := qt.New(t)
	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	c.Cleanup(srv.Close)

	all := dial(c, srv)
	filtered := dial(c, srv)
	waitClients(c, hub, 2)

	c.Assert(filtered.WriteJSON(map[string]any{"subscribe": []string{"Payments", "payments", " agents "}}), qt.IsNil)
	ack := readMessage(c, filtered)
	c.Assert(ack.Type, qt.Equals, "subscribed")
	c.Assert(ack.Tables, qt.DeepEquals, []string{"agents", "payments"})

	hub.Broadcast(&Change{Table: "system_audits", Action: "insert", ID: "a1"})
	hub.Broadcast(&Change{Table: "payments", Action: "update", ID: "p1"})

	msg := readMessage(c, all)
	c.Assert(msg.Type, qt.Equals, "change")
	c.Assert(msg.Change.Table, qt.Equals, "system_audits")
	msg = readMessage(c, all)
	c.Assert(msg.Change.Table, qt.Equals, "payments")

	// the filtered client only sees payments
	msg = readMessage(c, filtered)
	c.Assert(msg.Change.Table, qt.Equals, "payments")
	c.Assert(msg.Change.ID, qt.Equals, "p1")

	c.Assert(filtered.WriteMessage(websocket.TextMessage, []byte("hello")), qt.IsNil)
	c.Assert(readMessage(c, filtered).Type, qt.Equals, "error")

	c.Assert(all.Close(), qt.IsNil)
	waitClients(c, hub, 1)
	hub.Close()
	waitClients(c, hub, 0)
}

func TestHubDropsSlowClients(t *testing.T) {
	c := qt.New(t)
	hub := NewHub(nil)
	slow := &client{send: make(chan []byte, 1)}
	hub.add(slow)

	hub.Broadcast(&Change{Table: "agents", ID: "1"})
	c.Assert(hub.Clients(), qt.Equals, 1)
	hub.Broadcast(&Change{Table: "agents", ID: "2"})
	c.Assert(hub.Clients(), qt.Equals, 0)

	_, ok := <-slow.send
	c.Assert(ok, qt.IsTrue)
	_, ok = <-slow.send
	c.Assert(ok, qt.IsFalse)
}

func TestHubOrigins(t *testing.T) {
	c := qt.New(t)
	hub := NewHub([]string{"https://dashboard.example.com"})
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	c.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	c.Assert(err, qt.IsNotNil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusForbidden)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://dashboard.example.com"}})
	c.Assert(err, qt.IsNil)
	_ = conn.Close()
}

func TestListener(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	container, err := test.StartPostgresContainer(ctx)
	if err != nil {
		c.Skipf("postgres container unavailable: %v", err)
	}
	c.Cleanup(func() { _ = container.Terminate(context.Background()) })
	url, err := test.PostgresURL(ctx, container)
	c.Assert(err, qt.IsNil)
	storage, err := db.New(url)
	c.Assert(err, qt.IsNil)
	c.Cleanup(storage.Close)

	changes := make(chan *Change, 10)
	listenCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- NewListener(url).Listen(listenCtx, func(ch *Change) { changes <- ch }) }()

	// notifications are only delivered after LISTEN, so keep inserting until
	// the first one arrives
	var got *Change
	for got == nil {
		agent := &db.Agent{Name: "lister", Type: "seo", BudgetCents: 100, CostPerRunCents: 10}
		c.Assert(storage.CreateAgent(ctx, agent), qt.IsNil)
		select {
		case got = <-changes:
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			c.Fatal("no change received")
		}
	}
	c.Assert(got.Table, qt.Equals, "agents")
	c.Assert(got.Action, qt.Equals, "insert")
	c.Assert(got.ID, qt.Not(qt.Equals), "")

	stop()
	c.Assert(<-done, qt.IsNil)
}

func TestListenerBackOff(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	bo := newBackOff(ctx)
	for range 20 {
		wait := bo.NextBackOff()
		c.Assert(wait >= minBackoff/2, qt.IsTrue)
		c.Assert(wait <= maxBackoff*3/2, qt.IsTrue)
	}
	cancel()
	c.Assert(bo.NextBackOff(), qt.Equals, backoff.Stop)
}

func TestListenStopsOnCancel(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	l := &Listener{url: "postgres://nobody@127.0.0.1:1/none?connect_timeout=1", channel: "changes"}
	done := make(chan error, 1)
	go func() { done <- l.Listen(ctx, func(*Change) {}) }()
	select {
	case err := <-done:
		c.Assert(err, qt.IsNil)
	case <-time.After(5 * time.Second):
		c.Fatal("listener kept retrying after cancel")
	}
}
