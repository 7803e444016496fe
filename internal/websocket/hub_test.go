package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mythtv_control/internal/backend"
	"mythtv_control/internal/frontend"
)

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var event map[string]json.RawMessage
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return event
}

func eventType(t *testing.T, event map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	json.Unmarshal(event["type"], &typ)
	return typ
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_WelcomeThenBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	hub.SetWelcome(func() []Event {
		return []Event{{Type: EventFrontendState, Payload: frontend.State{Name: "livingroom"}}}
	})

	conn := dial(t, hub)
	if got := eventType(t, readEvent(t, conn)); got != EventConnected {
		t.Fatalf("first event = %q, want %q", got, EventConnected)
	}
	if got := eventType(t, readEvent(t, conn)); got != EventFrontendState {
		t.Fatalf("welcome event = %q, want %q", got, EventFrontendState)
	}
	waitForClients(t, hub, 1)

	hub.BroadcastFrontend(frontend.State{Name: "bedroom", State: frontend.StatePlaying})
	event := readEvent(t, conn)
	if got := eventType(t, event); got != EventFrontendState {
		t.Fatalf("event = %q, want %q", got, EventFrontendState)
	}
	var payload struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	json.Unmarshal(event["payload"], &payload)
	if payload.Name != "bedroom" || payload.State != "playing" {
		t.Fatalf("payload = %+v, want bedroom playing", payload)
	}

	hub.BroadcastTuners([]backend.Tuner{{Name: "HDHomeRun 1", Connected: true}})
	if got := eventType(t, readEvent(t, conn)); got != EventTuners {
		t.Fatalf("event = %q, want %q", got, EventTuners)
	}
}

func TestHub_BroadcastDuringWelcomeComesAfterIt(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	hub.SetWelcome(func() []Event {
		// a state change racing the connection
		hub.BroadcastFrontend(frontend.State{Name: "bedroom", State: frontend.StatePlaying})
		time.Sleep(50 * time.Millisecond)
		return []Event{{Type: EventFrontendState, Payload: frontend.State{Name: "livingroom"}}}
	})

	conn := dial(t, hub)
	if got := eventType(t, readEvent(t, conn)); got != EventConnected {
		t.Fatalf("first event = %q, want %q", got, EventConnected)
	}
	var payload struct {
		Name string `json:"name"`
	}
	json.Unmarshal(readEvent(t, conn)["payload"], &payload)
	if payload.Name != "livingroom" {
		t.Fatalf("second event name = %q, want livingroom welcome", payload.Name)
	}
	waitForClients(t, hub, 1)

	hub.BroadcastFrontend(frontend.State{Name: "kitchen"})
	json.Unmarshal(readEvent(t, conn)["payload"], &payload)
	if payload.Name != "kitchen" {
		t.Fatalf("next event name = %q, want kitchen", payload.Name)
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	conn := dial(t, hub)
	readEvent(t, conn)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
