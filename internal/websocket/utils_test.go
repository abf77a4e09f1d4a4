package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsPair upgrades an in-process connection and returns both ends.
func wsPair(t *testing.T) (client, server *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverCh <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-serverCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server conn never arrived")
	}
	t.Cleanup(func() { server.Close() })
	return client, server
}

func TestWriteTypedReadJSONRoundTrip(t *testing.T) {
	client, server := wsPair(t)

	sent := MonitorEvent{Type: "monitor_attached", ExamID: "exam-1", Timestamp: time.Now().UTC()}
	if err := WriteTyped(server, sent); err != nil {
		t.Fatalf("WriteTyped: %v", err)
	}

	var got MonitorEvent
	if err := ReadJSON(client, &got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Type != sent.Type || got.ExamID != sent.ExamID {
		t.Fatalf("got %+v, want type/exam of %+v", got, sent)
	}
}

func TestWriteErrorFrame(t *testing.T) {
	client, server := wsPair(t)

	if err := WriteError(server, "event stream closed"); err != nil {
		t.Fatalf("WriteError: %v", err)
	}

	var got ErrorMessage
	if err := ReadJSON(client, &got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Type != "error" || got.Message != "event stream closed" {
		t.Fatalf("got %+v", got)
	}
}

func TestReadJSONObservesCloseFrame(t *testing.T) {
	client, server := wsPair(t)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := client.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("close: %v", err)
	}

	var discard interface{}
	if err := ReadJSON(server, &discard); err == nil {
		t.Fatal("expected close error, got nil")
	}
}
